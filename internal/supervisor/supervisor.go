// Package supervisor is the top-level orchestrator (spec.md §4.3): it
// wires the Config Loader and Process Manager, installs signal handlers,
// owns the health-check timer, and hands control to the external
// command source.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bkasymov/taskmaster-v4/internal/config"
	"github.com/bkasymov/taskmaster-v4/internal/logx"
	"github.com/bkasymov/taskmaster-v4/internal/manager"
)

// healthCheckInterval is how often check_and_restart ticks (spec.md
// §4.3 step 5: "roughly every 1 second").
const healthCheckInterval = time.Second

// Supervisor wires a Manager to the host signal table and a periodic
// health-check timer. Signal handlers never mutate state directly
// (spec.md §5): they post the corresponding operation through the same
// channel the main loop drains.
type Supervisor struct {
	Manager *manager.Manager
	logger  logx.Logger

	configPath string

	sigCh    chan os.Signal
	reloadCh chan struct{}
	quitCh   chan struct{}

	running sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// New constructs a Supervisor around an already-loaded config and wires
// a Manager for it.
func New(configPath string, cfg config.Config, logger logx.Logger) *Supervisor {
	return &Supervisor{
		Manager:    manager.New(cfg, logger),
		logger:     logger,
		configPath: configPath,
		sigCh:      make(chan os.Signal, 8),
		reloadCh:   make(chan struct{}, 1),
		quitCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start installs signal handlers, autostarts the fleet, and launches the
// health-check timer (spec.md §4.3 steps 3-5). It does not block; call
// Wait or drive an external command source afterward.
func (s *Supervisor) Start() error {
	signal.Notify(s.sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	if err := s.Manager.StartInitialProcesses(); err != nil {
		s.logger.Error("one or more autostart programs failed to launch", "error", err)
	}

	s.running.Add(1)
	go s.loop()

	return nil
}

// loop is the single goroutine that serializes signal-triggered
// operations against the health-check tick (spec.md §5 Ordering
// guarantees: the background tick is equivalent to another queued
// operation).
func (s *Supervisor) loop() {
	defer s.running.Done()

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-s.sigCh:
			switch sig {
			case syscall.SIGHUP:
				s.ReloadConfig()
			case syscall.SIGINT, syscall.SIGTERM:
				s.shutdown()
				return
			}
		case <-ticker.C:
			s.Manager.CheckAndRestart()
		case <-s.quitCh:
			s.shutdown()
			return
		}
	}
}

// ReloadConfig re-parses the config file. On failure, the error is
// logged and the existing config/table are retained unchanged — a bad
// reload never tears down the fleet (spec.md §4.3 Reload, §7).
func (s *Supervisor) ReloadConfig() {
	newCfg, err := config.LoadFile(s.configPath)
	if err != nil {
		s.logger.Error("failed to reload configuration", "error", err)
		return
	}

	oldCfg := s.Manager.GetConfig()
	diff := config.Diff(oldCfg, newCfg)
	logDiff(s.logger, diff)

	s.Manager.UpdateConfig(newCfg)
	s.logger.Info("Configuration reloaded successfully")
}

func logDiff(logger logx.Logger, diff config.ReloadDiff) {
	if diff.Empty() {
		logger.Info("reload: no changes")
		return
	}
	for _, name := range diff.Added {
		logger.Info("reload: program added", "program", name)
	}
	for _, name := range diff.Removed {
		logger.Info("reload: program removed", "program", name)
	}
	for _, pd := range diff.Changed {
		for _, f := range pd.Fields {
			logger.Info("reload: program changed", "program", pd.Name, "field", f.Field, "old", f.Old, "new", f.New)
		}
	}
}

// Quit requests a graceful shutdown, equivalent to receiving SIGINT
// (spec.md §6 "quit"/"exit" command).
func (s *Supervisor) Quit() {
	s.once.Do(func() { close(s.quitCh) })
}

// shutdown stops every program and signals that the supervisor has fully
// converged (spec.md §4.3 Shutdown). The loop returns right after it, so
// no further health-check ticks run.
func (s *Supervisor) shutdown() {
	s.logger.Info("initiating graceful shutdown")
	s.Manager.StopAllPrograms()
	close(s.stopped)
}

// Wait blocks until the supervisor loop has exited (graceful shutdown
// converged). Programs are stopped one after another, so shutdown can
// take up to the sum of their stoptimes, not only the largest one.
func (s *Supervisor) Wait() {
	s.running.Wait()
}

// Done returns a channel closed once shutdown has fully converged (every
// program stopped).
func (s *Supervisor) Done() <-chan struct{} {
	return s.stopped
}

// Shutdown triggers a graceful shutdown and blocks until it converges or
// ctx is done, whichever comes first.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.Quit()
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
