// Package manager implements the Process Manager: it owns the process
// table and every operation that mutates it (spec.md §4.2). All
// mutating operations and the get_status read run under a single mutex
// per Manager instance (spec.md §5 Serialization discipline) — no two
// mutators interleave, and get_status observes a consistent snapshot.
package manager

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/bkasymov/taskmaster-v4/internal/config"
	"github.com/bkasymov/taskmaster-v4/internal/logx"
	"github.com/bkasymov/taskmaster-v4/internal/process"
)

// EntryView is a point-in-time, immutable snapshot of one process entry
// (spec.md §4.2 get_status).
type EntryView struct {
	PID      int
	Cmd      string
	Status   string
	Restarts int
	Uptime   time.Duration
}

// Snapshot is the full table view returned by GetStatus, and the shape
// handed to metrics/observability subscribers.
type Snapshot map[string][]EntryView

// Manager owns the process table for one supervisor instance.
type Manager struct {
	mu     sync.Mutex
	cfg    config.Config
	table  map[string][]*process.Entry
	logger logx.Logger

	subsMu sync.Mutex
	subs   []func(Snapshot)
}

// New builds a Manager around an initial config snapshot. The table
// starts empty; callers invoke StartInitialProcesses to autostart.
func New(cfg config.Config, logger logx.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		table:  make(map[string][]*process.Entry),
		logger: logger,
	}
}

// Subscribe registers a hook invoked with a fresh status snapshot after
// every mutation, on the same mutation-serialized path as GetStatus
// (spec.md §D.3 of SPEC_FULL.md) — used to drive the metrics exporter.
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) notify(snap Snapshot) {
	m.subsMu.Lock()
	subs := append([]func(Snapshot){}, m.subs...)
	m.subsMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func newLogID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "unknown"
	}
	return id
}

// StartInitialProcesses starts every autostart program in the current
// config (spec.md §4.2 start_initial_processes).
func (m *Manager) StartInitialProcesses() error {
	m.mu.Lock()
	var names []string
	for _, name := range m.cfg.Names() {
		if m.cfg.Programs[name].AutoStart {
			names = append(names, name)
		}
	}
	m.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := m.StartProgram(name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StartProgram launches missing slots for name up to its numprocs
// (spec.md §4.2 start_program). Already-running slots are left alone.
// Explicit start requests are honored regardless of autostart — only
// StartInitialProcesses filters on autostart (spec.md §6 "start" command
// takes an explicit program name and always attempts to launch it).
func (m *Manager) StartProgram(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startProgramLocked(name)
}

// StopProgram signals, waits, and force-kills every instance of name,
// then removes its slot list from the table (spec.md §4.2 stop_program).
// Instances drain concurrently (SPEC_FULL.md §D.3, §9 Open Question (b)).
func (m *Manager) StopProgram(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopProgramLocked(name)
}

func (m *Manager) stopProgramLocked(name string) error {
	entries, ok := m.table[name]
	if !ok {
		m.logger.Warn("stop: program not running", "program", name)
		return nil
	}

	spec := m.cfg.Programs[name]
	stoptime := time.Duration(spec.StopTime) * time.Second
	sig, known := process.ResolveSignal(spec.StopSignal)
	if !known {
		sig = 15 // SIGTERM fallback; validated at config load, defensive only
	}

	var g errgroup.Group
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := e.Signal(sig); err != nil {
				m.logger.Warn("signal delivery failed", "program", name, "pid", e.PID(), "error", err)
			}
			select {
			case <-e.Done():
			case <-time.After(stoptime):
				if err := e.Kill(); err != nil {
					m.logger.Warn("kill failed", "program", name, "pid", e.PID(), "error", err)
				}
				<-e.Done()
			}
			return nil
		})
	}
	_ = g.Wait()

	delete(m.table, name)
	m.logger.Info("Stopped program: " + name)
	m.notifyLocked()
	return nil
}

// RestartProgram stops and starts name, resetting its retry budget
// (spec.md §4.2 restart_program, §9 "Retry counter on user-initiated
// restart").
func (m *Manager) RestartProgram(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopProgramLocked(name); err != nil {
		return err
	}
	return m.startProgramLocked(name)
}

// startProgramLocked is StartProgram's body, for callers that already
// hold m.mu (RestartProgram, UpdateConfig).
func (m *Manager) startProgramLocked(name string) error {
	spec, ok := m.cfg.Programs[name]
	if !ok {
		m.logger.Warn("start: unknown program", "program", name)
		return fmt.Errorf("program not found: %s", name)
	}

	existing := m.table[name]
	var firstErr error
	for slot := len(existing); slot < spec.NumProcs; slot++ {
		e, err := process.Launch(name, spec, slot, 0, newLogID())
		if err != nil {
			m.logger.Error("launch failed", "program", name, "slot", slot, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		existing = append(existing, e)
	}
	m.table[name] = existing
	m.logger.Info("Started program: " + name)
	m.notifyLocked()
	return firstErr
}

// RestartAllPrograms restarts every program currently present in the
// table (spec.md §4.2 restart_all_programs).
func (m *Manager) RestartAllPrograms() error {
	m.mu.Lock()
	names := make([]string, 0, len(m.table))
	for name := range m.table {
		names = append(names, name)
	}
	m.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := m.RestartProgram(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopAllPrograms stops every program currently present in the table
// (spec.md §4.3 graceful shutdown).
func (m *Manager) StopAllPrograms() {
	m.mu.Lock()
	names := make([]string, 0, len(m.table))
	for name := range m.table {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		_ = m.StopProgram(name)
	}
}

// GetConfig returns the config snapshot the Manager currently reconciles
// against.
func (m *Manager) GetConfig() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// GetStatus produces a consistent, immutable snapshot of every program
// present in the table (spec.md §4.2 get_status).
func (m *Manager) GetStatus() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	now := time.Now()
	snap := make(Snapshot, len(m.table))
	for name, entries := range m.table {
		views := make([]EntryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, EntryView{
				PID:      e.PID(),
				Cmd:      e.Spec.Cmd,
				Status:   e.Status().String(),
				Restarts: e.Restarts(),
				Uptime:   e.Uptime(now),
			})
		}
		snap[name] = views
	}
	return snap
}

func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	go m.notify(snap)
}

// UpdateConfig reconciles the table against a new config snapshot
// (spec.md §4.2 update_config):
//   - O∖N (removed programs): stopped.
//   - N∖O (added programs) with autostart: started.
//   - O∩N (changed specs): restarted, so the new spec applies on next
//     incarnation.
//   - Unchanged specs: left undisturbed.
func (m *Manager) UpdateConfig(newCfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldCfg := m.cfg

	// Stop programs under the old spec first, since stopProgramLocked
	// reads m.cfg for stopsignal/stoptime.
	for _, name := range oldCfg.Names() {
		if _, ok := newCfg.Programs[name]; !ok {
			_ = m.stopProgramLocked(name)
		}
	}

	// Swap the config reference before starting/restarting anything so
	// every subsequent launch uses the new spec.
	m.cfg = newCfg

	for _, name := range newCfg.Names() {
		if _, existed := oldCfg.Programs[name]; !existed {
			if newCfg.Programs[name].AutoStart {
				_ = m.startProgramLocked(name)
			}
			continue
		}
		if !oldCfg.Programs[name].Equal(newCfg.Programs[name]) {
			_ = m.stopProgramLocked(name)
			_ = m.startProgramLocked(name)
		}
	}
}

// CheckAndRestart is the periodic health-check tick (spec.md §4.2
// check_and_restart): it observes each entry's exit state and applies
// the program's autorestart policy.
func (m *Manager) CheckAndRestart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, entries := range m.table {
		spec := m.cfg.Programs[name]
		for i, e := range entries {
			if e.Status() == process.StatusRunning {
				continue
			}
			exitCode, _ := e.ExitCode()

			var shouldRestart bool
			switch spec.AutoRestart {
			case config.AutoRestartAlways:
				shouldRestart = true
			case config.AutoRestartUnexpected:
				shouldRestart = !containsInt(spec.ExitCodes, exitCode)
			case config.AutoRestartNever:
				shouldRestart = false
			}

			if shouldRestart {
				m.reincarnateLocked(name, i)
			}
		}
	}
	m.notifyLocked()
}

// reincarnateLocked replaces the exited entry at (name, index) with a
// fresh launch if the retry budget allows (spec.md §4.2 _restart_process).
func (m *Manager) reincarnateLocked(name string, index int) {
	entries := m.table[name]
	old := entries[index]
	spec := m.cfg.Programs[name]

	if old.Restarts() >= spec.StartRetries {
		m.logger.Warn("retry budget exhausted, not restarting",
			"program", name, "slot", index, "restarts", old.Restarts())
		return
	}

	e, err := process.Launch(name, spec, index, old.Restarts()+1, newLogID())
	if err != nil {
		m.logger.Error("reincarnation launch failed", "program", name, "slot", index, "error", err)
		return
	}
	entries[index] = e
	m.table[name] = entries
	m.logger.Info("restarted process", "program", name, "slot", index, "pid", e.PID(), "restarts", e.Restarts())
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
