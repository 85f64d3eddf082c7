// Package control implements the External Control Adapter (spec.md
// §4.4): a thin façade exposing status/start/stop/restart/reload/quit to
// whatever command source exists (interactive shell, HTTP, tests). Every
// call here delegates straight to the Supervisor/Manager; the
// concurrency discipline of spec.md §5 lives entirely in those layers.
package control

import (
	"fmt"

	"github.com/bkasymov/taskmaster-v4/internal/manager"
	"github.com/bkasymov/taskmaster-v4/internal/supervisor"
)

// ErrNotFound is returned when a command names a program absent from
// the current config (spec.md §6 "status"/"restart" unknown program).
var ErrNotFound = fmt.Errorf("not found")

// ErrNotRunning is returned by stop when a program names a program that
// is not currently present in the table (spec.md §6 "stop" unknown
// program).
var ErrNotRunning = fmt.Errorf("not running")

// Adapter is the External Control Adapter.
type Adapter struct {
	sup *supervisor.Supervisor
}

// New builds an Adapter around a running Supervisor.
func New(sup *supervisor.Supervisor) *Adapter {
	return &Adapter{sup: sup}
}

// Status returns the status snapshot for every program in the table.
func (a *Adapter) Status() manager.Snapshot {
	return a.sup.Manager.GetStatus()
}

// StatusOne returns the status of a single program, or ErrNotFound if
// the program is unknown to the current config.
func (a *Adapter) StatusOne(name string) ([]manager.EntryView, error) {
	cfg := a.sup.Manager.GetConfig()
	if _, ok := cfg.Programs[name]; !ok {
		return nil, ErrNotFound
	}
	return a.sup.Manager.GetStatus()[name], nil
}

// Start starts a single program, or every program in the current config
// when name is "all" (spec.md §6 "start").
func (a *Adapter) Start(name string) error {
	if name == "all" {
		cfg := a.sup.Manager.GetConfig()
		var firstErr error
		for _, n := range cfg.Names() {
			if err := a.sup.Manager.StartProgram(n); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return a.sup.Manager.StartProgram(name)
}

// Stop stops a single program, or every program currently present when
// name is "all" (spec.md §6 "stop"). Stopping a program absent from the
// config is ErrNotFound; stopping one that is not present in the table is
// ErrNotRunning.
func (a *Adapter) Stop(name string) error {
	if name == "all" {
		a.sup.Manager.StopAllPrograms()
		return nil
	}
	cfg := a.sup.Manager.GetConfig()
	if _, ok := cfg.Programs[name]; !ok {
		return ErrNotFound
	}
	if _, running := a.sup.Manager.GetStatus()[name]; !running {
		return ErrNotRunning
	}
	return a.sup.Manager.StopProgram(name)
}

// Restart restarts a single program, or every program currently present
// in the table when name is "all" (spec.md §6 "restart"). Restarting a
// program absent from the config is ErrNotFound.
func (a *Adapter) Restart(name string) error {
	if name == "all" {
		return a.sup.Manager.RestartAllPrograms()
	}
	cfg := a.sup.Manager.GetConfig()
	if _, ok := cfg.Programs[name]; !ok {
		return ErrNotFound
	}
	return a.sup.Manager.RestartProgram(name)
}

// Reload re-parses the config file and reconciles the fleet (spec.md §6
// "reload").
func (a *Adapter) Reload() {
	a.sup.ReloadConfig()
}

// Quit triggers a graceful shutdown (spec.md §6 "quit"/"exit").
func (a *Adapter) Quit() {
	a.sup.Quit()
}
