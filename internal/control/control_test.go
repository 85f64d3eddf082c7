package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bkasymov/taskmaster-v4/internal/config"
	"github.com/bkasymov/taskmaster-v4/internal/logx"
	"github.com/bkasymov/taskmaster-v4/internal/supervisor"
)

type discardLogger struct{}

func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Named(string) logx.Logger     { return discardLogger{} }

func newTestAdapter(t *testing.T, body string) *Adapter {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmaster.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	sup := supervisor.New(path, cfg, discardLogger{})
	return New(sup)
}

func TestStatusOneUnknownProgramIsNotFound(t *testing.T) {
	a := newTestAdapter(t, `
programs:
  web:
    cmd: "sleep 5"
    autostart: false
`)
	if _, err := a.StatusOne("bogus"); err != ErrNotFound {
		t.Errorf("StatusOne(unknown) = %v, want ErrNotFound", err)
	}
}

func TestStopUnknownProgramIsNotFound(t *testing.T) {
	a := newTestAdapter(t, `
programs:
  web:
    cmd: "sleep 5"
    autostart: false
`)
	if err := a.Stop("bogus"); err != ErrNotFound {
		t.Errorf("Stop(unknown) = %v, want ErrNotFound", err)
	}
}

func TestStopNotRunningProgramIsNotRunning(t *testing.T) {
	a := newTestAdapter(t, `
programs:
  web:
    cmd: "sleep 5"
    autostart: false
`)
	if err := a.Stop("web"); err != ErrNotRunning {
		t.Errorf("Stop(not running) = %v, want ErrNotRunning", err)
	}
}

func TestStartThenStopRoundTrip(t *testing.T) {
	a := newTestAdapter(t, `
programs:
  web:
    cmd: "sleep 5"
    autostart: false
`)
	if err := a.Start("web"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	views, err := a.StatusOne("web")
	if err != nil || len(views) != 1 {
		t.Fatalf("StatusOne after Start: views=%v err=%v", views, err)
	}
	if err := a.Stop("web"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
