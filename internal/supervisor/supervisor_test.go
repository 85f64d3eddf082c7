package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bkasymov/taskmaster-v4/internal/config"
	"github.com/bkasymov/taskmaster-v4/internal/logx"
)

type discardLogger struct{}

func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Named(string) logx.Logger     { return discardLogger{} }

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "taskmaster.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReloadReconcilesAddedRemovedUnchanged(t *testing.T) {
	dir := t.TempDir()
	initial := `
programs:
  a:
    cmd: "sleep 5"
    autostart: true
  b:
    cmd: "sleep 5"
    autostart: true
`
	path := writeConfig(t, dir, initial)
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	sup := New(path, cfg, discardLogger{})
	if err := sup.Manager.StartInitialProcesses(); err != nil {
		t.Fatalf("StartInitialProcesses: %v", err)
	}
	pidB := sup.Manager.GetStatus()["b"][0].PID

	reloaded := `
programs:
  b:
    cmd: "sleep 5"
    autostart: true
  c:
    cmd: "sleep 5"
    autostart: true
`
	writeConfig(t, dir, reloaded)
	sup.ReloadConfig()

	snap := sup.Manager.GetStatus()
	if _, ok := snap["a"]; ok {
		t.Error("program a should be absent after reload removed it")
	}
	if _, ok := snap["c"]; !ok {
		t.Error("program c should be present after reload added it with autostart")
	}
	if got := snap["b"][0].PID; got != pidB {
		t.Errorf("unchanged program b should keep its pid, got %d want %d", got, pidB)
	}

	sup.Manager.StopAllPrograms()
}

func TestReloadWithBadConfigPreservesFleet(t *testing.T) {
	dir := t.TempDir()
	initial := `
programs:
  sleeper:
    cmd: "sleep 5"
    autostart: true
`
	path := writeConfig(t, dir, initial)
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	sup := New(path, cfg, discardLogger{})
	if err := sup.Manager.StartInitialProcesses(); err != nil {
		t.Fatalf("StartInitialProcesses: %v", err)
	}
	pidBefore := sup.Manager.GetStatus()["sleeper"][0].PID

	writeConfig(t, dir, "not: [valid, yaml document")
	sup.ReloadConfig()

	snap := sup.Manager.GetStatus()
	if len(snap["sleeper"]) != 1 || snap["sleeper"][0].PID != pidBefore {
		t.Error("a failed reload must leave the existing fleet untouched")
	}

	sup.Manager.StopAllPrograms()
}

func TestQuitConvergesShutdown(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
programs:
  sleeper:
    cmd: "sleep 30"
    autostart: true
    stoptime: 2
`)
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	sup := New(path, cfg, discardLogger{})
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	sup.Quit()

	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not converge after Quit")
	}

	if len(sup.Manager.GetStatus()) != 0 {
		t.Error("expected an empty table after shutdown converges")
	}
}
