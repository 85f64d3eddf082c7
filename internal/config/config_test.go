package config

import (
	"strings"
	"testing"
)

const minimalDoc = `
programs:
  web:
    cmd: "/bin/echo hello"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	spec, ok := cfg.Programs["web"]
	if !ok {
		t.Fatalf("program %q missing from parsed config", "web")
	}
	if spec.NumProcs != defaults.NumProcs {
		t.Errorf("numprocs = %d, want default %d", spec.NumProcs, defaults.NumProcs)
	}
	if spec.Umask != defaults.Umask {
		t.Errorf("umask = %q, want default %q", spec.Umask, defaults.Umask)
	}
	if spec.AutoRestart != defaults.AutoRestart {
		t.Errorf("autorestart = %q, want default %q", spec.AutoRestart, defaults.AutoRestart)
	}
	if len(spec.ExitCodes) != 1 || spec.ExitCodes[0] != 0 {
		t.Errorf("exitcodes = %v, want [0]", spec.ExitCodes)
	}
	if spec.Env == nil {
		t.Error("env should default to an empty, non-nil map")
	}
}

func TestParseExplicitFieldsOverrideDefaults(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
    numprocs: 3
    autostart: false
    autorestart: always
    exitcodes: [0, 2]
    stoptime: 20
`
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	spec := cfg.Programs["web"]
	if spec.NumProcs != 3 {
		t.Errorf("numprocs = %d, want 3", spec.NumProcs)
	}
	if spec.AutoStart {
		t.Error("autostart should be false")
	}
	if spec.AutoRestart != AutoRestartAlways {
		t.Errorf("autorestart = %q, want always", spec.AutoRestart)
	}
	if spec.StopTime != 20 {
		t.Errorf("stoptime = %d, want 20", spec.StopTime)
	}
}

func TestParseRejectsUnknownTopLevelKey(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
bogus: 1
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown top-level key")
	} else if _, ok := err.(*SchemaError); !ok {
		t.Errorf("got %T, want *SchemaError", err)
	}
}

func TestParseRejectsUnknownProgramField(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
    bogus: 1
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown program field")
	}
}

func TestParseRejectsMissingCmd(t *testing.T) {
	doc := `
programs:
  web:
    numprocs: 1
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for missing cmd")
	} else if _, ok := err.(*SchemaError); !ok {
		t.Errorf("got %T, want *SchemaError", err)
	}
}

func TestParseRejectsInvalidUmask(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
    umask: "999"
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for invalid umask")
	} else if _, ok := err.(*ConfigValidationError); !ok {
		t.Errorf("got %T, want *ConfigValidationError", err)
	}
}

func TestParseRejectsUnknownSignal(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
    stopsignal: "BOGUS"
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown stopsignal")
	}
}

func TestParseRejectsMissingWorkingDir(t *testing.T) {
	doc := `
programs:
  web:
    cmd: "/bin/true"
    workingdir: "/does/not/exist/taskmaster"
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for missing workingdir")
	}
}

func TestParseIsIdempotent(t *testing.T) {
	cfg1, err := Parse(strings.NewReader(minimalDoc))
	if err != nil {
		t.Fatalf("Parse (1st): %v", err)
	}
	cfg2, err := Parse(strings.NewReader(minimalDoc))
	if err != nil {
		t.Fatalf("Parse (2nd): %v", err)
	}
	if !cfg1.Equal(cfg2) {
		t.Error("parsing the same document twice produced unequal configs")
	}
}

func TestProgramSpecEqual(t *testing.T) {
	a := defaults
	a.Cmd = "/bin/true"
	a.ExitCodes = []int{0, 1}
	b := a
	b.ExitCodes = append([]int(nil), a.ExitCodes...)
	if !a.Equal(b) {
		t.Error("specs with equal field-by-field values should be Equal")
	}
	b.ExitCodes = []int{0}
	if a.Equal(b) {
		t.Error("specs with different exitcodes should not be Equal")
	}
}

func TestConfigNamesSorted(t *testing.T) {
	cfg := Config{Programs: map[string]ProgramSpec{
		"zeta":  defaults,
		"alpha": defaults,
		"mid":   defaults,
	}}
	names := cfg.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestParseUmask(t *testing.T) {
	v, err := ParseUmask("022")
	if err != nil {
		t.Fatalf("ParseUmask: %v", err)
	}
	if v != 0o22 {
		t.Errorf("ParseUmask(022) = %o, want %o", v, 0o22)
	}
}
