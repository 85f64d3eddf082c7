// Package config implements the Config Loader: it reads a YAML
// configuration document, validates it, applies defaults to omitted
// fields, and produces an immutable Config snapshot.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AutoRestart is the restart policy for a program.
type AutoRestart string

const (
	AutoRestartAlways     AutoRestart = "always"
	AutoRestartNever      AutoRestart = "never"
	AutoRestartUnexpected AutoRestart = "unexpected"
)

// ProgramSpec is the canonical, defaulted, validated configuration of one
// program. Two ProgramSpecs are equal iff all fields are equal; this
// equality drives reload decisions (spec.md §3).
type ProgramSpec struct {
	Cmd          string
	NumProcs     int
	Umask        string
	WorkingDir   string
	AutoStart    bool
	AutoRestart  AutoRestart
	ExitCodes    []int
	StartRetries int
	StartTime    int
	StopSignal   string
	StopTime     int
	Stdout       string
	Stderr       string
	Env          map[string]string
}

// Equal reports whether two ProgramSpecs are field-wise equal.
func (p ProgramSpec) Equal(o ProgramSpec) bool {
	if p.Cmd != o.Cmd ||
		p.NumProcs != o.NumProcs ||
		p.Umask != o.Umask ||
		p.WorkingDir != o.WorkingDir ||
		p.AutoStart != o.AutoStart ||
		p.AutoRestart != o.AutoRestart ||
		p.StartRetries != o.StartRetries ||
		p.StartTime != o.StartTime ||
		p.StopSignal != o.StopSignal ||
		p.StopTime != o.StopTime ||
		p.Stdout != o.Stdout ||
		p.Stderr != o.Stderr {
		return false
	}
	if len(p.ExitCodes) != len(o.ExitCodes) {
		return false
	}
	for i := range p.ExitCodes {
		if p.ExitCodes[i] != o.ExitCodes[i] {
			return false
		}
	}
	if len(p.Env) != len(o.Env) {
		return false
	}
	for k, v := range p.Env {
		if ov, ok := o.Env[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Config is an immutable snapshot: program name -> ProgramSpec. Callers
// must treat the map and slices as read-only; Parse and apply_defaults
// never mutate a previously returned Config in place.
type Config struct {
	Programs map[string]ProgramSpec
}

// Names returns the sorted program names in this config.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Programs))
	for n := range c.Programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two Configs declare the same programs with the
// same specs, irrespective of map iteration order.
func (c Config) Equal(o Config) bool {
	if len(c.Programs) != len(o.Programs) {
		return false
	}
	for name, spec := range c.Programs {
		other, ok := o.Programs[name]
		if !ok || !spec.Equal(other) {
			return false
		}
	}
	return true
}

// --- Error taxonomy (spec.md §4.1/§7) ---

// SyntaxError indicates the config file could not be read or its YAML
// could not be parsed.
type SyntaxError struct{ Err error }

func (e *SyntaxError) Error() string { return fmt.Sprintf("syntax error: %v", e.Err) }
func (e *SyntaxError) Unwrap() error { return e.Err }

// SchemaError indicates a field's shape or type didn't match spec.md §3.
type SchemaError struct{ Msg string }

func (e *SchemaError) Error() string { return fmt.Sprintf("schema error: %s", e.Msg) }

// ConfigValidationError indicates a semantic validation failure (§4.1
// step 3): missing directories, unknown signal names, and so on.
type ConfigValidationError struct{ Msg string }

func (e *ConfigValidationError) Error() string { return fmt.Sprintf("configuration validation error: %s", e.Msg) }

// --- wire format ---

type rawDoc struct {
	Programs map[string]rawProgram `yaml:"programs"`
}

type rawProgram struct {
	Cmd          *string           `yaml:"cmd"`
	NumProcs     *int              `yaml:"numprocs"`
	Umask        *string           `yaml:"umask"`
	WorkingDir   *string           `yaml:"workingdir"`
	AutoStart    *bool             `yaml:"autostart"`
	AutoRestart  *string           `yaml:"autorestart"`
	ExitCodes    *[]int            `yaml:"exitcodes"`
	StartRetries *int              `yaml:"startretries"`
	StartTime    *int              `yaml:"starttime"`
	StopSignal   *string           `yaml:"stopsignal"`
	StopTime     *int              `yaml:"stoptime"`
	Stdout       *string           `yaml:"stdout"`
	Stderr       *string           `yaml:"stderr"`
	Env          map[string]string `yaml:"env"`
}

// defaults applied only to fields omitted by the user (spec.md §4.1).
var defaults = ProgramSpec{
	NumProcs:     1,
	Umask:        "022",
	WorkingDir:   ".",
	AutoStart:    true,
	AutoRestart:  AutoRestartUnexpected,
	ExitCodes:    []int{0},
	StartRetries: 3,
	StartTime:    5,
	StopSignal:   "TERM",
	StopTime:     10,
	Stdout:       "/dev/null",
	Stderr:       "/dev/null",
}

// LoadFile reads and validates the configuration at path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &SyntaxError{Err: err}
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes, validates, and defaults a configuration document read
// from r. Parsing the same document twice yields field-wise equal
// Configs (spec.md §4.1 Idempotence).
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, &SyntaxError{Err: err}
	}

	// Structural check (§4.1 step 1): top-level key "programs" exactly once.
	var generic map[string]yaml.Node
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Config{}, &SyntaxError{Err: err}
	}
	if _, ok := generic["programs"]; !ok {
		return Config{}, &SchemaError{Msg: "missing top-level key: programs"}
	}
	if len(generic) != 1 {
		extra := make([]string, 0, len(generic)-1)
		for k := range generic {
			if k != "programs" {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return Config{}, &SchemaError{Msg: fmt.Sprintf("unknown top-level keys: %s", strings.Join(extra, ", "))}
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	var doc rawDoc
	if err := dec.Decode(&doc); err != nil {
		return Config{}, &SchemaError{Msg: err.Error()}
	}

	out := Config{Programs: make(map[string]ProgramSpec, len(doc.Programs))}
	for name, raw := range doc.Programs {
		if strings.TrimSpace(name) == "" {
			return Config{}, &SchemaError{Msg: "program name must be non-empty"}
		}
		spec, err := toSpec(raw)
		if err != nil {
			return Config{}, err
		}
		if err := validate(name, spec); err != nil {
			return Config{}, err
		}
		out.Programs[name] = applyDefaults(spec, raw)
	}
	return out, nil
}

// toSpec validates the shape/type of fields that are present. Apart from
// autostart, which is set to true here when omitted, defaults are not
// applied yet (§4.1: "Defaults are applied only to fields omitted by the
// user, after validation of present fields").
func toSpec(raw rawProgram) (ProgramSpec, error) {
	var spec ProgramSpec

	if raw.Cmd == nil || strings.TrimSpace(*raw.Cmd) == "" {
		return spec, &SchemaError{Msg: "cmd is required and must be non-empty"}
	}
	spec.Cmd = *raw.Cmd

	if raw.NumProcs != nil {
		if *raw.NumProcs < 1 {
			return spec, &ConfigValidationError{Msg: "numprocs must be >= 1"}
		}
		spec.NumProcs = *raw.NumProcs
	}

	if raw.Umask != nil {
		if len(*raw.Umask) != 3 || !isOctalDigits(*raw.Umask) {
			return spec, &ConfigValidationError{Msg: "umask must be exactly 3 octal digits"}
		}
		spec.Umask = *raw.Umask
	}

	if raw.WorkingDir != nil {
		spec.WorkingDir = *raw.WorkingDir
	}

	if raw.AutoStart != nil {
		spec.AutoStart = *raw.AutoStart
	} else {
		spec.AutoStart = true
	}

	if raw.AutoRestart != nil {
		v := AutoRestart(strings.ToLower(*raw.AutoRestart))
		switch v {
		case AutoRestartAlways, AutoRestartNever, AutoRestartUnexpected:
			spec.AutoRestart = v
		default:
			return spec, &ConfigValidationError{Msg: fmt.Sprintf("invalid autorestart: %s", *raw.AutoRestart)}
		}
	}

	if raw.ExitCodes != nil {
		for _, c := range *raw.ExitCodes {
			if c < -128 || c > 255 {
				return spec, &ConfigValidationError{Msg: fmt.Sprintf("exitcode %d out of range [-128, 255]", c)}
			}
		}
		spec.ExitCodes = append([]int(nil), (*raw.ExitCodes)...)
	}

	if raw.StartRetries != nil {
		if *raw.StartRetries < 0 {
			return spec, &ConfigValidationError{Msg: "startretries must be >= 0"}
		}
		spec.StartRetries = *raw.StartRetries
	}

	if raw.StartTime != nil {
		if *raw.StartTime < 0 {
			return spec, &ConfigValidationError{Msg: "starttime must be >= 0"}
		}
		spec.StartTime = *raw.StartTime
	}

	if raw.StopSignal != nil {
		if _, ok := knownSignals[strings.ToUpper(*raw.StopSignal)]; !ok {
			return spec, &ConfigValidationError{Msg: fmt.Sprintf("unknown signal: %s", *raw.StopSignal)}
		}
		spec.StopSignal = strings.ToUpper(*raw.StopSignal)
	}

	if raw.StopTime != nil {
		if *raw.StopTime < 0 {
			return spec, &ConfigValidationError{Msg: "stoptime must be >= 0"}
		}
		spec.StopTime = *raw.StopTime
	}

	if raw.Stdout != nil {
		spec.Stdout = *raw.Stdout
	}
	if raw.Stderr != nil {
		spec.Stderr = *raw.Stderr
	}

	if raw.Env != nil {
		spec.Env = raw.Env
	}

	return spec, nil
}

// applyDefaults fills in zero-value fields the user omitted. It is
// idempotent: apply_defaults(apply_defaults(x)) == apply_defaults(x)
// (spec.md §8), because it only ever promotes a field that toSpec left at
// its Go zero value and raw did not explicitly set.
func applyDefaults(spec ProgramSpec, raw rawProgram) ProgramSpec {
	if raw.NumProcs == nil {
		spec.NumProcs = defaults.NumProcs
	}
	if raw.Umask == nil {
		spec.Umask = defaults.Umask
	}
	if raw.WorkingDir == nil {
		spec.WorkingDir = defaults.WorkingDir
	}
	if raw.AutoRestart == nil {
		spec.AutoRestart = defaults.AutoRestart
	}
	if raw.ExitCodes == nil {
		spec.ExitCodes = append([]int(nil), defaults.ExitCodes...)
	}
	if raw.StartRetries == nil {
		spec.StartRetries = defaults.StartRetries
	}
	if raw.StartTime == nil {
		spec.StartTime = defaults.StartTime
	}
	if raw.StopSignal == nil {
		spec.StopSignal = defaults.StopSignal
	}
	if raw.StopTime == nil {
		spec.StopTime = defaults.StopTime
	}
	if raw.Stdout == nil {
		spec.Stdout = defaults.Stdout
	}
	if raw.Stderr == nil {
		spec.Stderr = defaults.Stderr
	}
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	return spec
}

// validate performs the semantic checks of §4.1 step 3 that require
// touching the filesystem. Signal names are checked earlier, in toSpec.
func validate(name string, spec ProgramSpec) error {
	wd := spec.WorkingDir
	if wd == "" {
		wd = defaults.WorkingDir
	}
	if info, err := os.Stat(wd); err != nil || !info.IsDir() {
		return &ConfigValidationError{Msg: fmt.Sprintf("program %s: workingdir does not exist: %s", name, wd)}
	}

	for _, path := range []string{spec.Stdout, spec.Stderr} {
		if path == "" || path == "/dev/null" {
			continue
		}
		dir := filepath.Dir(path)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return &ConfigValidationError{Msg: fmt.Sprintf("program %s: parent directory does not exist: %s", name, dir)}
		}
	}
	return nil
}

func isOctalDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '7' {
			return false
		}
	}
	return true
}

// ParseUmask parses a 3-digit octal umask string into its numeric value.
func ParseUmask(s string) (int, error) {
	v, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// knownSignals is the set of signal names recognized on this host,
// keyed without the "SIG" prefix (spec.md §3 stopsignal).
var knownSignals = map[string]struct{}{
	"HUP": {}, "INT": {}, "QUIT": {}, "ILL": {}, "TRAP": {}, "ABRT": {},
	"BUS": {}, "FPE": {}, "KILL": {}, "USR1": {}, "SEGV": {}, "USR2": {},
	"PIPE": {}, "ALRM": {}, "TERM": {}, "STKFLT": {}, "CHLD": {}, "CONT": {},
	"STOP": {}, "TSTP": {}, "TTIN": {}, "TTOU": {}, "URG": {}, "XCPU": {},
	"XFSZ": {}, "VTALRM": {}, "PROF": {}, "WINCH": {}, "IO": {}, "PWR": {}, "SYS": {},
}
