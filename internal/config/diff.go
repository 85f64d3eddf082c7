package config

import "fmt"

// FieldChange is one field's old->new transition for a changed program.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// ProgramDiff describes how one program's spec changed between reloads.
type ProgramDiff struct {
	Name   string
	Fields []FieldChange
}

// ReloadDiff is a human-readable summary of the differences between two
// config snapshots, used by the Supervisor to log a reload (spec.md §4.3)
// the way the original's compare_configs did.
type ReloadDiff struct {
	Added   []string
	Removed []string
	Changed []ProgramDiff
}

// Empty reports whether the reload changed nothing at all.
func (d ReloadDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff computes the reload difference between an old and a new config.
func Diff(oldCfg, newCfg Config) ReloadDiff {
	var d ReloadDiff

	for _, name := range newCfg.Names() {
		if _, ok := oldCfg.Programs[name]; !ok {
			d.Added = append(d.Added, name)
		}
	}
	for _, name := range oldCfg.Names() {
		if _, ok := newCfg.Programs[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	for _, name := range oldCfg.Names() {
		newSpec, ok := newCfg.Programs[name]
		if !ok {
			continue
		}
		oldSpec := oldCfg.Programs[name]
		if oldSpec.Equal(newSpec) {
			continue
		}
		d.Changed = append(d.Changed, ProgramDiff{
			Name:   name,
			Fields: fieldChanges(oldSpec, newSpec),
		})
	}
	return d
}

func fieldChanges(o, n ProgramSpec) []FieldChange {
	var changes []FieldChange
	add := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
		}
	}
	add("cmd", o.Cmd, n.Cmd)
	add("numprocs", fmt.Sprint(o.NumProcs), fmt.Sprint(n.NumProcs))
	add("umask", o.Umask, n.Umask)
	add("workingdir", o.WorkingDir, n.WorkingDir)
	add("autostart", fmt.Sprint(o.AutoStart), fmt.Sprint(n.AutoStart))
	add("autorestart", string(o.AutoRestart), string(n.AutoRestart))
	add("exitcodes", fmt.Sprint(o.ExitCodes), fmt.Sprint(n.ExitCodes))
	add("startretries", fmt.Sprint(o.StartRetries), fmt.Sprint(n.StartRetries))
	add("starttime", fmt.Sprint(o.StartTime), fmt.Sprint(n.StartTime))
	add("stopsignal", o.StopSignal, n.StopSignal)
	add("stoptime", fmt.Sprint(o.StopTime), fmt.Sprint(n.StopTime))
	add("stdout", o.Stdout, n.Stdout)
	add("stderr", o.Stderr, n.Stderr)
	add("env", fmt.Sprint(o.Env), fmt.Sprint(n.Env))
	return changes
}
