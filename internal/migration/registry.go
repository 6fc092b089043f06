// Package migration runs version-keyed migration scripts for a module inside
// a single transaction, the way OpenUpgrade discovers
// <module>/<version>/pre-migration scripts.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-version"
)

type Stage string

const (
	Pre  Stage = "pre"
	Post Stage = "post"
)

// Script receives the currently installed module version, which is empty on
// a fresh install.
type Script func(ctx context.Context, tx *sql.Tx, version string) error

type entry struct {
	module  string
	version *version.Version
	stage   Stage
	script  Script
}

// Key is the path-like name of the script, e.g. base/16.0.1.3/pre-migration.
// Versions are normalized, so 16.0.01.3 and 16.0.1.3 share a key.
func (e entry) Key() string {
	return fmt.Sprintf("%s/%s/%s-migration", e.module, e.version.String(), e.stage)
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) Register(module, ver string, stage Stage, script Script) error {
	if module == "" {
		return fmt.Errorf("missing module name")
	}
	if script == nil {
		return fmt.Errorf("missing script for %s %s", module, ver)
	}
	if stage != Pre && stage != Post {
		return fmt.Errorf("unknown migration stage %q", stage)
	}
	v, err := version.NewVersion(ver)
	if err != nil {
		return fmt.Errorf("invalid version %q for module %s: %w", ver, module, err)
	}

	e := entry{module: module, version: v, stage: stage, script: script}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Key()]; exists {
		return fmt.Errorf("script %s already registered", e.Key())
	}
	r.entries[e.Key()] = e
	return nil
}

// Scripts returns the keys and scripts of module/stage whose version lies in
// (installed, target], ordered by version. An empty installed version
// selects every script up to target.
func (r *Registry) Scripts(module string, stage Stage, installed, target string) ([]string, []Script, error) {
	targetVer, err := version.NewVersion(target)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target version %q: %w", target, err)
	}
	var installedVer *version.Version
	if installed != "" {
		installedVer, err = version.NewVersion(installed)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid installed version %q: %w", installed, err)
		}
	}

	r.mu.RLock()
	var selected []entry
	for _, e := range r.entries {
		if e.module != module || e.stage != stage {
			continue
		}
		if e.version.GreaterThan(targetVer) {
			continue
		}
		if installedVer != nil && !e.version.GreaterThan(installedVer) {
			continue
		}
		selected = append(selected, e)
	}
	r.mu.RUnlock()

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].version.LessThan(selected[j].version)
	})

	keys := make([]string, 0, len(selected))
	scripts := make([]Script, 0, len(selected))
	for _, e := range selected {
		keys = append(keys, e.Key())
		scripts = append(scripts, e.script)
	}
	return keys, scripts, nil
}
