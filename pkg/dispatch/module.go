package dispatch

import (
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/janus-lang/janus/pkg/types"
)

// Visibility tags an exported signature group.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
)

func (v Visibility) String() string {
	if v == VisibilityPrivate {
		return "private"
	}
	return "public"
}

// Dependency is one declared module dependency with an optional semver
// constraint.
type Dependency struct {
	Name       string
	Constraint *semver.Constraints
}

// Module is a registered Janus module.
type Module struct {
	Name    string
	Path    string
	Version *semver.Version
	Deps    []Dependency
	Loaded  bool
}

// Export is one signature group published by a module.
type Export struct {
	Module     string
	Group      GroupKey
	Visibility Visibility

	// Fallback, when set, answers calls the group itself cannot match.
	Fallback *Implementation
}

// tableCacheSize bounds how many compiled tables the dispatcher retains.
const tableCacheSize = 128

// Dispatcher orchestrates module registration, group export, and compiled
// table construction on load. Tables are cached per group snapshot; a group
// that gained implementations misses the cache and is rebuilt, which stands
// in for fine-grained invalidation.
type Dispatcher struct {
	analyzer *Analyzer
	strategy Strategy
	modules  map[string]*Module
	order    []string
	exports  map[GroupKey][]*Export
	tables   *lru.Cache[Key, *Table]
}

// NewDispatcher returns a dispatcher building tables with the given
// strategy.
func NewDispatcher(analyzer *Analyzer, strategy Strategy) *Dispatcher {
	tables, err := lru.New[Key, *Table](tableCacheSize)
	if err != nil {
		// lru.New fails only on a non-positive size.
		panic(err)
	}
	return &Dispatcher{
		analyzer: analyzer,
		strategy: strategy,
		modules:  make(map[string]*Module),
		exports:  make(map[GroupKey][]*Export),
		tables:   tables,
	}
}

// RegisterModule records a module with its version and dependency
// constraints. Dependencies are declared as "name" or "name constraint"
// (for example "geometry >=1.2.0"); unknown dependency modules fail at load
// time, not here.
func (d *Dispatcher) RegisterModule(name, path, version string, deps []string) (*Module, error) {
	if _, exists := d.modules[name]; exists {
		return nil, errors.Errorf("module %q already registered", name)
	}
	ver, err := semver.NewVersion(version)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version %q for module %q", version, name)
	}

	mod := &Module{Name: name, Path: path, Version: ver}
	for _, dep := range deps {
		depName, constraintExpr, _ := strings.Cut(strings.TrimSpace(dep), " ")
		if depName == "" {
			return nil, errors.Errorf("empty dependency declaration in module %q", name)
		}
		var constraint *semver.Constraints
		if constraintExpr != "" {
			constraint, err = semver.NewConstraint(constraintExpr)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid constraint %q on dependency %q of module %q",
					constraintExpr, depName, name)
			}
		}
		mod.Deps = append(mod.Deps, Dependency{Name: depName, Constraint: constraint})
	}

	d.modules[name] = mod
	d.order = append(d.order, name)
	slog.Debug("registered module", "module", name, "version", ver.String(), "deps", len(mod.Deps))
	return mod, nil
}

// Module returns a registered module by name.
func (d *Dispatcher) Module(name string) (*Module, bool) {
	m, ok := d.modules[name]
	return m, ok
}

// ExportGroup publishes a signature group from a module with the given
// visibility and optional fallback implementation.
func (d *Dispatcher) ExportGroup(module, name string, arity int, vis Visibility, fallback *Implementation) (*Export, error) {
	if _, ok := d.modules[module]; !ok {
		return nil, errors.Errorf("cannot export from unregistered module %q", module)
	}
	key := GroupKey{Name: name, Arity: arity}
	if _, ok := d.analyzer.Group(name, arity); !ok {
		return nil, errors.Errorf("module %q exports unknown signature group %s", module, key)
	}
	exp := &Export{Module: module, Group: key, Visibility: vis, Fallback: fallback}
	d.exports[key] = append(d.exports[key], exp)
	return exp, nil
}

// LoadModule verifies the module's dependencies and version constraints,
// then builds dispatch tables for every group it exports.
func (d *Dispatcher) LoadModule(name string) error {
	mod, ok := d.modules[name]
	if !ok {
		return errors.Errorf("cannot load unregistered module %q", name)
	}
	for _, dep := range mod.Deps {
		depMod, ok := d.modules[dep.Name]
		if !ok {
			return errors.Errorf("module %q depends on unregistered module %q", name, dep.Name)
		}
		if dep.Constraint != nil && !dep.Constraint.Check(depMod.Version) {
			return errors.Errorf("module %q requires %q %s, found %s",
				name, dep.Name, dep.Constraint, depMod.Version)
		}
	}

	built := 0
	for key, exps := range d.exports {
		for _, exp := range exps {
			if exp.Module != name {
				continue
			}
			group, ok := d.analyzer.Group(key.Name, key.Arity)
			if !ok {
				continue
			}
			d.TableFor(group)
			built++
		}
	}
	mod.Loaded = true
	slog.Debug("loaded module", "module", name, "tables", built)
	return nil
}

// TableFor returns the compiled table for the group's current snapshot,
// building it on a cache miss. The snapshot's implementation count is part
// of the key, so a grown group naturally misses and rebuilds.
func (d *Dispatcher) TableFor(group *SignatureGroup) *Table {
	key := Key{Group: group.Key, Impls: len(group.Impls)}
	if table, ok := d.tables.Get(key); ok {
		return table
	}
	table := BuildTable(d.analyzer.Registry(), group, d.strategy)
	d.tables.Add(key, table)
	return table
}

// ResolveExported resolves a call against an exported group, honoring
// visibility and the export's fallback. from names the calling module.
func (d *Dispatcher) ResolveExported(from, name string, args []types.TypeID) (Resolution, error) {
	key := GroupKey{Name: name, Arity: len(args)}
	exps := d.exports[key]
	if len(exps) == 0 {
		return NoMatch(), errors.Errorf("no module exports signature group %s", key)
	}

	var visible *Export
	for _, exp := range exps {
		if exp.Visibility == VisibilityPublic || exp.Module == from {
			visible = exp
			break
		}
	}
	if visible == nil {
		return NoMatch(), errors.Errorf("signature group %s is private to its module", key)
	}

	group, ok := d.analyzer.Group(name, len(args))
	if !ok {
		return NoMatch(), errors.Errorf("exported signature group %s has vanished", key)
	}
	res := d.TableFor(group).Lookup(args)
	if res.Kind == ResolutionNoMatch && visible.Fallback != nil {
		return Unique(visible.Fallback), nil
	}
	return res, nil
}
