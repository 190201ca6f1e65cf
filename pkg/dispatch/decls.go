package dispatch

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/janus-lang/janus/pkg/types"
)

// The declaration stream ordinarily arrives from the AST walk. The YAML
// form below is the fixture representation used by janusc and the test
// suite: the same (name, kind, supertypes) and (name, module, params,
// return, effects, span) tuples, read from a file.

// TypeDecl declares one type.
type TypeDecl struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Supertypes []string `yaml:"supertypes,omitempty"`
}

// SpanDecl is a source span in declaration form.
type SpanDecl struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
	Length int    `yaml:"length,omitempty"`
}

// FuncDecl declares one implementation.
type FuncDecl struct {
	Name    string    `yaml:"name"`
	Module  string    `yaml:"module"`
	Params  []string  `yaml:"params"`
	Return  string    `yaml:"return"`
	Effects []string  `yaml:"effects,omitempty"`
	Span    *SpanDecl `yaml:"span,omitempty"`
}

// ModuleDecl declares one module.
type ModuleDecl struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Version string   `yaml:"version"`
	Deps    []string `yaml:"deps,omitempty"`
}

// ExportDecl publishes a signature group from a module.
type ExportDecl struct {
	Module     string `yaml:"module"`
	Name       string `yaml:"name"`
	Arity      int    `yaml:"arity"`
	Visibility string `yaml:"visibility,omitempty"`
}

// GroupDecl names a signature group, used by seal declarations.
type GroupDecl struct {
	Name  string `yaml:"name"`
	Arity int    `yaml:"arity"`
}

// DeclFile is a full declaration fixture.
type DeclFile struct {
	Types     []TypeDecl   `yaml:"types"`
	Functions []FuncDecl   `yaml:"functions"`
	Modules   []ModuleDecl `yaml:"modules,omitempty"`
	Exports   []ExportDecl `yaml:"exports,omitempty"`
	Seal      []GroupDecl  `yaml:"seal,omitempty"`
}

// LoadDecls parses a declaration file.
func LoadDecls(path string) (*DeclFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading declarations %s", path)
	}
	var file DeclFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing declarations %s", path)
	}
	return &file, nil
}

// Apply registers everything in the file into the engine: types first (two
// passes, so supertypes may be declared in any order), then implementations,
// modules, exports, and seals.
func (f *DeclFile) Apply(e *Engine) error {
	for _, td := range f.Types {
		kind, err := types.ParseKind(td.Kind)
		if err != nil {
			return errors.Wrapf(err, "type %q", td.Name)
		}
		if _, err := e.Registry.Register(td.Name, kind, nil); err != nil {
			return errors.Wrapf(err, "registering type %q", td.Name)
		}
	}
	for _, td := range f.Types {
		kind, _ := types.ParseKind(td.Kind)
		supers := make([]types.TypeID, 0, len(td.Supertypes))
		for _, sup := range td.Supertypes {
			id, ok := e.Registry.LookupName(sup)
			if !ok {
				return errors.Errorf("type %q names undeclared supertype %q", td.Name, sup)
			}
			supers = append(supers, id)
		}
		if _, err := e.Registry.Register(td.Name, kind, supers); err != nil {
			return errors.Wrapf(err, "registering type %q", td.Name)
		}
	}

	for _, fd := range f.Functions {
		params := make([]types.TypeID, 0, len(fd.Params))
		for _, p := range fd.Params {
			id, ok := e.Registry.LookupName(p)
			if !ok {
				return errors.Errorf("function %q names undeclared parameter type %q", fd.Name, p)
			}
			params = append(params, id)
		}
		ret, ok := e.Registry.LookupName(fd.Return)
		if !ok {
			return errors.Errorf("function %q names undeclared return type %q", fd.Name, fd.Return)
		}
		var loc *SourceLocation
		if fd.Span != nil {
			loc = &SourceLocation{
				Filename: fd.Span.File,
				Line:     fd.Span.Line,
				Column:   fd.Span.Column,
				Length:   fd.Span.Length,
			}
		}
		fn := FunctionID{Name: fd.Name, Module: fd.Module}
		if _, err := e.Analyzer.AddImplementation(fn, params, ret, fd.Effects, loc); err != nil {
			return errors.Wrapf(err, "registering implementation %s", fn)
		}
	}

	for _, md := range f.Modules {
		if _, err := e.Dispatcher.RegisterModule(md.Name, md.Path, md.Version, md.Deps); err != nil {
			return err
		}
	}
	for _, xd := range f.Exports {
		vis := VisibilityPublic
		if xd.Visibility == "private" {
			vis = VisibilityPrivate
		}
		if _, err := e.Dispatcher.ExportGroup(xd.Module, xd.Name, xd.Arity, vis, nil); err != nil {
			return err
		}
	}
	for _, sd := range f.Seal {
		if err := e.Analyzer.SealGroup(sd.Name, sd.Arity); err != nil {
			return err
		}
	}
	return nil
}
