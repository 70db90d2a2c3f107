// Package manifest loads rule declarations from HCL files and turns them
// into normalized rule records.
//
// A manifest declares three kinds of blocks:
//
//	type "engine" {}
//	type "v8" { parents = ["engine"] }
//
//	value "displacement" {
//	  type  = "displacement"
//	  value = 5.0
//	}
//
//	rule "build_car" {
//	  handler  = "BuildCar"
//	  output   = "car"
//	  named    = "sporty"
//	  priority = 10
//
//	  dependency "engine" {
//	    type  = "engine"
//	    named = "v8"
//	  }
//	}
//
// `type` blocks declare the nominal type graph (the engine performs no
// reflection, so subtype relationships are explicit). `value` blocks
// declare literal zero-dependency rules. `rule` blocks bind a declared
// shape to a Go handler registered on the loader; a rule referencing an
// unregistered handler or an undeclared type fails the load, so manifests
// and Go code are checked for parity before anything is solved.
package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/construct/internal/ctxlog"
	"github.com/vk/construct/metadata"
	"github.com/vk/construct/rules"
	"github.com/vk/construct/typeinfo"
)

type fileSchema struct {
	Types  []typeBlock  `hcl:"type,block"`
	Values []valueBlock `hcl:"value,block"`
	Rules  []ruleBlock  `hcl:"rule,block"`
}

type typeBlock struct {
	Name    string   `hcl:"name,label"`
	Parents []string `hcl:"parents,optional"`
}

type valueBlock struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Value    hcl.Expression `hcl:"value"`
	Named    string         `hcl:"named,optional"`
	Priority int            `hcl:"priority,optional"`
}

type ruleBlock struct {
	Name         string     `hcl:"name,label"`
	Handler      string     `hcl:"handler"`
	Output       string     `hcl:"output"`
	Named        string     `hcl:"named,optional"`
	Priority     int        `hcl:"priority,optional"`
	Async        bool       `hcl:"async,optional"`
	Dependencies []depBlock `hcl:"dependency,block"`
}

type depBlock struct {
	Name        string `hcl:"name,label"`
	Type        string `hcl:"type"`
	Named       string `hcl:"named,optional"`
	Cardinality string `hcl:"cardinality,optional"`
	Specificity string `hcl:"specificity,optional"`
}

// Loader accumulates handler registrations and declared types, and loads
// manifests against them. Declared types persist across loads, so a type
// graph declared in one file is visible to rules in later files.
type Loader struct {
	handlers map[string]rules.Invoke
	types    map[string]*typeinfo.Base
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		handlers: make(map[string]rules.Invoke),
		types:    make(map[string]*typeinfo.Base),
	}
}

// RegisterHandler binds a Go function to a handler name referenced by rule
// blocks.
func (l *Loader) RegisterHandler(name string, fn rules.Invoke) {
	if _, exists := l.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	l.handlers[name] = fn
}

// RegisterType pre-declares a type from Go code, so manifests can
// reference types the host program already models.
func (l *Loader) RegisterType(base *typeinfo.Base) {
	if _, exists := l.types[base.Name()]; exists {
		panic(fmt.Sprintf("type with name '%s' already registered", base.Name()))
	}
	l.types[base.Name()] = base
}

// Type returns a declared type by name.
func (l *Loader) Type(name string) (*typeinfo.Base, bool) {
	base, ok := l.types[name]
	return base, ok
}

// LoadDir loads every .hcl file under root, in path order, and returns the
// declared rules.
func (l *Loader) LoadDir(ctx context.Context, root string) ([]*rules.Rule, error) {
	logger := ctxlog.FromContext(ctx)

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		logger.Warn("No .hcl manifest files found in path.", "path", root)
		return nil, nil
	}
	logger.Debug("Found manifest files to load.", "files", paths)

	var out []*rules.Rule
	for _, path := range paths {
		loaded, err := l.LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	logger.Info("Manifests loaded successfully.", "rules_loaded", len(out))
	return out, nil
}

// LoadFile loads one manifest file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]*rules.Rule, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.loadBody(ctx, path, file.Body)
}

// LoadSource loads a manifest from an in-memory buffer. The filename is
// used for diagnostics and canonical rule names only.
func (l *Loader) LoadSource(ctx context.Context, filename string, src []byte) ([]*rules.Rule, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL source %s: %w", filename, diags)
	}
	return l.loadBody(ctx, filename, file.Body)
}

func (l *Loader) loadBody(ctx context.Context, filename string, body hcl.Body) ([]*rules.Rule, error) {
	logger := ctxlog.FromContext(ctx)

	var schema fileSchema
	if diags := gohcl.DecodeBody(body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	if err := l.declareTypes(filename, schema.Types); err != nil {
		return nil, err
	}

	out := make([]*rules.Rule, 0, len(schema.Values)+len(schema.Rules))
	for _, block := range schema.Values {
		rule, err := l.buildValueRule(filename, block)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	for _, block := range schema.Rules {
		rule, err := l.buildHandlerRule(filename, block)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}

	logger.Debug("Loaded definitions from manifest.", "file", filename, "types", len(schema.Types), "rules", len(out))
	return out, nil
}

// declareTypes resolves type blocks into the loader's type graph. Blocks
// may reference parents declared later in the same file; resolution
// iterates until it stops making progress.
func (l *Loader) declareTypes(filename string, blocks []typeBlock) error {
	pending := make([]typeBlock, 0, len(blocks))
	for _, block := range blocks {
		if _, exists := l.types[block.Name]; exists {
			return fmt.Errorf("manifest %s: type %q already declared", filename, block.Name)
		}
		pending = append(pending, block)
	}

	for len(pending) > 0 {
		progressed := false
		remaining := pending[:0]
		for _, block := range pending {
			parents, ok := l.lookupParents(block.Parents)
			if !ok {
				remaining = append(remaining, block)
				continue
			}
			l.types[block.Name] = typeinfo.NewBase(block.Name, parents...)
			progressed = true
		}
		pending = remaining
		if !progressed {
			names := make([]string, len(pending))
			for i, block := range pending {
				names[i] = block.Name
			}
			return fmt.Errorf("manifest %s: unresolvable parents for types: %s", filename, strings.Join(names, ", "))
		}
	}
	return nil
}

func (l *Loader) lookupParents(names []string) ([]*typeinfo.Base, bool) {
	parents := make([]*typeinfo.Base, 0, len(names))
	for _, name := range names {
		parent, ok := l.types[name]
		if !ok {
			return nil, false
		}
		parents = append(parents, parent)
	}
	return parents, true
}

func (l *Loader) buildValueRule(filename string, block valueBlock) (*rules.Rule, error) {
	output, err := l.outputType(block.Type, block.Named)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: value %q: %w", filename, block.Name, err)
	}

	ctyVal, diags := block.Value.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("manifest %s: value %q: %w", filename, block.Name, diags)
	}
	value, err := ctyToNative(ctyVal)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: value %q: %w", filename, block.Name, err)
	}

	return rules.Static(filename+":"+block.Name, output, value, rules.WithPriority(block.Priority))
}

func (l *Loader) buildHandlerRule(filename string, block ruleBlock) (*rules.Rule, error) {
	fn, ok := l.handlers[block.Handler]
	if !ok {
		return nil, fmt.Errorf("manifest %s: rule %q: handler %q not registered", filename, block.Name, block.Handler)
	}

	output, err := l.outputType(block.Output, block.Named)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: rule %q: %w", filename, block.Name, err)
	}

	deps := make(map[string]*typeinfo.Type, len(block.Dependencies))
	for _, dep := range block.Dependencies {
		depType, err := l.dependencyType(dep)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: rule %q dependency %q: %w", filename, block.Name, dep.Name, err)
		}
		deps[dep.Name] = depType
	}

	opts := []rules.Option{rules.WithPriority(block.Priority)}
	if block.Async {
		opts = append(opts, rules.Async())
	}
	return rules.New(fn, filename+":"+block.Name, output, deps, opts...)
}

func (l *Loader) outputType(name, named string) (*typeinfo.Type, error) {
	base, ok := l.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	var opts []typeinfo.Option
	if named != "" {
		opts = append(opts, typeinfo.WithAttributes(metadata.Name(named)))
	}
	return typeinfo.New(base, opts...), nil
}

func (l *Loader) dependencyType(block depBlock) (*typeinfo.Type, error) {
	base, ok := l.types[block.Type]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", block.Type)
	}

	var opts []typeinfo.Option
	if block.Named != "" {
		opts = append(opts, typeinfo.WithQualifiers(metadata.SelectName(block.Named)))
	}

	switch block.Cardinality {
	case "", "default":
	case "exclusive":
		opts = append(opts, typeinfo.WithCardinality(typeinfo.Exclusive))
	case "exhaustive":
		opts = append(opts, typeinfo.WithCardinality(typeinfo.Exhaustive))
	default:
		return nil, fmt.Errorf("unknown cardinality %q", block.Cardinality)
	}

	switch block.Specificity {
	case "", "subclass":
	case "exact":
		opts = append(opts, typeinfo.WithSpecificity(typeinfo.Exact))
	case "superclass":
		opts = append(opts, typeinfo.WithSpecificity(typeinfo.AllowSuperclass))
	default:
		return nil, fmt.Errorf("unknown specificity %q", block.Specificity)
	}

	return typeinfo.New(base, opts...), nil
}
