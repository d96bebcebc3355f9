package tools

// Generated tools are single Go source units evaluated inside a yaegi
// interpreter rather than compiled into the binary. The unit must expose
// exactly one exported function with the entry signature below; discovery
// is by signature conformance, not by name.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"oddsmith/internal/types"
)

// EntryFunc is the fixed capability contract every generated tool exposes:
// market identifier and current price in, numeric feature vector out.
type EntryFunc func(marketID string, price float64) ([]float64, error)

// entrySignature is the unnamed type used for conformance checks.
type entrySignature = func(string, float64) ([]float64, error)

// LoadEntry evaluates tool source in a fresh interpreter and returns its
// single conforming entry point. Zero or more than one conforming exported
// function is an error.
func LoadEntry(source string) (EntryFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}
	if _, err := i.Eval(wrapSource(source)); err != nil {
		return nil, fmt.Errorf("evaluating tool source: %w", err)
	}

	pkg, ok := i.Symbols("main")["main"]
	if !ok {
		return nil, fmt.Errorf("tool source does not define package main")
	}

	// Deterministic scan order so error messages are stable.
	names := make([]string, 0, len(pkg))
	for name := range pkg {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		entry   EntryFunc
		matched []string
	)
	for _, name := range names {
		v := pkg[name]
		if !v.IsValid() || !v.CanInterface() {
			continue
		}
		if fn, ok := v.Interface().(entrySignature); ok {
			entry = fn
			matched = append(matched, name)
		}
	}

	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("no exported function matches the entry signature func(string, float64) ([]float64, error)")
	case 1:
		return entry, nil
	default:
		return nil, fmt.Errorf("ambiguous entry point: %d conforming functions (%s)",
			len(matched), strings.Join(matched, ", "))
	}
}

// wrapSource wraps bare tool bodies in a main package. Source that already
// declares a package is passed through untouched.
func wrapSource(source string) string {
	if strings.Contains(source, "package ") {
		return source
	}
	return "package main\n\n" + source
}

// GeneratedTool adapts a loaded entry function to the Tool interface.
type GeneratedTool struct {
	name        string
	description string
	version     string
	entry       EntryFunc
}

// NewGeneratedTool wraps an entry function as a registry-ready tool.
func NewGeneratedTool(name, description, version string, entry EntryFunc) *GeneratedTool {
	return &GeneratedTool{name: name, description: description, version: version, entry: entry}
}

func (t *GeneratedTool) Name() string        { return t.name }
func (t *GeneratedTool) Description() string { return t.description }
func (t *GeneratedTool) Version() string     { return t.version }

func (t *GeneratedTool) Run(event types.MarketEvent) (types.ToolOutput, error) {
	vector, err := t.entry(event.MarketID, event.CurrentPrice)
	if err != nil {
		return types.ToolOutput{}, fmt.Errorf("generated tool %s: %w", t.name, err)
	}
	if len(vector) == 0 {
		return types.ToolOutput{}, fmt.Errorf("generated tool %s returned an empty vector", t.name)
	}
	return types.ToolOutput{
		ToolName:     t.name,
		OutputVector: vector,
		Metadata: map[string]interface{}{
			"generated": true,
			"version":   t.version,
		},
	}, nil
}
