package tools

// Registry is the single source of truth for available tools. The agent
// can only pick from tools registered here: no dynamic discovery, no
// runtime self-registration by tools themselves. Generated tools enter
// only through the approved manifest, after verification.

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// ToolInfo is the metadata surfaced to the agent prompt.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds all registered tools.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	generated map[string]string // name -> version
	log       *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		generated: make(map[string]string),
		log:       logging.L(logging.CategoryRegistry),
	}
}

// Register adds a built-in tool. Duplicate names are an error.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	r.log.Info("registered tool", zap.String("tool", tool.Name()))
	return nil
}

// RegisterGenerated adds a verified generated tool. Called only after the
// verifier has approved the candidate.
func (r *Registry) RegisterGenerated(tool Tool, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("generated tool %q conflicts with an existing tool", tool.Name())
	}
	r.tools[tool.Name()] = tool
	r.generated[tool.Name()] = version
	r.log.Info("registered generated tool",
		zap.String("tool", tool.Name()), zap.String("version", version))
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not in registry (available: %v)", name, r.namesLocked())
	}
	return tool, nil
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns name+description metadata for every tool, sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ToolInfo, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		infos = append(infos, ToolInfo{Name: name, Description: r.tools[name].Description()})
	}
	return infos
}

// GeneratedNames returns the names of registered generated tools, sorted.
func (r *Registry) GeneratedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generated))
	for name := range r.generated {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
