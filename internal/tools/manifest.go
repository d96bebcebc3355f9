package tools

// The approved manifest is a flat JSON array of {tool_name, version}
// entries. The orchestrator appends to it after full acceptance; the
// registry loads from it at boot. Tools never write it themselves.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// ManifestEntry identifies one approved generated tool.
type ManifestEntry struct {
	ToolName string `json:"tool_name"`
	Version  string `json:"version"`
}

// ReadManifest loads the approved manifest. A missing file is an empty
// manifest, not an error.
func ReadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("manifest %s is not a JSON array of entries: %w", path, err)
	}
	return entries, nil
}

// AppendManifest adds an entry and rewrites the manifest. Appending a name
// that is already present is a no-op, not an error.
func AppendManifest(path string, entry ManifestEntry) error {
	entries, err := ReadManifest(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ToolName == entry.ToolName {
			return nil
		}
	}
	entries = append(entries, entry)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// LoadApproved reads the manifest and registers every approved generated
// tool whose source file exists under dir. Missing or broken entries are
// skipped with a warning; they never fail the whole load.
func (r *Registry) LoadApproved(manifestPath, dir string) error {
	entries, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}
	log := logging.L(logging.CategoryRegistry)
	for _, entry := range entries {
		if entry.ToolName == "" {
			continue
		}
		sourcePath := filepath.Join(dir, entry.ToolName+".go")
		source, err := os.ReadFile(sourcePath)
		if err != nil {
			log.Warn("approved tool source missing",
				zap.String("tool", entry.ToolName), zap.Error(err))
			continue
		}
		entryFn, err := LoadEntry(string(source))
		if err != nil {
			log.Warn("approved tool failed to load",
				zap.String("tool", entry.ToolName), zap.Error(err))
			continue
		}
		version := entry.Version
		if version == "" {
			version = "0.1.0"
		}
		tool := NewGeneratedTool(entry.ToolName, "generated tool "+entry.ToolName, version, entryFn)
		if err := r.RegisterGenerated(tool, version); err != nil {
			log.Warn("approved tool conflicts with registry",
				zap.String("tool", entry.ToolName), zap.Error(err))
		}
	}
	return nil
}
