package main

import (
	"oddsmith/internal/config"
	"oddsmith/internal/tools"
)

// buildRegistry assembles the tool registry: built-in snapshot tools plus
// every approved generated tool from the manifest.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewSnapshotVolatilityTool(cfg.Paths.Snapshots)); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewSpreadCompressionTool(cfg.Paths.Snapshots)); err != nil {
		return nil, err
	}
	if err := registry.LoadApproved(cfg.Paths.ApprovedTools, cfg.Paths.GeneratedTools); err != nil {
		return nil, err
	}
	return registry, nil
}
