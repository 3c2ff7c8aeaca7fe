package main

import (
	"os"

	"voxsane-fleet/internal/catalog"
	"voxsane-fleet/internal/config"
	"voxsane-fleet/internal/fleet"
)

// fleetSetup is everything built from one config file.
type fleetSetup struct {
	cfg       *config.Config
	clusterID string
	store     *fleet.Store
	catalog   *catalog.Catalog
}

// loadFleet loads the config and seeds a store from it. CLUSTER_ID overrides
// the configured cluster.
func loadFleet(configPath, schemaPath string, opts ...fleet.Option) (*fleetSetup, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, err
	}
	drones, err := cfg.FleetDrones()
	if err != nil {
		return nil, err
	}
	opts = append([]fleet.Option{
		fleet.WithAlertCapacity(cfg.AlertCapacity),
		fleet.WithActivityCapacity(cfg.ActivityCapacity),
	}, opts...)
	store, err := fleet.NewStore(drones, opts...)
	if err != nil {
		return nil, err
	}

	cat := catalog.BuiltIn()
	if cfg.Catalog != "" {
		if cat, err = catalog.Load(cfg.Catalog); err != nil {
			return nil, err
		}
	}

	clusterID := cfg.ClusterID
	if env := os.Getenv("CLUSTER_ID"); env != "" {
		clusterID = env
	}
	return &fleetSetup{cfg: cfg, clusterID: clusterID, store: store, catalog: cat}, nil
}
