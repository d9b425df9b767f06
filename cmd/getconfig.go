package main

import (
	"fmt"

	"toymanifest/impl/cmdline"
	"toymanifest/impl/config"
	"toymanifest/impl/store"
)

// getCfg parses the command line and builds the global configuration from it. With
// '--config-file' the file is loaded first and the flags given on the command line are
// merged over it, so a flag beats the file and the file beats a flag default. The
// serverTlsConfig section only comes from the file. Returns the sub-command to run.
func getCfg() (string, error) {
	fromCmdline, cfg, err := cmdline.Parse()
	if err != nil {
		return "", err
	}
	if fromCmdline.ConfigFile {
		if err := config.Load(cfg.ConfigFile); err != nil {
			return "", err
		}
		config.Merge(fromCmdline, cfg)
		// the file bypasses the flag validators
		if err := checkCfg(config.Get()); err != nil {
			return "", fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
		}
	} else {
		config.Set(cfg)
	}
	return fromCmdline.Command, nil
}

// checkCfg checks the values that the command line parser validates for flags
func checkCfg(cfg config.Configuration) error {
	switch {
	case cfg.StoreType != store.TypeBstore && cfg.StoreType != store.TypeMemory:
		return fmt.Errorf("storeType must be %q or %q, got %q", store.TypeBstore, store.TypeMemory, cfg.StoreType)
	case cfg.PartitionHorizon < 0:
		return fmt.Errorf("partitionHorizon must not be negative, got %d", cfg.PartitionHorizon)
	case cfg.ChunkSize <= 0:
		return fmt.Errorf("chunkSize must be greater than zero, got %d", cfg.ChunkSize)
	case cfg.Port < 0 || cfg.Port > 65535 || cfg.Metrics < 0 || cfg.Metrics > 65535:
		return fmt.Errorf("port and metrics must be valid port numbers, got %d and %d", cfg.Port, cfg.Metrics)
	}
	return nil
}
