// Package config loads the optional reader configuration (LBA size, cache
// block size) that parameterizes the whole pipeline, following the same
// strict-YAML pattern the teacher uses for its workload spec.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pbhandar2/blocksample/internal/blockio"
)

// FileConfig mirrors blockio.Config's fields, loaded from YAML. Both fields
// are optional; omitted ones fall back to blockio.DefaultConfig (spec.md §3).
type FileConfig struct {
	LBASizeByte    *int64 `yaml:"lba_size_byte,omitempty"`
	CacheBlockByte *int64 `yaml:"cache_block_byte,omitempty"`
}

// Load reads and strictly decodes path, rejecting unknown keys exactly as
// LoadWorkloadSpec does for the teacher's workload spec file.
func Load(path string) (blockio.Config, error) {
	cfg := blockio.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading reader config: %w", err)
	}
	var fc FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil {
		return cfg, fmt.Errorf("parsing reader config: %w", err)
	}
	if fc.LBASizeByte != nil {
		cfg.LBASizeByte = *fc.LBASizeByte
	}
	if fc.CacheBlockByte != nil {
		cfg.CacheBlockByte = *fc.CacheBlockByte
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("reader config: %w", err)
	}
	return cfg, nil
}
