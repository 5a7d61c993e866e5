package concurrentmap

import "fmt"

// Config describes how to construct a Map from a loaded config file. The
// hasher itself is a Go func value and has no config-file representation;
// callers needing a non-default Hasher pass one to New directly (see
// cmd/ctkdemo, which wires an xxhash-backed Hasher[string]).
type Config struct {
	// InitialBuckets is the bucket count the table starts with before
	// any online resize.
	InitialBuckets int `toml:"initial_buckets"`
}

// Validate reports whether the loaded configuration is usable.
func (c Config) Validate() error {
	if c.InitialBuckets <= 0 {
		return fmt.Errorf("concurrentmap: initial_buckets must be positive, got %d", c.InitialBuckets)
	}
	return nil
}
