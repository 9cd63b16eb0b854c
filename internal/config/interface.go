package config

import "context"

// Loader is the interface for a format-specific policy file loader.
type Loader interface {
	// Load reads the policy file at path and returns the defaults
	// overridden by whatever the file sets.
	Load(ctx context.Context, path string) (*Model, error)
}
