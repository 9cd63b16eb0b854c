// Package config defines the format-agnostic configuration model for the
// trace printer, along with the Loader interface for reading it from a
// policy file.
//
// The `config.Model` is the single source of truth for the `logparse`,
// `align` and `render` packages. Concrete loaders, for HCL and YAML, are
// provided in separate packages.
package config
