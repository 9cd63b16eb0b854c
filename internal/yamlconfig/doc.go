// Package yamlconfig provides the YAML implementation of the config.Loader
// interface. The document mirrors the HCL layout: optional `alignment`,
// `layout` and `grammar` mappings whose keys override config.Default.
// Unknown keys are rejected.
package yamlconfig
