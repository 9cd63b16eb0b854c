// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run that reads a log, aligns its trace
// against its source listing and writes the annotated listing, decoupled
// from any specific entrypoint like a CLI.
package app
