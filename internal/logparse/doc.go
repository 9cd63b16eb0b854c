// Package logparse reads a captured executor log and produces both inputs
// of an alignment run in one pass: the MASM source listing as a masm.Arena
// of blocks, and the executor trace as an ordered slice of trace.Event.
//
// The log interleaves the two regions with unrelated output. Everything
// before the first module marker is skipped, as is everything between the
// last procedure and the first trace marker. Inside the trace region,
// marker-prefixed lines of kinds the engine does not use are discarded.
// Parsing is atomic: any error aborts with the byte offset and an excerpt
// of the unconsumed input, and no partial result is returned.
package logparse
