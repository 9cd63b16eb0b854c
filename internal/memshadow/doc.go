// Package memshadow provides an advisory, in-memory model of the VM's
// memory, rebuilt from the loads and stores observed in a trace.
//
// # Purpose
//
// The trace only records operand stacks, so memory contents are inferred:
// a store tells us what an address holds, and a later load of the same
// address should produce the same value. A disagreement points at a
// runtime inconsistency worth a second look, never at a tool failure, so
// the shadow reports mismatches and carries on.
//
// # Characteristics
//
//   - **Ephemeral:** created fresh for each alignment run
//   - **Single-owner:** mutated only by the alignment engine, so it carries no locks
//   - **First observation wins:** an unknown address is learnt from its first load
package memshadow
