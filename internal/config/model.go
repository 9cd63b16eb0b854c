package config

import (
	"errors"
	"fmt"
)

// Model is the unified representation of the tool's policy.
type Model struct {
	Alignment Alignment
	Layout    Layout
	Grammar   Grammar
}

// Alignment tunes how source ops are reconciled with trace events.
type Alignment struct {
	// CallOpcodes are the plain opcodes whose argument names a callee.
	CallOpcodes []string
	// CallTargetPrefix is the marker stripped from a call argument before
	// the callee is looked up, e.g. `::` in `exec.::std::math::add`.
	CallTargetPrefix string
	// SkipHiddenCallees treats callees whose last path segment starts with
	// HiddenCalleePrefix as never traced.
	SkipHiddenCallees  bool
	HiddenCalleePrefix string
	// SourceOnlyOpcodes exist in the listing but never in the trace.
	SourceOnlyOpcodes []string
	LoadOpcodes       []string
	StoreOpcodes      []string
	// MemIntrinsicPrefix marks opaque callees that touch memory.
	MemIntrinsicPrefix string
	// EntryRunSuffix and EntryInitSuffix drive default entry detection.
	EntryRunSuffix  string
	EntryInitSuffix string
	DropSymbolHash  bool
	SymbolCacheSize int
}

// Layout controls the text rendering of the reconstructed trace.
type Layout struct {
	IndentWidth int
	StackColumn int
	ShowMemory  bool
}

// Grammar holds the markers the log parser looks for.
type Grammar struct {
	ModuleMarker  string
	TraceMarker   string
	EndMarker     string
	NoisePrefixes []string
}

// Default returns the policy matching the Miden VM executor log format.
func Default() *Model {
	return &Model{
		Alignment: Alignment{
			CallOpcodes:        []string{"exec", "call"},
			CallTargetPrefix:   "::",
			SkipHiddenCallees:  true,
			HiddenCalleePrefix: "__",
			SourceOnlyOpcodes:  []string{"trace"},
			LoadOpcodes:        []string{"mem_load"},
			StoreOpcodes:       []string{"mem_store"},
			MemIntrinsicPrefix: "intrinsics::mem::",
			EntryRunSuffix:     "run",
			EntryInitSuffix:    "init",
			DropSymbolHash:     true,
			SymbolCacheSize:    4096,
		},
		Layout: Layout{
			IndentWidth: 4,
			StackColumn: 40,
		},
		Grammar: Grammar{
			ModuleMarker:  "mod",
			TraceMarker:   "[TRACE executor]",
			EndMarker:     "Stack Trace:",
			NoisePrefixes: []string{"Creating Miden package"},
		},
	}
}

// Validate checks the invariants the engine relies on.
func (m *Model) Validate() error {
	var errs []error
	if len(m.Alignment.CallOpcodes) == 0 {
		errs = append(errs, errors.New("alignment.call_opcodes must not be empty"))
	}
	for _, op := range m.Alignment.CallOpcodes {
		if op == "" {
			errs = append(errs, errors.New("alignment.call_opcodes must not contain empty opcodes"))
			break
		}
	}
	if m.Alignment.SkipHiddenCallees && m.Alignment.HiddenCalleePrefix == "" {
		errs = append(errs, errors.New("alignment.hidden_callee_prefix is required when skip_hidden_callees is set"))
	}
	if m.Alignment.EntryRunSuffix == "" {
		errs = append(errs, errors.New("alignment.entry_run_suffix must not be empty"))
	}
	if m.Layout.IndentWidth < 0 || m.Layout.StackColumn < 0 {
		errs = append(errs, fmt.Errorf("layout widths must not be negative, got indent %d and stack column %d", m.Layout.IndentWidth, m.Layout.StackColumn))
	}
	if m.Grammar.ModuleMarker == "" || m.Grammar.TraceMarker == "" {
		errs = append(errs, errors.New("grammar.module_marker and grammar.trace_marker are required"))
	}
	return errors.Join(errs...)
}
