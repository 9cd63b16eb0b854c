package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/etp/internal/config"
)

// The block structs keep every attribute as a raw expression so omitted
// ones can be told apart from explicit zero values.

type alignmentBlock struct {
	CallOpcodes        hcl.Expression `hcl:"call_opcodes,optional"`
	CallTargetPrefix   hcl.Expression `hcl:"call_target_prefix,optional"`
	SkipHiddenCallees  hcl.Expression `hcl:"skip_hidden_callees,optional"`
	HiddenCalleePrefix hcl.Expression `hcl:"hidden_callee_prefix,optional"`
	SourceOnlyOpcodes  hcl.Expression `hcl:"source_only_opcodes,optional"`
	LoadOpcodes        hcl.Expression `hcl:"load_opcodes,optional"`
	StoreOpcodes       hcl.Expression `hcl:"store_opcodes,optional"`
	MemIntrinsicPrefix hcl.Expression `hcl:"mem_intrinsic_prefix,optional"`
	EntryRunSuffix     hcl.Expression `hcl:"entry_run_suffix,optional"`
	EntryInitSuffix    hcl.Expression `hcl:"entry_init_suffix,optional"`
	DropSymbolHash     hcl.Expression `hcl:"drop_symbol_hash,optional"`
	SymbolCacheSize    hcl.Expression `hcl:"symbol_cache_size,optional"`
}

func (b *alignmentBlock) bind(a *config.Alignment) []binding {
	return []binding{
		{"alignment.call_opcodes", b.CallOpcodes, &a.CallOpcodes},
		{"alignment.call_target_prefix", b.CallTargetPrefix, &a.CallTargetPrefix},
		{"alignment.skip_hidden_callees", b.SkipHiddenCallees, &a.SkipHiddenCallees},
		{"alignment.hidden_callee_prefix", b.HiddenCalleePrefix, &a.HiddenCalleePrefix},
		{"alignment.source_only_opcodes", b.SourceOnlyOpcodes, &a.SourceOnlyOpcodes},
		{"alignment.load_opcodes", b.LoadOpcodes, &a.LoadOpcodes},
		{"alignment.store_opcodes", b.StoreOpcodes, &a.StoreOpcodes},
		{"alignment.mem_intrinsic_prefix", b.MemIntrinsicPrefix, &a.MemIntrinsicPrefix},
		{"alignment.entry_run_suffix", b.EntryRunSuffix, &a.EntryRunSuffix},
		{"alignment.entry_init_suffix", b.EntryInitSuffix, &a.EntryInitSuffix},
		{"alignment.drop_symbol_hash", b.DropSymbolHash, &a.DropSymbolHash},
		{"alignment.symbol_cache_size", b.SymbolCacheSize, &a.SymbolCacheSize},
	}
}

type layoutBlock struct {
	IndentWidth hcl.Expression `hcl:"indent_width,optional"`
	StackColumn hcl.Expression `hcl:"stack_column,optional"`
	ShowMemory  hcl.Expression `hcl:"show_memory,optional"`
}

func (b *layoutBlock) bind(l *config.Layout) []binding {
	return []binding{
		{"layout.indent_width", b.IndentWidth, &l.IndentWidth},
		{"layout.stack_column", b.StackColumn, &l.StackColumn},
		{"layout.show_memory", b.ShowMemory, &l.ShowMemory},
	}
}

type grammarBlock struct {
	ModuleMarker  hcl.Expression `hcl:"module_marker,optional"`
	TraceMarker   hcl.Expression `hcl:"trace_marker,optional"`
	EndMarker     hcl.Expression `hcl:"end_marker,optional"`
	NoisePrefixes hcl.Expression `hcl:"noise_prefixes,optional"`
}

func (b *grammarBlock) bind(g *config.Grammar) []binding {
	return []binding{
		{"grammar.module_marker", b.ModuleMarker, &g.ModuleMarker},
		{"grammar.trace_marker", b.TraceMarker, &g.TraceMarker},
		{"grammar.end_marker", b.EndMarker, &g.EndMarker},
		{"grammar.noise_prefixes", b.NoisePrefixes, &g.NoisePrefixes},
	}
}
