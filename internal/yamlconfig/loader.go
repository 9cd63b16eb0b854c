package yamlconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

type document struct {
	Alignment *alignment `yaml:"alignment"`
	Layout    *layout    `yaml:"layout"`
	Grammar   *grammar   `yaml:"grammar"`
}

type alignment struct {
	CallOpcodes        *[]string `yaml:"call_opcodes"`
	CallTargetPrefix   *string   `yaml:"call_target_prefix"`
	SkipHiddenCallees  *bool     `yaml:"skip_hidden_callees"`
	HiddenCalleePrefix *string   `yaml:"hidden_callee_prefix"`
	SourceOnlyOpcodes  *[]string `yaml:"source_only_opcodes"`
	LoadOpcodes        *[]string `yaml:"load_opcodes"`
	StoreOpcodes       *[]string `yaml:"store_opcodes"`
	MemIntrinsicPrefix *string   `yaml:"mem_intrinsic_prefix"`
	EntryRunSuffix     *string   `yaml:"entry_run_suffix"`
	EntryInitSuffix    *string   `yaml:"entry_init_suffix"`
	DropSymbolHash     *bool     `yaml:"drop_symbol_hash"`
	SymbolCacheSize    *int      `yaml:"symbol_cache_size"`
}

type layout struct {
	IndentWidth *int  `yaml:"indent_width"`
	StackColumn *int  `yaml:"stack_column"`
	ShowMemory  *bool `yaml:"show_memory"`
}

type grammar struct {
	ModuleMarker  *string   `yaml:"module_marker"`
	TraceMarker   *string   `yaml:"trace_marker"`
	EndMarker     *string   `yaml:"end_marker"`
	NoisePrefixes *[]string `yaml:"noise_prefixes"`
}

// Loader reads YAML policy files.
type Loader struct{}

// NewLoader creates a new YAML policy loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the YAML file at path and applies it on top of the defaults.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	ctxlog.FromContext(ctx).Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}
	model, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("in YAML file %s: %w", path, err)
	}
	return model, nil
}

// Decode applies a YAML document to config.Default and validates the
// result. An empty document yields the defaults.
func Decode(data []byte) (*config.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	model := config.Default()
	if a := doc.Alignment; a != nil {
		m := &model.Alignment
		set(&m.CallOpcodes, a.CallOpcodes)
		set(&m.CallTargetPrefix, a.CallTargetPrefix)
		set(&m.SkipHiddenCallees, a.SkipHiddenCallees)
		set(&m.HiddenCalleePrefix, a.HiddenCalleePrefix)
		set(&m.SourceOnlyOpcodes, a.SourceOnlyOpcodes)
		set(&m.LoadOpcodes, a.LoadOpcodes)
		set(&m.StoreOpcodes, a.StoreOpcodes)
		set(&m.MemIntrinsicPrefix, a.MemIntrinsicPrefix)
		set(&m.EntryRunSuffix, a.EntryRunSuffix)
		set(&m.EntryInitSuffix, a.EntryInitSuffix)
		set(&m.DropSymbolHash, a.DropSymbolHash)
		set(&m.SymbolCacheSize, a.SymbolCacheSize)
	}
	if l := doc.Layout; l != nil {
		set(&model.Layout.IndentWidth, l.IndentWidth)
		set(&model.Layout.StackColumn, l.StackColumn)
		set(&model.Layout.ShowMemory, l.ShowMemory)
	}
	if g := doc.Grammar; g != nil {
		set(&model.Grammar.ModuleMarker, g.ModuleMarker)
		set(&model.Grammar.TraceMarker, g.TraceMarker)
		set(&model.Grammar.EndMarker, g.EndMarker)
		set(&model.Grammar.NoisePrefixes, g.NoisePrefixes)
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return model, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
