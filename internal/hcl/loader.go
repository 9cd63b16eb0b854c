package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Environ supplies the `env` variable; nil means os.Environ.
	Environ func() []string
}

// NewLoader creates a new HCL policy loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of a policy file.
type fileRoot struct {
	Alignment *alignmentBlock `hcl:"alignment,block"`
	Layout    *layoutBlock    `hcl:"layout,block"`
	Grammar   *grammarBlock   `hcl:"grammar,block"`
}

// Load parses the HCL file at path and applies it on top of the defaults.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.decode(ctx, path, file)
}

// LoadBytes is Load for an in-memory file; filename is only used in
// diagnostics.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.decode(ctx, filename, file)
}

func (l *Loader) decode(ctx context.Context, path string, file *hcl.File) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	evalCtx := newEvalContext(l.environ())
	model := config.Default()

	var bindings []binding
	if root.Alignment != nil {
		bindings = append(bindings, root.Alignment.bind(&model.Alignment)...)
	}
	if root.Layout != nil {
		bindings = append(bindings, root.Layout.bind(&model.Layout)...)
	}
	if root.Grammar != nil {
		bindings = append(bindings, root.Grammar.bind(&model.Grammar)...)
	}

	set := 0
	for _, b := range bindings {
		ok, err := b.apply(ctx, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("in HCL file %s: %w", path, err)
		}
		if ok {
			set++
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy in %s: %w", path, err)
	}
	logger.Debug("HCL loading complete.", "path", path, "attributes_set", set)
	return model, nil
}
