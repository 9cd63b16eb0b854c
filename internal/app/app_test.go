package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/etp/internal/align"
	"github.com/vk/etp/internal/app"
	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/hcl"
	"github.com/vk/etp/internal/testutil"
	"github.com/vk/etp/internal/yamlconfig"
)

// harnessResult holds the outcomes of an end-to-end run.
type harnessResult struct {
	Output    string
	LogOutput string
	Err       error
}

// runApp writes log to a temporary file and runs the application on it
// with cfg. A panic during startup is reported through Err.
func runApp(t *testing.T, log string, cfg app.Config, loader config.Loader) *harnessResult {
	t.Helper()

	if cfg.LogPath == "" {
		cfg.LogPath = testutil.WriteFile(t, "trace.log", log)
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	logs := &testutil.SafeBuffer{}
	result := &harnessResult{}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = app.StartupPanicError(r)
			}
		}()
		a := app.NewApp(out, logs, appConfig, loader)
		result.Err = a.Run(context.Background())
	}()

	if os.Getenv("ETP_TEST_LOGS") == "true" {
		t.Logf("--- Full log output for %s ---\n%s", t.Name(), logs.String())
	}
	result.Output = out.String()
	result.LogOutput = logs.String()
	return result
}

func col(s string) string {
	return s + strings.Repeat(" ", 40-len(s))
}

func TestRun_SingleNoop(t *testing.T) {
	// --- Arrange ---
	log := testutil.NewLog().
		Module("m").
		Proc("main", "noop").
		Step("m::main", "noop", 0).
		String()

	// --- Act ---
	res := runApp(t, log, app.Config{Entry: "main"}, nil)

	// --- Assert ---
	require.NoError(t, res.Err)
	want := "ENTRY AT m::main\n" +
		col("    noop") + "[ 0 ]\n" +
		"RETURNED FROM ENTRY POINT\n" +
		"\nEND OF TRACE\n"
	assert.Equal(t, want, res.Output)
	assert.Contains(t, res.LogOutput, "Trace aligned.")
	assert.Contains(t, res.LogOutput, "instructions=1")
}

func TestRun_CallsAndBranches(t *testing.T) {
	// --- Arrange ---
	log := testutil.NewLog().
		Module("m").
		Proc("main",
			"push.1",
			"if.true",
			"    exec.::m::helper",
			"else",
			"    push.0",
			"end",
			"exec.::intrinsics::mem::load_sw",
			"push.2",
		).
		Proc("helper", "push.3").
		Step("m::main", "push.1", 1).
		Step("m::helper", "push.3", 3, 1).
		Cycles("intrinsics::mem::load_sw", "mem_load", 1, 2, 3, 1).
		Cycles("intrinsics::mem::load_sw", "mem_load", 2, 2, 7, 1).
		Step("m::main", "push.2", 2, 7, 1).
		String()

	// --- Act ---
	res := runApp(t, log, app.Config{ShowMemory: true}, nil)

	// --- Assert ---
	require.Error(t, res.Err, "m::main is neither run nor init")
	assert.ErrorIs(t, res.Err, align.ErrNoDefaultEntry)

	res = runApp(t, log, app.Config{Entry: "main", ShowMemory: true}, nil)
	require.NoError(t, res.Err)
	want := "ENTRY AT m::main\n" +
		col("    push.1") + "[ 1 ]\n" +
		"    if.true\n" +
		"        exec.::m::helper\n" +
		"\nENTERING m::helper {{{\n" +
		col("        push.3") + "[ 3 1 ]\n" +
		"RETURN TO m::main }}}\n\n" +
		"    else\n" +
		"        (SKIPPING)\n" +
		"    end\n" +
		"    exec.::intrinsics::mem::load_sw\n" +
		"        (SKIPPING)\n" +
		"\n| 00000000:   ????????????????  ????????????????  ???????????????? 0000000000000003 |\n\n" +
		col("    push.2") + "[ 2 7 1 ]\n" +
		"RETURNED FROM ENTRY POINT\n" +
		"\nEND OF TRACE\n"
	assert.Equal(t, want, res.Output)
}

func TestRun_Failures(t *testing.T) {
	goodLog := testutil.NewLog().Module("m").Proc("main", "noop").Step("m::main", "noop", 0).String()

	testCases := []struct {
		name     string
		log      string
		cfg      app.Config
		loader   config.Loader
		wantErr  error
		errorMsg string
	}{
		{
			name:     "malformed log",
			log:      "nothing to see here\n",
			cfg:      app.Config{Entry: "main"},
			errorMsg: "failed to parse log",
		},
		{
			name:    "desync",
			log:     testutil.NewLog().Module("m").Proc("main", "add").Step("m::main", "mul", 0).String(),
			cfg:     app.Config{Entry: "main"},
			wantErr: align.ErrDesync,
		},
		{
			name:    "unknown entry",
			log:     goodLog,
			cfg:     app.Config{Entry: "nope"},
			wantErr: align.ErrEntryNotFound,
		},
		{
			name:     "missing log",
			cfg:      app.Config{Entry: "main", LogPath: filepath.Join(t.TempDir(), "missing.log")},
			errorMsg: "failed to read log",
		},
		{
			name:     "invalid policy panics at startup",
			log:      goodLog,
			cfg:      app.Config{Entry: "main", ConfigPath: testutil.WriteFile(t, "policy.hcl", "layout {\n  indent_width = -1\n}\n")},
			loader:   hcl.NewLoader(),
			errorMsg: "application startup panicked: failed to load configuration",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := runApp(t, tc.log, tc.cfg, tc.loader)

			require.Error(t, res.Err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, res.Err, tc.wantErr)
			}
			if tc.errorMsg != "" {
				assert.Contains(t, res.Err.Error(), tc.errorMsg)
			}
		})
	}
}

func TestRun_PolicyFiles(t *testing.T) {
	log := testutil.NewLog().Module("m").Proc("main", "noop").Step("m::main", "noop", 0).String()

	testCases := []struct {
		name   string
		file   string
		src    string
		loader config.Loader
	}{
		{name: "hcl", file: "policy.hcl", src: "layout {\n  indent_width = 2\n  stack_column = 10\n}\n", loader: hcl.NewLoader()},
		{name: "yaml", file: "policy.yaml", src: "layout:\n  indent_width: 2\n  stack_column: 10\n", loader: yamlconfig.NewLoader()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := app.Config{Entry: "main", ConfigPath: testutil.WriteFile(t, tc.file, tc.src)}

			res := runApp(t, log, cfg, tc.loader)

			require.NoError(t, res.Err)
			assert.Contains(t, res.Output, "\n  noop    [ 0 ]\n")
		})
	}
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      app.Config
		wantYAML bool
		errorMsg string
	}{
		{name: "log only", cfg: app.Config{LogPath: "trace.log"}},
		{name: "hcl policy", cfg: app.Config{LogPath: "trace.log", ConfigPath: "etp.hcl"}},
		{name: "yaml policy", cfg: app.Config{LogPath: "trace.log", ConfigPath: "etp.YML"}, wantYAML: true},
		{name: "missing log", cfg: app.Config{}, errorMsg: "LogPath is a required configuration field"},
		{name: "unknown policy format", cfg: app.Config{LogPath: "trace.log", ConfigPath: "etp.toml"}, errorMsg: `unsupported policy file extension ".toml"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := app.NewConfig(tc.cfg)

			if tc.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, *cfg)
			assert.Equal(t, tc.wantYAML, cfg.IsYAML())
		})
	}
}

func TestNewApp_ShowMemoryOverridesPolicy(t *testing.T) {
	cfg, err := app.NewConfig(app.Config{LogPath: "trace.log", ShowMemory: true})
	require.NoError(t, err)

	a := app.NewApp(&testutil.SafeBuffer{}, &testutil.SafeBuffer{}, cfg, nil)

	assert.True(t, a.Policy().Layout.ShowMemory)
	assert.Equal(t, config.Default().Alignment, a.Policy().Alignment)
}
