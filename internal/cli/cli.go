package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/etp/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("etp", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
etp - Execution trace printer for stack-machine programs.

Usage:
  etp [options] LOG_PATH

Arguments:
  LOG_PATH
    Executor log holding the module listing followed by the VM trace.

Options:
`)
		flagSet.PrintDefaults()
	}

	entryFlag := flagSet.String("entry", "", "Entry function symbol, matched as a suffix of the procedure names.")
	eFlag := flagSet.String("e", "", "Entry function symbol (shorthand).")
	configFlag := flagSet.String("config", "", "Optional policy file (.hcl, .yaml or .yml).")
	showMemoryFlag := flagSet.Bool("show-memory", false, "Print the memory shadow around each load and store.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one LOG_PATH, got %d arguments", flagSet.NArg())}
	}
	path := flagSet.Arg(0)
	if path == "" {
		slog.Debug("No log path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	entry := *entryFlag
	if entry == "" {
		entry = *eFlag
	} else if *eFlag != "" && *eFlag != entry {
		return nil, false, &ExitError{Code: 2, Message: "conflicting entry: -e and -entry differ"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		LogPath:    path,
		Entry:      entry,
		ConfigPath: *configFlag,
		ShowMemory: *showMemoryFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
