package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/etp/internal/app"
	"github.com/vk/etp/internal/cli"
	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/hcl"
	"github.com/vk/etp/internal/yamlconfig"
)

// main is the entrypoint for the etp application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW, errW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here to provide
	// a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			err = app.StartupPanicError(r)
		}
	}()

	var loader config.Loader = hcl.NewLoader()
	if appConfig.IsYAML() {
		loader = yamlconfig.NewLoader()
	}
	etp := app.NewApp(outW, errW, appConfig, loader)

	return etp.Run(context.Background())
}
