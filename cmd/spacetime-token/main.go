package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/OpenGG/spacetime-token/internal/cli"
	"github.com/OpenGG/spacetime-token/internal/tokens"
	"github.com/OpenGG/spacetime-token/internal/tokens/config"
	"github.com/OpenGG/spacetime-token/internal/tokens/paths"
	"github.com/OpenGG/spacetime-token/internal/tokens/runner"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], afero.NewOsFs(), cli.NewPromptUI(), nil, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitFunc(1)
	}
}

// run wires the application and executes the command line in args.
// A nil runner means the real spacetime executable is used.
func run(ctx context.Context, args []string, fs afero.Fs, prompter cli.Prompter, r runner.Runner, stdout, stderr io.Writer) error {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	appDir, err := config.ResolveAppDir()
	if err != nil {
		return err
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	// Settings decide every other file path, so they are loaded before the
	// command line is parsed. Even --help creates config.toml on first use.
	settings, err := config.New(storage.New(fs), paths.New(appDir, homeDir).SettingsPath(), logger).Load()
	if err != nil {
		return fmt.Errorf("failed to load application settings: %w", err)
	}

	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	mgr, err := tokens.NewManager(tokens.Options{
		Fs:       fs,
		AppDir:   appDir,
		HomeDir:  homeDir,
		Settings: settings,
		Runner:   r,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	root := cli.NewRootCommand(mgr, prompter, stdout, stderr)
	var verbose, noColor bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			level.Set(slog.LevelDebug)
		}
		if noColor {
			color.NoColor = true
		}
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
