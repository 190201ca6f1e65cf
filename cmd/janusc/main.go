package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/janus-lang/janus/pkg/dispatch"
)

// Config holds the CLI configuration.
type Config struct {
	Debug      bool
	ConfigPath string
	Format     string
}

func main() {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "janusc",
		Short: "Janus dispatch diagnostics",
		Long: `janusc audits and exercises the Janus multiple-dispatch engine.
It consumes declaration fixtures (the same type and implementation stream
the compiler produces while walking an AST) and reports latent ambiguities,
coverage gaps, and dispatch performance.`,
		Example: `  # Audit every signature group for conflicts
  janusc check decls.yaml

  # Resolve one call and show the outcome
  janusc resolve decls.yaml area Circle

  # Compare table lookup strategies for a group
  janusc bench decls.yaml area 1`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cfg.Debug)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigPath, "config", "", "Path to janus.toml (found by walking up from the working directory if unset)")

	checkCmd := &cobra.Command{
		Use:   "check <decls.yaml>",
		Short: "Audit signature groups for ambiguities and coverage gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
	checkCmd.Flags().StringVar(&cfg.Format, "format", "text", "Report format: text or yaml")

	resolveCmd := &cobra.Command{
		Use:   "resolve <decls.yaml> <function> [arg-types...]",
		Short: "Resolve one call against the registered implementations",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cfg, args[0], args[1], args[2:], cmd.OutOrStdout())
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench <decls.yaml> <function> <arity>",
		Short: "Benchmark the three table lookup strategies for a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), cfg, args[0], args[1], args[2], cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(checkCmd, resolveCmd, benchCmd)

	ctx := context.Background()
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// loadEngine builds a session from configuration and applies a declaration
// fixture.
func loadEngine(cfg Config, declPath string) (*dispatch.Engine, error) {
	var dispatchCfg *dispatch.Config
	var err error
	if cfg.ConfigPath != "" {
		dispatchCfg, err = dispatch.LoadConfig(cfg.ConfigPath)
	} else {
		var found string
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		found, dispatchCfg, err = dispatch.FindConfig(wd)
		if found != "" {
			slog.Debug("using project config", "path", found)
		}
	}
	if err != nil {
		return nil, err
	}

	engine, err := dispatch.NewEngine(dispatchCfg)
	if err != nil {
		return nil, err
	}
	decls, err := dispatch.LoadDecls(declPath)
	if err != nil {
		return nil, err
	}
	if err := decls.Apply(engine); err != nil {
		return nil, err
	}
	return engine, nil
}
