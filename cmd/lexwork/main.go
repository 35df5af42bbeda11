// Package main is the entry point for lexwork.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dshills/lexwork/internal/config"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/tracing"
	"github.com/dshills/lexwork/internal/workspace"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	trace      string
}

// app is the state built before a command runs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	tracer *tracing.Provider
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "lexwork",
		Short:         "Incremental classification and background parsing for source files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "path to configuration file (.toml or .yaml)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	pf.StringVar(&a.flags.logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.StringVar(&a.flags.trace, "trace", "", "trace exporter (stdout, file, none)")

	rootCmd.AddCommand(newClassifyCmd(a))
	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newLSPCmd(a))
	rootCmd.AddCommand(newViewCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup loads configuration, applies flag overrides and configures logging
// and tracing.
func (a *app) setup() error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFile != "" {
		cfg.Log.Path = a.flags.logFile
	}
	if a.flags.trace != "" {
		cfg.Trace.Enabled = a.flags.trace != "none"
		cfg.Trace.Exporter = a.flags.trace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Configure(cfg.LogLevel(), cfg.Log.Path)

	tp, err := tracing.NewProvider(cfg.Trace)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.cfg = cfg
	a.tracer = tp
	return nil
}

func (a *app) shutdown() error {
	if a.tracer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.tracer.Shutdown(ctx)
}

// newWorkspace builds a workspace from the loaded configuration.
func (a *app) newWorkspace(opts ...workspace.Option) *workspace.Workspace {
	base := []workspace.Option{
		workspace.WithRegistry(a.cfg.Registry()),
		workspace.WithDebounce(a.cfg.Parse.Debounce.Std()),
		workspace.WithResultCacheTTL(a.cfg.Parse.CacheTTL.Std()),
		workspace.WithTracer(a.tracer.Tracer()),
	}
	return workspace.New(append(base, opts...)...)
}
