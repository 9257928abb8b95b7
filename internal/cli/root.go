// Package cli wires the dvh commands: model validation, script generation,
// applying scripts to PostgreSQL and the HTTP server.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dvh/internal/config"
	"dvh/internal/dsl"
	"dvh/internal/generate"
	"dvh/internal/logging"
	"dvh/internal/templates"
	"dvh/internal/validate"
)

// Build information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type app struct {
	configPath string
	cfg        config.Config
	log        *zap.Logger
	out, errw  io.Writer
}

// NewRootCmd builds the command tree writing to out and errw.
func NewRootCmd(out, errw io.Writer) *cobra.Command {
	a := &app{out: out, errw: errw, log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "dvh",
		Short: "Data Vault DDL/DML generator",
		Long: `dvh expands SQL templates over a Data Vault model (hubs, links,
satellites and satellite-links) to create, drop and load its tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(errw)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./dvh.yaml when present)")
	pf.String("model", "model", "model file or directory")
	pf.String("templates", "templates", "template file or directory")
	pf.String("db", "", "PostgreSQL URL for apply and load")
	pf.Int("workers", 4, "entities expanded concurrently")
	pf.String("log-level", "info", "debug|info|warn|error")
	pf.Bool("log-development", false, "human-readable logs")

	root.AddCommand(
		a.validateCmd(),
		a.ddlCmd(),
		a.dmlCmd(),
		a.applyCmd(),
		a.loadCmd(),
		a.serveCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the root command on the process streams.
func Execute() int {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

// generator loads the configured model and templates and prepares them.
// The structural report is returned for printing even on failure.
func (a *app) generator() (*generate.Generator, validate.Report, error) {
	m, err := dsl.LoadAllModels(a.cfg.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	c, err := templates.Load(a.cfg.TemplatesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}
	a.log.Debug("model loaded",
		zap.String("model", a.cfg.ModelPath),
		zap.Int("entities", len(m.Entities)),
		zap.Int("templates", c.Len()))

	g := generate.New(m, c, generate.WithLogger(a.log), generate.WithWorkers(a.cfg.Workers))
	rep, err := g.Prepare()
	return g, rep, err
}
