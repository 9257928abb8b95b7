package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dvh/internal/api"
	"dvh/internal/generate"
	"dvh/internal/pg"
	"dvh/internal/validate"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the model structure, source mappings and identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, rep, err := a.generator()
			if g == nil {
				return err
			}
			printReport(a.errw, "structural violations", rep, errColor)
			if errors.Is(err, generate.ErrValidation) {
				return err
			}
			printReport(a.errw, "source mapping violations", validate.Sources(g.Model()), warnColor)
			printIssues(a.errw, pg.CheckIdentifiers(g.Model()))
			if err != nil {
				return err
			}
			printOK(a.errw, "model is valid: %d entities", len(g.Model().Entities))
			return nil
		},
	}
}

// prepared returns a generator whose structural validation passed. Setup
// failures of single entities are only logged here: generation reports them.
func (a *app) prepared() (*generate.Generator, error) {
	g, rep, err := a.generator()
	if g == nil {
		return nil, err
	}
	if errors.Is(err, generate.ErrValidation) {
		printReport(a.errw, "structural violations", rep, errColor)
		return nil, err
	}
	if err != nil {
		a.log.Warn("some entities cannot be generated", zap.Error(err))
	}
	return g, nil
}

func (a *app) scripts(kind string, names []string) ([]generate.Script, error) {
	g, err := a.prepared()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "drop":
		return g.Drop(names...)
	case "dml":
		scripts, rep, err := g.DML(names...)
		printReport(a.errw, "source mapping violations", rep, errColor)
		return scripts, err
	}
	return g.DDL(names...)
}

func (a *app) ddlCmd() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "ddl [entity...]",
		Short: "Print create (or drop) scripts in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "ddl"
			if drop {
				kind = "drop"
			}
			scripts, err := a.scripts(kind, args)
			printScripts(a.out, scripts)
			return err
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "print drop scripts, dependents first")
	return cmd
}

func (a *app) dmlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dml [entity...]",
		Short: "Print load scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			scripts, err := a.scripts("dml", args)
			printScripts(a.out, scripts)
			return err
		},
	}
}

// execute generates and applies. Nothing runs when any entity failed to
// generate: a partial schema is worse than none.
func (a *app) execute(ctx context.Context, kind string, names []string) error {
	if a.cfg.DBURL == "" {
		return errors.New("no database: set --db or DVH_DB_URL")
	}
	scripts, err := a.scripts(kind, names)
	if err != nil {
		return err
	}
	db, err := pg.Open(ctx, a.cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	res, err := pg.NewApplier(db, a.log).Apply(ctx, scripts)
	if err != nil {
		return err
	}
	printOK(a.errw, "%s: %d statement(s) applied, %d skipped", kind, res.Applied, res.Skipped)
	return nil
}

func (a *app) applyCmd() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "apply [entity...]",
		Short: "Create (or drop) the vault tables in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "ddl"
			if drop {
				kind = "drop"
			}
			return a.execute(cmd.Context(), kind, args)
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop instead of create")
	return cmd
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [entity...]",
		Short: "Run the load scripts against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), "dml", args)
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the generator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage := api.NewStorage(a.log)
			storage.Workers = a.cfg.Workers
			if rep, err := storage.Load(a.cfg.ModelPath, a.cfg.TemplatesPath); err != nil {
				printReport(a.errw, "structural violations", rep, errColor)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return api.RunServer(ctx, a.cfg.Addr(), storage, a.log)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dvh version: %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	}
}
