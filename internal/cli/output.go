package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/multierr"

	"dvh/internal/generate"
	"dvh/internal/pg"
	"dvh/internal/validate"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
	dimColor  = color.New(color.Faint)
)

func printError(w io.Writer, err error) {
	errs := multierr.Errors(err)
	if len(errs) <= 1 {
		errColor.Fprintf(w, "error: %v\n", err)
		return
	}
	errColor.Fprintf(w, "%d errors:\n", len(errs))
	for _, e := range errs {
		errColor.Fprintf(w, "  - %v\n", e)
	}
}

func printReport(w io.Writer, title string, r validate.Report, c *color.Color) {
	if len(r) == 0 {
		return
	}
	c.Fprintf(w, "%s (%d):\n", title, len(r))
	for _, v := range r {
		fmt.Fprintf(w, "  %s %s\n", c.Sprint("-"), v.Error())
	}
}

func printIssues(w io.Writer, issues []pg.Issue) {
	if len(issues) == 0 {
		return
	}
	warnColor.Fprintf(w, "identifier warnings (%d):\n", len(issues))
	for _, it := range issues {
		fmt.Fprintf(w, "  %s %s\n", warnColor.Sprint("-"), it.String())
	}
}

// printScripts writes the SQL to out, each script under a dimmed comment
// header.
func printScripts(out io.Writer, scripts []generate.Script) {
	for _, s := range scripts {
		fmt.Fprintln(out, dimColor.Sprintf("-- %s %s", s.Kind, s.Entity))
		for _, stmt := range s.Statements {
			fmt.Fprintln(out, stmt)
		}
	}
}

func printOK(w io.Writer, format string, args ...any) {
	okColor.Fprintf(w, format+"\n", args...)
}
