package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/sidebar"
	"github.com/ChicagoDave/popglobe/pkg/validation"
)

func printValidationReport(w io.Writer, r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			printResult(w, e)
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "WARNINGS (%d):\n", len(r.Warnings))
		for _, wr := range r.Warnings {
			printResult(w, wr)
		}
		fmt.Fprintln(w)
	}

	if len(r.Info) > 0 {
		fmt.Fprintf(w, "INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Fprintf(w, "  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Fprintln(w)
	}

	if r.Valid {
		fmt.Fprintf(w, "Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Fprintf(w, "Result: INVALID (%s)\n", r.Summary)
	}
}

// printErrorAt prints the error recorded at path and reports whether there
// was one.
func printErrorAt(w io.Writer, r *validation.Report, path string) bool {
	e, ok := r.ErrorAt(path)
	if !ok {
		fmt.Fprintf(w, "No error at %s.\n", path)
		return false
	}
	printResult(w, e)
	return true
}

func printResult(w io.Writer, e validation.Result) {
	fmt.Fprintf(w, "  [%s] %s\n", e.Level, e.Message)
	if e.Path != "" {
		fmt.Fprintf(w, "    -> %s = %v\n", e.Path, e.ActualValue)
	}
	if e.Expected != "" {
		fmt.Fprintf(w, "    expected: %s\n", e.Expected)
	}
	if e.ConflictWith != "" {
		fmt.Fprintf(w, "    conflicts with: %s\n", e.ConflictWith)
	}
	for _, s := range e.Suggestions {
		fmt.Fprintf(w, "    * %s\n", s)
	}
}

func printList(w io.Writer, items []sidebar.Item, worldPopulation int64) {
	fmt.Fprintf(w, "%-40s %12s %8s %8s\n", "Name", "Population", "World", "Tier")
	fmt.Fprintf(w, "%-40s %12s %8s %8s\n",
		"----------------------------------------", "------------", "--------", "--------")

	for _, it := range items {
		p := hierarchy.PlaceOf(it.Entity)
		name := strings.Repeat("  ", it.Depth) + p.Name
		fmt.Fprintf(w, "%-40s %12s %8s %8s\n",
			truncate(name, 40),
			palette.Format(p.Population),
			formatShare(p.Population, worldPopulation),
			palette.TierFor(p.Population).Label)
	}
}

func printNoMatches(w io.Writer, query string, suggestions []string) {
	fmt.Fprintf(w, "No matches for %q.\n", query)
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}

func formatShare(population, world int64) string {
	if world <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", float64(population)/float64(world)*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
