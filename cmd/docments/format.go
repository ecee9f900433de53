package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jward/docments"
)

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if cfg.Format == "text" {
		return outputResultText(os.Stdout, result)
	}
	return writeJSON(os.Stdout, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if cfg == nil || cfg.Format == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	_ = writeJSON(os.Stdout, CLIResult{
		Command: command,
		Error:   err.Error(),
	})
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatResultText prints one docments mapping, one entry per line. Full
// results get aligned annotation and default columns.
func formatResultText(w io.Writer, res *docments.Result, indent string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if res.Full() {
		fmt.Fprintf(tw, "%sNAME\tANNO\tDEFAULT\tDOC\n", indent)
	}
	for _, p := range res.Params() {
		doc := "-"
		if p.Doc != nil {
			doc = *p.Doc
		}
		if res.Full() {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", indent, p.Name, exprText(p.Anno), exprText(p.Default), doc)
			continue
		}
		fmt.Fprintf(tw, "%s%s\t%s\n", indent, p.Name, doc)
	}
	tw.Flush()
}

func exprText(e docments.Expr) string {
	if e.IsEmpty() {
		return "-"
	}
	return string(e)
}

// formatEntriesText prints indexed callables with their docments.
func formatEntriesText(w io.Writer, entries []CLIEntry) {
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:%s (%s) %s:%d\n", e.Module, e.Qualname, e.Kind, e.File, e.StartLine)
		if e.DelegatesTo != "" {
			fmt.Fprintf(w, "  delegates to %s\n", e.DelegatesTo)
		}
		if e.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", e.Error)
			continue
		}
		formatResultText(w, e.Docments, "  ")
	}
}

// formatCallablesText formats CLICallable results as aligned columns.
func formatCallablesText(w io.Writer, cs []CLICallable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALNAME\tKIND\tLINE\tDELEGATES TO")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Qualname, c.Kind, c.StartLine, c.DelegatesTo)
	}
	tw.Flush()
}

// formatMatchesText formats CLIMatch results as aligned columns.
func formatMatchesText(w io.Writer, ms []CLIMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tQUALNAME\tPARAM\tDOC")
	for _, m := range ms {
		doc := "-"
		if m.Docment != nil {
			doc = *m.Docment
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Module, m.Qualname, m.Param, doc)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tMODULE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Module, f.LineCount)
	}
	tw.Flush()
}

func formatCoverageText(w io.Writer, c CLICoverage) {
	fmt.Fprintf(w, "Callables: %d (%d failed)\n", c.Callables, c.Failed)
	fmt.Fprintf(w, "Documented: %d of %d parameters (%.1f%%)\n", c.Documented, c.Params, c.Ratio*100)
}

func formatIndexStatsText(w io.Writer, s CLIIndexStats) {
	fmt.Fprintf(w, "Indexed %s in %s\n", s.Root, s.Duration)
	fmt.Fprintf(w, "Files: %d (%d extracted, %d unchanged, %d removed)\n", s.Files, s.Extracted, s.Unchanged, s.Removed)
	fmt.Fprintf(w, "Callables: %d (%d failed)\n", s.Callables, s.Failed)
	for _, c := range s.Changed {
		fmt.Fprintf(w, "  changed %s\n", c)
	}
	fmt.Fprintf(w, "Database: %s\n", s.Database)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case *docments.Result:
		formatResultText(w, v, "")
	case []CLIEntry:
		formatEntriesText(w, v)
	case []CLICallable:
		formatCallablesText(w, v)
	case []CLIMatch:
		formatMatchesText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLICoverage:
		formatCoverageText(w, v)
	case CLIIndexStats:
		formatIndexStatsText(w, v)
	case nil:
		// No output for nil results.
	default:
		// Script values have no fixed shape.
		return writeJSON(w, v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIEntry:
		return len(r)
	case []CLICallable:
		return len(r)
	case []CLIMatch:
		return len(r)
	case []CLIFile:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}
