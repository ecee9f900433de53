package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/runtime"
)

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor> [args...]",
	Short: "Run a Risor report script against the index",
	Long: "Runs a Risor script with the index query globals (docments, lookup, callables, " +
		"delegators, search, undocumented, coverage, db_query), live extraction (extract), " +
		"tree-sitter access (parse, parse_src, query, node_text, node_child) and log. " +
		"Extra arguments are available as the args list. The script's last value is printed.",
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("script", err)
	}

	// Without an index, only live extraction and tree-sitter globals exist.
	var q *docments.QueryBuilder
	opts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(logger)}
	if e, err := openIndexedEngine(); err == nil {
		defer e.Close()
		q = e.Query()
		opts = append(opts, runtime.WithStore(e.Store()))
	} else {
		logger.Debug("running script without index", "error", err)
	}

	// Imports resolve next to the script.
	rt := runtime.NewRuntime(q, filepath.Dir(path), opts...)

	scriptArgs := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		scriptArgs = append(scriptArgs, a)
	}
	cwd, _ := os.Getwd()
	val, err := rt.RunScript(context.Background(), path, map[string]any{
		"args": scriptArgs,
		"cwd":  cwd,
	})
	if err != nil {
		return outputError("script", err)
	}
	return outputResult(CLIResult{
		Command: "script",
		Results: val,
	})
}
