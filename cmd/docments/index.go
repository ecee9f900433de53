package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/docments"
)

var (
	flagForce   bool
	flagWorkers int
	flagExclude []string
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index the docments of every Python file under a directory",
	Long: "Extracts full docments for every callable into the SQLite index. Files whose " +
		"content hash is unchanged are skipped; files importing a changed module are re-extracted.",
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-extract every file even if unchanged")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "files extracted concurrently (default: config or one per CPU)")
	indexCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "glob patterns of paths to skip (adds to config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}

	workers := cfg.Index.Workers
	if cmd.Flags().Changed("workers") {
		workers = flagWorkers
	}
	exclude := append(append([]string(nil), cfg.Index.Exclude...), flagExclude...)

	engine, dbPath, err := openEngine(targetDir,
		docments.WithWorkers(workers),
		docments.WithExclude(exclude...),
		docments.WithForce(flagForce),
		docments.WithExtractOptions(
			docments.WithEvalStr(cfg.Extract.EvalStr),
			docments.WithBlankComments(cfg.Extract.BlankComments),
		),
	)
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	stats, err := engine.IndexDirectory(context.Background(), targetDir)
	if err != nil {
		return outputError("index", fmt.Errorf("indexing: %w", err))
	}

	return outputResult(CLIResult{
		Command: "index",
		Results: CLIIndexStats{
			Root:      targetDir,
			Database:  dbPath,
			Files:     stats.Files,
			Extracted: stats.Extracted,
			Unchanged: stats.Unchanged,
			Removed:   stats.Removed,
			Callables: stats.Callables,
			Failed:    stats.Failed,
			Changed:   stats.Changed,
			Duration:  time.Since(start).Round(time.Millisecond).String(),
		},
	})
}
