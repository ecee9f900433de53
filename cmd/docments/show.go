package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/docments"
)

var (
	flagFull          bool
	flagNoReturn      bool
	flagEvalStr       bool
	flagBlankComments bool
)

var showCmd = &cobra.Command{
	Use:   "show <file.py> <qualname>",
	Short: "Print the docments of a callable",
	Long: "Parses the file and the rest of its repository, so that delegation targets in other " +
		"modules resolve, and prints the parameter documentation of the named callable " +
		"(\"f\", \"Widget\" or \"Widget.resize\").",
	Args: cobra.ExactArgs(2),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&flagFull, "full", false, "include annotations and defaults")
	showCmd.Flags().BoolVar(&flagNoReturn, "no-return", false, "omit the return entry")
	showCmd.Flags().BoolVar(&flagEvalStr, "eval-str", false, "unquote string annotations")
	showCmd.Flags().BoolVar(&flagBlankComments, "blank-comments", false, "keep bare # comments as empty docs")
}

var listCmd = &cobra.Command{
	Use:   "list <file.py>",
	Short: "List the callables defined in a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runShow(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("full") {
		cfg.Extract.Full = flagFull
	}
	if flags.Changed("no-return") {
		cfg.Extract.Returns = !flagNoReturn
	}
	if flags.Changed("eval-str") {
		cfg.Extract.EvalStr = flagEvalStr
	}
	if flags.Changed("blank-comments") {
		cfg.Extract.BlankComments = flagBlankComments
	}

	ctx := context.Background()
	mod, err := loadModule(ctx, args[0])
	if err != nil {
		return outputError("show", err)
	}
	c, err := mod.Lookup(args[1])
	if err != nil {
		return outputError("show", err)
	}
	res, err := docments.Docments(ctx, c, extractOptions()...)
	if err != nil {
		return outputError("show", err)
	}

	if cfg.Format == "text" {
		formatResultText(os.Stdout, res, "")
		return nil
	}
	return writeJSON(os.Stdout, res)
}

func runList(cmd *cobra.Command, args []string) error {
	mod, err := loadModule(context.Background(), args[0])
	if err != nil {
		return outputError("list", err)
	}

	var out []CLICallable
	for _, c := range mod.Callables() {
		cc := CLICallable{
			Module:    mod.Name,
			Qualname:  c.Name(),
			Kind:      string(c.Kind()),
			File:      mod.Path,
			StartLine: c.Line(),
		}
		if t, ok := docments.DelegationTarget(c); ok {
			cc.DelegatesTo = t.Module().Name + ":" + t.Name()
		}
		out = append(out, cc)
	}

	n := len(out)
	return outputResult(CLIResult{
		Command:    "list",
		Results:    out,
		TotalCount: &n,
	})
}

// loadModule parses every Python file of the repository containing file and
// returns the module for file.
func loadModule(ctx context.Context, file string) (*docments.Module, error) {
	path, err := resolveFilePath(file)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	root := findRepoRoot(filepath.Dir(path))

	ws, err := docments.LoadDir(ctx, root)
	if err != nil {
		return nil, err
	}
	name := docments.ModuleName(root, path)
	if mod := ws.Module(name); mod != nil && mod.Path == path {
		return mod, nil
	}
	// Outside the walked tree, for example in a skipped directory.
	return ws.LoadFile(ctx, root, path)
}
