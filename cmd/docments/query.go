package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/docments"
)

var (
	flagLimit         int
	flagOffset        int
	flagModule        string
	flagModulePrefix  string
	flagKinds         []string
	flagIncludeReturn bool
	flagQueryFull     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the docments index",
	Long:  "Run queries against an indexed source tree. Line numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	getCmd.Flags().StringVar(&flagModule, "module", "", "only the callable in this module")
	getCmd.Flags().BoolVar(&flagQueryFull, "full", false, "include annotations and defaults")
	for _, c := range []*cobra.Command{searchCmd, undocumentedCmd, coverageCmd} {
		c.Flags().StringVar(&flagModulePrefix, "module-prefix", "", "restrict to a module and its submodules")
		c.Flags().StringSliceVar(&flagKinds, "kind", nil, "callable kinds: function|method|class|record")
	}
	undocumentedCmd.Flags().BoolVar(&flagIncludeReturn, "include-return", false, "report undocumented return values too")

	queryCmd.AddCommand(getCmd)
	queryCmd.AddCommand(callablesCmd)
	queryCmd.AddCommand(delegatorsCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(undocumentedCmd)
	queryCmd.AddCommand(coverageCmd)
	queryCmd.AddCommand(filesCmd)
}

// --- Helpers ---

// buildPagination creates a Pagination from CLI flags.
func buildPagination() docments.Pagination {
	return docments.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildFilter creates a ParamFilter from CLI flags.
func buildFilter() docments.ParamFilter {
	return docments.ParamFilter{
		Kinds:         flagKinds,
		ModulePrefix:  flagModulePrefix,
		IncludeReturn: flagIncludeReturn,
	}
}

// --- Lookups ---

var getCmd = &cobra.Command{
	Use:   "get <qualname>",
	Short: "Show the indexed docments of a callable",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("get", err)
	}
	defer e.Close()
	qb := e.Query()

	var entries []*docments.Entry
	if flagModule != "" {
		entry, err := qb.Docments(flagModule, args[0])
		if err != nil {
			return outputError("get", err)
		}
		entries = append(entries, entry)
	} else {
		entries, err = qb.Lookup(args[0])
		if err != nil {
			return outputError("get", err)
		}
		if len(entries) == 0 {
			return outputError("get", fmt.Errorf("%s: %w", args[0], docments.ErrNotFound))
		}
	}

	out := make([]CLIEntry, len(entries))
	for i, entry := range entries {
		out[i] = entryToCLI(entry, flagQueryFull)
	}
	n := len(out)
	return outputResult(CLIResult{
		Command:    "get",
		Results:    out,
		TotalCount: &n,
	})
}

var callablesCmd = &cobra.Command{
	Use:   "callables <file.py>",
	Short: "List the indexed callables of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallables,
}

func runCallables(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("callables", err)
	}
	defer e.Close()

	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("callables", err)
	}
	cs, err := e.Query().Callables(path)
	if err != nil {
		return outputError("callables", err)
	}

	out := make([]CLICallable, len(cs))
	for i, c := range cs {
		out[i] = callableToCLI(c, "", "")
	}
	n := len(out)
	return outputResult(CLIResult{
		Command:    "callables",
		Results:    out,
		TotalCount: &n,
	})
}

var delegatorsCmd = &cobra.Command{
	Use:   "delegators <module> <qualname>",
	Short: "List the callables that forward **kwargs to a callable",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelegators,
}

func runDelegators(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("delegators", err)
	}
	defer e.Close()

	cs, err := e.Query().Delegators(args[0], args[1])
	if err != nil {
		return outputError("delegators", err)
	}
	out := make([]CLICallable, len(cs))
	for i, c := range cs {
		out[i] = callableToCLI(c, "", "")
	}
	n := len(out)
	return outputResult(CLIResult{
		Command:    "delegators",
		Results:    out,
		TotalCount: &n,
	})
}

// --- Discovery ---

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find parameters whose documentation contains text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("search", err)
	}
	defer e.Close()

	res, err := e.Query().Search(args[0], buildFilter(), buildPagination())
	if err != nil {
		return outputError("search", err)
	}
	return outputMatches("search", res)
}

var undocumentedCmd = &cobra.Command{
	Use:   "undocumented",
	Short: "List parameters without documentation",
	Args:  cobra.NoArgs,
	RunE:  runUndocumented,
}

func runUndocumented(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("undocumented", err)
	}
	defer e.Close()

	res, err := e.Query().Undocumented(buildFilter(), buildPagination())
	if err != nil {
		return outputError("undocumented", err)
	}
	return outputMatches("undocumented", res)
}

func outputMatches(command string, res *docments.PagedResult[*docments.ParamMatch]) error {
	out := make([]CLIMatch, len(res.Items))
	for i, m := range res.Items {
		out[i] = matchToCLI(m)
	}
	return outputResult(CLIResult{
		Command:    command,
		Results:    out,
		TotalCount: &res.TotalCount,
	})
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Summarize documentation coverage",
	Args:  cobra.NoArgs,
	RunE:  runCoverage,
}

func runCoverage(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("coverage", err)
	}
	defer e.Close()

	cov, err := e.Query().Coverage(buildFilter())
	if err != nil {
		return outputError("coverage", err)
	}
	return outputResult(CLIResult{
		Command: "coverage",
		Results: CLICoverage{
			Callables:  cov.Callables,
			Failed:     cov.Failed,
			Params:     cov.Params,
			Documented: cov.Documented,
			Ratio:      cov.Ratio(),
		},
	})
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError("files", err)
	}
	defer e.Close()

	res, err := e.Query().Files(buildPagination())
	if err != nil {
		return outputError("files", err)
	}
	out := make([]CLIFile, len(res.Items))
	for i, f := range res.Items {
		out[i] = fileToCLI(f)
	}
	return outputResult(CLIResult{
		Command:    "files",
		Results:    out,
		TotalCount: &res.TotalCount,
	})
}
