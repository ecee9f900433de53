package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/config"
)

var (
	flagConfig   string
	flagDB       string
	flagFormat   string
	flagLogLevel string
)

var (
	// cfg is the effective configuration, resolved before any command runs.
	cfg    *config.Config
	logger *slog.Logger
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docments",
	Short: "Parameter documentation from Python source comments",
	Long: "docments extracts per-parameter documentation from the comments next to Python " +
		"function, method, class and dataclass parameters, and keeps an SQLite index of it.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .docments/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: json|text (default: text)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: warn)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
}

// loadSettings merges the config file, environment and flags, then builds
// the logger.
func loadSettings(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDB != "" {
		c.DB = flagDB
	}
	if flagFormat != "" {
		c.Format = flagFormat
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
	if err := validateFormat(c.Format); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	level, err := c.SlogLevel()
	if err != nil {
		return err
	}

	cfg = c
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// extractOptions returns the docments options from config and any
// per-command overrides already applied to cfg.Extract.
func extractOptions() []docments.DocOption {
	return []docments.DocOption{
		docments.WithFull(cfg.Extract.Full),
		docments.WithReturns(cfg.Extract.Returns),
		docments.WithEvalStr(cfg.Extract.EvalStr),
		docments.WithBlankComments(cfg.Extract.BlankComments),
		docments.WithLogger(logger),
	}
}

// openEngine opens the index for the repository containing dir.
func openEngine(dir string, opts ...docments.EngineOption) (*docments.Engine, string, error) {
	dbPath := resolveDBPath(findRepoRoot(dir))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	opts = append([]docments.EngineOption{docments.WithEngineLogger(logger)}, opts...)
	e, err := docments.New(dbPath, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("opening index: %w", err)
	}
	return e, dbPath, nil
}

// openIndexedEngine opens an existing index for the repository containing
// the working directory.
func openIndexedEngine() (*docments.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'docments index' first)", dbPath)
	}
	return docments.New(dbPath, docments.WithEngineLogger(logger))
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the configured database path, relative paths being
// taken from repoRoot.
func resolveDBPath(repoRoot string) string {
	if filepath.IsAbs(cfg.DB) {
		return cfg.DB
	}
	return filepath.Join(repoRoot, cfg.DB)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
