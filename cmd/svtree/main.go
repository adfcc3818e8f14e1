package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/svtree"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// stdout and stderr receive command output. Tests swap them for buffers.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "svtree",
	Short:         "Scope-aware JavaScript and TypeScript tree transformation",
	Long:          "svtree converts JavaScript and TypeScript sources into SV nodes, tags global identifiers and indexes the results in a SQLite database.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .svtree/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(globalsCmd)
	rootCmd.AddCommand(scopesCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(replCmd)
}

// newLogger builds the console logger. Under --verbose everything from
// debug up is shown; otherwise only entries at level or above.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	if flagVerbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = !flagVerbose
	return cfg.Build()
}

// engineConfig says how openEngine should treat the database.
type engineConfig struct {
	repoDir   string // where to start looking for .git
	mustExist bool
	logLevel  zapcore.Level
}

// openEngine opens the Engine on the resolved database path, creating the
// .svtree/ directory when needed.
func openEngine(cfg engineConfig, opts ...svtree.Option) (*svtree.Engine, string, error) {
	dir := cfg.repoDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting cwd: %w", err)
		}
		dir = cwd
	}
	dbPath := resolveDBPath(findRepoRoot(dir))

	if cfg.mustExist {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, "", fmt.Errorf("database not found: %s (run 'svtree index' first)", dbPath)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		return nil, "", fmt.Errorf("creating logger: %w", err)
	}
	opts = append([]svtree.Option{svtree.WithLogger(logger)}, opts...)

	e, err := svtree.New(dbPath, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("creating engine: %w", err)
	}
	return e, dbPath, nil
}

// resolveTargetDir returns the absolute path of the directory to work on.
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
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".svtree", "index.db")
}
