package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/svtree"
	"github.com/jward/svtree/internal/runtime"
)

var (
	flagForce     bool
	flagLanguages string
	flagWorkers   int
	flagSerial    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory of JavaScript and TypeScript sources",
	Long:  "Transforms every supported file under path and writes nodes, globals and scopes to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a directory and keep the index current as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	for _, cmd := range []*cobra.Command{indexCmd, watchCmd} {
		cmd.Flags().BoolVar(&flagForce, "force", false, "re-index files even when unchanged")
		cmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. javascript,tsx)")
		cmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel workers (default: number of CPUs)")
		cmd.Flags().BoolVar(&flagSerial, "serial", false, "index one file at a time")
		cmd.Flags().BoolVar(&flagExtended, "extended", false, "also map call, member and assignment expressions")
	}
}

// indexOptions builds Engine options from the index flags.
func indexOptions() []svtree.Option {
	opts := []svtree.Option{
		svtree.WithForce(flagForce),
		svtree.WithWorkers(flagWorkers),
		svtree.WithParallel(!flagSerial),
		svtree.WithExtended(flagExtended),
	}
	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		opts = append(opts, svtree.WithLanguages(langs...))
	}
	return opts
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	e, dbPath, err := openEngine(engineConfig{repoDir: targetDir}, indexOptions()...)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	indexErr := e.IndexDirectory(ctx, targetDir)

	files, err := e.Files()
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Indexed %s in %s (%d files)\n",
		targetDir, time.Since(start).Round(time.Millisecond), len(files))
	fmt.Fprintf(stderr, "Database: %s\n", dbPath)

	if indexErr != nil {
		return fmt.Errorf("indexing: %w", indexErr)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	e, dbPath, err := openEngine(engineConfig{repoDir: targetDir}, indexOptions()...)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	if err := e.IndexDirectory(ctx, targetDir); err != nil {
		fmt.Fprintf(stderr, "Initial index: %s\n", err)
	}
	fmt.Fprintf(stderr, "Watching %s (database: %s)\n", targetDir, dbPath)

	logger, err := newLogger(zapcore.InfoLevel)
	if err != nil {
		return err
	}
	w, err := newWatcher(e, targetDir, logger.Named("watch"))
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// debounce is how long the watcher waits for a burst of events to settle
// before re-indexing.
const debounce = 150 * time.Millisecond

// watcher re-indexes source files under a directory tree as they change.
type watcher struct {
	engine *svtree.Engine
	fsw    *fsnotify.Watcher
	logger *zap.Logger

	// indexed is called after each batch; tests hook it.
	indexed func(changed, removed []string)
}

func newWatcher(e *svtree.Engine, root string, logger *zap.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &watcher{engine: e, fsw: fsw, logger: logger}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *watcher) Close() error { return w.fsw.Close() }

// addTree watches root and every directory below it that indexing would
// visit.
func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipWatchDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func skipWatchDir(name string) bool {
	switch name {
	case "node_modules", "bower_components", "dist", "coverage":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Run processes events until ctx is done. Writes and creates of supported
// files are re-indexed; removes and renames drop the file from the index.
func (w *watcher) Run(ctx context.Context) error {
	changed := map[string]bool{}
	removed := map[string]bool{}
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !skipWatchDir(filepath.Base(ev.Name)) {
						if err := w.addTree(ev.Name); err != nil {
							w.logger.Warn("watch dir failed", zap.String("path", ev.Name), zap.Error(err))
						}
					}
					continue
				}
			}
			if _, ok := runtime.LanguageForFile(ev.Name); !ok {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				removed[ev.Name] = true
				delete(changed, ev.Name)
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				changed[ev.Name] = true
				delete(removed, ev.Name)
			default:
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx, keys(changed), keys(removed))
			changed = map[string]bool{}
			removed = map[string]bool{}
		}
	}
}

func (w *watcher) flush(ctx context.Context, changed, removed []string) {
	for _, path := range removed {
		if err := w.engine.RemoveFile(path); err != nil {
			fmt.Fprintf(stderr, "remove %s: %s\n", path, err)
		}
	}
	if len(changed) > 0 {
		if err := w.engine.IndexFiles(ctx, changed); err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}
	if len(changed)+len(removed) > 0 {
		fmt.Fprintf(stderr, "Updated %d file(s), removed %d\n", len(changed), len(removed))
	}
	if w.indexed != nil {
		w.indexed(changed, removed)
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
