package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/svtree/internal/store"
)

// Runtime embeds a Risor VM and exposes parsed trees, indexed SV nodes and
// the Store to user scripts.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	logger     *zap.Logger
	sources    *sourceStore
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and resolves imports from fsys instead of disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log object.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts directory.
// The store may be nil, in which case only the tree functions are available.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		logger:     zap.NewNop(),
		sources:    newSourceStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with the standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(label, extraGlobals)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", zap.String("script", label), zap.Int("globals", len(globals)))
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer for the Runtime's script source, or
// nil when neither an fs.FS nor a scripts directory is configured. Imported
// modules see the same global names as the main script.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}

	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source. Relative paths are
// resolved against the scripts directory, or inside the fs.FS when one is
// configured.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals exposed to a script. Caller extras
// win over built-ins of the same name.
func (r *Runtime) buildGlobals(label string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":         makeParseFn(r.sources),
		"parse_src":     makeParseSrcFn(r.sources),
		"node_text":     makeNodeTextFn(r.sources),
		"node_child":    makeNodeChildFn(),
		"node_children": makeNodeChildrenFn(),
		"node_range":    makeNodeRangeFn(),
		"query":         makeQueryFn(r.sources),
		"language_for":  makeLanguageForFn(),
		"log":           mustProxy(&logObject{logger: r.logger.With(zap.String("script", label))}),
	}

	if r.store != nil {
		globals["db"] = mustProxy(r.store)
		globals["files"] = makeFilesFn(r.store)
		globals["nodes_by_file"] = makeNodesByFileFn(r.store)
		globals["globals_by_file"] = makeGlobalsByFileFn(r.store)
		globals["files_with_global"] = makeFilesWithGlobalFn(r.store)
		globals["global_names"] = makeGlobalNamesFn(r.store)
		globals["scopes_by_file"] = makeScopesByFileFn(r.store)
		globals["bindings_by_scope"] = makeBindingsByScopeFn(r.store)
		globals["scope_chain"] = makeScopeChainFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject gives scripts log.Info/Warn/Error, forwarded to zap.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }
