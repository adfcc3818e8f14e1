package svtree

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/runtime"
	"github.com/jward/svtree/internal/scope"
	"github.com/jward/svtree/internal/store"
	"github.com/jward/svtree/internal/transform"
)

// nodeSetKey records which node mappings built the index. Switching
// between core and extended invalidates every stored file.
const nodeSetKey = "node_set"

// Engine indexes source files into SQLite and answers queries over the
// index: file discovery, change detection, transformation and scripting.
type Engine struct {
	store      *store.Store
	runtime    *runtime.Runtime
	logger     *zap.Logger
	scriptsDir string
	scriptsFS  fs.FS
	languages  map[string]bool // nil means all languages

	extended   bool
	transforms []transform.Option

	useParallel bool
	workers     int
	force       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel indexing. When true (default), IndexFiles
// transforms files on a worker pool and a single goroutine commits their
// batches to SQLite.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the parallel worker pool. Zero or less means one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExtended indexes call, member and assignment expressions as well.
func WithExtended(extended bool) Option {
	return func(e *Engine) {
		e.extended = extended
	}
}

// WithTransformOptions passes extra options to every transformation
// session, e.g. custom handlers.
func WithTransformOptions(opts ...TransformOption) Option {
	return func(e *Engine) {
		e.transforms = append(e.transforms, opts...)
	}
}

// WithForce re-indexes files even when their content hash is unchanged.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithScriptsDir sets the directory RunScript resolves relative script
// paths and imports against.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads scripts from fsys instead of disk, e.g. an embed.FS.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      zap.NewNop(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("svtree: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("svtree: migrate: %w", err)
	}
	e.store = s

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger.Named("script"))}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(s, e.scriptsDir, rtOpts...)

	if stored, err := s.GetMetadata(nodeSetKey); err == nil && stored != "" && stored != e.nodeSet() {
		e.logger.Info("node set changed, re-indexing all files",
			zap.String("stored", stored), zap.String("configured", e.nodeSet()))
		e.force = true
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

func (e *Engine) nodeSet() string {
	if e.extended {
		return "extended"
	}
	return "core"
}

// transformOptions returns the options for one session.
func (e *Engine) transformOptions() []transform.Option {
	opts := make([]transform.Option, 0, len(e.transforms)+1)
	if e.extended {
		opts = append(opts, transform.Extended())
	}
	return append(opts, e.transforms...)
}

// Analyze runs the Engine's transformation over src without touching the
// index.
func (e *Engine) Analyze(ctx context.Context, src []byte, lang string) (*Analysis, error) {
	return Analyze(ctx, src, lang, e.transformOptions()...)
}

// IndexFiles indexes the given file paths. For each file:
//  1. Detect language from extension, skipping unsupported or filtered ones
//  2. Skip unchanged files (same content hash) unless forced
//  3. Parse, analyze scopes and transform
//  4. Replace the file's nodes, globals, scopes and bindings
//
// Errors on individual files are logged and skipped; processing continues
// and the first error is returned with the total count.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	var err error
	if e.useParallel {
		err = e.indexFilesParallel(ctx, paths)
	} else {
		err = e.indexFilesSerial(ctx, paths)
	}
	if err == nil {
		if serr := e.store.SetMetadata(nodeSetKey, e.nodeSet()); serr != nil {
			return fmt.Errorf("svtree: record node set: %w", serr)
		}
	}
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) error {
	var errs []error
	indexed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := e.indexFile(ctx, path)
		if err != nil {
			e.logger.Warn("index failed", zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if ok {
			indexed++
		}
	}
	e.logger.Info("indexing done", zap.Int("files", len(paths)), zap.Int("indexed", indexed), zap.Int("errors", len(errs)))
	return joinIndexErrors(errs)
}

func joinIndexErrors(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// indexFile reports whether the file was (re)indexed.
func (e *Engine) indexFile(ctx context.Context, path string) (bool, error) {
	item, skip, err := e.prepareFile(path)
	if err != nil || skip {
		return false, err
	}
	a, batch, err := e.transformFile(ctx, item)
	if err != nil {
		e.discard(item)
		return false, err
	}
	if err := e.store.CommitBatch(batch); err != nil {
		e.discard(item)
		return false, fmt.Errorf("commit: %w", err)
	}
	e.logger.Debug("indexed", zap.String("path", path), zap.Int("nodes", len(a.Nodes)), zap.Int("globals", len(a.Globals)))
	return true, nil
}

// transformFile analyzes one prepared file into a batch that is not yet
// committed. It touches no shared state and runs on any goroutine.
func (e *Engine) transformFile(ctx context.Context, item workItem) (*Analysis, *store.BatchedStore, error) {
	a, err := e.Analyze(ctx, item.content, item.lang)
	if err != nil {
		return nil, nil, err
	}
	batch := store.NewBatchedStore(e.store)
	if err := writeAnalysis(batch, item.fileID, a); err != nil {
		return nil, nil, err
	}
	return a, batch, nil
}

// discard drops the file record of a failed file so the next run retries it.
func (e *Engine) discard(item workItem) {
	if err := e.store.DeleteFile(item.fileID); err != nil {
		e.logger.Warn("discard failed file", zap.String("path", item.path), zap.Error(err))
	}
}

// workItem holds everything needed to transform one file.
type workItem struct {
	path    string
	lang    string
	content []byte
	fileID  int64
}

// prepareFile does the serial part of indexing one file: language and hash
// checks, removal of stale rows and a fresh file record. skip=true means
// the file is unsupported, filtered or unchanged.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[lang] {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !e.force {
		e.logger.Debug("unchanged", zap.String("path", path))
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Language:    lang,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, lang: lang, content: content, fileID: fileID}, false, nil
}

// writeAnalysis stores an analysis through ds. Scope parents are written
// before their children, so arena IDs map to row IDs as they are inserted.
func writeAnalysis(ds store.DataStore, fileID int64, a *Analysis) error {
	for i, n := range a.Nodes {
		body, err := node.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode node %d: %w", i, err)
		}
		if _, err := ds.InsertNode(&store.NodeRecord{
			FileID: fileID, Ordinal: i, Type: string(n.Type()), Body: string(body),
		}); err != nil {
			return fmt.Errorf("insert node %d: %w", i, err)
		}
	}

	for _, name := range a.Globals {
		if _, err := ds.InsertGlobal(&store.Global{FileID: fileID, Name: name}); err != nil {
			return fmt.Errorf("insert global %q: %w", name, err)
		}
	}

	rowIDs := make(map[int]int64, a.Arena.Len())
	var werr error
	a.Arena.Walk(func(sc *scope.Scope) {
		if werr != nil {
			return
		}
		span := a.Spans[sc.ID()]
		rec := &store.Scope{
			FileID:    fileID,
			Ordinal:   int(sc.ID()),
			Kind:      string(sc.Kind()),
			StartLine: span.StartLine + 1,
			StartCol:  span.StartCol,
			EndLine:   span.EndLine + 1,
			EndCol:    span.EndCol,
		}
		if parent, ok := rowIDs[int(sc.Parent())]; ok {
			rec.ParentScopeID = &parent
		}
		id, err := ds.InsertScope(rec)
		if err != nil {
			werr = fmt.Errorf("insert scope %d: %w", sc.ID(), err)
			return
		}
		rowIDs[int(sc.ID())] = id

		for _, b := range sc.Bindings() {
			if _, err := ds.InsertBinding(&store.Binding{
				ScopeID: id, Ordinal: b.ID, Name: b.Name, Kind: string(b.Kind), Constant: b.Constant,
			}); err != nil {
				werr = fmt.Errorf("insert binding %q: %w", b.Name, err)
				return
			}
		}
	})
	return werr
}

// skipDirs are excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules":     true,
	"bower_components": true,
	"dist":             true,
	"coverage":         true,
}

// IndexDirectory indexes every supported file under root. Inside a git
// repository it uses git ls-files to respect .gitignore; otherwise it walks
// the filesystem, skipping hidden and dependency directories.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	paths, err := ListSourceFiles(root)
	if err != nil {
		return err
	}
	e.logger.Debug("discovered files", zap.String("root", root), zap.Int("files", len(paths)))
	return e.IndexFiles(ctx, paths)
}

// ListSourceFiles returns the supported source files under root.
func ListSourceFiles(root string) ([]string, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		return walkListFiles(root)
	}
	return paths, nil
}

// gitListFiles lists tracked and untracked, not ignored, files under root.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := runtime.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := runtime.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// RemoveFile drops a file and everything indexed for it. Removing a file
// that was never indexed is not an error.
func (e *Engine) RemoveFile(path string) error {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("svtree: lookup %s: %w", path, err)
	}
	if f == nil {
		return nil
	}
	if err := e.store.DeleteFile(f.ID); err != nil {
		return fmt.Errorf("svtree: remove %s: %w", path, err)
	}
	e.logger.Debug("removed", zap.String("path", path))
	return nil
}

func (e *Engine) indexedFile(path string) (*store.File, error) {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("svtree: lookup %s: %w", path, err)
	}
	if f == nil {
		return nil, fmt.Errorf("svtree: %s is not indexed", path)
	}
	return f, nil
}

// Nodes returns the stored SV nodes of an indexed file in source order.
func (e *Engine) Nodes(path string) ([]Node, error) {
	f, err := e.indexedFile(path)
	if err != nil {
		return nil, err
	}
	records, err := e.store.NodesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("svtree: nodes of %s: %w", path, err)
	}
	nodes := make([]Node, 0, len(records))
	for _, rec := range records {
		n, err := node.Decode([]byte(rec.Body))
		if err != nil {
			return nil, fmt.Errorf("svtree: decode node %d of %s: %w", rec.Ordinal, path, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Globals returns the global names of an indexed file, sorted.
func (e *Engine) Globals(path string) ([]string, error) {
	f, err := e.indexedFile(path)
	if err != nil {
		return nil, err
	}
	globals, err := e.store.GlobalsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("svtree: globals of %s: %w", path, err)
	}
	names := make([]string, 0, len(globals))
	for _, g := range globals {
		names = append(names, g.Name)
	}
	return names, nil
}

// GlobalNames returns every global name in the index with the number of
// files using it, most used first.
func (e *Engine) GlobalNames() ([]GlobalCount, error) {
	return e.store.GlobalNames()
}

// FilesUsingGlobal returns the indexed files in which name is global.
func (e *Engine) FilesUsingGlobal(name string) ([]*File, error) {
	return e.store.FilesWithGlobal(name)
}

// FilesSharingGlobals returns the other indexed files that use at least one
// global name of path.
func (e *Engine) FilesSharingGlobals(path string) ([]*File, error) {
	f, err := e.indexedFile(path)
	if err != nil {
		return nil, err
	}
	ids, err := e.store.FilesSharingGlobals(f.ID)
	if err != nil {
		return nil, err
	}
	return e.store.FilesByIDs(ids)
}

// Scopes returns the stored scopes of an indexed file ordered by their
// arena ID; the first one is the program scope.
func (e *Engine) Scopes(path string) ([]*Scope, error) {
	f, err := e.indexedFile(path)
	if err != nil {
		return nil, err
	}
	return e.store.ScopesByFile(f.ID)
}

// Bindings returns the bindings declared directly in a stored scope.
func (e *Engine) Bindings(scopeID int64) ([]*Binding, error) {
	return e.store.BindingsByScope(scopeID)
}

// Files returns every indexed file ordered by path.
func (e *Engine) Files() ([]*File, error) {
	return e.store.Files()
}

// RunScript runs a Risor script against the index. Besides the runtime's
// standard globals the script gets transform(src[, lang]) and
// globals_of(src[, lang]), bound to the Engine's transform options, plus
// any caller extras.
func (e *Engine) RunScript(ctx context.Context, path string, extras map[string]any) error {
	return e.runtime.RunScript(ctx, path, e.scriptGlobals(extras))
}

// RunSource is RunScript for inline source.
func (e *Engine) RunSource(ctx context.Context, source string, extras map[string]any) error {
	return e.runtime.RunSource(ctx, source, e.scriptGlobals(extras))
}

func (e *Engine) scriptGlobals(extras map[string]any) map[string]any {
	globals := map[string]any{
		"transform":  e.makeAnalyzeFn("transform", func(a *Analysis) object.Object { return runtime.NodesToObject(a.Nodes) }),
		"globals_of": e.makeAnalyzeFn("globals_of", func(a *Analysis) object.Object { return runtime.ToObject(a.Globals) }),
	}
	for k, v := range extras {
		globals[k] = v
	}
	return globals
}

// makeAnalyzeFn builds a script function fn(src[, lang]) that analyzes src
// (JavaScript by default) and converts the result with conv.
func (e *Engine) makeAnalyzeFn(name string, conv func(*Analysis) object.Object) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError(name, 1, 2, len(args))
		}
		src, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("%s: source must be a string, got %s", name, args[0].Type())
		}
		lang := "javascript"
		if len(args) == 2 {
			l, ok := args[1].(*object.String)
			if !ok {
				return object.Errorf("%s: language must be a string, got %s", name, args[1].Type())
			}
			lang = l.Value()
		}
		a, err := e.Analyze(ctx, []byte(src.Value()), lang)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return conv(a)
	})
}
