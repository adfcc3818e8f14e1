package svtree

import (
	"context"
	"fmt"
	goruntime "runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jward/svtree/internal/store"
)

// result is what a worker hands to the committer for one file.
type result struct {
	item  workItem
	batch *store.BatchedStore
	nodes int
	err   error
}

// indexFilesParallel indexes files in three phases:
//
//	Phase A (serial):   hash check, delete old data, prepare file records.
//	Phase B (parallel): parse, analyze and transform on a worker pool, each
//	                    file in its own session and BatchedStore.
//	Phase C (serial):   commit batches to SQLite as they arrive.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) error {
	var errs []error

	// ---- Phase A ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			e.logger.Warn("prepare failed", zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if !skip {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return joinIndexErrors(errs)
	}

	// ---- Phase B ----
	workers := e.workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	workers = min(workers, len(items))

	results := make(chan result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	go func() {
		for _, item := range items {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				a, batch, err := e.transformFile(gctx, item)
				r := result{item: item, batch: batch, err: err}
				if a != nil {
					r.nodes = len(a.Nodes)
				}
				results <- r
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	// ---- Phase C ----
	committed := make(map[int64]bool, len(items))
	for res := range results {
		if res.err != nil {
			e.discard(res.item)
			e.logger.Warn("index failed", zap.String("path", res.item.path), zap.Error(res.err))
			errs = append(errs, fmt.Errorf("index %s: %w", res.item.path, res.err))
			continue
		}
		if err := e.store.CommitBatch(res.batch); err != nil {
			e.discard(res.item)
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
			continue
		}
		committed[res.item.fileID] = true
		e.logger.Debug("indexed", zap.String("path", res.item.path), zap.Int("nodes", res.nodes))
	}

	// Files never handed to a worker after cancellation keep no record.
	if err := ctx.Err(); err != nil {
		for _, item := range items {
			if !committed[item.fileID] {
				e.discard(item)
			}
		}
		return err
	}

	e.logger.Info("indexing done",
		zap.Int("files", len(paths)), zap.Int("indexed", len(committed)),
		zap.Int("workers", workers), zap.Int("errors", len(errs)))
	return joinIndexErrors(errs)
}
