// Package repository implements C8: the public façade tying together
// the object store (C1), commit-id index (C2), path patterns (C3),
// tree diffing (C6), staging (C7), the result cache (C9), and the watch
// subsystem (C10) behind a single-writer/multi-reader locking
// discipline.
package repository

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/commitindex"
	"github.com/cdogma/dogma-core/config"
	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/internal/dogmalog"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/resultcache"
	"github.com/cdogma/dogma-core/rolling"
	"github.com/cdogma/dogma-core/watch"
)

// Repository is a single versioned configuration repository: one
// reader-writer lock guarding one object store and one commit-id index,
// a result cache, and a watch map.
type Repository struct {
	name string
	dir  string

	compactor *rolling.Manager
	idx       *commitindex.Index

	cache    *resultcache.Cache[resultcache.Key, any]
	watchMap *watch.Map
	pool     *pond.WorkerPool
	cfg      config.RepositoryConfig

	mu     sync.RWMutex
	closed bool
}

// Open opens (initializing if absent) the repository rooted at dir.
// name identifies the repository in cache keys and logs; it need not
// match the directory name.
func Open(dir, name string, cfg config.RepositoryConfig) (*Repository, error) {
	compactor, err := rolling.NewManager(dir, cfg.RollingCommitThreshold)
	if err != nil {
		return nil, err
	}
	store := compactor.Store()

	idx, err := commitindex.Open(filepath.Join(dir, "commits.idx"))
	if err != nil {
		return nil, err
	}

	if idx.IsTruncated() {
		dogmalog.Get().Warn("commit-id index truncated, rebuilding from DAG", "repo", name)
		if err := rebuildIndex(store, idx, compactor.FirstRevision()); err != nil {
			return nil, err
		}
	}

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	r := &Repository{
		name:      name,
		dir:       dir,
		compactor: compactor,
		idx:       idx,
		cache:     resultcache.New[resultcache.Key, any](cfg.MaxCacheWeight),
		watchMap:  watch.NewMap(cfg.WatchMapCapacity),
		pool:      pond.New(workers, 0, pond.MinWorkers(1)),
		cfg:       cfg,
	}

	if _, ok := idx.Head(); !ok {
		if err := r.writeInitialCommit(); err != nil {
			return nil, err
		}
	}
	if err := store.EnsureSymbolicHEAD(); err != nil {
		return nil, err
	}
	return r, nil
}

// db returns the currently active physical object store. It is
// re-resolved on every call rather than cached on Repository because
// compaction (C11) can swap the active store out from under a
// long-lived façade.
func (r *Repository) db() *objectstore.Store {
	return r.compactor.Store()
}

// rebuildIndex walks the commit DAG backward from HEAD to reconstruct
// the revision->hash index. It stops at firstRevision, the oldest
// revision the active physical store actually retains: rolling
// compaction (C11) rewrites a commit's first surviving ancestor
// without rewriting its ParentHashes, so that parent hash is expected
// to be absent rather than a sign of corruption.
func rebuildIndex(store *objectstore.Store, idx *commitindex.Index, firstRevision int) error {
	headHash, ok, err := store.Head()
	if err != nil {
		return err
	}
	if !ok {
		return idx.Rebuild(nil)
	}

	var records []commitindex.Record
	cur := headHash
	for {
		commit, err := object.GetCommit(store.Storer(), cur)
		if err != nil {
			return dogmaerr.Wrap(dogmaerr.StorageCorruption, "rebuild index: decode commit "+cur.String(), err)
		}
		_, _, _, revision, err := dogma.DecodeMessage(commit.Message)
		if err != nil {
			return dogmaerr.Wrap(dogmaerr.StorageCorruption, "rebuild index: decode commit message "+cur.String(), err)
		}
		records = append(records, commitindex.Record{Revision: revision, Hash: cur})
		if revision <= firstRevision || len(commit.ParentHashes) == 0 {
			break
		}
		cur = commit.ParentHashes[0]
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return idx.Rebuild(records)
}

// Close drains the worker pool, fails every pending watch, and closes
// the commit-id index. The object store itself needs no explicit close
// (go-git's filesystem storage holds no long-lived descriptors with
// KeepDescriptors: false).
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.pool.StopAndWait()
	r.watchMap.Close(func() error {
		return dogmaerr.New(dogmaerr.ShuttingDown, "repository closed")
	})
	return r.idx.Close()
}

// Head returns the current head revision.
func (r *Repository) Head() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	head, _ := r.idx.Head()
	return head
}

// Normalize resolves rev against the current head
func (r *Repository) Normalize(rev dogma.Revision) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.normalizeLocked(rev)
}

func (r *Repository) normalizeLocked(rev dogma.Revision) (int, error) {
	head, _ := r.idx.Head()
	return rev.Normalize(head)
}

// normalizeForFindLocked resolves rev the way normalizeLocked does,
// except a positive rev beyond head is reported as empty rather than
// dogmaerr.RevisionNotFound: find's contract returns an empty result
// for a not-yet-reached revision instead of erroring, unlike every
// other read operation.
func (r *Repository) normalizeForFindLocked(rev dogma.Revision) (abs int, empty bool, err error) {
	head, _ := r.idx.Head()
	if int(rev) > head {
		return 0, true, nil
	}
	abs, err = rev.Normalize(head)
	return abs, false, err
}

func (r *Repository) checkOpen() error {
	if r.closed {
		return dogmaerr.New(dogmaerr.ShuttingDown, "repository is closed")
	}
	return nil
}

func (r *Repository) writeInitialCommit() error {
	_, err := r.commitInternal(0, objectstore.Hash{}, "system", "Create a new repository", "", dogma.MarkupPlaintext, nil, true)
	return err
}

// submit dispatches fn onto the bounded worker pool and blocks for its
// result, or for ctx cancellation, whichever comes first. All actual
// I/O runs synchronously within the worker goroutine.
func submit[T any](ctx context.Context, pool *pond.WorkerPool, fn func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	pool.Submit(func() {
		v, err := fn()
		ch <- outcome{v, err}
	})
	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, dogmaerr.Wrap(dogmaerr.Timeout, "operation cancelled", ctx.Err())
	}
}

func clampContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
