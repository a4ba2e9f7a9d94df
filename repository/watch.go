package repository

import (
	"context"

	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/pathpattern"
	"github.com/cdogma/dogma-core/watch"
)

// Watch registers a one-shot future resolved the next time a commit
// beyond lastKnownRev touches a path matching pattern. lastKnownRev is
// a plain absolute revision, the same "last known" value accepted by
// FindLatestRevision (0 meaning "nothing observed yet"), not a
// dogma.Revision to be head-normalized: watch(head, pattern) does not
// complete until a new commit lands, while watch(head-1, pattern)
// completes immediately against the current head.
func (r *Repository) Watch(ctx context.Context, lastKnownRev int, pattern string) (<-chan watch.Result, func(), error) {
	r.mu.RLock()
	closeErr := r.checkOpen()
	r.mu.RUnlock()
	if closeErr != nil {
		return nil, nil, closeErr
	}
	matcher, err := pathpattern.Compile(pattern)
	if err != nil {
		return nil, nil, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
	}

	if resolved, ok, err := r.alreadySatisfied(lastKnownRev, matcher); err != nil {
		return nil, nil, err
	} else if ok {
		ch := make(chan watch.Result, 1)
		ch <- watch.Result{Rev: resolved}
		return ch, func() {}, nil
	}

	ch, handle := r.watchMap.AddFuture(ctx, lastKnownRev, matcher)
	cancel := func() {
		if handle != nil {
			handle.Cancel()
		}
	}
	return ch, cancel, nil
}

// alreadySatisfied reports whether some revision beyond lastKnownRev
// already matches pattern, in which case the watch should resolve
// immediately to the current head rather than wait for a future
// commit.
func (r *Repository) alreadySatisfied(lastKnownRev int, matcher *pathpattern.Matcher) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	head, _ := r.idx.Head()
	if head <= lastKnownRev {
		return 0, false, nil
	}
	for rev := lastKnownRev + 1; rev <= head; rev++ {
		matches, err := r.commitMatchesLocked(rev, matcher)
		if err != nil {
			return 0, false, err
		}
		if matches {
			return head, true, nil
		}
	}
	return 0, false, nil
}

// WatchListener registers a persistent listener invoked on every
// matching commit until cancelled or the repository closes. lastKnownRev
// follows the same plain-absolute-revision convention as Watch.
func (r *Repository) WatchListener(lastKnownRev int, pattern string, l watch.Listener) (func(), error) {
	r.mu.RLock()
	closeErr := r.checkOpen()
	r.mu.RUnlock()
	if closeErr != nil {
		return nil, closeErr
	}
	matcher, err := pathpattern.Compile(pattern)
	if err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
	}
	handle := r.watchMap.AddListener(lastKnownRev, matcher, l)
	return handle.Cancel, nil
}
