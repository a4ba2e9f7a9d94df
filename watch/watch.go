// Package watch implements C10: a bounded pattern -> watch-set map
// supporting one-shot future watches and persistent listener watches,
// notified in commit order by the repository façade.
package watch

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"

	"github.com/cdogma/dogma-core/internal/dogmalog"
	"github.com/cdogma/dogma-core/pathpattern"
)

// Listener is invoked for a persistent watch on every matching commit,
// or once with a non-nil err when the watch is torn down.
type Listener func(rev int, err error)

// watchEntry is one registered watch. id is a random identifier used
// only for log correlation (which registration resolved) since a
// pointer address is meaningless in log output.
type watchEntry struct {
	id           string
	lastKnownRev int
	pattern      *pathpattern.Matcher

	// exactly one of future/listener is set.
	result   chan Result
	listener Listener

	removed bool
}

// Result is the outcome delivered to a one-shot future watch.
type Result struct {
	Rev int
	Err error
}

// Handle lets a caller cancel a registered future watch.
type Handle struct {
	set  *set
	name string
	w    *watchEntry
}

// Cancel removes the watch if it hasn't already fired. A notification
// racing with Cancel is harmless: whichever runs first wins.
func (h *Handle) Cancel() {
	h.set.mu.Lock()
	defer h.set.mu.Unlock()
	if h.w.removed {
		return
	}
	h.w.removed = true
	delete(h.set.watches, h.w)
	if len(h.set.watches) == 0 {
		h.set.empty = true
	}
}

// set is the collection of watches registered for one pattern string.
type set struct {
	mu      sync.Mutex
	watches map[*watchEntry]struct{}
	empty   bool
}

// Map is a bounded pattern -> watch-set structure. Only empty pattern
// entries are ever evicted from the capacity-bounded LRU backing it; a
// set with pending watches is pinned until it drains naturally.
type Map struct {
	mu       sync.Mutex
	capacity int
	sets     *lru.Cache[string, *set]
	closed   bool
	closeErr error
}

// NewMap creates a watch map that targets capacity distinct pattern
// entries. The backing LRU is left effectively unbounded — capacity is
// enforced by evictOneEmpty below, never by golang-lru's own recency
// policy, since that policy has no notion of "only evict if empty":
// it discards only empty pattern entries, and never evicts one with
// pending watches.
func NewMap(capacity int) *Map {
	if capacity <= 0 {
		capacity = 1024
	}
	cache, _ := lru.New[string, *set](1 << 30)
	return &Map{capacity: capacity, sets: cache}
}

func (m *Map) setFor(pattern string) *set {
	if s, ok := m.sets.Get(pattern); ok {
		return s
	}
	if m.sets.Len() >= m.capacity {
		m.evictOneEmpty()
	}
	s := &set{watches: make(map[*watchEntry]struct{})}
	m.sets.Add(pattern, s)
	return s
}

// evictOneEmpty removes the least-recently-used entry with no pending
// watches, leaving the map to grow past capacity rather than ever
// evicting a live watch set.
func (m *Map) evictOneEmpty() {
	for _, key := range m.sets.Keys() {
		s, ok := m.sets.Peek(key)
		if !ok {
			continue
		}
		s.mu.Lock()
		empty := len(s.watches) == 0
		s.mu.Unlock()
		if empty {
			m.sets.Remove(key)
			return
		}
	}
}

// AddFuture registers a one-shot watch for pattern, resolved the next
// time a commit beyond lastKnownRev touches a matching path. The
// returned channel receives at most one result: none if the watch is
// cancelled through the handle or ctx before it fires.
func (m *Map) AddFuture(ctx context.Context, lastKnownRev int, pattern *pathpattern.Matcher) (<-chan Result, *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Result, 1)
	if m.closed {
		ch <- Result{Err: m.closeErr}
		return ch, nil
	}

	w := &watchEntry{id: uuid.NewString(), lastKnownRev: lastKnownRev, pattern: pattern, result: ch}
	s := m.setFor(pattern.String())
	s.mu.Lock()
	s.watches[w] = struct{}{}
	s.empty = false
	s.mu.Unlock()

	h := &Handle{set: s, name: pattern.String(), w: w}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			h.Cancel()
		}()
	}
	return ch, h
}

// AddListener registers a persistent watch invoked on every matching
// commit until cancelled or the map is closed.
func (m *Map) AddListener(lastKnownRev int, pattern *pathpattern.Matcher, l Listener) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &watchEntry{id: uuid.NewString(), lastKnownRev: lastKnownRev, pattern: pattern, listener: l}
	if m.closed {
		l(0, m.closeErr)
		return &Handle{}
	}
	s := m.setFor(pattern.String())
	s.mu.Lock()
	s.watches[w] = struct{}{}
	s.empty = false
	s.mu.Unlock()
	return &Handle{set: s, name: pattern.String(), w: w}
}

// Notify wakes every watch whose pattern accepts changedPath and whose
// last known revision precedes newRev. Matching one-shot watches are
// removed from their set and dispatched outside the lock to avoid
// callback reentrancy. Persistent listeners stay registered, advanced
// to newRev so that one commit invokes them once.
func (m *Map) Notify(newRev int, changedPath string) {
	m.mu.Lock()
	keys := m.sets.Keys()
	var toDispatch []*watchEntry
	for _, key := range keys {
		s, ok := m.sets.Peek(key)
		if !ok {
			continue
		}
		s.mu.Lock()
		for w := range s.watches {
			if w.lastKnownRev >= newRev || !w.pattern.Matches(changedPath) {
				continue
			}
			if w.result != nil {
				delete(s.watches, w)
				w.removed = true
				toDispatch = append(toDispatch, w)
				continue
			}
			w.lastKnownRev = newRev
			toDispatch = append(toDispatch, w)
		}
		if len(s.watches) == 0 {
			s.empty = true
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, w := range toDispatch {
		dogmalog.Get().Debug("watch resolved", "watch_id", w.id, "rev", newRev, "path", changedPath)
		if w.result != nil {
			w.result <- Result{Rev: newRev}
		} else {
			w.listener(newRev, nil)
		}
	}
}

// Close fails every pending watch with the error produced by cause.
func (m *Map) Close(cause func() error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	err := cause()
	m.closed = true
	m.closeErr = err
	keys := m.sets.Keys()
	var toDispatch []*watchEntry
	for _, key := range keys {
		s, ok := m.sets.Peek(key)
		if !ok {
			continue
		}
		s.mu.Lock()
		for w := range s.watches {
			toDispatch = append(toDispatch, w)
		}
		s.watches = make(map[*watchEntry]struct{})
		s.empty = true
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, w := range toDispatch {
		if w.result != nil {
			w.result <- Result{Err: err}
		} else {
			w.listener(0, err)
		}
	}
}
