package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/pathpattern"
)

func TestFutureResolvesOnMatchingCommit(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/**")
	ch, _ := m.AddFuture(context.Background(), 2, pattern)

	m.Notify(3, "/hello.txt")

	select {
	case r := <-ch:
		require.NoError(t, r.Err)
		require.Equal(t, 3, r.Rev)
	case <-time.After(time.Second):
		t.Fatal("future did not resolve")
	}
}

func TestFutureIgnoresNonMatchingRevision(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/**")
	ch, _ := m.AddFuture(context.Background(), 5, pattern)

	m.Notify(3, "/hello.txt") // 3 <= lastKnownRev(5), must not fire

	select {
	case <-ch:
		t.Fatal("future resolved for a stale revision")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelPreventsDelivery(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/**")
	ch, handle := m.AddFuture(context.Background(), 2, pattern)
	handle.Cancel()

	m.Notify(3, "/hello.txt")

	select {
	case <-ch:
		t.Fatal("cancelled watch must not receive a result")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListenerFiresRepeatedly(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/**")
	var revs []int
	m.AddListener(2, pattern, func(rev int, err error) {
		require.NoError(t, err)
		revs = append(revs, rev)
	})

	m.Notify(3, "/a")
	m.Notify(4, "/b")

	require.Equal(t, []int{3, 4}, revs)
}

func TestCloseFailsPendingWatches(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/**")
	ch, _ := m.AddFuture(context.Background(), 2, pattern)

	m.Close(func() error { return errShutdown })

	select {
	case r := <-ch:
		require.Error(t, r.Err)
	case <-time.After(time.Second):
		t.Fatal("close did not fail pending watch")
	}
}

func TestPatternMatcherFiltersNotify(t *testing.T) {
	m := NewMap(16)
	pattern := pathpattern.MustCompile("/only/**")
	ch, _ := m.AddFuture(context.Background(), 0, pattern)

	m.Notify(1, "/elsewhere.txt")
	select {
	case <-ch:
		t.Fatal("notify matched an unrelated path")
	case <-time.After(30 * time.Millisecond):
	}

	m.Notify(2, "/only/x.txt")
	select {
	case r := <-ch:
		require.Equal(t, 2, r.Rev)
	case <-time.After(time.Second):
		t.Fatal("future did not resolve for matching path")
	}
}

var errShutdown = shutdownError{}

type shutdownError struct{}

func (shutdownError) Error() string { return "shutting down" }
