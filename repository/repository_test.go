package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/config"
	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	dir, err := os.MkdirTemp("", "repo-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	r, err := Open(dir, "test", config.Defaults())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestInitialRepositoryIsEmptyAtHead(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.Equal(t, 1, r.Head())

	entries, err := r.Find(ctx, dogma.Revision(1), "/**", 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	c, err := r.Commit(ctx, dogma.Revision(0), "alice", "hello", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/hello.txt", "hi")}, false)
	require.NoError(t, err)
	require.Equal(t, 2, c.Revision)
	require.Equal(t, 2, r.Head())

	entries, err = r.Find(ctx, dogma.Revision(2), "/hello.txt", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, dogma.EntryTypeText, entries[0].Type)
	require.Equal(t, "hi\n", entries[0].Content)
}

func TestJSONPatchIdempotenceRaisesRedundantChange(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "add a", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"a": float64(1)})}, false)
	require.NoError(t, err)

	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "noop", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.ApplyJSONPatch("/a.json", []dogma.PatchOp{{Op: dogma.PatchOpReplace, Path: "/a", Value: float64(1)}})}, false)
	require.True(t, dogmaerr.Is(err, dogmaerr.RedundantChange))
}

func TestDirectoryRename(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "seed", "", dogma.MarkupPlaintext,
		[]dogma.Change{
			dogma.UpsertText("/d/x.txt", "x"),
			dogma.UpsertText("/d/y.txt", "y"),
		}, false)
	require.NoError(t, err)

	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "rename", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.Rename("/d", "/e")}, false)
	require.NoError(t, err)

	eEntries, err := r.Find(ctx, dogma.Revision(0), "/e/**", 0)
	require.NoError(t, err)
	require.Len(t, eEntries, 2)

	dEntries, err := r.Find(ctx, dogma.Revision(0), "/d/**", 0)
	require.NoError(t, err)
	require.Empty(t, dEntries)
}

func TestWatchCoalescing(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	// Reach revision 2 (the initial commit is revision 1) before
	// registering the watch.
	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "c2", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/e.txt", "2")}, false)
	require.NoError(t, err)
	require.Equal(t, 2, r.Head())

	ch, cancel, err := r.Watch(ctx, 2, "/**")
	require.NoError(t, err)
	defer cancel()

	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "c3", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/f.txt", "3")}, false)
	require.NoError(t, err)

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		require.Equal(t, 3, res.Rev)
	case <-time.After(time.Second):
		t.Fatal("watch did not resolve to revision 3")
	}

	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "c4", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/g.txt", "4")}, false)
	require.NoError(t, err)

	ch2, cancel2, err := r.Watch(ctx, 3, "/**")
	require.NoError(t, err)
	defer cancel2()

	select {
	case res := <-ch2:
		require.NoError(t, res.Err)
		require.Equal(t, 4, res.Rev)
	case <-time.After(time.Second):
		t.Fatal("watch(3) did not resolve immediately to revision 4")
	}
}

func TestDiffBetweenRevisions(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "add", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/a.txt", "a")}, false)
	require.NoError(t, err)

	changes, err := r.Diff(ctx, dogma.Revision(1), dogma.Revision(2), "/**", dogma.DiffPatchToUpsert)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, dogma.ChangeEntryUpsertText, changes[0].Kind)
	require.Equal(t, "/a.txt", changes[0].Path)

	reversed, err := r.Diff(ctx, dogma.Revision(2), dogma.Revision(1), "/**", dogma.DiffPatchToUpsert)
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	require.Equal(t, dogma.ChangeEntryRemove, reversed[0].Kind)
}

func TestDiffNormalModeEmitsPatchForModification(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "add", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"n": float64(1)})}, false)
	require.NoError(t, err)

	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "bump", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"n": float64(2)})}, false)
	require.NoError(t, err)

	changes, err := r.Diff(ctx, dogma.Revision(1), dogma.Revision(2), "/**", dogma.DiffNormal)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, dogma.ChangeEntryApplyJSONPatch, changes[0].Kind)
	require.NotEmpty(t, changes[0].Patch)

	upserts, err := r.Diff(ctx, dogma.Revision(1), dogma.Revision(2), "/**", dogma.DiffPatchToUpsert)
	require.NoError(t, err)
	require.Len(t, upserts, 1)
	require.Equal(t, dogma.ChangeEntryUpsertJSON, upserts[0].Kind)
}

func TestHistoryOrderingFollowsCallerDirection(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "c2", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/a.txt", "a")}, false)
	require.NoError(t, err)
	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "c3", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/b.txt", "b")}, false)
	require.NoError(t, err)

	ascending, err := r.History(ctx, dogma.Revision(1), dogma.Revision(3), "/**", 0)
	require.NoError(t, err)
	require.Len(t, ascending, 3)
	require.Equal(t, []int{1, 2, 3}, []int{ascending[0].Revision, ascending[1].Revision, ascending[2].Revision})

	descending, err := r.History(ctx, dogma.Revision(3), dogma.Revision(1), "/**", 0)
	require.NoError(t, err)
	require.Len(t, descending, 3)
	require.Equal(t, []int{3, 2, 1}, []int{descending[0].Revision, descending[1].Revision, descending[2].Revision})

	cappedDescending, err := r.History(ctx, dogma.Revision(3), dogma.Revision(1), "/**", 1)
	require.NoError(t, err)
	require.Len(t, cappedDescending, 1)
	require.Equal(t, 3, cappedDescending[0].Revision)
}

func TestFindRootPatternAndFutureRevision(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "add", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/a.txt", "a")}, false)
	require.NoError(t, err)

	entries, err := r.Find(ctx, dogma.Revision(0), "/", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, dogma.Root, entries[0].Path)
	require.Equal(t, dogma.EntryTypeDirectory, entries[0].Type)

	future, err := r.Find(ctx, dogma.Revision(99), "/**", 0)
	require.NoError(t, err)
	require.Empty(t, future)
}

func TestHistoryBoundaryFromGreaterThanHeadFails(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.History(ctx, dogma.Revision(5), dogma.Revision(5), "/**", 0)
	require.True(t, dogmaerr.Is(err, dogmaerr.RevisionNotFound))
}

func TestFindLatestRevision(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "touch a", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/a.txt", "a")}, false)
	require.NoError(t, err)
	_, err = r.Commit(ctx, dogma.Revision(0), "alice", "touch b", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertText("/b.txt", "b")}, false)
	require.NoError(t, err)

	rev, err := r.FindLatestRevision(ctx, 1, "/a.txt", false)
	require.NoError(t, err)
	require.Equal(t, 3, rev)

	rev, err = r.FindLatestRevision(ctx, 0, "/nope.txt", false)
	require.NoError(t, err)
	require.Equal(t, 0, rev)

	_, err = r.FindLatestRevision(ctx, 0, "/nope.txt", true)
	require.True(t, dogmaerr.Is(err, dogmaerr.EntryNotFound))
}

func TestCommitDirectRetriesSafely(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	c, err := r.CommitDirect(ctx, dogma.Revision(0), "alice", "seed", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"a": float64(1)})}, false, true)
	require.NoError(t, err)
	require.Equal(t, 2, c.Revision)

	entry, err := r.Get(ctx, dogma.Revision(0), "/a.json")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": float64(1)}, entry.Content)

	// Re-submitting the same raw change-list against base 2, which already
	// holds that content, is a no-op once normalized.
	_, err = r.CommitDirect(ctx, dogma.Revision(2), "alice", "retry", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"a": float64(1)})}, false, true)
	require.True(t, dogmaerr.Is(err, dogmaerr.RedundantChange))
}

func TestCommitWithTransformer(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, dogma.Revision(0), "alice", "seed", "", dogma.MarkupPlaintext,
		[]dogma.Change{dogma.UpsertJSON("/counter.json", map[string]any{"n": float64(1)})}, false)
	require.NoError(t, err)

	bump := func(old any) (any, error) {
		m, _ := old.(map[string]any)
		n, _ := m["n"].(float64)
		return map[string]any{"n": n + 1}, nil
	}
	c, err := r.CommitWithTransformer(ctx, dogma.Revision(0), "alice", "bump", "", dogma.MarkupPlaintext, "/counter.json", bump, false)
	require.NoError(t, err)
	require.Equal(t, 3, c.Revision)

	entry, err := r.Get(ctx, dogma.Revision(0), "/counter.json")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"n": float64(2)}, entry.Content)
}
