// Package rolling implements C11: primary/secondary physical object
// stores under a repository directory, with online pruning of old
// history via an atomic metadata-file swap.
package rolling

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
)

const metaFileName = "compaction.meta"

// minRetention is how many commits a secondary store accumulates
// before it is promoted to primary.
const minRetention = 1

type state struct {
	ActiveSuffix           string `json:"active_suffix"`
	FirstRevision          int    `json:"first_revision"`
	PrimaryCommits         int    `json:"primary_commits"`
	SecondarySuffix        string `json:"secondary_suffix,omitempty"`
	SecondaryFirstRevision int    `json:"secondary_first_revision,omitempty"`
	SecondaryCommits       int    `json:"secondary_commits,omitempty"`
}

// Manager owns the primary (and, while shadowing, secondary) physical
// object store for one repository directory
type Manager struct {
	mu        sync.Mutex
	dir       string
	threshold int
	metaPath  string
	st        state
	primary   *objectstore.Store
	secondary *objectstore.Store
}

// NewManager opens (initializing if absent) the rolling object-store
// pair under dir. threshold is the commit count that triggers shadowing
// a secondary store (the configured rolling_commit_threshold).
func NewManager(dir string, threshold int) (*Manager, error) {
	if threshold <= 0 {
		threshold = 10000
	}
	m := &Manager{dir: dir, threshold: threshold, metaPath: filepath.Join(dir, metaFileName)}

	st, err := loadState(m.metaPath)
	if err != nil {
		return nil, err
	}
	if st.ActiveSuffix == "" {
		st = state{ActiveSuffix: "a", FirstRevision: 1}
	}
	m.st = st

	primary, err := objectstore.Open(filepath.Join(dir, "objects-"+st.ActiveSuffix))
	if err != nil {
		return nil, err
	}
	m.primary = primary

	if st.SecondarySuffix != "" {
		secondary, err := objectstore.Open(filepath.Join(dir, "objects-"+st.SecondarySuffix))
		if err != nil {
			return nil, err
		}
		m.secondary = secondary
	}

	if err := m.saveState(); err != nil {
		return nil, err
	}
	return m, nil
}

func loadState(path string) (state, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state{}, nil
		}
		return state{}, dogmaerr.Wrap(dogmaerr.IOError, "read compaction metadata", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode compaction metadata", err)
	}
	return st, nil
}

// saveState writes the metadata file atomically: write to a temp file
// in the same directory, fsync it, then rename over the final path, per
// "rewriting a small metadata file with fsync".
func (m *Manager) saveState() error {
	data, err := json.Marshal(m.st)
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "encode compaction metadata", err)
	}
	tmp := m.metaPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "open compaction metadata temp file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return dogmaerr.Wrap(dogmaerr.IOError, "write compaction metadata", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return dogmaerr.Wrap(dogmaerr.IOError, "fsync compaction metadata", err)
	}
	if err := f.Close(); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "close compaction metadata temp file", err)
	}
	if err := os.Rename(tmp, m.metaPath); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "swap compaction metadata", err)
	}
	return nil
}

// Store returns the currently active (primary) object store.
func (m *Manager) Store() *objectstore.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// FirstRevision returns the oldest revision the active primary can
// resolve. Queries below it must fail with dogmaerr.RevisionNotFound
// naming this value.
func (m *Manager) FirstRevision() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FirstRevision
}

// AfterCommit records a newly written commit, double-writing it into a
// shadowing secondary store once one exists, and promotes the
// secondary to primary once it has accumulated enough history.
//
// This runs synchronously inside the façade's write-locked commit path
// rather than as an independent background goroutine with its own
// gc_lock; the simplification is
// documented in DESIGN.md.
func (m *Manager) AfterCommit(rev int, hash objectstore.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.PrimaryCommits++
	if m.secondary == nil && m.st.PrimaryCommits >= m.threshold {
		if err := m.startSecondaryLocked(rev); err != nil {
			return err
		}
	}

	if m.secondary != nil {
		if err := copyCommit(m.primary, m.secondary, hash); err != nil {
			return err
		}
		if err := m.secondary.SetHead(hash); err != nil {
			return err
		}
		m.st.SecondaryCommits++
		if m.st.SecondaryCommits >= minRetention {
			if err := m.promoteLocked(); err != nil {
				return err
			}
		}
	}
	return m.saveState()
}

func (m *Manager) startSecondaryLocked(rev int) error {
	suffix := otherSuffix(m.st.ActiveSuffix)
	secondary, err := objectstore.Open(filepath.Join(m.dir, "objects-"+suffix))
	if err != nil {
		return err
	}
	m.secondary = secondary
	m.st.SecondarySuffix = suffix
	m.st.SecondaryFirstRevision = rev
	m.st.SecondaryCommits = 0
	return nil
}

func (m *Manager) promoteLocked() error {
	oldDir := filepath.Join(m.dir, "objects-"+m.st.ActiveSuffix)

	m.primary = m.secondary
	m.secondary = nil
	m.st.ActiveSuffix = m.st.SecondarySuffix
	m.st.FirstRevision = m.st.SecondaryFirstRevision
	m.st.SecondarySuffix = ""
	m.st.SecondaryFirstRevision = 0
	m.st.SecondaryCommits = 0
	m.st.PrimaryCommits = 0

	if err := m.saveState(); err != nil {
		return err
	}
	return os.Rename(oldDir, oldDir+".removed")
}

func otherSuffix(active string) string {
	if active == "a" {
		return "b"
	}
	return "a"
}

func copyCommit(from, to *objectstore.Store, hash objectstore.Hash) error {
	if to.Exists(hash) {
		return nil
	}
	typ, data, err := from.ReadAll(hash)
	if err != nil {
		return err
	}
	commit, err := object.GetCommit(from.Storer(), hash)
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode commit "+hash.String(), err)
	}
	if err := copyTree(from, to, commit.TreeHash); err != nil {
		return err
	}
	_, err = to.Put(typ, data)
	return err
}

func copyTree(from, to *objectstore.Store, hash objectstore.Hash) error {
	if hash.IsZero() || to.Exists(hash) {
		return nil
	}
	typ, data, err := from.ReadAll(hash)
	if err != nil {
		return err
	}
	tree, err := object.GetTree(from.Storer(), hash)
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode tree "+hash.String(), err)
	}
	for _, e := range tree.Entries {
		if e.Mode == filemode.Dir {
			if err := copyTree(from, to, e.Hash); err != nil {
				return err
			}
			continue
		}
		if err := copyBlob(from, to, e.Hash); err != nil {
			return err
		}
	}
	_, err = to.Put(typ, data)
	return err
}

func copyBlob(from, to *objectstore.Store, hash objectstore.Hash) error {
	if to.Exists(hash) {
		return nil
	}
	typ, data, err := from.ReadAll(hash)
	if err != nil {
		return err
	}
	_, err = to.Put(typ, data)
	return err
}
