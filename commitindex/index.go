// Package commitindex implements C2: a constant-time revision -> commit
// hash lookup that never walks parent links It is
// grounded on the other_examples/attic-labs/noms dependency on
// github.com/edsrzf/mmap-go for memory-mapped file access — mirrored
// here exactly ("The commit-id index file is memory-
// mapped for reads and appended (with fsync) for writes").
package commitindex

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
)

// recordSize is 4 bytes of big-endian revision plus a 20-byte hash.
const recordSize = 24

// Record is a single (revision, hash) pair as stored on disk.
type Record struct {
	Revision int
	Hash     objectstore.Hash
}

// Index is the on-disk, memory-mapped commit-id index for a single
// physical object store.
type Index struct {
	mu   sync.RWMutex
	path string
	file *os.File
	mmap mmap.MMap // nil when the index is empty
	head int       // 0 means no commits indexed yet
}

// Open opens (creating if absent) the commit-id index at path. If the
// file length isn't a multiple of recordSize, the index is left empty
// and IsTruncated reports true; the caller (the repository façade,
// which has access to the commit DAG) must then call Rebuild.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.IOError, "open commit-id index", err)
	}
	idx := &Index{path: path, file: f}
	info, err := f.Stat()
	if err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.IOError, "stat commit-id index", err)
	}
	if info.Size() == 0 {
		return idx, nil
	}
	if info.Size()%recordSize != 0 {
		idx.head = -1 // sentinel: truncated, needs Rebuild
		return idx, nil
	}
	if err := idx.remap(); err != nil {
		return nil, err
	}
	idx.head = int(info.Size() / recordSize)
	return idx, nil
}

// IsTruncated reports whether the on-disk index's length didn't divide
// evenly by the record size and must be rebuilt from the commit DAG.
func (idx *Index) IsTruncated() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.head == -1
}

func (idx *Index) remap() error {
	if idx.mmap != nil {
		_ = idx.mmap.Unmap()
		idx.mmap = nil
	}
	info, err := idx.file.Stat()
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "stat commit-id index", err)
	}
	if info.Size() == 0 {
		return nil
	}
	m, err := mmap.Map(idx.file, mmap.RDONLY, 0)
	if err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "mmap commit-id index", err)
	}
	idx.mmap = m
	return nil
}

// Head returns the highest indexed revision, or (0, false) if the
// index is empty.
func (idx *Index) Head() (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.head <= 0 {
		return 0, false
	}
	return idx.head, true
}

// First returns the lowest indexed revision, always 1 when non-empty.
func (idx *Index) First() (int, bool) {
	if h, ok := idx.Head(); ok {
		_ = h
		return 1, true
	}
	return 0, false
}

// Get returns the commit hash for revision r. It fails with
// dogmaerr.RevisionNotFound if r is outside [1, head].
func (idx *Index) Get(r int) (objectstore.Hash, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if r < 1 || r > idx.head {
		return objectstore.Hash{}, dogmaerr.Newf(dogmaerr.RevisionNotFound, "revision %d not indexed (head=%d)", r, idx.head)
	}
	rec := idx.recordAt(r - 1)
	return rec.Hash, nil
}

func (idx *Index) recordAt(slot int) Record {
	off := slot * recordSize
	buf := idx.mmap[off : off+recordSize]
	rev := binary.BigEndian.Uint32(buf[:4])
	var h objectstore.Hash
	copy(h[:], buf[4:])
	return Record{Revision: int(rev), Hash: h}
}

// Put appends exactly one record for revision r. It is an error to put
// a non-contiguous revision (r must equal head+1). The write fsyncs
// before returning so the head pointer is never advanced ahead of a
// durable index entry
func (idx *Index) Put(r int, hash objectstore.Hash) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if r != idx.head+1 {
		return dogmaerr.Newf(dogmaerr.StorageCorruption, "non-contiguous commit-id put: want %d, got %d", idx.head+1, r)
	}
	var buf [recordSize]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(r))
	copy(buf[4:], hash[:])

	if _, err := idx.file.Seek(0, 2); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "seek commit-id index", err)
	}
	if _, err := idx.file.Write(buf[:]); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "append commit-id record", err)
	}
	if err := idx.file.Sync(); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "fsync commit-id index", err)
	}
	if err := idx.remap(); err != nil {
		return err
	}
	idx.head = r
	return nil
}

// Rebuild replaces the entire index with records, which must be in
// strict ascending, contiguous revision order starting at 1. Used when
// Open finds a truncated file; the repository façade supplies records
// by walking the commit DAG from head back to the root.
func (idx *Index) Rebuild(records []Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, rec := range records {
		if rec.Revision != i+1 {
			return dogmaerr.Newf(dogmaerr.StorageCorruption, "rebuild records not contiguous at index %d", i)
		}
	}

	if idx.mmap != nil {
		_ = idx.mmap.Unmap()
		idx.mmap = nil
	}
	if err := idx.file.Truncate(0); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "truncate commit-id index", err)
	}
	if _, err := idx.file.Seek(0, 0); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "seek commit-id index", err)
	}
	buf := make([]byte, 0, len(records)*recordSize)
	for _, rec := range records {
		var rb [recordSize]byte
		binary.BigEndian.PutUint32(rb[:4], uint32(rec.Revision))
		copy(rb[4:], rec.Hash[:])
		buf = append(buf, rb[:]...)
	}
	if _, err := idx.file.Write(buf); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "write rebuilt commit-id index", err)
	}
	if err := idx.file.Sync(); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "fsync rebuilt commit-id index", err)
	}
	if err := idx.remap(); err != nil {
		return err
	}
	idx.head = len(records)
	return nil
}

// Close releases the index's file handles.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.mmap != nil {
		_ = idx.mmap.Unmap()
		idx.mmap = nil
	}
	return idx.file.Close()
}
