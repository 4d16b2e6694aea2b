package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PageSize is the granularity memory is stored at. All-zero pages are not
// stored.
const PageSize = 4096

// Store keeps named snapshots in a pebble database. It is safe for
// concurrent use.
//
// Layout:
//
//	snap/<name>/meta          State.MarshalMeta
//	snap/<name>/page/<index>  non-zero memory pages, index big-endian
type Store struct {
	db *pebble.DB
}

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	return open(dir, &pebble.Options{})
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func prefix(name string) []byte {
	return []byte("snap/" + name + "/")
}

func metaKey(name string) []byte {
	return append(prefix(name), "meta"...)
}

func pageKey(name string, index uint32) []byte {
	return binary.BigEndian.AppendUint32(append(prefix(name), "page/"...), index)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := bytes.Clone(p)
	end[len(end)-1]++
	return end
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("snapshot: invalid name %q", name)
	}
	return nil
}

// Save writes state under name, replacing any previous snapshot of that
// name atomically.
func (s *Store) Save(name string, state *State) error {
	if err := validName(name); err != nil {
		return err
	}

	meta, err := state.MarshalMeta()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer func() { _ = batch.Close() }()

	p := prefix(name)
	if err := batch.DeleteRange(p, prefixEnd(p), nil); err != nil {
		return err
	}
	if err := batch.Set(metaKey(name), meta, nil); err != nil {
		return err
	}

	for off := 0; off < len(state.Memory); off += PageSize {
		page := state.Memory[off:min(off+PageSize, len(state.Memory))]
		if isZero(page) {
			continue
		}
		if err := batch.Set(pageKey(name, uint32(off/PageSize)), page, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Load reads the snapshot stored under name.
func (s *Store) Load(name string) (*State, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	snap := s.db.NewSnapshot()
	defer func() { _ = snap.Close() }()

	meta, closer, err := snap.Get(metaKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	state := &State{}
	err = state.UnmarshalMeta(meta)
	_ = closer.Close()
	if err != nil {
		return nil, err
	}

	lower := append(prefix(name), "page/"...)
	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(lower),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()[len(lower):]
		if len(key) != 4 {
			return nil, fmt.Errorf("%w: page key %x", ErrCorrupt, iter.Key())
		}
		off := int(binary.BigEndian.Uint32(key)) * PageSize
		page := iter.Value()
		if off+len(page) > len(state.Memory) {
			return nil, fmt.Errorf("%w: page at 0x%x beyond memory", ErrCorrupt, off)
		}
		copy(state.Memory[off:], page)
	}

	return state, iter.Error()
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	p := prefix(name)
	return s.db.DeleteRange(p, prefixEnd(p), pebble.Sync)
}

// List returns the stored snapshot names in key order.
func (s *Store) List() ([]string, error) {
	lower := []byte("snap/")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(lower),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		rest := string(iter.Key()[len(lower):])
		if name, ok := strings.CutSuffix(rest, "/meta"); ok {
			names = append(names, name)
		}
	}

	return names, iter.Error()
}
