// Package store implements the control plane's single authoritative state
// store: a versioned key-value contract (get/put/delete/watch) backed by
// go.etcd.io/bbolt, per SPEC_FULL.md §4.1. Every other component treats its
// view of the world as cache or derivation of what lives here.
package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/coreforge/vmcp/internal/vmcperrors"
)

var dataBucket = []byte("data")
var metaBucket = []byte("meta")
var revKey = []byte("rev")

// Record is one stored value and the revision it was written at.
type Record struct {
	Value []byte
	Rev   uint64
}

// Op is one item in a Batch call: a put of Value, or a delete when Delete
// is set, guarded by ExpectedRev.
//
// ExpectedRev semantics: 0 means "key must not currently exist"; any other
// value means the key must currently be at exactly that revision.
type Op struct {
	Key         string
	Value       []byte
	ExpectedRev uint64
	Delete      bool
}

// Store is the embedded, versioned key-value store.
type Store struct {
	db *bolt.DB

	mu       sync.Mutex
	watchers map[string][]*watcher
}

// Open opens (creating if necessary) a bbolt database at path and prepares
// its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "open store at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "initialize store buckets")
	}

	return &Store{db: db, watchers: make(map[string][]*watcher)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get fetches the current value and revision of key.
func (s *Store) Get(key string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(dataBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		r, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "get %s", key)
	}
	if rec == nil {
		return nil, vmcperrors.New(vmcperrors.KindNotFound, fmt.Sprintf("key %s", key))
	}
	return rec, nil
}

// List returns every record whose key carries the given prefix, in a map
// keyed by key; iteration over the map has no defined order.
func (s *Store) List(prefix string) (map[string]*Record, error) {
	out := make(map[string]*Record)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out[string(k)] = rec
		}
		return nil
	})
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "list prefix %s", prefix)
	}
	return out, nil
}

// Put writes value at key, enforcing ExpectedRev semantics, and returns the
// new revision.
func (s *Store) Put(key string, value []byte, expectedRev uint64) (uint64, error) {
	events, newRev, err := s.apply([]Op{{Key: key, Value: value, ExpectedRev: expectedRev}})
	if err != nil {
		return 0, err
	}
	s.publish(events)
	return newRev, nil
}

// Delete removes key, enforcing ExpectedRev semantics.
func (s *Store) Delete(key string, expectedRev uint64) error {
	events, _, err := s.apply([]Op{{Key: key, Delete: true, ExpectedRev: expectedRev}})
	if err != nil {
		return err
	}
	s.publish(events)
	return nil
}

// Batch applies every Op inside a single bbolt transaction: it either
// commits atomically or fails as a whole with conflict/not_found.
func (s *Store) Batch(ops []Op) (uint64, error) {
	events, rev, err := s.apply(ops)
	if err != nil {
		return 0, err
	}
	s.publish(events)
	return rev, nil
}

func (s *Store) apply(ops []Op) ([]Event, uint64, error) {
	var events []Event
	var lastRev uint64

	err := s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		data := tx.Bucket(dataBucket)

		rev := decodeUint64(meta.Get(revKey))

		for _, op := range ops {
			raw := data.Get([]byte(op.Key))
			var current *Record
			if raw != nil {
				r, err := decodeRecord(raw)
				if err != nil {
					return err
				}
				current = r
			}

			switch {
			case op.ExpectedRev == 0 && current != nil:
				return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("key %s already exists at rev %d", op.Key, current.Rev))
			case op.ExpectedRev != 0 && current == nil:
				return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("key %s does not exist, expected rev %d", op.Key, op.ExpectedRev))
			case op.ExpectedRev != 0 && current != nil && current.Rev != op.ExpectedRev:
				return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("key %s at rev %d, expected %d", op.Key, current.Rev, op.ExpectedRev))
			}

			if op.Delete {
				if current == nil {
					return vmcperrors.New(vmcperrors.KindNotFound, fmt.Sprintf("key %s", op.Key))
				}
				if err := data.Delete([]byte(op.Key)); err != nil {
					return err
				}
				rev++
				events = append(events, Event{Key: op.Key, Rev: rev, Deleted: true})
				lastRev = rev
				continue
			}

			rev++
			rec := &Record{Value: op.Value, Rev: rev}
			if err := data.Put([]byte(op.Key), encodeRecord(rec)); err != nil {
				return err
			}
			events = append(events, Event{Key: op.Key, Rev: rev, Value: op.Value})
			lastRev = rev
		}

		return meta.Put(revKey, encodeUint64(rev))
	})
	if err != nil {
		return nil, 0, wrapBatchErr(err)
	}

	return events, lastRev, nil
}

func wrapBatchErr(err error) error {
	if vmcperrors.KindOf(err) != vmcperrors.KindInternal {
		return err
	}
	return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "apply batch")
}

// Event is one committed mutation, delivered to watchers.
type Event struct {
	Key     string
	Value   []byte
	Rev     uint64
	Deleted bool
}

// Watch returns a channel of Events for every key under prefix with
// revision ≥ fromRev: a watcher first catches up by replaying the current
// snapshot, then tails live commits. The channel closes when ctx is done.
func (s *Store) Watch(ctx context.Context, prefix string, fromRev uint64) (<-chan Event, error) {
	ch := make(chan Event, 64)
	w := &watcher{ch: ch, prefix: prefix}

	s.mu.Lock()
	s.watchers[prefix] = append(s.watchers[prefix], w)
	s.mu.Unlock()

	snapshot, err := s.List(prefix)
	if err != nil {
		s.removeWatcher(prefix, w)
		return nil, err
	}

	go func() {
		for k, rec := range snapshot {
			if rec.Rev >= fromRev {
				select {
				case ch <- Event{Key: k, Value: rec.Value, Rev: rec.Rev}:
				case <-ctx.Done():
					s.removeWatcher(prefix, w)
					close(ch)
					return
				}
			}
		}
		<-ctx.Done()
		s.removeWatcher(prefix, w)
		close(ch)
	}()

	return ch, nil
}

func (s *Store) removeWatcher(prefix string, target *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.watchers[prefix]
	for i, w := range ws {
		if w == target {
			s.watchers[prefix] = append(ws[:i], ws[i+1:]...)
			return
		}
	}
}

func (s *Store) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, ws := range s.watchers {
		for _, e := range events {
			if !strings.HasPrefix(e.Key, prefix) {
				continue
			}
			for _, w := range ws {
				select {
				case w.ch <- e:
				default:
					// Slow watcher: drop rather than block the writer.
				}
			}
		}
	}
}

type watcher struct {
	ch     chan Event
	prefix string
}

func encodeRecord(r *Record) []byte {
	buf := make([]byte, 8+len(r.Value))
	binary.BigEndian.PutUint64(buf[:8], r.Rev)
	copy(buf[8:], r.Value)
	return buf
}

func decodeRecord(raw []byte) (*Record, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("corrupt record: %d bytes", len(raw))
	}
	rev := binary.BigEndian.Uint64(raw[:8])
	value := make([]byte, len(raw)-8)
	copy(value, raw[8:])
	return &Record{Value: value, Rev: rev}, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(raw []byte) uint64 {
	if len(raw) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}
