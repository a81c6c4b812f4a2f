// Package entitystore provides a generic typed CRUD wrapper over
// internal/store, the same "thin wrapper over one underlying client" shape
// internal/hostregistry uses for Host rows, generalized with a type
// parameter so VPC/VirtualMachine/Disk/FirewallRule/Migration/Image rows
// don't each need a hand-copied version of the same marshal/rev-check
// boilerplate.
package entitystore

import (
	"encoding/json"
	"fmt"

	"github.com/coreforge/vmcp/internal/store"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// Store is a CRUD wrapper scoped to one key prefix, storing values of type T
// as JSON.
type Store[T any] struct {
	st     *store.Store
	prefix string
}

// New returns a Store backed by st, namespacing every key under prefix
// (e.g. "/vm/"). prefix must end in "/".
func New[T any](st *store.Store, prefix string) *Store[T] {
	return &Store[T]{st: st, prefix: prefix}
}

func (s *Store[T]) key(id string) string { return s.prefix + id }

// Create writes a new row; fails with KindConflict if id already exists.
func (s *Store[T]) Create(id string, val *T) error {
	payload, err := json.Marshal(val)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal %s%s", s.prefix, id)
	}
	_, err = s.st.Put(s.key(id), payload, 0)
	return err
}

// Update replaces an existing row, enforcing the expected revision read by
// a prior Get (optimistic concurrency).
func (s *Store[T]) Update(id string, val *T, expectedRev uint64) (uint64, error) {
	payload, err := json.Marshal(val)
	if err != nil {
		return 0, vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal %s%s", s.prefix, id)
	}
	return s.st.Put(s.key(id), payload, expectedRev)
}

// Upsert writes val at id regardless of prior existence, reading the
// current revision first if present.
func (s *Store[T]) Upsert(id string, val *T) error {
	rec, err := s.st.Get(s.key(id))
	switch {
	case vmcperrors.Is(err, vmcperrors.KindNotFound):
		return s.Create(id, val)
	case err != nil:
		return err
	default:
		_, err = s.Update(id, val, rec.Rev)
		return err
	}
}

// Get fetches one row and its revision.
func (s *Store[T]) Get(id string) (*T, uint64, error) {
	rec, err := s.st.Get(s.key(id))
	if err != nil {
		return nil, 0, err
	}
	var val T
	if err := json.Unmarshal(rec.Value, &val); err != nil {
		return nil, 0, vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal %s%s", s.prefix, id)
	}
	return &val, rec.Rev, nil
}

// Delete removes a row, enforcing expectedRev.
func (s *Store[T]) Delete(id string, expectedRev uint64) error {
	return s.st.Delete(s.key(id), expectedRev)
}

// List returns every row under the Store's prefix.
func (s *Store[T]) List() ([]*T, error) {
	recs, err := s.st.List(s.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for k, rec := range recs {
		var val T
		if err := json.Unmarshal(rec.Value, &val); err != nil {
			return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal %s", k)
		}
		out = append(out, &val)
	}
	return out, nil
}

// ListByField filters List() results with pred, for the common case of
// scanning, e.g., every VM belonging to one VPC.
func (s *Store[T]) ListByField(pred func(*T) bool) ([]*T, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(all))
	for _, v := range all {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// NotFoundf is a convenience constructor for the common "entity X not
// found" case, matching internal/vmcperrors' taxonomy.
func NotFoundf(kind, id string) error {
	return vmcperrors.New(vmcperrors.KindNotFound, fmt.Sprintf("%s %q not found", kind, id))
}
