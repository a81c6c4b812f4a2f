package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreforge/vmcp/internal/vmcperrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vmcp.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rev, err := s.Put("/vpc/v1", []byte("payload"), 0)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if rev != 1 {
		t.Errorf("rev = %d, want 1", rev)
	}

	rec, err := s.Get("/vpc/v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(rec.Value) != "payload" {
		t.Errorf("Value = %q, want %q", rec.Value, "payload")
	}
	if rec.Rev != 1 {
		t.Errorf("Rev = %d, want 1", rec.Rev)
	}
}

func TestPutRejectsDuplicateCreate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Put("/vpc/v1", []byte("a"), 0); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	_, err := s.Put("/vpc/v1", []byte("b"), 0)
	if vmcperrors.KindOf(err) != vmcperrors.KindConflict {
		t.Errorf("second Put() kind = %v, want conflict", vmcperrors.KindOf(err))
	}
}

func TestPutEnforcesExpectedRev(t *testing.T) {
	s := newTestStore(t)

	rev, _ := s.Put("/vm/1", []byte("v1"), 0)

	if _, err := s.Put("/vm/1", []byte("v2"), rev); err != nil {
		t.Fatalf("update at correct rev: %v", err)
	}

	_, err := s.Put("/vm/1", []byte("v3"), rev)
	if vmcperrors.KindOf(err) != vmcperrors.KindConflict {
		t.Errorf("stale update kind = %v, want conflict", vmcperrors.KindOf(err))
	}
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("/vm/missing")
	if vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Errorf("kind = %v, want not_found", vmcperrors.KindOf(err))
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	s := newTestStore(t)

	rev, _ := s.Put("/vm/1", []byte("v1"), 0)
	if err := s.Delete("/vm/1", rev); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := s.Get("/vm/1")
	if vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Errorf("kind after delete = %v, want not_found", vmcperrors.KindOf(err))
	}
}

func TestBatchIsAtomic(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Put("/vm/1", []byte("existing"), 0); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	_, err := s.Batch([]Op{
		{Key: "/vm/2", Value: []byte("new"), ExpectedRev: 0},
		{Key: "/vm/1", Value: []byte("conflict"), ExpectedRev: 0}, // wrong expected rev: already exists
	})
	if vmcperrors.KindOf(err) != vmcperrors.KindConflict {
		t.Fatalf("Batch() kind = %v, want conflict", vmcperrors.KindOf(err))
	}

	if _, err := s.Get("/vm/2"); vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Error("partial batch effect leaked: /vm/2 should not exist after a failed batch")
	}
}

func TestListByPrefix(t *testing.T) {
	s := newTestStore(t)

	_, _ = s.Put("/vm/1", []byte("a"), 0)
	_, _ = s.Put("/vm/2", []byte("b"), 0)
	_, _ = s.Put("/vpc/1", []byte("c"), 0)

	recs, err := s.List("/vm/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("len(recs) = %d, want 2", len(recs))
	}
}

func TestWatchDeliversLiveEvents(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "/vm/", 0)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if _, err := s.Put("/vm/1", []byte("hello"), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Key != "/vm/1" || string(ev.Value) != "hello" {
			t.Errorf("event = %+v, want key /vm/1 value hello", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatchCatchesUpOnExistingState(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Put("/vm/1", []byte("preexisting"), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "/vm/", 0)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Key != "/vm/1" {
			t.Errorf("event key = %q, want /vm/1", ev.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for catch-up event")
	}
}

func TestOpenCreatesParentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected db file at %s: %v", path, err)
	}
}
