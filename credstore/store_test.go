package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type failingWriteBackend struct {
	*MemoryBackend
	failWrites bool
}

func (f *failingWriteBackend) Write(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryBackend.Write(ctx, key, value)
}

func newTestStore(t *testing.T, backend Backend) *Sealed {
	t.Helper()

	sealer, err := NewKeySealer(testSecret(), "test")
	if err != nil {
		t.Fatalf("NewKeySealer failed: %v", err)
	}
	store, err := New(backend, sealer, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store
}

func TestSealedSaveReadClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())

	if _, ok, err := store.Read(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	first := Pair{AccessToken: "a1", RefreshToken: "r1"}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second := Pair{AccessToken: "a2", RefreshToken: "r2"}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := store.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("Read failed: ok=%v err=%v", ok, err)
	}
	if got != second {
		t.Fatalf("expected full replacement %+v, got %+v", second, got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if _, ok, _ := store.Read(ctx); ok {
		t.Fatal("expected empty store after Clear")
	}
}

func TestSealedRejectsPartialPair(t *testing.T) {
	store := newTestStore(t, NewMemoryBackend())
	err := store.Save(context.Background(), Pair{AccessToken: "only-access"})
	if !errors.Is(err, ErrInvalidPair) {
		t.Fatalf("expected ErrInvalidPair, got %v", err)
	}
}

func TestSealedWriteFailureDropsStalePair(t *testing.T) {
	ctx := context.Background()
	backend := &failingWriteBackend{MemoryBackend: NewMemoryBackend()}
	store := newTestStore(t, backend)

	if err := store.Save(ctx, Pair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	backend.failWrites = true
	err := store.Save(ctx, Pair{AccessToken: "a2", RefreshToken: "r2"})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	if _, ok, err := store.Read(ctx); ok || err != nil {
		t.Fatalf("expected stale pair to be unreadable, ok=%v err=%v", ok, err)
	}
}

type failingSealer struct {
	Sealer
	fail bool
}

func (f *failingSealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	if f.fail {
		return nil, errors.New("sealer unavailable")
	}
	return f.Sealer.Seal(plaintext, additionalData)
}

func TestSealedSealFailureDropsStalePair(t *testing.T) {
	ctx := context.Background()
	inner, err := NewKeySealer(testSecret(), "test")
	if err != nil {
		t.Fatalf("NewKeySealer failed: %v", err)
	}
	sealer := &failingSealer{Sealer: inner}
	store, err := New(NewMemoryBackend(), sealer, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := store.Save(ctx, Pair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sealer.fail = true
	if err := store.Save(ctx, Pair{AccessToken: "a2", RefreshToken: "r2"}); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, ok, err := store.Read(ctx); ok || err != nil {
		t.Fatalf("expected stale pair to be unreadable, ok=%v err=%v", ok, err)
	}
}

func TestSealedInvalidPairKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())
	current := Pair{AccessToken: "a1", RefreshToken: "r1"}
	if err := store.Save(ctx, current); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Save(ctx, Pair{RefreshToken: "r2"}); !errors.Is(err, ErrInvalidPair) {
		t.Fatalf("expected ErrInvalidPair, got %v", err)
	}
	if got, ok, err := store.Read(ctx); err != nil || !ok || got != current {
		t.Fatalf("expected current pair kept, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestSealedCorruptDataReportsCorrupt(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := newTestStore(t, backend)

	if err := backend.Write(ctx, store.Key(), []byte("garbage-that-is-not-sealed-at-all-000000000000")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	_, ok, err := store.Read(ctx)
	if ok {
		t.Fatal("expected corrupt data to read as absent")
	}
	if !errors.Is(err, ErrStorage) || !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrStorage+ErrCorrupt, got %v", err)
	}
}

func TestSealedFileBackendPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "creds")

	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	store := newTestStore(t, backend)

	pair := Pair{AccessToken: "access", RefreshToken: "refresh"}
	if err := store.Save(ctx, pair); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(backend.path(store.Key()))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 credential file, got %o", perm)
	}

	reopenedBackend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	reopened := newTestStore(t, reopenedBackend)

	got, ok, err := reopened.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("Read after reopen failed: ok=%v err=%v", ok, err)
	}
	if got != pair {
		t.Fatalf("unexpected pair %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one credential file, got %d", len(entries))
	}
}
