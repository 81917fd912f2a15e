package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
)

type fakeRefresher struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (credstore.Pair, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return credstore.Pair{}, ctx.Err()
		}
	}
	if f.err != nil {
		return credstore.Pair{}, f.err
	}
	return credstore.Pair{
		AccessToken:  fmt.Sprintf("access-%d", n+1),
		RefreshToken: fmt.Sprintf("refresh-%d", n+1),
	}, nil
}

type countingStore struct {
	credstore.Store
	clears atomic.Int32
	saves  atomic.Int32
}

func (s *countingStore) Save(ctx context.Context, p credstore.Pair) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, p)
}

func (s *countingStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.Store.Clear(ctx)
}

func newTestStore(t *testing.T, initial credstore.Pair) *countingStore {
	t.Helper()
	secret := make([]byte, credstore.MinSecretBytes)
	for i := range secret {
		secret[i] = byte(i + 7)
	}
	sealer, err := credstore.NewKeySealer(secret, "refresh-test")
	if err != nil {
		t.Fatalf("NewKeySealer failed: %v", err)
	}
	st, err := credstore.New(credstore.NewMemoryBackend(), sealer, "refresh-test")
	if err != nil {
		t.Fatalf("credstore.New failed: %v", err)
	}
	if initial.Valid() {
		if err := st.Save(context.Background(), initial); err != nil {
			t.Fatalf("seed Save failed: %v", err)
		}
	}
	return &countingStore{Store: st}
}

var initialPair = credstore.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}

func TestConcurrentRefreshSingleFlight(t *testing.T) {
	store := newTestStore(t, initialPair)
	r := &fakeRefresher{gate: make(chan struct{})}
	var joined atomic.Int32
	c, err := New(r, store, Config{Observe: func(o Outcome) {
		if o == OutcomeJoined || o == OutcomeAlreadyRotated {
			joined.Add(1)
		}
	}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	results := make(chan credstore.Pair, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Refresh(context.Background(), "access-1")
			if err != nil {
				errs <- err
				return
			}
			results <- p
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(r.gate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if got := r.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	for p := range results {
		if p.AccessToken != "access-2" {
			t.Fatalf("expected every waiter to get access-2, got %q", p.AccessToken)
		}
	}
	stored, ok, err := store.Read(context.Background())
	if err != nil || !ok || stored.AccessToken != "access-2" || stored.RefreshToken != "refresh-2" {
		t.Fatalf("store not updated: %+v ok=%v err=%v", stored, ok, err)
	}
	if joined.Load() != n-1 {
		t.Fatalf("expected %d non-leading callers, got %d", n-1, joined.Load())
	}
}

func TestRefreshAlreadyRotatedSkipsNetwork(t *testing.T) {
	store := newTestStore(t, credstore.Pair{AccessToken: "access-9", RefreshToken: "refresh-9"})
	r := &fakeRefresher{}
	c, _ := New(r, store, Config{})

	p, err := c.Refresh(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if p.AccessToken != "access-9" || r.calls.Load() != 0 {
		t.Fatalf("expected stored pair without network call, got %+v calls=%d", p, r.calls.Load())
	}
}

func TestRefreshRejectionInvalidatesOnce(t *testing.T) {
	store := newTestStore(t, initialPair)
	r := &fakeRefresher{gate: make(chan struct{}), err: authapi.ErrUnauthorized}
	var invalidations atomic.Int32
	c, _ := New(r, store, Config{OnInvalidated: func(string) { invalidations.Add(1) }})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background(), "access-1")
			errs <- err
		}()
	}
	time.Sleep(30 * time.Millisecond)
	close(r.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, authapi.ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	}
	if store.clears.Load() != 1 || invalidations.Load() != 1 {
		t.Fatalf("expected one clear and one invalidation, got clears=%d invalidations=%d",
			store.clears.Load(), invalidations.Load())
	}
	if _, ok, _ := store.Read(context.Background()); ok {
		t.Fatal("expected store to be empty")
	}

	// A later caller with a different stale token finds nothing to refresh.
	if _, err := c.Refresh(context.Background(), "access-x"); !errors.Is(err, authapi.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid on empty store, got %v", err)
	}
	if store.clears.Load() != 1 || invalidations.Load() != 1 {
		t.Fatal("empty-store refresh must not clear or invalidate again")
	}
}

func TestRefreshTransientFailureKeepsStore(t *testing.T) {
	store := newTestStore(t, initialPair)
	netErr := fmt.Errorf("%w: connection refused", authapi.ErrNetwork)
	r := &fakeRefresher{err: netErr}
	c, _ := New(r, store, Config{OnInvalidated: func(string) { t.Fatal("transient failure must not invalidate") }})

	_, err := c.Refresh(context.Background(), "access-1")
	if !errors.Is(err, authapi.ErrNetwork) || errors.Is(err, authapi.ErrSessionInvalid) {
		t.Fatalf("expected transient network error, got %v", err)
	}
	stored, ok, _ := store.Read(context.Background())
	if !ok || stored != initialPair {
		t.Fatalf("expected store untouched, got %+v ok=%v", stored, ok)
	}
}

func TestRevokeDuringFlightDiscardsResult(t *testing.T) {
	store := newTestStore(t, initialPair)
	r := &fakeRefresher{gate: make(chan struct{})}
	c, _ := New(r, store, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), "access-1")
		done <- err
	}()
	for r.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	prior, err := c.Revoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if prior != initialPair {
		t.Fatalf("expected prior pair returned, got %+v", prior)
	}

	close(r.gate)
	if err := <-done; !errors.Is(err, authapi.ErrSessionInvalid) {
		t.Fatalf("expected discarded refresh to report ErrSessionInvalid, got %v", err)
	}
	if _, ok, _ := store.Read(context.Background()); ok {
		t.Fatal("refresh result must not resurrect a logged-out session")
	}
	if store.saves.Load() != 0 {
		t.Fatalf("expected no saves, got %d", store.saves.Load())
	}
}

func TestInstallRejectsStaleEpoch(t *testing.T) {
	store := newTestStore(t, credstore.Pair{})
	c, _ := New(&fakeRefresher{}, store, Config{})

	epoch := c.Epoch()
	if _, err := c.Revoke(context.Background(), nil); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	committed := false
	err := c.Install(context.Background(), epoch, initialPair, func() { committed = true })
	if !errors.Is(err, ErrSuperseded) || committed {
		t.Fatalf("expected ErrSuperseded without commit, got err=%v committed=%v", err, committed)
	}

	if err := c.Install(context.Background(), c.Epoch(), initialPair, func() { committed = true }); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to run")
	}
}

func TestInvalidateOnlyMatchingToken(t *testing.T) {
	store := newTestStore(t, initialPair)
	var invalidations atomic.Int32
	c, _ := New(&fakeRefresher{}, store, Config{OnInvalidated: func(string) { invalidations.Add(1) }})

	if c.Invalidate(context.Background(), "other") {
		t.Fatal("expected no invalidation for a different token")
	}
	if !c.Invalidate(context.Background(), "access-1") {
		t.Fatal("expected invalidation for the stored token")
	}
	if c.Invalidate(context.Background(), "access-1") {
		t.Fatal("expected second invalidation to be a no-op")
	}
	if invalidations.Load() != 1 {
		t.Fatalf("expected one invalidation, got %d", invalidations.Load())
	}
}

func TestRefreshCancelledWaiterReturnsEarly(t *testing.T) {
	store := newTestStore(t, initialPair)
	r := &fakeRefresher{gate: make(chan struct{})}
	c, _ := New(r, store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, "access-1")
		done <- err
	}()
	for r.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(r.gate)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok, _ := store.Read(context.Background()); ok && p.AccessToken == "access-2" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("flight should complete and persist after the waiter cancelled")
}

func TestBeginSupersedesOlderAttempt(t *testing.T) {
	store := newTestStore(t, credstore.Pair{})
	c, _ := New(&fakeRefresher{}, store, Config{})

	first := c.Begin()
	second := c.Begin()
	if second <= first {
		t.Fatalf("expected increasing epochs, got %d then %d", first, second)
	}
	if c.Apply(first, func() { t.Fatal("stale attempt must not apply") }) {
		t.Fatal("expected Apply to refuse stale epoch")
	}
	if err := c.Install(context.Background(), first, initialPair, nil); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if err := c.Install(context.Background(), second, initialPair, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
}
