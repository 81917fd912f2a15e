package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const pairKeySuffix = ".credential_pair"

// Store is the credential persistence contract used by the session layer.
//
// Read reports ok=false when no pair is stored. All methods are atomic with
// respect to each other.
type Store interface {
	Save(ctx context.Context, pair Pair) error
	Read(ctx context.Context) (Pair, bool, error)
	Clear(ctx context.Context) error
}

// Sealed is the default [Store]: it encodes, encrypts and writes the pair to a
// [Backend] under a single namespaced key.
type Sealed struct {
	mu      sync.RWMutex
	backend Backend
	sealer  Sealer
	key     string
}

// New returns a [Sealed] store writing to namespace + ".credential_pair".
func New(backend Backend, sealer Sealer, namespace string) (*Sealed, error) {
	if backend == nil {
		return nil, errors.New("nil credential backend")
	}
	if sealer == nil {
		return nil, errors.New("nil credential sealer")
	}
	if namespace == "" {
		namespace = "gosession"
	}
	return &Sealed{
		backend: backend,
		sealer:  sealer,
		key:     namespace + pairKeySuffix,
	}, nil
}

// Key returns the backend key holding the pair.
func (s *Sealed) Key() string {
	return s.key
}

// Save replaces the stored pair. An invalid pair is rejected without touching
// the slot; any later failure deletes the slot so the previous pair can no
// longer be read as current.
func (s *Sealed) Save(ctx context.Context, pair Pair) error {
	if !pair.Valid() {
		return ErrInvalidPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ctx, pair); err != nil {
		_ = s.backend.Delete(context.WithoutCancel(ctx), s.key)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (s *Sealed) write(ctx context.Context, pair Pair) error {
	plain, err := Encode(pair)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(plain, []byte(s.key))
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, s.key, sealed)
}

func (s *Sealed) Read(ctx context.Context) (Pair, bool, error) {
	s.mu.RLock()
	data, err := s.backend.Read(ctx, s.key)
	s.mu.RUnlock()

	if errors.Is(err, ErrNotFound) {
		return Pair{}, false, nil
	}
	if err != nil {
		return Pair{}, false, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	plain, err := s.sealer.Open(data, []byte(s.key))
	if err != nil {
		return Pair{}, false, fmt.Errorf("%w: %w: %w", ErrStorage, ErrCorrupt, err)
	}
	pair, err := Decode(plain)
	if err != nil {
		return Pair{}, false, fmt.Errorf("%w: %w: %w", ErrStorage, ErrCorrupt, err)
	}
	if !pair.Valid() {
		return Pair{}, false, fmt.Errorf("%w: %w", ErrStorage, ErrCorrupt)
	}
	return pair, true, nil
}

// Clear deletes the stored pair. Clearing an empty store is not an error.
func (s *Sealed) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
