package goSession

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/MrEthical07/goSession/credstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// OpenStore builds the credential store described by cfg. The returned close
// function releases backend connections and is never nil.
//
// The memory backend without a secret seals with a random per-process key.
func OpenStore(ctx context.Context, cfg StoreConfig) (credstore.Store, func() error, error) {
	noop := func() error { return nil }

	sealer, err := newSealer(cfg)
	if err != nil {
		return nil, noop, err
	}

	var (
		backend credstore.Backend
		closer  = noop
	)
	switch cfg.Backend {
	case StoreMemory, "":
		backend = credstore.NewMemoryBackend()
	case StoreFile:
		fb, err := credstore.NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		backend = fb
	case StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("%w: redis ping: %w", credstore.ErrStorage, err)
		}
		backend = credstore.NewRedisBackend(client, cfg.RedisPrefix)
		closer = client.Close
	case StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: postgres connect: %w", credstore.ErrStorage, err)
		}
		pb, err := credstore.NewPostgresBackend(pool, cfg.PostgresTable)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		if err := pb.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		backend = pb
		closer = func() error { pool.Close(); return nil }
	default:
		return nil, noop, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}

	store, err := credstore.New(backend, sealer, cfg.Namespace)
	if err != nil {
		_ = closer()
		return nil, noop, err
	}
	return store, closer, nil
}

func newSealer(cfg StoreConfig) (credstore.Sealer, error) {
	switch {
	case cfg.Secret != "":
		return credstore.NewKeySealer([]byte(cfg.Secret), cfg.Namespace)
	case cfg.Passphrase != "":
		return credstore.NewPassphraseSealer(cfg.Passphrase, cfg.Namespace)
	case cfg.Backend == StoreMemory || cfg.Backend == "":
		key := make([]byte, credstore.MinSecretBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return credstore.NewKeySealer(key, cfg.Namespace)
	default:
		return nil, fmt.Errorf("store backend %q requires a secret or passphrase", cfg.Backend)
	}
}
