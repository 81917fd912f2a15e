package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
)

// Builder assembles a [Client]. Each Builder can build once.
type Builder struct {
	config Config

	store      credstore.Store
	httpClient authapi.Doer
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the Auth Server base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Server.BaseURL = strings.TrimSpace(baseURL)
	return b
}

// WithStore injects a credential store. When set, Store config is ignored
// and Close does not close the store.
func (b *Builder) WithStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient injects the HTTP client used for every call. When set,
// connect and receive timeouts from config are not applied.
func (b *Builder) WithHTTPClient(c authapi.Doer) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink enables audit and delivers events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Client. The client is in
// the Initial state until [Client.Start] is called.
func (b *Builder) Build() (*Client, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a context for opening remote stores.
func (b *Builder) BuildContext(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.store != nil && cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	closeStore := func() error { return nil }
	if store == nil {
		var err error
		store, closeStore, err = OpenStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = authapi.NewHTTPClient(authapi.Timeouts{
			Connect: cfg.Timeouts.Connect,
			Receive: cfg.Timeouts.Receive,
			Request: cfg.Timeouts.Request,
		})
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := newClient(cfg, store, closeStore, httpClient, logger, b.auditSink)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	b.built = true
	return c, nil
}
