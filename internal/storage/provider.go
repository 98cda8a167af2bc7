package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State tracks provider initialization.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Provider owns one lazily constructed Storage instance. The first Storage
// call selects and builds the backend from the environment; the outcome,
// instance or error, is kept until Reset. Concurrent first calls serialize,
// so exactly one construction runs.
type Provider struct {
	mu      sync.Mutex
	state   State
	storage Storage
	err     error
}

func NewProvider() *Provider {
	return &Provider{state: StateUninitialized}
}

// Storage returns the backend, constructing it on first call. A failed
// construction is fatal to every subsequent call until Reset.
func (p *Provider) Storage(ctx context.Context) (Storage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateReady:
		return p.storage, nil
	case StateFailed:
		return nil, p.err
	}

	p.state = StateInitializing
	st, err := buildStorage(LoadConfig())
	if err != nil {
		p.state = StateFailed
		p.err = err
		return nil, err
	}

	p.state = StateReady
	p.storage = st
	return st, nil
}

// State reports the current lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset discards the constructed backend and any cached error, returning the
// provider to Uninitialized. Tests use it to re-run construction under a
// different environment.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateUninitialized
	p.storage = nil
	p.err = nil
}

// buildStorage selects the backend for the config. S3 settings are validated
// here, before any SDK client exists; the memory backend is selected for the
// test environment only.
func buildStorage(cfg Config) (Storage, error) {
	env := getenv("APP_ENV", "development")

	switch cfg.Type {
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("STORAGE_TYPE=s3 requires S3_BUCKET_NAME to be set (env: %s)", env)
		}
		if cfg.S3Region == "" {
			return nil, fmt.Errorf("STORAGE_TYPE=s3 requires S3_REGION to be set (env: %s)", env)
		}
		slog.Info("using S3 storage", "bucket", cfg.S3Bucket, "region", cfg.S3Region, "endpoint", cfg.EndpointURL)
		return NewS3Storage(cfg), nil

	default:
		if env == "test" {
			slog.Info("using in-memory storage", "env", env)
			return NewMemoryStorage(cfg), nil
		}

		local, err := NewLocalStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("storage initialization failed: %w", err)
		}
		slog.Info("using local storage", "root", local.root)
		return local, nil
	}
}
