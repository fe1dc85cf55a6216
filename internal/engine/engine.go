// Package engine provides the capability interface every storage backend
// implements, and the kvs-backed implementation of it.
//
// The engine serves as the entry point used by pkg/kvs: it dispatches to a
// concrete backend based on configuration, currently either the native
// log-structured "kvs" backend (internal/store) or a stub "sled" adapter
// reserved for a future third-party engine integration.
package engine

import (
	"context"
	stdErrors "errors"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/kvs/internal/store"
	"github.com/iamNilotpal/kvs/pkg/options"
	"go.uber.org/zap"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

	// ErrNotImplemented is returned by backends reserved for future
	// integration but not yet wired to a real implementation.
	ErrNotImplemented = stdErrors.New("engine backend not implemented")
)

// Engine is the capability surface a storage backend must provide. Get
// reports a missing key as found == false rather than an error; only Remove
// treats a missing key as a failure.
type Engine interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Remove(ctx context.Context, key string) error
	Close() error
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Open creates the engine for the given backend name. "kvs" selects the
// native log-structured engine; "sled" selects a reserved, not-yet-wired
// adapter slot for a future third-party engine.
func Open(ctx context.Context, config *Config, backend string) (Engine, error) {
	switch backend {
	case "", "kvs":
		return newKvStoreEngine(ctx, config)
	case "sled":
		return &SledEngine{}, nil
	default:
		return nil, stdErrors.New("unknown engine backend: " + backend)
	}
}

// KvStoreEngine adapts internal/store.Store to the Engine interface. Store
// handles are pooled rather than cloned per call: a handle's reader cache
// only pays off if the handle survives across operations, and pooling keeps
// one cache of open segment readers per concurrently-active caller without
// sharing a read cursor between goroutines.
type KvStoreEngine struct {
	log    *zap.SugaredLogger
	root   *store.Store
	pool   sync.Pool
	closed atomic.Bool
}

func newKvStoreEngine(ctx context.Context, config *Config) (*KvStoreEngine, error) {
	root, err := store.Open(ctx, &store.Config{Options: config.Options, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	return &KvStoreEngine{log: config.Logger, root: root}, nil
}

// acquire checks a store handle out of the pool, cloning a fresh one when
// the pool is empty.
func (e *KvStoreEngine) acquire() *store.Store {
	if h, _ := e.pool.Get().(*store.Store); h != nil {
		return h
	}
	return e.root.Clone()
}

// release returns a handle to the pool for the next operation, or closes it
// outright once the engine has shut down.
func (e *KvStoreEngine) release(h *store.Store) {
	if e.closed.Load() {
		_ = h.Close()
		return
	}
	e.pool.Put(h)
}

// Set stores a key-value pair.
func (e *KvStoreEngine) Set(ctx context.Context, key string, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	h := e.acquire()
	defer e.release(h)

	return h.Set(key, value)
}

// Get retrieves the value associated with key.
func (e *KvStoreEngine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrEngineClosed
	}

	h := e.acquire()
	defer e.release(h)

	return h.Get(key)
}

// Remove deletes key from the store.
func (e *KvStoreEngine) Remove(ctx context.Context, key string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	h := e.acquire()
	defer e.release(h)

	return h.Remove(key)
}

// Close gracefully shuts down the engine and its underlying store, closing
// every pooled handle's reader cache before the root handle itself. Handles
// checked out by in-flight operations are closed on release instead.
func (e *KvStoreEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	for {
		h, _ := e.pool.Get().(*store.Store)
		if h == nil {
			break
		}
		_ = h.Close()
	}

	return e.root.Close()
}

// SledEngine is a placeholder adapter for a future third-party sled-backed
// engine. It is wired into Open's dispatch so the backend name is already a
// stable part of the CLI and config surface, but every operation currently
// reports ErrNotImplemented.
type SledEngine struct{}

func (s *SledEngine) Set(ctx context.Context, key string, value []byte) error {
	return ErrNotImplemented
}

func (s *SledEngine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, ErrNotImplemented
}

func (s *SledEngine) Remove(ctx context.Context, key string) error {
	return ErrNotImplemented
}

func (s *SledEngine) Close() error { return nil }
