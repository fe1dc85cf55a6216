// Package kvs provides a high-performance key/value data store designed for
// fast read and write operations, inspired by Bitcask. It combines an
// in-memory hash table (the index) with an append-only log structure on
// disk to achieve high throughput, aiming to provide a simple, efficient,
// and reliable solution for persistent key-value storage in Go applications.
package kvs

import (
	"context"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/pkg/logger"
	"github.com/iamNilotpal/kvs/pkg/options"
)

// Instance represents an instance of the kvs key/value data store. It
// encapsulates the core engine responsible for data handling and the
// configuration options for this specific store instance.
//
// Instance is the primary entry point for interacting with the store,
// providing methods for setting, getting, and deleting key-value pairs.
type Instance struct {
	engine  engine.Engine    // The underlying engine handling read/write operations.
	options *options.Options // Configuration options applied to this instance.
}

// NewInstance creates and initializes a new kvs store instance.
func NewInstance(ctx context.Context, service, backend string, opts ...options.OptionFunc) (*Instance, error) {
	// Initialize a logger for the given service.
	log := logger.New(service)

	// Initialize default options.
	defaultOpts := options.NewDefaultOptions()

	// Apply any provided functional options to override defaults.
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	// Create the underlying engine with the initialized logger.
	eng, err := engine.Open(ctx, &engine.Config{Logger: log, Options: &defaultOpts}, backend)
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Set stores a key-value pair in the store. If the key already exists, its
// value will be updated. The operation is durable and will be written to
// the append-only log before returning.
func (i *Instance) Set(ctx context.Context, key string, value []byte) error {
	return i.engine.Set(ctx, key, value)
}

// Get retrieves the value associated with the given key. A key that has
// never been set, or whose last mutation was a Remove, is reported as
// found == false with a nil error.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return i.engine.Get(ctx, key)
}

// Remove deletes a key-value pair from the store.
func (i *Instance) Remove(ctx context.Context, key string) error {
	return i.engine.Remove(ctx, key)
}

// Close gracefully shuts down the store instance, releasing all associated
// resources, flushing any pending writes, and ensuring data durability.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}
