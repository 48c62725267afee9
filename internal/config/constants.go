// Package config holds engine-wide defaults and tunables.
//
// Everything here is a constant rather than a loaded file: the knobs a
// host actually varies (timeout, caching mode, tag indicator) are
// Options set per Context, not process configuration.
package config

import "time"

const (
	// DefaultTagIndicator is the tag mark character before RuntimeGuard
	// locks it at engine start.
	DefaultTagIndicator = '#'

	// DefaultTimeout is applied when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// MinTimeout is the floor enforced on any configured timeout.
	MinTimeout = time.Millisecond

	// DefaultEmbeddedRawLimit is the byte size under which an inlined raw
	// file is embedded into the cached AST rather than re-fetched per render.
	DefaultEmbeddedRawLimit = 32 * 1024

	// DefaultPollingFrequency is used for auto-updating caches when the
	// host does not override it.
	DefaultPollingFrequency = 10 * time.Second

	// TouchFlushThreshold is the number of pending touch samples an AST
	// accumulates before the Cache forces an aggregation flush.
	TouchFlushThreshold = 128

	// SerializerTickInterval is how many main-loop iterations the
	// Serializer executes between deadline checks.
	SerializerTickInterval = 256
)
