// Package fanout implements the concurrent multi-relay read and write
// paths. Both engines run every relay fully in parallel under a single
// shared deadline, tolerate any subset of relays failing, and aggregate
// per-relay contributions in one owning goroutine draining a channel.
package fanout

import (
	"crypto/rand"
	"encoding/hex"

	"go.uber.org/zap"

	"dirnet/pkg/types"
)

// Engine runs fan-out queries and publishes against sets of relays.
// It holds no per-call state; one Engine is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// New returns an engine logging through the given logger.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// newSubscriptionID generates the per-call subscription identifier sent
// to every relay in the call.
func newSubscriptionID() types.SubscriptionID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return types.SubscriptionID(hex.EncodeToString(b[:]))
}
