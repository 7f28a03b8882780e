// Package limiter defines interfaces and implementations for second-factor
// attempt limiting.
package limiter

import (
	"context"
	"time"
)

// Limiter controls parent second-factor attempts and temporary lockouts,
// keyed by family and client address hash.
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and optional retry-after.
	Allow(ctx context.Context, familyID string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful verification.
	Success(ctx context.Context, familyID string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, familyID string, ipHash []byte) (bool, time.Duration, error)
}
