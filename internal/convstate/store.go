// Package convstate keeps the pending multi-message flow of each conversant.
//
// A conversant has at most one PendingContext; Put overwrites (last write
// wins). Expiry is an explicit timestamp derived from the context's creation
// time and checked on every read, so no timers are armed and updating a
// context mid-flow never extends its lifetime.
package convstate

import (
	"context"
	"time"

	"finbot/internal/domain"
)

// TTL is how long a pending flow survives without completing.
const TTL = 10 * time.Minute

// Store is the keyed conversation state store injected into flows.
type Store interface {
	Put(ctx context.Context, conversant string, pc domain.PendingContext) error
	Get(ctx context.Context, conversant string) (domain.PendingContext, bool, error)
	TakeAndClear(ctx context.Context, conversant string) (domain.PendingContext, bool, error)
	Clear(ctx context.Context, conversant string) error
	Has(ctx context.Context, conversant string) (bool, error)
}

// ExpiresAt returns when pc stops being reachable. A zero creation time
// counts from now.
func ExpiresAt(pc domain.PendingContext, ttl time.Duration, now time.Time) time.Time {
	created := pc.Meta().CreatedAt
	if created.IsZero() {
		created = now
	}
	return created.Add(ttl)
}

// Expired applies the boundary policy: at exactly expiresAt the context is
// already gone.
func Expired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}
