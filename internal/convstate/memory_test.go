package convstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"finbot/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func correction(c *fakeClock, user string) *domain.CorrectionContext {
	return &domain.CorrectionContext{ContextMeta: domain.ContextMeta{UserID: user, CreatedAt: c.now()}}
}

func TestMemory_PutGetTakeClear(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	ok, err := s.Has(ctx, "5511")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "5511", correction(clock, "u1")))

	pc, ok, err := s.Get(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.KindCorrection, pc.Kind())

	// Get is non-destructive.
	ok, err = s.Has(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)

	pc, ok, err = s.TakeAndClear(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", pc.Meta().UserID)

	_, ok, err = s.TakeAndClear(ctx, "5511")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "5511", correction(clock, "u1")))
	require.NoError(t, s.Clear(ctx, "5511"))
	ok, _ = s.Has(ctx, "5511")
	require.False(t, ok)
}

func TestMemory_LastPutWins(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	require.NoError(t, s.Put(ctx, "5511", correction(clock, "first")))
	require.NoError(t, s.Put(ctx, "5511", &domain.InstallmentDeletionContext{
		ContextMeta: domain.ContextMeta{UserID: "second", CreatedAt: clock.now()},
		Step:        domain.StepAwaitingSelection,
	}))

	pc, ok, err := s.Get(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.KindInstallmentDeletion, pc.Kind())
	require.Equal(t, "second", pc.Meta().UserID)
}

func TestMemory_ExpiresWithoutClear(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	require.NoError(t, s.Put(ctx, "5511", correction(clock, "u1")))

	clock.advance(TTL - time.Second)
	ok, err := s.Has(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)

	// Exactly at the boundary the context is gone.
	clock.advance(time.Second)
	ok, err = s.Has(ctx, "5511")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.TakeAndClear(ctx, "5511")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_UpdateDoesNotExtendLifetime(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	pc := &domain.InstallmentDeletionContext{
		ContextMeta: domain.ContextMeta{UserID: "u1", CreatedAt: clock.now()},
		Step:        domain.StepAwaitingSelection,
	}
	require.NoError(t, s.Put(ctx, "5511", pc))

	clock.advance(8 * time.Minute)
	pc.Step = domain.StepAwaitingConfirmation
	require.NoError(t, s.Put(ctx, "5511", pc))

	clock.advance(2 * time.Minute)
	ok, err := s.Has(ctx, "5511")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_ReplacedContextKeepsItsOwnExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	require.NoError(t, s.Put(ctx, "5511", correction(clock, "first")))
	clock.advance(5 * time.Minute)
	require.NoError(t, s.Put(ctx, "5511", correction(clock, "second")))

	// The first context's deadline passing must not wipe the second one.
	clock.advance(6 * time.Minute)
	pc, ok, err := s.Get(ctx, "5511")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", pc.Meta().UserID)
}

func TestMemory_ConversantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemory(WithClock(clock.now))

	require.NoError(t, s.Put(ctx, "a", correction(clock, "ua")))
	require.NoError(t, s.Put(ctx, "b", correction(clock, "ub")))
	require.NoError(t, s.Clear(ctx, "a"))

	ok, _ := s.Has(ctx, "a")
	require.False(t, ok)
	pc, ok, _ := s.Get(ctx, "b")
	require.True(t, ok)
	require.Equal(t, "ub", pc.Meta().UserID)
}
