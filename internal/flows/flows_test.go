package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/ledgertest"
)

const conversant = "5511999990000"

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *convstate.Memory
	ledger *ledgertest.Ledger
	deps   Deps
	rec    domain.AuthorizationRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := i18n.Load("")
	require.NoError(t, err)
	clock := func() time.Time { return testNow }
	store := convstate.NewMemory(convstate.WithClock(clock))
	ledger := ledgertest.New()
	return &fixture{
		store:  store,
		ledger: ledger,
		deps:   Deps{Store: store, Ledger: ledger, Translator: catalog, Now: clock},
		rec:    domain.AuthorizationRecord{Conversant: conversant, UserID: "u1", Locale: "pt-BR"},
	}
}

func (f *fixture) pending(t *testing.T) domain.PendingContext {
	t.Helper()
	pc, ok, err := f.store.Get(context.Background(), conversant)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	return pc
}

func boolPtr(b bool) *bool { return &b }

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestNewFlows_RequireDeps(t *testing.T) {
	_, err := NewModeSelection(Deps{})
	require.Error(t, err)
	_, err = NewInstallmentCreation(Deps{Store: convstate.NewMemory()})
	require.Error(t, err)
	_, err = NewInstallmentDeletion(Deps{Store: convstate.NewMemory(), Ledger: ledgertest.New()})
	require.Error(t, err)
}

func TestFailed_ClearsStateEvenWhenStoreErrs(t *testing.T) {
	fx := newFixture(t)
	b, err := newBase(fx.deps, "test")
	require.NoError(t, err)
	require.NoError(t, fx.store.Put(context.Background(), conversant, &domain.CorrectionContext{}))

	step := b.failed(context.Background(), conversant, "pt-BR", domain.ActionCreateInstallment, errors.New("disk full"))
	require.False(t, step.Success)
	require.Contains(t, step.Reason, "disk full")
	require.Nil(t, fx.pending(t))
}
