// Package auth resolves a conversant to a user identity and permission set.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"finbot/internal/domain"
)

// Store reads the two authorization sources. Absent rows are reported with
// ok=false, not as errors.
type Store interface {
	FindAuthorizedNumber(ctx context.Context, phone string) (domain.AuthorizedNumber, bool, error)
	FindLegacySession(ctx context.Context, phone string) (domain.LegacySession, bool, error)
}

// Result is the outcome of CheckAuthorization.
type Result struct {
	Authorized bool
	Record     domain.AuthorizationRecord
	Err        error
}

// Gate answers "who is this and what may they do".
type Gate struct {
	store  Store
	logger *zap.Logger
}

// NewGate creates a Gate over store.
func NewGate(store Store, logger *zap.Logger) (*Gate, error) {
	if store == nil {
		return nil, errors.New("auth: store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, logger: logger}, nil
}

// CheckAuthorization looks up the granular per-number record first and falls
// back to a legacy session with full permissions. A lookup failure is
// returned in Result.Err and the conversant is treated as unauthorized.
func (g *Gate) CheckAuthorization(ctx context.Context, conversant string) Result {
	phone := NormalizePhone(conversant)
	if phone == "" {
		return Result{Err: errors.New("auth: empty conversant")}
	}

	num, ok, err := g.store.FindAuthorizedNumber(ctx, phone)
	if err != nil {
		g.logger.Warn("authorized number lookup failed", zap.String("conversant", phone), zap.Error(err))
		return Result{Err: fmt.Errorf("auth: authorized number lookup: %w", err)}
	}
	if ok {
		return Result{
			Authorized: true,
			Record: domain.AuthorizationRecord{
				Conversant:  phone,
				UserID:      num.UserID,
				Locale:      num.Locale,
				Permissions: num.Permissions,
			},
		}
	}

	sess, ok, err := g.store.FindLegacySession(ctx, phone)
	if err != nil {
		g.logger.Warn("legacy session lookup failed", zap.String("conversant", phone), zap.Error(err))
		return Result{Err: fmt.Errorf("auth: legacy session lookup: %w", err)}
	}
	if ok {
		full := domain.FullPermissions()
		return Result{
			Authorized: true,
			Record: domain.AuthorizationRecord{
				Conversant:  phone,
				UserID:      sess.UserID,
				Locale:      sess.Locale,
				Permissions: &full,
				Legacy:      true,
			},
		}
	}
	return Result{}
}

// NormalizePhone keeps only the digits of a messaging identifier
// ("whatsapp:+55 11 98888-7777" -> "5511988887777").
func NormalizePhone(conversant string) string {
	var b strings.Builder
	for _, r := range conversant {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
