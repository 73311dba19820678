// Package services – OTPService
//
// OTPService is the store of issued login codes. It creates sessions, answers
// "is something already pending for this account", resolves submitted codes
// with a fixed precedence (active, then expired, then not found), and marks
// sessions verified with a storage-level conditional update so that only one
// concurrent verifier can win.
//
// Issue wraps the duplicate check, creation, and delivery of a code in a
// per-account critical section. If delivery fails the fresh session is
// deleted before the lock is released, so no other caller ever observes it.
//
// Time always comes from the injected clock; expiry is decided at read time.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/keylock"
	"github.com/tbourn/go-telegram-otp/internal/observability"
	"github.com/tbourn/go-telegram-otp/internal/repo"
)

// Default lifetimes of a login code.
const (
	DefaultOTPTTL = 300 * time.Second
	ChatOTPTTL    = 60 * time.Second
)

// Channel labels used for metrics and logs.
const (
	ChannelChat = "chat"
	ChannelWeb  = "web"
)

// DeliverFunc sends a freshly created code to its owner. A non-nil error
// rolls the session back.
type DeliverFunc func(ctx context.Context, s *domain.OTPSession) error

// OTPService owns the otp_sessions table.
type OTPService struct {
	DB    *gorm.DB
	Clock clock.Clock

	// NewCode produces codes; GenerateCode unless a test overrides it.
	NewCode func() string

	// DefaultTTL applies when CreateForAccount gets a non-positive ttl.
	DefaultTTL time.Duration

	locks *keylock.Table
}

// NewOTPService returns an OTPService using the real clock and crypto codes.
func NewOTPService(db *gorm.DB, clk clock.Clock) *OTPService {
	if clk == nil {
		clk = clock.Real()
	}
	return &OTPService{
		DB:         db,
		Clock:      clk,
		NewCode:    GenerateCode,
		DefaultTTL: DefaultOTPTTL,
		locks:      keylock.New(),
	}
}

func (s *OTPService) tracer() trace.Tracer { return otel.Tracer("services/OTPService") }

// CreateForAccount generates a code and persists a session expiring ttl from
// now. Codes are not checked for uniqueness against other accounts.
func (s *OTPService) CreateForAccount(ctx context.Context, accountID string, ttl time.Duration) (*domain.OTPSession, error) {
	ctx, span := s.tracer().Start(ctx, "CreateForAccount",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.Int64("ttl_seconds", int64(ttl/time.Second)),
		),
	)
	defer span.End()

	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	now := s.Clock.Now()
	sess := &domain.OTPSession{
		AccountID: accountID,
		Code:      s.NewCode(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := repo.CreateOTPSession(ctx, s.DB, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ActiveSessionFor returns the newest unverified, unexpired session for the
// account, or nil when there is none.
func (s *OTPService) ActiveSessionFor(ctx context.Context, accountID string) (*domain.OTPSession, error) {
	ctx, span := s.tracer().Start(ctx, "ActiveSessionFor",
		trace.WithAttributes(attribute.String("account.id", accountID)),
	)
	defer span.End()

	rows, err := repo.ListUnverifiedOTPSessions(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	for i := range rows {
		if rows[i].Active(now) {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// ResolveByCode scans sessions with code newest first. An active match wins;
// otherwise an expired unverified match yields ErrCodeExpired; otherwise
// ErrCodeNotFound.
func (s *OTPService) ResolveByCode(ctx context.Context, code string) (*domain.OTPSession, error) {
	ctx, span := s.tracer().Start(ctx, "ResolveByCode")
	defer span.End()

	rows, err := repo.ListOTPSessionsByCode(ctx, s.DB, code)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	sawExpired := false
	for i := range rows {
		switch {
		case rows[i].Active(now):
			return &rows[i], nil
		case rows[i].Expired(now):
			sawExpired = true
		}
	}
	if sawExpired {
		return nil, ErrCodeExpired
	}
	return nil, ErrCodeNotFound
}

// MarkVerified flips the session to verified. A caller that loses the race to
// another verifier gets ErrCodeNotFound, the same outcome as a used code.
func (s *OTPService) MarkVerified(ctx context.Context, sess *domain.OTPSession) error {
	ctx, span := s.tracer().Start(ctx, "MarkVerified",
		trace.WithAttributes(attribute.Int64("otp.id", int64(sess.ID))),
	)
	defer span.End()

	won, err := repo.MarkOTPVerified(ctx, s.DB, sess.ID)
	if err != nil {
		return err
	}
	if !won {
		return ErrCodeNotFound
	}
	sess.Verified = true
	return nil
}

// Delete removes a session. Only used to undo an issuance whose delivery failed.
func (s *OTPService) Delete(ctx context.Context, sess *domain.OTPSession) error {
	return repo.DeleteOTPSession(ctx, s.DB, sess.ID)
}

// Issue returns the account's active session if there is one (created=false)
// or creates a new session with ttl and hands it to deliver (created=true).
// The whole sequence runs under a per-account lock. When deliver fails the
// session is deleted and the error wraps ErrDeliveryFailed.
func (s *OTPService) Issue(ctx context.Context, accountID string, ttl time.Duration, channel string, deliver DeliverFunc) (sess *domain.OTPSession, created bool, err error) {
	ctx, span := s.tracer().Start(ctx, "Issue",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("channel", channel),
		),
	)
	defer span.End()

	unlock := s.locks.Lock(accountID)
	defer unlock()

	active, err := s.ActiveSessionFor(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		observability.OTPIssueSkipped.WithLabelValues(channel).Inc()
		return active, false, nil
	}

	sess, err = s.CreateForAccount(ctx, accountID, ttl)
	if err != nil {
		return nil, false, err
	}

	if derr := deliver(ctx, sess); derr != nil {
		observability.OTPDeliveryFailures.WithLabelValues(channel).Inc()
		// The request context may already be done; the rollback must still run.
		if rerr := s.Delete(context.WithoutCancel(ctx), sess); rerr != nil {
			log.Error().Err(rerr).Uint("otp_id", sess.ID).Msg("otp rollback failed")
		}
		return nil, false, fmt.Errorf("%w: %v", ErrDeliveryFailed, derr)
	}

	observability.OTPIssued.WithLabelValues(channel).Inc()
	return sess, true, nil
}

// PurgeExpired deletes sessions that expired more than retention ago, plus
// expired processed-update markers. Expiry semantics never depend on it.
func (s *OTPService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	now := s.Clock.Now()
	n, err := repo.DeleteOTPSessionsExpiredBefore(ctx, s.DB, now.Add(-retention))
	if err != nil {
		return 0, err
	}
	if _, err := repo.PurgeProcessedUpdates(ctx, s.DB, now); err != nil {
		return n, err
	}
	return n, nil
}

// RunJanitor calls PurgeExpired every interval until ctx is cancelled.
func (s *OTPService) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpired(ctx, retention)
			if err != nil {
				log.Warn().Err(err).Msg("otp janitor")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("otp janitor purged sessions")
			}
		}
	}
}
