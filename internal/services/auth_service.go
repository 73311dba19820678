// Package services – AuthService
//
// AuthService implements the web half of the login flow: requesting a code
// for an identifier (delivered over the chat channel) and redeeming a code
// for the account that owns it. Both paths write through OTPService, the same
// store the chat-side /login command uses.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/observability"
)

// CodeDeliverer sends a code to the account's linked chat identity.
type CodeDeliverer interface {
	DeliverCode(ctx context.Context, acct *domain.Account, s *domain.OTPSession) error
}

// AuthService coordinates web code requests and verification.
type AuthService struct {
	Accounts  *AccountService
	OTP       *OTPService
	Deliverer CodeDeliverer

	// TTL of web-requested codes.
	TTL time.Duration
}

// RequestResult describes the outcome of a successful RequestCode call.
type RequestResult struct {
	// Created is false when an already active session was reused and
	// nothing was sent.
	Created bool
	// TTL is the lifetime left on the session the user should type in.
	TTL     time.Duration
	Session *domain.OTPSession
}

// RequestCode resolves identifier to an account and makes sure it has an
// active code, delivering a new one over the chat channel when needed.
//
// Errors: ErrEmptyIdentifier, ErrAccountNotFound, ErrTelegramNotLinked,
// ErrDeliveryFailed (no session persists), or a raw storage error.
func (s *AuthService) RequestCode(ctx context.Context, identifier string) (RequestResult, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "RequestCode")
	defer span.End()

	acct, err := s.Accounts.ResolveIdentifier(ctx, identifier)
	if err != nil {
		return RequestResult{}, err
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))
	if !acct.Linked() {
		return RequestResult{}, ErrTelegramNotLinked
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = ChatOTPTTL
	}
	sess, created, err := s.OTP.Issue(ctx, acct.ID, ttl, ChannelWeb, func(ctx context.Context, sess *domain.OTPSession) error {
		return s.Deliverer.DeliverCode(ctx, acct, sess)
	})
	if err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			log.Warn().Err(err).Str("account_id", acct.ID).Msg("web code delivery failed")
		}
		return RequestResult{}, err
	}

	res := RequestResult{Created: created, TTL: ttl, Session: sess}
	if !created {
		res.TTL = sess.Remaining(s.OTP.Clock.Now())
	}
	return res, nil
}

// VerifyCode redeems code. On success the session is marked verified and the
// owning account is returned.
//
// Errors: ErrInvalidCodeFormat, ErrCodeExpired, ErrCodeNotFound (never
// issued, already used, or lost to a concurrent verifier), or a raw storage
// error.
func (s *AuthService) VerifyCode(ctx context.Context, code string) (*domain.Account, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "VerifyCode")
	defer span.End()

	acct, err := s.verify(ctx, code)
	observability.OTPVerifications.WithLabelValues(verifyResult(err)).Inc()
	if err == nil {
		span.SetAttributes(attribute.String("account.id", acct.ID))
	} else {
		span.AddEvent("verify_failed", trace.WithAttributes(attribute.String("reason", verifyResult(err))))
	}
	return acct, err
}

func (s *AuthService) verify(ctx context.Context, code string) (*domain.Account, error) {
	if !ValidCodeFormat(code) {
		return nil, ErrInvalidCodeFormat
	}
	sess, err := s.OTP.ResolveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.OTP.MarkVerified(ctx, sess); err != nil {
		return nil, err
	}
	return s.Accounts.ByID(ctx, sess.AccountID)
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCodeFormat):
		return "invalid_format"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeNotFound):
		return "invalid"
	default:
		return "error"
	}
}
