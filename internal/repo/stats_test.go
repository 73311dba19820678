package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

func TestSessionStats_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := SessionStats(context.Background(), db, time.Now()); err == nil {
		t.Fatalf("expected error due to missing otp_sessions table")
	}
}

func TestSessionStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	st, err := SessionStats(context.Background(), db, time.Now())
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if st.Total != 0 || st.Latest != nil {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

func TestSessionStats_Counts(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	ctx := context.Background()
	a := &domain.Account{Username: "s"}
	if err := CreateAccount(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	rows := []*domain.OTPSession{
		{AccountID: a.ID, Code: "000001", CreatedAt: now.Add(-3 * time.Minute), ExpiresAt: now.Add(-2 * time.Minute)},
		{AccountID: a.ID, Code: "000002", CreatedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(-time.Minute), Verified: true},
		{AccountID: a.ID, Code: "000003", CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
	}
	for _, s := range rows {
		if err := CreateOTPSession(ctx, db, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	st, err := SessionStats(ctx, db, now)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if st.Total != 3 || st.Verified != 1 || st.Active != 1 || st.Expired != 1 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.Latest == nil || !st.Latest.Equal(now) {
		t.Fatalf("expected latest %v, got %v", now, st.Latest)
	}
}
