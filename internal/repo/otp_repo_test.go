package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

func TestOTPSessions_ListingOrderAndFilters(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	ctx := context.Background()

	a := &domain.Account{Username: "alice"}
	b := &domain.Account{Username: "bob"}
	for _, acct := range []*domain.Account{a, b} {
		if err := CreateAccount(ctx, db, acct); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []*domain.OTPSession{
		{AccountID: a.ID, Code: "111111", CreatedAt: base, ExpiresAt: base.Add(time.Minute)},
		{AccountID: a.ID, Code: "222222", CreatedAt: base.Add(time.Second), ExpiresAt: base.Add(time.Minute), Verified: true},
		{AccountID: a.ID, Code: "333333", CreatedAt: base.Add(2 * time.Second), ExpiresAt: base.Add(time.Minute)},
		{AccountID: b.ID, Code: "333333", CreatedAt: base.Add(3 * time.Second), ExpiresAt: base.Add(time.Minute)},
	}
	for _, s := range rows {
		if err := CreateOTPSession(ctx, db, s); err != nil {
			t.Fatalf("CreateOTPSession: %v", err)
		}
		if s.ID == 0 {
			t.Fatalf("expected ID assigned")
		}
	}

	unverified, err := ListUnverifiedOTPSessions(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("ListUnverifiedOTPSessions: %v", err)
	}
	if len(unverified) != 2 || unverified[0].Code != "333333" || unverified[1].Code != "111111" {
		t.Fatalf("unexpected unverified listing: %+v", unverified)
	}

	byCode, err := ListOTPSessionsByCode(ctx, db, "333333")
	if err != nil {
		t.Fatalf("ListOTPSessionsByCode: %v", err)
	}
	if len(byCode) != 2 || byCode[0].AccountID != b.ID || byCode[1].AccountID != a.ID {
		t.Fatalf("expected newest first across accounts: %+v", byCode)
	}

	n, err := CountOTPSessionsForAccount(ctx, db, a.ID)
	if err != nil || n != 3 {
		t.Fatalf("CountOTPSessionsForAccount = %d, %v", n, err)
	}

	recent, err := ListRecentOTPSessions(ctx, db, 0, 2)
	if err != nil || len(recent) != 2 {
		t.Fatalf("ListRecentOTPSessions len=%d err=%v", len(recent), err)
	}
	if recent[0].Account.Username != "bob" {
		t.Fatalf("expected preloaded account, got %+v", recent[0].Account)
	}
}

func TestOTPSessions_SameCreatedAtTieBreaksOnID(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	ctx := context.Background()
	a := &domain.Account{Username: "tie"}
	if err := CreateAccount(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	first := &domain.OTPSession{AccountID: a.ID, Code: "000001", CreatedAt: at, ExpiresAt: at.Add(time.Minute)}
	second := &domain.OTPSession{AccountID: a.ID, Code: "000002", CreatedAt: at, ExpiresAt: at.Add(time.Minute)}
	_ = CreateOTPSession(ctx, db, first)
	_ = CreateOTPSession(ctx, db, second)

	got, err := ListUnverifiedOTPSessions(ctx, db, a.ID)
	if err != nil || len(got) != 2 || got[0].ID != second.ID {
		t.Fatalf("expected later insert first: %+v err=%v", got, err)
	}
}

func TestMarkOTPVerified_ExactlyOnce(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	ctx := context.Background()
	a := &domain.Account{Username: "race"}
	if err := CreateAccount(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Now().UTC()
	s := &domain.OTPSession{AccountID: a.ID, Code: "424242", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := CreateOTPSession(ctx, db, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := MarkOTPVerified(ctx, db, s.ID)
			if err != nil {
				t.Errorf("MarkOTPVerified: %v", err)
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	got, err := GetOTPSession(ctx, db, s.ID)
	if err != nil || !got.Verified {
		t.Fatalf("expected verified row: %+v err=%v", got, err)
	}
}

func TestDeleteAndPurgeOTPSessions(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.OTPSession{})
	ctx := context.Background()
	a := &domain.Account{Username: "gc"}
	if err := CreateAccount(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	old := &domain.OTPSession{AccountID: a.ID, Code: "111111", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-47 * time.Hour)}
	live := &domain.OTPSession{AccountID: a.ID, Code: "222222", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	gone := &domain.OTPSession{AccountID: a.ID, Code: "333333", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	for _, s := range []*domain.OTPSession{old, live, gone} {
		if err := CreateOTPSession(ctx, db, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := DeleteOTPSession(ctx, db, gone.ID); err != nil {
		t.Fatalf("DeleteOTPSession: %v", err)
	}
	if _, err := GetOTPSession(ctx, db, gone.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted row to be gone, got %v", err)
	}

	n, err := DeleteOTPSessionsExpiredBefore(ctx, db, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteOTPSessionsExpiredBefore = %d, %v", n, err)
	}
	if _, err := GetOTPSession(ctx, db, live.ID); err != nil {
		t.Fatalf("live session must survive purge: %v", err)
	}
}
