package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/repo"
)

func TestResolveIdentifier_PriorityOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := &AccountService{DB: db}

	phone := "+15550001"
	byPhone := &domain.Account{Username: "phone-owner", PhoneNumber: &phone}
	byEmail := &domain.Account{Username: "email-owner", Email: "shared"}
	byName := &domain.Account{Username: "shared"}
	for _, a := range []*domain.Account{byPhone, byEmail, byName} {
		if err := repo.CreateAccount(ctx, db, a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := svc.ResolveIdentifier(ctx, "shared")
	if err != nil || got.ID != byName.ID {
		t.Fatalf("username must win: got=%v err=%v", got, err)
	}
	got, err = svc.ResolveIdentifier(ctx, " +15550001 ")
	if err != nil || got.ID != byPhone.ID {
		t.Fatalf("phone lookup: got=%v err=%v", got, err)
	}
	if _, err := svc.ResolveIdentifier(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.ResolveIdentifier(ctx, "   "); !errors.Is(err, ErrEmptyIdentifier) {
		t.Fatalf("expected ErrEmptyIdentifier, got %v", err)
	}
}

func TestLinkContact_RejectsForeignContact(t *testing.T) {
	db := openTestDB(t)
	svc := &AccountService{DB: db}

	_, _, err := svc.LinkContact(context.Background(), ContactLink{SenderID: 1, ContactUserID: 2, Phone: "+1"})
	if !errors.Is(err, ErrContactMismatch) {
		t.Fatalf("expected ErrContactMismatch, got %v", err)
	}
	if n, _ := repo.CountAccounts(context.Background(), db); n != 0 {
		t.Fatalf("no account may be written, got %d", n)
	}
}

func TestLinkContact_CreatesAccountWithUniqueUsername(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := &AccountService{DB: db}

	for _, name := range []string{"alice", "alice_1"} {
		if err := repo.CreateAccount(ctx, db, &domain.Account{Username: name}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	acct, created, err := svc.LinkContact(ctx, ContactLink{
		SenderID: 42, ContactUserID: 42, Phone: "+998 90 123", Username: "alice", FirstName: "Alice",
	})
	if err != nil || !created {
		t.Fatalf("LinkContact: created=%v err=%v", created, err)
	}
	if acct.Username != "alice_2" || acct.Email != "+99890123" || acct.Phone() != "+998 90 123" || !acct.Linked() {
		t.Fatalf("unexpected account: %+v", acct)
	}

	// No handle falls back to "user".
	anon, _, err := svc.LinkContact(ctx, ContactLink{SenderID: 43, ContactUserID: 43, Phone: "+2"})
	if err != nil || anon.Username != "user" {
		t.Fatalf("fallback username: %+v err=%v", anon, err)
	}
}

func TestLinkContact_RetriesWhenUsernameTakenConcurrently(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := &AccountService{DB: db}

	// Another writer claims "user" after the availability check, right
	// before this insert.
	var creates int
	var stealErr error
	err := db.Callback().Create().Before("gorm:create").Register("test:claim_username", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "accounts" {
			return
		}
		creates++
		if creates == 1 {
			now := time.Now().UTC()
			stealErr = tx.Session(&gorm.Session{NewDB: true}).
				Exec("INSERT INTO accounts (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)",
					uuid.NewString(), "user", now, now).Error
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	acct, created, err := svc.LinkContact(ctx, ContactLink{SenderID: 9, ContactUserID: 9, Phone: "+9"})
	if stealErr != nil {
		t.Fatalf("competing insert: %v", stealErr)
	}
	if err != nil || !created || !acct.Linked() {
		t.Fatalf("LinkContact: acct=%+v created=%v err=%v", acct, created, err)
	}
	if creates != 2 {
		t.Fatalf("expected one retry, got %d create attempts", creates)
	}
}

func TestLinkContact_ExistingPhoneRefreshesIdentity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := &AccountService{DB: db}

	phone := "+15550009"
	owner := &domain.Account{Username: "owner", PhoneNumber: &phone}
	oldID := int64(42)
	previous := &domain.Account{Username: "previous", TelegramID: &oldID}
	for _, a := range []*domain.Account{owner, previous} {
		if err := repo.CreateAccount(ctx, db, a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	acct, created, err := svc.LinkContact(ctx, ContactLink{SenderID: 42, ContactUserID: 42, Phone: phone, Username: "tg42"})
	if err != nil || created {
		t.Fatalf("LinkContact: created=%v err=%v", created, err)
	}
	if acct.ID != owner.ID {
		t.Fatalf("linked wrong account: %s", acct.ID)
	}

	got, err := svc.ByTelegramID(ctx, 42)
	if err != nil || got.ID != owner.ID || got.TelegramUsername != "tg42" {
		t.Fatalf("identity not moved: %+v err=%v", got, err)
	}
	prev, _ := svc.ByID(ctx, previous.ID)
	if prev.Linked() {
		t.Fatalf("previous holder must be unlinked")
	}

	// Relinking the same identity is a no-op.
	if _, created, err := svc.LinkContact(ctx, ContactLink{SenderID: 42, ContactUserID: 42, Phone: phone}); err != nil || created {
		t.Fatalf("relink: created=%v err=%v", created, err)
	}
}

func TestListPage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := &AccountService{DB: db}

	items, total, err := svc.ListPage(ctx, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty: items=%d total=%d err=%v", len(items), total, err)
	}
	for _, n := range []string{"a", "b", "c"} {
		_ = repo.CreateAccount(ctx, db, &domain.Account{Username: n})
	}
	items, total, err = svc.ListPage(ctx, 0, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("page: items=%d total=%d err=%v", len(items), total, err)
	}
}
