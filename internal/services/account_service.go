// Package services – AccountService
//
// AccountService resolves login identifiers to accounts and attaches chat
// identities to accounts when a user shares their contact with the bot.
// Moving a chat identity to a different account clears it from the previous
// holder inside the same transaction, so the unique index never trips.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/repo"
)

// fallbackUsername is used when a chat user has no public handle.
const fallbackUsername = "user"

// AccountService provides account lookups and contact linking.
type AccountService struct {
	DB *gorm.DB
}

// ContactLink describes a contact shared over the chat channel.
type ContactLink struct {
	SenderID      int64 // chat identity of the user who sent the contact
	ContactUserID int64 // chat identity embedded in the contact card (0 if none)
	Phone         string
	Username      string // sender's public handle, may be empty
	FirstName     string
	LastName      string
}

// ByTelegramID returns the account linked to a chat identity.
func (s *AccountService) ByTelegramID(ctx context.Context, telegramID int64) (*domain.Account, error) {
	a, err := repo.GetAccountByTelegramID(ctx, s.DB, telegramID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// ByID returns an account by primary key.
func (s *AccountService) ByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := repo.GetAccount(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// ResolveIdentifier matches identifier against usernames, then emails, then
// phone numbers; the first hit wins.
func (s *AccountService) ResolveIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "ResolveIdentifier")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}
	lookups := []func(context.Context, *gorm.DB, string) (*domain.Account, error){
		repo.GetAccountByUsername,
		repo.GetAccountByEmail,
		repo.GetAccountByPhone,
	}
	for _, find := range lookups {
		a, err := find(ctx, s.DB, identifier)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrAccountNotFound
}

// LinkContact attaches the sender's chat identity to the account owning the
// shared phone number, creating that account if none exists. created reports
// whether a new account was made. A contact that does not belong to the
// sender is rejected with ErrContactMismatch and nothing is written.
func (s *AccountService) LinkContact(ctx context.Context, in ContactLink) (acct *domain.Account, created bool, err error) {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "LinkContact",
		trace.WithAttributes(attribute.Int64("telegram.id", in.SenderID)),
	)
	defer span.End()

	if in.ContactUserID != in.SenderID {
		return nil, false, ErrContactMismatch
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, false, fmt.Errorf("link contact: empty phone number")
	}

	// A concurrent share can take the chosen username or phone between the
	// check and the insert; one retry sees the winner's row.
	for attempt := 0; attempt < 2; attempt++ {
		acct, created = nil, false
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := repo.GetAccountByPhone(ctx, tx, phone)
			switch {
			case err == nil:
				acct = existing
				if existing.TelegramID != nil && *existing.TelegramID == in.SenderID {
					return nil
				}
				if err := repo.UnlinkTelegram(ctx, tx, in.SenderID, existing.ID); err != nil {
					return err
				}
				if err := repo.LinkTelegram(ctx, tx, existing.ID, in.SenderID, in.Username); err != nil {
					return err
				}
				id := in.SenderID
				acct.TelegramID = &id
				acct.TelegramUsername = in.Username
				return nil

			case errors.Is(err, repo.ErrNotFound):
				username, err := uniqueUsername(ctx, tx, in.Username)
				if err != nil {
					return err
				}
				// The chat identity may still sit on another account.
				if err := repo.UnlinkTelegram(ctx, tx, in.SenderID, ""); err != nil {
					return err
				}
				id := in.SenderID
				acct = &domain.Account{
					Username:         username,
					Email:            strings.ReplaceAll(phone, " ", ""),
					FirstName:        in.FirstName,
					LastName:         in.LastName,
					TelegramID:       &id,
					TelegramUsername: in.Username,
					PhoneNumber:      &phone,
				}
				created = true
				return repo.CreateAccount(ctx, tx, acct)

			default:
				return err
			}
		})
		if !errors.Is(err, repo.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, false, err
	}
	return acct, created, nil
}

// ListPage returns up to limit accounts in creation order and the total count.
func (s *AccountService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Account, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := repo.CountAccounts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Account{}, 0, nil
	}
	items, err := repo.ListAccountsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// uniqueUsername returns base (or "user") if free, else base_1, base_2, ...
func uniqueUsername(ctx context.Context, db *gorm.DB, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallbackUsername
	}
	candidate := base
	for n := 1; ; n++ {
		taken, err := repo.UsernameExists(ctx, db, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}
