// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When an account is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - CreateAccount wraps unique-index violations in ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAccount inserts a new account. A UUID is assigned when a.ID is empty
// and timestamps default to now (UTC).
func CreateAccount(ctx context.Context, db *gorm.DB, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	return nil
}

// GetAccount fetches an account by primary key.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	return firstAccount(ctx, db, "id = ?", id)
}

// GetAccountByTelegramID fetches the account linked to a chat identity.
func GetAccountByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.Account, error) {
	return firstAccount(ctx, db, "telegram_id = ?", telegramID)
}

// GetAccountByUsername fetches an account by its unique username.
func GetAccountByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.Account, error) {
	return firstAccount(ctx, db, "username = ?", username)
}

// GetAccountByEmail fetches the first account carrying the email address.
func GetAccountByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	return firstAccount(ctx, db, "email = ?", email)
}

// GetAccountByPhone fetches the account owning a phone number.
func GetAccountByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Account, error) {
	return firstAccount(ctx, db, "phone_number = ?", phone)
}

// UsernameExists reports whether username is already taken.
func UsernameExists(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("username = ?", username).
		Count(&n).Error
	return n > 0, err
}

// LinkTelegram attaches (or refreshes) the chat identity on an account.
// It returns ErrNotFound when no row matched id.
func LinkTelegram(ctx context.Context, db *gorm.DB, id string, telegramID int64, telegramUsername string) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"telegram_id":       telegramID,
			"telegram_username": telegramUsername,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlinkTelegram clears a chat identity from every account except keepID.
// It is used to move an identity between accounts without tripping the
// unique index.
func UnlinkTelegram(ctx context.Context, db *gorm.DB, telegramID int64, keepID string) error {
	return db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("telegram_id = ? AND id <> ?", telegramID, keepID).
		Updates(map[string]any{
			"telegram_id": gorm.Expr("NULL"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

// CountAccounts returns the total number of accounts.
func CountAccounts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Account{}).Count(&total).Error
	return total, err
}

// ListAccountsPage returns accounts ordered by creation time ascending.
func ListAccountsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Account, error) {
	var out []domain.Account
	err := db.WithContext(ctx).
		Order("created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func firstAccount(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where(where, arg).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
