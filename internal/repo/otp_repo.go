// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the OTPSession
// model.
//
// Functions:
//
//   - CreateOTPSession(ctx, db, s) -> error
//     Inserts a session row; ID is assigned by the database.
//
//   - ListUnverifiedOTPSessions(ctx, db, accountID) -> []domain.OTPSession, error
//     Unverified sessions for an account, newest first. Expiry filtering is
//     left to the caller so that "now" comes from one injected clock.
//
//   - ListOTPSessionsByCode(ctx, db, code) -> []domain.OTPSession, error
//     Every session carrying a code, newest first, across all accounts.
//
//   - MarkOTPVerified(ctx, db, id) -> (bool, error)
//     Conditional update "verified=true WHERE id=? AND verified=false";
//     reports whether this caller won the transition.
//
//   - DeleteOTPSession(ctx, db, id) -> error
//     Hard delete used to roll back an issuance whose delivery failed.
//
//   - CountOTPSessionsForAccount / ListRecentOTPSessions / DeleteOTPSessionsExpiredBefore
//     Support listings, tests, and the retention janitor.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

// CreateOTPSession inserts s and populates its ID.
func CreateOTPSession(ctx context.Context, db *gorm.DB, s *domain.OTPSession) error {
	return db.WithContext(ctx).Omit("Account").Create(s).Error
}

// GetOTPSession fetches a session by ID, or ErrNotFound.
func GetOTPSession(ctx context.Context, db *gorm.DB, id uint) (*domain.OTPSession, error) {
	var s domain.OTPSession
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUnverifiedOTPSessions returns the account's unverified sessions ordered
// newest first.
func ListUnverifiedOTPSessions(ctx context.Context, db *gorm.DB, accountID string) ([]domain.OTPSession, error) {
	var out []domain.OTPSession
	err := db.WithContext(ctx).
		Where("account_id = ? AND verified = ?", accountID, false).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// ListOTPSessionsByCode returns all sessions with the given code, newest first.
func ListOTPSessionsByCode(ctx context.Context, db *gorm.DB, code string) ([]domain.OTPSession, error) {
	var out []domain.OTPSession
	err := db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// MarkOTPVerified flips verified to true only if it is still false. Exactly
// one concurrent caller observes true.
func MarkOTPVerified(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.OTPSession{}).
		Where("id = ? AND verified = ?", id, false).
		Update("verified", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteOTPSession removes a session by ID. Missing rows are not an error.
func DeleteOTPSession(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Delete(&domain.OTPSession{}, id).Error
}

// CountOTPSessionsForAccount returns how many sessions an account has ever had.
func CountOTPSessionsForAccount(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.OTPSession{}).
		Where("account_id = ?", accountID).
		Count(&n).Error
	return n, err
}

// ListRecentOTPSessions returns the newest sessions with their accounts preloaded.
func ListRecentOTPSessions(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.OTPSession, error) {
	var out []domain.OTPSession
	err := db.WithContext(ctx).
		Preload("Account").
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteOTPSessionsExpiredBefore removes sessions whose expiry is older than
// cutoff, verified or not, and returns how many rows went away.
func DeleteOTPSessionsExpiredBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&domain.OTPSession{})
	return res.RowsAffected, res.Error
}
