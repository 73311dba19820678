// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// ProcessedUpdate model used to apply each inbound chat update at most once.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// MarkUpdateProcessed records updateID as seen. It returns ErrDuplicate when
// the update was already recorded, so callers can skip the redelivery.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64, kind string, now time.Time, ttl time.Duration) error {
	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeProcessedUpdates deletes markers that expired before now.
func PurgeProcessedUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE/PK violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key")
}
