// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over OTP
// sessions used by the debug listing and the admin command.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

// OTPStats summarises the otp_sessions table at a point in time.
type OTPStats struct {
	Total    int64      `json:"total"`
	Verified int64      `json:"verified"`
	Active   int64      `json:"active"`
	Expired  int64      `json:"expired"`
	Latest   *time.Time `json:"latest,omitempty"`
}

// SessionStats returns counts of sessions per state relative to now and the
// newest CreatedAt, or nil when the table is empty.
func SessionStats(ctx context.Context, db *gorm.DB, now time.Time) (OTPStats, error) {
	var st OTPStats
	base := func() *gorm.DB { return db.WithContext(ctx).Model(&domain.OTPSession{}) }

	if err := base().Count(&st.Total).Error; err != nil {
		return OTPStats{}, err
	}
	if st.Total == 0 {
		return st, nil
	}
	if err := base().Where("verified = ?", true).Count(&st.Verified).Error; err != nil {
		return OTPStats{}, err
	}
	if err := base().Where("verified = ? AND expires_at > ?", false, now).Count(&st.Active).Error; err != nil {
		return OTPStats{}, err
	}
	st.Expired = st.Total - st.Verified - st.Active

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := base().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return OTPStats{}, err
	}
	st.Latest = &row.CreatedAt
	return st, nil
}
