package domain

import "time"

// OTPSession is one issued login code.
//
// A session is active while it is unverified and its expiry lies in the
// future. Verified flips false→true exactly once and never back; rows are
// only deleted when delivery of a freshly issued code fails (or by the
// optional retention janitor long after expiry).
//
// Codes are not unique across the table: different accounts can receive the
// same six digits over time, and verification disambiguates by recency and
// state. ID is an autoincrement key so that "newest first" has a strict tie
// breaker when two rows share a CreatedAt.
type OTPSession struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	AccountID string    `json:"account_id" gorm:"type:char(36);not null;index:idx_otp_account_verified,priority:1"`
	Code      string    `json:"code"       gorm:"type:varchar(6);not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	Verified  bool      `json:"verified"   gorm:"not null;default:false;index:idx_otp_account_verified,priority:2"`

	// Account owns the session; sessions are removed with their account.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for OTPSession.
func (OTPSession) TableName() string { return "otp_sessions" }

// Active reports whether the code can still be redeemed at now.
func (s *OTPSession) Active(now time.Time) bool {
	return !s.Verified && s.ExpiresAt.After(now)
}

// Expired reports whether the code lapsed without being redeemed.
func (s *OTPSession) Expired(now time.Time) bool {
	return !s.Verified && !s.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, floored at zero.
func (s *OTPSession) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Status is a short label used by listings and logs.
func (s *OTPSession) Status(now time.Time) string {
	switch {
	case s.Verified:
		return "used"
	case s.Expired(now):
		return "expired"
	default:
		return "active"
	}
}
