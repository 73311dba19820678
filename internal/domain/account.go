// Package domain defines the persistence models for accounts, one-time login
// codes, and processed chat updates. These types are mapped with GORM and form
// the core data layer of the OTP gateway.
package domain

import (
	"time"
)

// Account is the web identity a user logs into. It becomes reachable over the
// chat channel once a Telegram identity has been linked to it (usually by
// sharing a contact with the bot).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username: unique login handle.
//   - Email: optional contact address; used as a login identifier.
//   - TelegramID: numeric chat identity, nil until linked; unique when set.
//   - TelegramUsername: last seen Telegram @handle (informational).
//   - PhoneNumber: contact phone, nil until linked; unique when set.
type Account struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	Username         string    `json:"username"          gorm:"type:varchar(150);not null;uniqueIndex"`
	Email            string    `json:"email,omitempty"   gorm:"type:varchar(254);index"`
	FirstName        string    `json:"first_name"        gorm:"type:varchar(150)"`
	LastName         string    `json:"last_name"         gorm:"type:varchar(150)"`
	TelegramID       *int64    `json:"telegram_id"       gorm:"uniqueIndex"`
	TelegramUsername string    `json:"telegram_username" gorm:"type:varchar(64)"`
	PhoneNumber      *string   `json:"phone_number"      gorm:"type:varchar(32);uniqueIndex"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Linked reports whether a chat identity is attached.
func (a *Account) Linked() bool { return a != nil && a.TelegramID != nil && *a.TelegramID != 0 }

// Phone returns the linked phone number or "".
func (a *Account) Phone() string {
	if a == nil || a.PhoneNumber == nil {
		return ""
	}
	return *a.PhoneNumber
}

// DisplayName picks the friendliest available name for greetings.
func (a *Account) DisplayName() string {
	switch {
	case a == nil:
		return ""
	case a.FirstName != "":
		return a.FirstName
	case a.TelegramUsername != "":
		return a.TelegramUsername
	default:
		return a.Username
	}
}
