package models

import (
	"time"
)

// License represents a single-machine software license key.
// HWID is empty until the first successful validation binds the key to a
// machine; ActivatedAt is set at the same moment and neither changes again.
type License struct {
	ID       uint    `gorm:"column:id;primaryKey" json:"id"`
	Key      string  `gorm:"column:key;size:64;not null;uniqueIndex" json:"key"`
	HWID     *string `gorm:"column:hwid;size:255" json:"hwid"`
	IsActive bool    `gorm:"column:is_active;default:true" json:"is_active"`

	// Descriptive metadata, no behavioral effect
	Note    string `gorm:"column:note;size:255" json:"note"`
	BotName string `gorm:"column:bot_name;size:100" json:"bot_name"`

	// Timestamps
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	ActivatedAt *time.Time `gorm:"column:activated_at" json:"activated_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at" json:"expires_at"`
}

func (License) TableName() string {
	return "licenses"
}

// IsBound reports whether the key has been bound to a machine.
func (l *License) IsBound() bool {
	return l.HWID != nil && *l.HWID != ""
}

// IsExpired reports whether the license has a deadline in the past.
// A nil ExpiresAt means the license is perpetual.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
