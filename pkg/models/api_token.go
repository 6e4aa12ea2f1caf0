package models

import "time"

// APIToken authenticates non-interactive API clients. Only the bcrypt hash
// is stored; the plaintext token is shown once at creation.
type APIToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Prefix     string     `gorm:"size:16;not null;index" json:"prefix"`
	TokenHash  string     `gorm:"size:100;not null" json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
