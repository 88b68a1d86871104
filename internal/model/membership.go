package model

import (
	"time"
)

// Membership is the per-user subscription row. ExpiresAt NULL means lifetime.
type Membership struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64     `gorm:"not null;uniqueIndex" json:"user_id"`
	Tier        string     `gorm:"type:varchar(20);not null" json:"tier"`
	Status      string     `gorm:"type:varchar(20);not null;default:'inactive';index" json:"status"`
	StartsAt    time.Time  `json:"starts_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
	InactiveAt  *time.Time `json:"inactive_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MembershipEvent records one status transition for audit.
type MembershipEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64    `gorm:"not null;index" json:"user_id"`
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Reason     string    `gorm:"type:varchar(64);not null" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Commission is an immutable ledger row. At most one set of rows exists per
// payment; level 1 is the direct sponsor, deeper levels are network.
type Commission struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID      uint64    `gorm:"not null;index" json:"payment_id"`
	FromUserID     uint64    `gorm:"not null;index" json:"from_user_id"`
	ToUserID       uint64    `gorm:"not null;index" json:"to_user_id"`
	Level          int       `gorm:"not null" json:"level"`
	AmountUsdCents int64     `gorm:"not null" json:"amount_usd_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentRecord is the purchase-history ledger the web layer lists. It is
// upserted to confirmed by membership activation, which also serves manually
// credited payments that never had an on-chain intent.
type PaymentRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64    `gorm:"not null;index" json:"user_id"`
	PaymentID      *uint64   `gorm:"uniqueIndex" json:"payment_id,omitempty"` // nil for manual credits
	Tier           string    `gorm:"type:varchar(20);not null" json:"tier"`
	AmountUsdCents int64     `gorm:"not null" json:"amount_usd_cents"`
	Source         string    `gorm:"type:varchar(20);not null" json:"source"` // onchain, manual
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (MembershipEvent) TableName() string {
	return "membership_events"
}

func (Commission) TableName() string {
	return "commissions"
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
