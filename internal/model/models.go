package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment intent statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
)

// Sweep statuses.
const (
	SweepStatusPending   = "pending"
	SweepStatusFunding   = "funding"
	SweepStatusSwept     = "swept"
	SweepStatusFailed    = "failed"
	SweepStatusExhausted = "exhausted"
)

// Membership statuses.
const (
	MembershipStatusInactive = "inactive"
	MembershipStatusActive   = "active"
	MembershipStatusDeleted  = "deleted"
)

// TierLifetime is the tier whose membership never expires.
const TierLifetime = "lifetime"

// User carries the denormalized membership snapshot the web layer reads.
// SponsorID is the referral edge: set once at signup, rewritten only when the
// sponsor account is compressed out of the graph.
type User struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Username        string         `gorm:"type:varchar(255);not null;unique" json:"username"`
	Email           string         `gorm:"type:varchar(255);not null;unique" json:"email"`
	SponsorID       *uint64        `gorm:"index" json:"sponsor_id,omitempty"`
	MemberStatus    string         `gorm:"type:varchar(20);not null;default:'inactive'" json:"member_status"`
	MemberTier      string         `gorm:"type:varchar(20)" json:"member_tier"`
	MemberExpiresAt *time.Time     `json:"member_expires_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// PaymentIntent is one membership purchase attempt: a reserved deposit address
// plus the expected amount. Status moves pending -> confirmed exactly once;
// SweepStatus moves pending/failed -> funding -> swept|failed|exhausted. Both
// transitions happen through conditional updates keyed on the current value,
// which is what makes concurrent pipeline instances safe.
type PaymentIntent struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint64          `gorm:"not null;index" json:"user_id"`
	Tier             string          `gorm:"type:varchar(20);not null" json:"tier"`
	AmountUsdCents   int64           `gorm:"not null" json:"amount_usd_cents"`
	Chain            string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_path" json:"chain"`
	DepositAddress   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"deposit_address"`
	DerivationIndex  int             `gorm:"not null;uniqueIndex:idx_chain_path" json:"derivation_index"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SweepStatus      string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"sweep_status"`
	TxHash           string          `gorm:"type:varchar(66)" json:"tx_hash"`
	FromAddress      string          `gorm:"type:varchar(64)" json:"from_address"`
	ToAddress        string          `gorm:"type:varchar(64)" json:"to_address"`
	ExpectedUnits    decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"expected_units"`
	ReceivedUnits    decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"received_units"`
	OverpaymentUnits decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"overpayment_units"`
	SweepTxHash      string          `gorm:"type:varchar(66)" json:"sweep_tx_hash"`
	FundingTxHash    string          `gorm:"type:varchar(66)" json:"funding_tx_hash"`
	SweepRetryCount  int             `gorm:"not null;default:0" json:"sweep_retry_count"`
	SweepRetryAfter  *time.Time      `json:"sweep_retry_after,omitempty"`
	SweepLastError   string          `gorm:"type:text" json:"sweep_last_error,omitempty"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
	SweptAt          *time.Time      `json:"swept_at,omitempty"`
	FundedAt         *time.Time      `json:"funded_at,omitempty"`
	AppliedAt        *time.Time      `json:"applied_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ChainCursor is the per-(chain, contract) scan watermark. It never moves
// backwards, and never past a block range that failed.
type ChainCursor struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Chain            string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_chain_contract" json:"chain"`
	Contract         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chain_contract" json:"contract"`
	LastScannedBlock uint64    `gorm:"not null;default:0" json:"last_scanned_block"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}
