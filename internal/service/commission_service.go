package service

import (
	"fmt"

	"member-core/internal/model"
	"member-core/pkg/config"
	"member-core/pkg/logger"
	"member-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CommissionService allocates a split of each settled payment to the payer's
// upline.
type CommissionService struct {
	cfg *config.CommissionConfig
}

func NewCommissionService(cfg *config.CommissionConfig) *CommissionService {
	return &CommissionService{cfg: cfg}
}

type uplineEntry struct {
	userID uint64
	level  int
	active bool
}

// CreateForPayment writes the commission rows for one payment inside the
// caller's transaction and returns how many were created.
//
// Creation is idempotent per payment: if any rows already exist the call is a
// no-op. The upline walk is an explicit bounded loop, not a recursive query,
// so the depth limit is a plain loop condition.
func (c *CommissionService) CreateForPayment(tx *gorm.DB, paymentID, payerID uint64, amountUsdCents int64) (int, error) {
	var existing int64
	if err := tx.Model(&model.Commission{}).Where("payment_id = ?", paymentID).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to check existing commissions: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	upline, err := c.walkUpline(tx, payerID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, anc := range upline {
		// Inactive ancestors are skipped, not accrued; the level
		// numbering still counts them so deeper sponsors keep their
		// position.
		if !anc.active {
			continue
		}

		percent := c.cfg.NetworkPercent
		class := "network"
		if anc.level == 1 {
			percent = c.cfg.SponsorPercent
			class = "sponsor"
		}

		amount := amountUsdCents * int64(percent) / 100
		if amount <= 0 {
			continue
		}

		row := model.Commission{
			PaymentID:      paymentID,
			FromUserID:     payerID,
			ToUserID:       anc.userID,
			Level:          anc.level,
			AmountUsdCents: amount,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, fmt.Errorf("failed to create commission row: %w", err)
		}

		created++
		monitor.Business.CommissionAmountTotal.WithLabelValues(class).Add(float64(amount))
	}

	if created > 0 {
		logger.Info("commissions allocated",
			zap.Uint64("payment_id", paymentID),
			zap.Uint64("payer_id", payerID),
			zap.Int("rows", created))
	}
	return created, nil
}

// walkUpline collects (ancestor, level) pairs from the payer's sponsor up to
// the configured depth. A missing sponsor link ends the walk.
func (c *CommissionService) walkUpline(tx *gorm.DB, payerID uint64) ([]uplineEntry, error) {
	var payer model.User
	if err := tx.First(&payer, payerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load payer: %w", err)
	}

	entries := make([]uplineEntry, 0, c.cfg.MaxDepth)
	next := payer.SponsorID

	for level := 1; level <= c.cfg.MaxDepth && next != nil; level++ {
		var sponsor model.User
		if err := tx.First(&sponsor, *next).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return nil, fmt.Errorf("failed to load sponsor %d: %w", *next, err)
		}

		var membership model.Membership
		active := false
		err := tx.Where("user_id = ?", sponsor.ID).First(&membership).Error
		if err == nil {
			active = membership.Status == model.MembershipStatusActive
		} else if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to load sponsor membership: %w", err)
		}

		entries = append(entries, uplineEntry{userID: sponsor.ID, level: level, active: active})
		next = sponsor.SponsorID
	}

	return entries, nil
}
