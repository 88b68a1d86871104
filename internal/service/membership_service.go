package service

import (
	"context"
	"fmt"
	"time"

	"member-core/internal/model"
	"member-core/pkg/config"
	"member-core/pkg/errno"
	"member-core/pkg/logger"
	"member-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Activation reasons recorded on membership events.
const (
	ReasonPaymentApplied = "payment_applied"
	ReasonManualCredit   = "manual_credit"
	ReasonExpired        = "expired"
	ReasonCompressed     = "compressed"
)

// MembershipService owns the inactive -> active -> inactive -> deleted state
// machine and the denormalized membership fields on the user row.
type MembershipService struct {
	db  *gorm.DB
	cfg *config.MembershipConfig
}

func NewMembershipService(db *gorm.DB, cfg *config.MembershipConfig) *MembershipService {
	return &MembershipService{db: db, cfg: cfg}
}

// Activate credits a membership outside the pipeline (manual/admin path).
// It runs the same transition as settlement, in its own transaction.
func (s *MembershipService) Activate(ctx context.Context, userID uint64, tier string, amountUsdCents int64, paymentID *uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ActivateTx(tx, userID, tier, amountUsdCents, paymentID, ReasonManualCredit)
	})
}

// ActivateTx performs the activation inside the caller's transaction.
//
// A lifetime (non-expiring) membership can never be replaced by a finite
// tier. Renewing while still active stacks: the new period extends from the
// current expiry, not from now.
func (s *MembershipService) ActivateTx(tx *gorm.DB, userID uint64, tier string, amountUsdCents int64, paymentID *uint64, reason string) error {
	plan, ok := s.cfg.Plan(tier)
	if !ok {
		return errno.ErrPlanNotFound
	}
	if amountUsdCents == 0 {
		amountUsdCents = plan.AmountUsdCents
	}

	var user model.User
	if err := tx.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errno.ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	now := time.Now()

	var membership model.Membership
	err := tx.Where("user_id = ?", userID).First(&membership).Error
	exists := err == nil
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	fromStatus := model.MembershipStatusInactive
	if exists {
		fromStatus = membership.Status

		if membership.Status != model.MembershipStatusDeleted &&
			membership.ExpiresAt == nil &&
			membership.ActivatedAt != nil &&
			plan.DurationDays != 0 {
			return errno.ErrLifetimeDowngrade
		}
	}

	var expiresAt *time.Time
	if plan.DurationDays != 0 {
		base := now
		if exists && membership.Status == model.MembershipStatusActive &&
			membership.ExpiresAt != nil && membership.ExpiresAt.After(now) {
			base = *membership.ExpiresAt
		}
		t := base.AddDate(0, 0, plan.DurationDays)
		expiresAt = &t
	}

	membership.UserID = userID
	membership.Tier = tier
	membership.Status = model.MembershipStatusActive
	membership.ActivatedAt = &now
	membership.ExpiresAt = expiresAt
	membership.InactiveAt = nil
	if !exists {
		membership.StartsAt = now
		if err := tx.Create(&membership).Error; err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}
	} else {
		if err := tx.Save(&membership).Error; err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}
	}

	err = tx.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"member_status":     model.MembershipStatusActive,
		"member_tier":       tier,
		"member_expires_at": expiresAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update user membership snapshot: %w", err)
	}

	event := model.MembershipEvent{
		UserID:     userID,
		FromStatus: fromStatus,
		ToStatus:   model.MembershipStatusActive,
		Reason:     reason,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record membership event: %w", err)
	}

	if err := s.upsertPaymentRecord(tx, userID, tier, amountUsdCents, paymentID, reason); err != nil {
		return err
	}

	monitor.Business.MembershipActivationsTotal.WithLabelValues(tier).Inc()
	logger.Info("membership activated",
		zap.Uint64("user_id", userID),
		zap.String("tier", tier),
		zap.String("reason", reason))
	return nil
}

// upsertPaymentRecord keeps the purchase-history ledger in sync. The same
// path serves scanner-settled payments and manual credits without an intent.
func (s *MembershipService) upsertPaymentRecord(tx *gorm.DB, userID uint64, tier string, amountUsdCents int64, paymentID *uint64, reason string) error {
	source := "onchain"
	if reason == ReasonManualCredit {
		source = "manual"
	}

	if paymentID != nil {
		var record model.PaymentRecord
		err := tx.Where("payment_id = ?", *paymentID).First(&record).Error
		if err == nil {
			return tx.Model(&record).Update("status", "confirmed").Error
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to load payment record: %w", err)
		}
	}

	record := model.PaymentRecord{
		UserID:         userID,
		PaymentID:      paymentID,
		Tier:           tier,
		AmountUsdCents: amountUsdCents,
		Source:         source,
		Status:         "confirmed",
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// Expire moves every lapsed active membership to inactive. One transaction
// covers the batch so user snapshots, memberships and events stay consistent.
func (s *MembershipService) Expire(ctx context.Context) (int, error) {
	now := time.Now()
	expired := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lapsed []model.Membership
		if err := tx.
			Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", model.MembershipStatusActive, now).
			Find(&lapsed).Error; err != nil {
			return err
		}

		for i := range lapsed {
			m := &lapsed[i]
			updates := map[string]interface{}{
				"status":      model.MembershipStatusInactive,
				"inactive_at": now,
			}
			if err := tx.Model(m).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.User{}).Where("id = ?", m.UserID).
				Update("member_status", model.MembershipStatusInactive).Error; err != nil {
				return err
			}
			event := model.MembershipEvent{
				UserID:     m.UserID,
				FromStatus: model.MembershipStatusActive,
				ToStatus:   model.MembershipStatusInactive,
				Reason:     ReasonExpired,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		logger.Info("memberships expired", zap.Int("count", expired))
	}
	return expired, nil
}

// Compress deletes memberships that stayed inactive past the grace period.
// Direct referrals of a deleted user are relinked to that user's own sponsor
// first, so the remaining tree keeps its commission eligibility without
// walking through deleted nodes.
func (s *MembershipService) Compress(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.CompressionGrace)
	compressed := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []model.Membership
		if err := tx.
			Where("status = ? AND inactive_at IS NOT NULL AND inactive_at <= ?", model.MembershipStatusInactive, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}

		for i := range stale {
			m := &stale[i]

			var user model.User
			if err := tx.First(&user, m.UserID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					continue
				}
				return err
			}

			if err := tx.Model(&model.User{}).Where("sponsor_id = ?", user.ID).
				Update("sponsor_id", user.SponsorID).Error; err != nil {
				return err
			}

			if err := tx.Model(m).Update("status", model.MembershipStatusDeleted).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.User{}).Where("id = ?", user.ID).
				Update("member_status", model.MembershipStatusDeleted).Error; err != nil {
				return err
			}

			event := model.MembershipEvent{
				UserID:     user.ID,
				FromStatus: model.MembershipStatusInactive,
				ToStatus:   model.MembershipStatusDeleted,
				Reason:     ReasonCompressed,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			compressed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if compressed > 0 {
		logger.Info("inactive memberships compressed", zap.Int("count", compressed))
	}
	return compressed, nil
}
