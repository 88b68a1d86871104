package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"member-core/internal/model"
	"member-core/pkg/logger"
	"member-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errAlreadyApplied aborts the apply transaction when a concurrent run has
// settled the same payment; the transaction rolls back as a no-op.
var errAlreadyApplied = errors.New("payment already applied")

const applyBatchSize = 20

// SettlementService turns swept deposits into membership activations and
// commissions. Setting applied_at is the idempotence boundary: it happens at
// most once per payment, inside the same transaction as every activation side
// effect.
type SettlementService struct {
	db         *gorm.DB
	membership *MembershipService
	commission *CommissionService
}

func NewSettlementService(db *gorm.DB, membership *MembershipService, commission *CommissionService) *SettlementService {
	return &SettlementService{
		db:         db,
		membership: membership,
		commission: commission,
	}
}

// ApplySwept settles one bounded batch of swept payments and returns how many
// were applied.
func (s *SettlementService) ApplySwept(ctx context.Context) (int, error) {
	timer := time.Now()
	defer func() {
		monitor.Business.PipelineStageDuration.WithLabelValues("apply").Observe(time.Since(timer).Seconds())
	}()

	var candidates []model.PaymentIntent
	err := s.db.
		Where("sweep_status = ? AND applied_at IS NULL", model.SweepStatusSwept).
		Order("id").
		Limit(applyBatchSize).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range candidates {
		ok, err := s.applyOne(ctx, &candidates[i])
		if err != nil {
			logger.Error("failed to apply swept payment",
				zap.Uint64("payment_id", candidates[i].ID),
				zap.Error(err))
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func (s *SettlementService) applyOne(ctx context.Context, p *model.PaymentIntent) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// Second idempotence gate: the same row can be selected by two
		// concurrent runs, only one conditional update wins.
		res := tx.Model(&model.PaymentIntent{}).
			Where("id = ? AND applied_at IS NULL", p.ID).
			Update("applied_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyApplied
		}

		if err := s.membership.ActivateTx(tx, p.UserID, p.Tier, p.AmountUsdCents, &p.ID, ReasonPaymentApplied); err != nil {
			return err
		}

		if _, err := s.commission.CreateForPayment(tx, p.ID, p.UserID, p.AmountUsdCents); err != nil {
			return err
		}

		// Keyed by user so consumers see one member's events in order.
		return model.CreateOutboxMessage(tx, "member.payment.applied", strconv.FormatUint(p.UserID, 10), map[string]interface{}{
			"payment_id":       p.ID,
			"user_id":          p.UserID,
			"tier":             p.Tier,
			"amount_usd_cents": p.AmountUsdCents,
			"sweep_tx_hash":    p.SweepTxHash,
			"applied_at":       now,
		})
	})
	if err == nil {
		logger.Info("payment applied",
			zap.Uint64("payment_id", p.ID),
			zap.Uint64("user_id", p.UserID),
			zap.String("tier", p.Tier))
		return true, nil
	}
	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	return false, err
}
