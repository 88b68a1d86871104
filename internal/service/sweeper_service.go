package service

import (
	"context"
	"math"
	"time"

	"member-core/internal/model"
	"member-core/internal/reserve"
	"member-core/pkg/config"
	"member-core/pkg/logger"
	"member-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// claimableStatuses are the sweep states a coordinator may take ownership of.
var claimableStatuses = []string{model.SweepStatusPending, model.SweepStatusFailed}

// SweepOutcome reports one coordinator pass.
type SweepOutcome struct {
	AttemptedCount int `json:"attempted_count"`
	SweptCount     int `json:"swept_count"`
}

// SweeperService hands confirmed deposits to the external reserve service.
//
// Ownership of a payment is taken with a conditional update to the `funding`
// status; two coordinator instances racing on the same payment cannot both
// win, so the reserve service is never asked to sweep the same deposit twice.
type SweeperService struct {
	db            *gorm.DB
	client        ReserveClient
	cfg           *config.SweepConfig
	tokenDecimals int
}

func NewSweeperService(db *gorm.DB, client ReserveClient, cfg *config.SweepConfig, tokenDecimals int) *SweeperService {
	return &SweeperService{
		db:            db,
		client:        client,
		cfg:           cfg,
		tokenDecimals: tokenDecimals,
	}
}

// SweepPending processes one bounded batch of sweep candidates.
func (s *SweeperService) SweepPending(ctx context.Context) (*SweepOutcome, error) {
	timer := time.Now()
	defer func() {
		monitor.Business.PipelineStageDuration.WithLabelValues("sweep").Observe(time.Since(timer).Seconds())
	}()

	now := time.Now()
	var candidates []model.PaymentIntent
	err := s.db.
		Where("status = ? AND sweep_status IN ? AND applied_at IS NULL", model.PaymentStatusConfirmed, claimableStatuses).
		Where("sweep_retry_after IS NULL OR sweep_retry_after <= ?", now).
		Order("id").
		Limit(s.cfg.BatchSize).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	outcome := &SweepOutcome{}
	for i := range candidates {
		s.sweepOne(ctx, &candidates[i], outcome)
	}
	return outcome, nil
}

func (s *SweeperService) sweepOne(ctx context.Context, p *model.PaymentIntent, outcome *SweepOutcome) {
	if p.SweepRetryCount >= s.cfg.MaxRetries {
		s.exhaust(p)
		return
	}

	// Claim. Zero rows means another coordinator instance got here first,
	// or the payment was applied in the meantime.
	res := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND sweep_status IN ? AND applied_at IS NULL", p.ID, claimableStatuses).
		Update("sweep_status", model.SweepStatusFunding)
	if res.Error != nil {
		logger.Error("failed to claim sweep candidate", zap.Uint64("payment_id", p.ID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	outcome.AttemptedCount++

	resp, err := s.client.Sweep(ctx, &reserve.SweepRequest{
		PaymentID:       p.ID,
		DerivationIndex: p.DerivationIndex,
		FromAddress:     p.DepositAddress,
		MinUsdtUnits:    usdCentsToUnits(p.AmountUsdCents, s.tokenDecimals),
	})
	if err != nil {
		s.recordFailure(p, err)
		return
	}

	if s.recordSuccess(p, resp) {
		outcome.SweptCount++
	}
}

// exhaust is the terminal transition after max_retries failures. It requires
// operator intervention; no further automatic attempt will touch the payment.
func (s *SweeperService) exhaust(p *model.PaymentIntent) {
	res := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND sweep_status IN ?", p.ID, claimableStatuses).
		Update("sweep_status", model.SweepStatusExhausted)
	if res.Error != nil {
		logger.Error("failed to mark sweep exhausted", zap.Uint64("payment_id", p.ID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	monitor.Business.SweepExhaustedTotal.Inc()
	logger.Error("sweep retries exhausted, operator intervention required",
		zap.Uint64("payment_id", p.ID),
		zap.Int("retry_count", p.SweepRetryCount),
		zap.String("last_error", p.SweepLastError))
}

func (s *SweeperService) recordFailure(p *model.PaymentIntent, sweepErr error) {
	retryCount := p.SweepRetryCount + 1
	delay := s.backoffDelay(retryCount)
	retryAfter := time.Now().Add(delay)

	msg := sweepErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}

	err := s.db.Model(&model.PaymentIntent{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"sweep_status":      model.SweepStatusFailed,
			"sweep_retry_count": retryCount,
			"sweep_retry_after": retryAfter,
			"sweep_last_error":  msg,
		}).Error
	if err != nil {
		logger.Error("failed to record sweep failure", zap.Uint64("payment_id", p.ID), zap.Error(err))
	}

	monitor.Business.SweepAttemptsTotal.WithLabelValues("failed").Inc()
	logger.Warn("sweep dispatch failed, scheduled for retry",
		zap.Uint64("payment_id", p.ID),
		zap.Int("retry_count", retryCount),
		zap.Duration("retry_in", delay),
		zap.Error(sweepErr))
}

// recordSuccess persists the executed sweep. Funds have already moved, so the
// write is retried locally; if every attempt fails the mismatch between the
// reserve service and our records is logged for manual reconciliation and the
// payment is deliberately left alone (re-dispatching would double-sweep).
func (s *SweeperService) recordSuccess(p *model.PaymentIntent, resp *reserve.SweepResponse) bool {
	updates := map[string]interface{}{
		"sweep_status":  model.SweepStatusSwept,
		"sweep_tx_hash": resp.SweepTxHash,
		"swept_at":      resp.SweptAt,
	}
	if resp.FundingTxHash != "" {
		updates["funding_tx_hash"] = resp.FundingTxHash
	}
	if resp.FundedAt != nil {
		updates["funded_at"] = *resp.FundedAt
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.RecordRetries; attempt++ {
		lastErr = s.db.Model(&model.PaymentIntent{}).
			Where("id = ?", p.ID).
			Updates(updates).Error
		if lastErr == nil {
			monitor.Business.SweepAttemptsTotal.WithLabelValues("swept").Inc()
			logger.Info("deposit swept",
				zap.Uint64("payment_id", p.ID),
				zap.String("sweep_tx", resp.SweepTxHash))
			return true
		}
	}

	monitor.Business.SweepInconsistencyTotal.Inc()
	logger.Error("critical inconsistency: sweep executed but could not be recorded, manual reconciliation required",
		zap.Uint64("payment_id", p.ID),
		zap.String("sweep_tx", resp.SweepTxHash),
		zap.Error(lastErr))
	return false
}

// backoffDelay is min(base * multiplier^retryCount, cap).
func (s *SweeperService) backoffDelay(retryCount int) time.Duration {
	delay := time.Duration(float64(s.cfg.BaseDelay) * math.Pow(s.cfg.BackoffMultiplier, float64(retryCount)))
	if delay > s.cfg.CapDelay || delay <= 0 {
		delay = s.cfg.CapDelay
	}
	return delay
}
