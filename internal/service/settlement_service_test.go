package service

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"member-core/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSettlementService(db *gorm.DB) *SettlementService {
	return NewSettlementService(db,
		NewMembershipService(db, testMembershipConfig()),
		NewCommissionService(testCommissionConfig()))
}

func markSwept(t *testing.T, db *gorm.DB, intentID uint64) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Model(&model.PaymentIntent{}).Where("id = ?", intentID).
		Updates(map[string]interface{}{
			"sweep_status":  model.SweepStatusSwept,
			"sweep_tx_hash": "0xsweep",
			"swept_at":      now,
		}).Error)
}

func TestApplySweptActivatesAndPaysCommission(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	sponsor := createTestUser(t, db, "sponsor", nil)
	activateTestMembership(t, db, sponsor.ID, "basic")
	payer := createTestUser(t, db, "payer", &sponsor.ID)

	intent := createConfirmedIntent(t, db, payer.ID, 1)
	markSwept(t, db, intent.ID)

	applied, err := svc.ApplySwept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	var got model.PaymentIntent
	require.NoError(t, db.First(&got, intent.ID).Error)
	require.NotNil(t, got.AppliedAt)

	var m model.Membership
	require.NoError(t, db.Where("user_id = ?", payer.ID).First(&m).Error)
	assert.Equal(t, model.MembershipStatusActive, m.Status)
	assert.Equal(t, "basic", m.Tier)

	var commissions []model.Commission
	require.NoError(t, db.Where("payment_id = ?", intent.ID).Find(&commissions).Error)
	require.Len(t, commissions, 1)
	assert.Equal(t, sponsor.ID, commissions[0].ToUserID)
	assert.Equal(t, int64(290), commissions[0].AmountUsdCents)

	var record model.PaymentRecord
	require.NoError(t, db.Where("payment_id = ?", intent.ID).First(&record).Error)
	assert.Equal(t, "confirmed", record.Status)
	assert.Equal(t, "onchain", record.Source)

	var outbox model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", "member.payment.applied").First(&outbox).Error)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(outbox.Payload, &payload))
	assert.EqualValues(t, intent.ID, payload["payment_id"])
	assert.Equal(t, "PENDING", outbox.Status)
	assert.Equal(t, strconv.FormatUint(payer.ID, 10), outbox.PartitionKey)
}

func TestApplySweptIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	payer := createTestUser(t, db, "payer", nil)
	intent := createConfirmedIntent(t, db, payer.ID, 1)
	markSwept(t, db, intent.ID)

	applied, err := svc.ApplySwept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// The second pass sees nothing applicable.
	applied, err = svc.ApplySwept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var events int64
	require.NoError(t, db.Model(&model.MembershipEvent{}).Where("user_id = ?", payer.ID).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	var outboxCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount)
}

func TestApplyOneLosesRaceCleanly(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	payer := createTestUser(t, db, "payer", nil)
	intent := createConfirmedIntent(t, db, payer.ID, 1)
	markSwept(t, db, intent.ID)

	// Simulate a concurrent instance winning the conditional update first.
	now := time.Now()
	require.NoError(t, db.Model(&model.PaymentIntent{}).Where("id = ?", intent.ID).
		Update("applied_at", now).Error)

	var stale model.PaymentIntent
	require.NoError(t, db.First(&stale, intent.ID).Error)
	stale.AppliedAt = nil // stale in-memory copy, as a loser would hold

	ok, err := svc.applyOne(context.Background(), &stale)
	require.NoError(t, err)
	assert.False(t, ok)

	// No side effects from the losing call.
	var m int64
	require.NoError(t, db.Model(&model.Membership{}).Where("user_id = ?", payer.ID).Count(&m).Error)
	assert.Equal(t, int64(0), m)
}

func TestApplySkipsUnsweptPayments(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	payer := createTestUser(t, db, "payer", nil)
	createConfirmedIntent(t, db, payer.ID, 1) // confirmed but not swept

	applied, err := svc.ApplySwept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}
