package service

import (
	"fmt"
	"testing"

	"member-core/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionAllocation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(testCommissionConfig())

	// payer <- sponsor <- grandSponsor, both ancestors active.
	grand := createTestUser(t, db, "grand", nil)
	sponsor := createTestUser(t, db, "sponsor", &grand.ID)
	payer := createTestUser(t, db, "payer", &sponsor.ID)
	activateTestMembership(t, db, grand.ID, "basic")
	activateTestMembership(t, db, sponsor.ID, "basic")

	created, err := svc.CreateForPayment(db, 101, payer.ID, 19900)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	var rows []model.Commission
	require.NoError(t, db.Where("payment_id = ?", 101).Order("level").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, sponsor.ID, rows[0].ToUserID)
	assert.Equal(t, 1, rows[0].Level)
	assert.Equal(t, int64(1990), rows[0].AmountUsdCents) // 10%

	assert.Equal(t, grand.ID, rows[1].ToUserID)
	assert.Equal(t, 2, rows[1].Level)
	assert.Equal(t, int64(398), rows[1].AmountUsdCents) // 2%
}

func TestCommissionIdempotentPerPayment(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(testCommissionConfig())

	sponsor := createTestUser(t, db, "sponsor", nil)
	payer := createTestUser(t, db, "payer", &sponsor.ID)
	activateTestMembership(t, db, sponsor.ID, "basic")

	created, err := svc.CreateForPayment(db, 7, payer.ID, 2900)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = svc.CreateForPayment(db, 7, payer.ID, 2900)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, db.Model(&model.Commission{}).Where("payment_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCommissionDepthBound(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(testCommissionConfig())

	// Chain of 8 ancestors, all active; only 5 levels may accrue.
	var prev *uint64
	for i := 0; i < 8; i++ {
		u := createTestUser(t, db, fmt.Sprintf("ancestor%d", i), prev)
		activateTestMembership(t, db, u.ID, "basic")
		prev = &u.ID
	}
	payer := createTestUser(t, db, "payer", prev)

	created, err := svc.CreateForPayment(db, 42, payer.ID, 19900)
	require.NoError(t, err)
	assert.Equal(t, 5, created)

	var maxLevel int
	require.NoError(t, db.Model(&model.Commission{}).
		Where("payment_id = ?", 42).
		Select("MAX(level)").Scan(&maxLevel).Error)
	assert.Equal(t, 5, maxLevel)
}

func TestCommissionInactiveAncestorSkippedButKeepsLevel(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(testCommissionConfig())

	// Direct sponsor has no active membership; grand sponsor does.
	grand := createTestUser(t, db, "grand", nil)
	sponsor := createTestUser(t, db, "sponsor", &grand.ID)
	payer := createTestUser(t, db, "payer", &sponsor.ID)
	activateTestMembership(t, db, grand.ID, "basic")

	created, err := svc.CreateForPayment(db, 9, payer.ID, 19900)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var row model.Commission
	require.NoError(t, db.Where("payment_id = ?", 9).First(&row).Error)
	// Grand sponsor stays at level 2 with the network rate; the skipped
	// direct sponsor does not promote anyone.
	assert.Equal(t, grand.ID, row.ToUserID)
	assert.Equal(t, 2, row.Level)
	assert.Equal(t, int64(398), row.AmountUsdCents)
}

func TestCommissionWithoutSponsor(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(testCommissionConfig())

	payer := createTestUser(t, db, "orphan", nil)

	created, err := svc.CreateForPayment(db, 3, payer.ID, 2900)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
