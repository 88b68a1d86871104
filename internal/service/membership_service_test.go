package service

import (
	"context"
	"testing"
	"time"

	"member-core/internal/model"
	"member-core/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateCreatesMembership(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())
	user := createTestUser(t, db, "alice", nil)

	err := svc.Activate(context.Background(), user.ID, "basic", 0, nil)
	require.NoError(t, err)

	var m model.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&m).Error)
	assert.Equal(t, model.MembershipStatusActive, m.Status)
	assert.Equal(t, "basic", m.Tier)
	require.NotNil(t, m.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *m.ExpiresAt, time.Minute)

	var u model.User
	require.NoError(t, db.First(&u, user.ID).Error)
	assert.Equal(t, model.MembershipStatusActive, u.MemberStatus)
	assert.Equal(t, "basic", u.MemberTier)

	var event model.MembershipEvent
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&event).Error)
	assert.Equal(t, model.MembershipStatusInactive, event.FromStatus)
	assert.Equal(t, model.MembershipStatusActive, event.ToStatus)
	assert.Equal(t, ReasonManualCredit, event.Reason)

	// Manual credits land in the purchase ledger without an intent ID
	// and with the plan price filled in.
	var record model.PaymentRecord
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&record).Error)
	assert.Nil(t, record.PaymentID)
	assert.Equal(t, "manual", record.Source)
	assert.Equal(t, int64(2900), record.AmountUsdCents)
}

func TestActivateStacksWhileActive(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())
	user := createTestUser(t, db, "bob", nil)

	require.NoError(t, svc.Activate(context.Background(), user.ID, "basic", 0, nil))

	var first model.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&first).Error)
	require.NotNil(t, first.ExpiresAt)

	require.NoError(t, svc.Activate(context.Background(), user.ID, "basic", 0, nil))

	var second model.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&second).Error)
	require.NotNil(t, second.ExpiresAt)

	// Renewal extends from the current expiry, not from now.
	assert.WithinDuration(t, first.ExpiresAt.AddDate(0, 0, 30), *second.ExpiresAt, time.Second)
}

func TestActivateLifetimeNeverExpires(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())
	user := createTestUser(t, db, "carol", nil)

	require.NoError(t, svc.Activate(context.Background(), user.ID, "lifetime", 0, nil))

	var m model.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&m).Error)
	assert.Equal(t, model.MembershipStatusActive, m.Status)
	assert.Nil(t, m.ExpiresAt)
}

func TestLifetimeCannotBeDowngraded(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())
	user := createTestUser(t, db, "dave", nil)

	require.NoError(t, svc.Activate(context.Background(), user.ID, "lifetime", 0, nil))

	err := svc.Activate(context.Background(), user.ID, "basic", 0, nil)
	assert.ErrorIs(t, err, errno.ErrLifetimeDowngrade)

	var m model.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&m).Error)
	assert.Nil(t, m.ExpiresAt)
}

func TestActivateUnknownPlanAndUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())
	user := createTestUser(t, db, "erin", nil)

	err := svc.Activate(context.Background(), user.ID, "platinum", 0, nil)
	assert.ErrorIs(t, err, errno.ErrPlanNotFound)

	err = svc.Activate(context.Background(), user.ID+999, "basic", 0, nil)
	assert.ErrorIs(t, err, errno.ErrUserNotFound)
}

func TestExpireMovesLapsedToInactive(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())

	lapsed := createTestUser(t, db, "lapsed", nil)
	current := createTestUser(t, db, "current", nil)

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	require.NoError(t, db.Create(&model.Membership{
		UserID: lapsed.ID, Tier: "basic", Status: model.MembershipStatusActive,
		StartsAt: now.AddDate(0, -1, 0), ActivatedAt: &now, ExpiresAt: &past,
	}).Error)
	require.NoError(t, db.Create(&model.Membership{
		UserID: current.ID, Tier: "basic", Status: model.MembershipStatusActive,
		StartsAt: now, ActivatedAt: &now, ExpiresAt: &future,
	}).Error)

	expired, err := svc.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var lapsedM model.Membership
	require.NoError(t, db.Where("user_id = ?", lapsed.ID).First(&lapsedM).Error)
	assert.Equal(t, model.MembershipStatusInactive, lapsedM.Status)
	require.NotNil(t, lapsedM.InactiveAt)

	// A fresh struct per query: reusing one would carry the previous primary
	// key into the next query's conditions.
	var currentM model.Membership
	require.NoError(t, db.Where("user_id = ?", current.ID).First(&currentM).Error)
	assert.Equal(t, model.MembershipStatusActive, currentM.Status)

	var event model.MembershipEvent
	require.NoError(t, db.Where("user_id = ? AND reason = ?", lapsed.ID, ReasonExpired).First(&event).Error)
	assert.Equal(t, model.MembershipStatusInactive, event.ToStatus)
}

func TestCompressRelinksReferrals(t *testing.T) {
	db := newTestDB(t)
	cfg := testMembershipConfig()
	svc := NewMembershipService(db, cfg)

	// grand <- middle <- leaf; middle has been inactive past the grace.
	grand := createTestUser(t, db, "grand", nil)
	middle := createTestUser(t, db, "middle", &grand.ID)
	leaf := createTestUser(t, db, "leaf", &middle.ID)

	now := time.Now()
	stale := now.Add(-cfg.CompressionGrace - time.Hour)
	require.NoError(t, db.Create(&model.Membership{
		UserID: middle.ID, Tier: "basic", Status: model.MembershipStatusInactive,
		StartsAt: stale.AddDate(0, -1, 0), InactiveAt: &stale,
	}).Error)

	compressed, err := svc.Compress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, compressed)

	var m model.Membership
	require.NoError(t, db.Where("user_id = ?", middle.ID).First(&m).Error)
	assert.Equal(t, model.MembershipStatusDeleted, m.Status)

	var relinked model.User
	require.NoError(t, db.First(&relinked, leaf.ID).Error)
	require.NotNil(t, relinked.SponsorID)
	assert.Equal(t, grand.ID, *relinked.SponsorID)
}

func TestCompressSkipsRecentInactive(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, testMembershipConfig())

	user := createTestUser(t, db, "recent", nil)
	recent := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&model.Membership{
		UserID: user.ID, Tier: "basic", Status: model.MembershipStatusInactive,
		StartsAt: recent.AddDate(0, -1, 0), InactiveAt: &recent,
	}).Error)

	compressed, err := svc.Compress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, compressed)
}
