package service

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"member-core/internal/model"
	"member-core/pkg/config"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testDBSeq makes the shared-cache DSN unique per open, not just per test
// name, so repeated runs in one process (-count=N) get a fresh database.
var testDBSeq atomic.Uint64

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, sponsorID *uint64) *model.User {
	t.Helper()

	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		SponsorID:    sponsorID,
		MemberStatus: model.MembershipStatusInactive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func activateTestMembership(t *testing.T, db *gorm.DB, userID uint64, tier string) {
	t.Helper()

	now := time.Now()
	expires := now.AddDate(1, 0, 0)
	require.NoError(t, db.Create(&model.Membership{
		UserID:      userID,
		Tier:        tier,
		Status:      model.MembershipStatusActive,
		StartsAt:    now,
		ActivatedAt: &now,
		ExpiresAt:   &expires,
	}).Error)
}

func testMembershipConfig() *config.MembershipConfig {
	return &config.MembershipConfig{
		Plans: []config.PlanConfig{
			{Tier: "basic", AmountUsdCents: 2900, DurationDays: 30},
			{Tier: "premium", AmountUsdCents: 19900, DurationDays: 365},
			{Tier: "lifetime", AmountUsdCents: 99900, DurationDays: 0},
		},
		CompressionGrace: 90 * 24 * time.Hour,
	}
}

func testCommissionConfig() *config.CommissionConfig {
	return &config.CommissionConfig{
		SponsorPercent: 10,
		NetworkPercent: 2,
		MaxDepth:       5,
	}
}
