package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"member-core/pkg/logger"
	"member-core/pkg/utils/lock"
)

// CronService schedules the settlement pipeline and the membership
// housekeeping jobs. Every job takes a Redis lock before running so that
// overlapping ticks and multiple instances do not pile work up; the state
// transitions themselves stay safe without the lock.
type CronService struct {
	cron       *cron.Cron
	locker     lock.DistributedLock
	pipeline   *PipelineService
	membership *MembershipService
}

func NewCronService(rdb *redis.Client, pipeline *PipelineService, membership *MembershipService) *CronService {
	return &CronService{
		cron:       cron.New(),
		locker:     lock.NewRedisLock(rdb),
		pipeline:   pipeline,
		membership: membership,
	}
}

func (s *CronService) Start() {
	_, _ = s.cron.AddFunc("@every 1m", s.RunPipeline)
	_, _ = s.cron.AddFunc("@every 10m", s.ExpireMemberships)
	_, _ = s.cron.AddFunc("@every 1h", s.CompressInactive)

	s.cron.Start()
	logger.Info("cron service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("cron service stopped")
}

// RunPipeline ticks the scan -> sweep -> apply pipeline.
func (s *CronService) RunPipeline() {
	s.withLock("cron:lock:pipeline", 5*time.Minute, func(ctx context.Context) {
		if _, err := s.pipeline.RunOnce(ctx); err != nil {
			logger.Error("pipeline tick finished with error", zap.Error(err))
		}
	})
}

// ExpireMemberships flips memberships past their expiry to inactive.
func (s *CronService) ExpireMemberships() {
	s.withLock("cron:lock:expire", 5*time.Minute, func(ctx context.Context) {
		expired, err := s.membership.Expire(ctx)
		if err != nil {
			logger.Error("membership expiry failed", zap.Error(err))
			return
		}
		if expired > 0 {
			logger.Info("memberships expired", zap.Int("count", expired))
		}
	})
}

// CompressInactive removes long-inactive accounts from the referral graph.
func (s *CronService) CompressInactive() {
	s.withLock("cron:lock:compress", 10*time.Minute, func(ctx context.Context) {
		compressed, err := s.membership.Compress(ctx)
		if err != nil {
			logger.Error("referral compression failed", zap.Error(err))
			return
		}
		if compressed > 0 {
			logger.Info("referral graph compressed", zap.Int("count", compressed))
		}
	})
}

func (s *CronService) withLock(key string, ttl time.Duration, job func(ctx context.Context)) {
	ctx := context.Background()

	locked, err := s.locker.Acquire(ctx, key, ttl)
	if err != nil || !locked {
		logger.Debug("skipping job, lock held elsewhere", zap.String("key", key))
		return
	}
	defer s.locker.Release(ctx, key)

	job(ctx)
}
