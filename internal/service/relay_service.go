package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"member-core/internal/model"
	"member-core/internal/service/mq"
	"member-core/pkg/logger"
)

// RelayService ships outbox rows to the message queue. Delivery is
// at-least-once: a row is marked SENT only after the broker accepts it, so a
// crash between publish and update replays the message. Consumers key on the
// payment ID inside the payload to dedupe.
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
	batch    int
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:       db,
		producer: producer,
		interval: 500 * time.Millisecond,
		batch:    50,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("outbox relay started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			s.relayPending(ctx)
		}
	}
}

func (s *RelayService) relayPending(ctx context.Context) {
	var messages []model.OutboxMessage
	if err := s.db.Where("status = ?", "PENDING").
		Order("id").
		Limit(s.batch).
		Find(&messages).Error; err != nil {
		logger.Error("outbox query failed", zap.Error(err))
		return
	}

	for i := range messages {
		msg := &messages[i]
		if err := s.producer.Publish(ctx, msg.Topic, msg.PartitionKey, msg.Payload); err != nil {
			logger.Warn("outbox publish failed, will retry",
				zap.Uint64("outbox_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}

		if err := s.db.Model(msg).Update("status", "SENT").Error; err != nil {
			// The message will be published again on the next tick.
			logger.Warn("outbox status update failed",
				zap.Uint64("outbox_id", msg.ID),
				zap.Error(err))
		}
	}
}
