package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// OutboxMessage is the transactional outbox row. Business writes and the
// outbox row commit in one transaction; the relay ships pending rows to the
// message queue afterwards (at-least-once).
type OutboxMessage struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic        string    `gorm:"type:varchar(255);not null" json:"topic"`
	PartitionKey string    `gorm:"type:varchar(64)" json:"partition_key"`
	Payload      []byte    `gorm:"type:text;not null" json:"payload"`
	Status       string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// CreateOutboxMessage writes an outbox row inside the caller's transaction.
// The partition key keeps all events for one entity on one broker partition.
func CreateOutboxMessage(tx *gorm.DB, topic, partitionKey string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := OutboxMessage{
		Topic:        topic,
		PartitionKey: partitionKey,
		Payload:      payloadBytes,
		Status:       "PENDING",
	}

	return tx.Create(&msg).Error
}
