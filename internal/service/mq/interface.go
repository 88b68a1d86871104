package mq

import "context"

// Message is one business event shipped through the queue.
type Message struct {
	ID      string // broker-assigned ID (e.g. Redis Stream entry ID)
	Topic   string
	Key     string // partition key, empty means any partition
	Payload []byte // JSON body
}

// Producer publishes business events. Implementations exist for Kafka and
// Redis Streams; which one runs is a config choice.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}
