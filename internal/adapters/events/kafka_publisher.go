package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopics routes license events onto their topics.
var DefaultTopics = map[string]string{
	"trial.issued":              "planner.license.trial.v1",
	"trial.expired":             "planner.license.trial.v1",
	"license.issued":            "planner.license.lifecycle.v1",
	"license.activated":         "planner.license.lifecycle.v1",
	"license.superseded":        "planner.license.lifecycle.v1",
	"license.device_registered": "planner.license.devices.v1",
	"license.device_revoked":    "planner.license.devices.v1",
}

type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topicByEvent == nil {
		topicByEvent = DefaultTopics
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: topicByEvent,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicFor(eventType),
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return eventType
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
