// Package notify is the outbound change-notification path. The registry and
// scheduler talk to one Sink; fan-out decides who actually hears about it.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellmoss/package-tracker/internal/broker/messages"
)

type Sink interface {
	StatusChanged(trackingNumber, oldStatus, newStatus string)
	UpdateFailed(trackingNumber string, err error)
}

// LogSink writes transitions to the structured log. Always wired; the UI
// collaborator subscribes here in-process.
type LogSink struct{}

func (LogSink) StatusChanged(trackingNumber, oldStatus, newStatus string) {
	slog.Info("package status changed",
		"tracking_number", trackingNumber,
		"old_status", oldStatus,
		"new_status", newStatus,
	)
}

func (LogSink) UpdateFailed(trackingNumber string, err error) {
	slog.Warn("package update failed",
		"tracking_number", trackingNumber,
		"error", err.Error(),
	)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSink publishes transitions for external consumers. Publish failures
// are logged and dropped: losing one notification beats blocking the
// scheduler.
type KafkaSink struct {
	producer Producer
	topic    string
	now      func() time.Time
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *KafkaSink) StatusChanged(trackingNumber, oldStatus, newStatus string) {
	msg := messages.StatusChanged{
		EventID:        uuid.NewString(),
		TrackingNumber: trackingNumber,
		OldStatus:      oldStatus,
		NewStatus:      newStatus,
		ChangedAt:      s.now(),
	}
	s.publish(trackingNumber, msg)
}

func (s *KafkaSink) UpdateFailed(trackingNumber string, err error) {
	msg := messages.UpdateFailed{
		EventID:        uuid.NewString(),
		TrackingNumber: trackingNumber,
		Error:          err.Error(),
		FailedAt:       s.now(),
	}
	s.publish(trackingNumber, msg)
}

func (s *KafkaSink) publish(key string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal notification", "error", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.producer.Publish(ctx, s.topic, []byte(key), b); err != nil {
		slog.Error("publish notification", "topic", s.topic, "error", err.Error())
	}
}

// Fanout delivers to every sink in order.
type Fanout []Sink

func (f Fanout) StatusChanged(trackingNumber, oldStatus, newStatus string) {
	for _, s := range f {
		s.StatusChanged(trackingNumber, oldStatus, newStatus)
	}
}

func (f Fanout) UpdateFailed(trackingNumber string, err error) {
	for _, s := range f {
		s.UpdateFailed(trackingNumber, err)
	}
}
