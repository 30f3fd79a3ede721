// Package queue carries pact-stale events over Kafka so that caches outside
// this process can follow changes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PactStaleEvent says the rendered page for PactID is out of date.
type PactStaleEvent struct {
	ID     string    `json:"id"`
	PactID uint      `json:"pact_id"`
	At     time.Time `json:"at"`
}

// NewPactStaleEvent stamps a fresh event id and time.
func NewPactStaleEvent(pactID uint) PactStaleEvent {
	return PactStaleEvent{ID: uuid.NewString(), PactID: pactID, At: time.Now().UTC()}
}

// EnsureTopic creates topic if missing. Failures are logged and ignored;
// the broker may auto-create topics or the topic may already exist.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int, log *zap.Logger) {
	if len(brokers) == 0 {
		return
	}
	if partitions <= 0 {
		partitions = 1
	}
	d := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Debug("kafka dial for topic creation failed", zap.Error(err))
		return
	}
	defer conn.Close()
	ctrl, err := conn.Controller()
	if err != nil {
		log.Debug("kafka controller lookup failed", zap.Error(err))
		return
	}
	ctrlConn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		log.Debug("kafka controller dial failed", zap.Error(err))
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.Debug("kafka create topic failed (topic may already exist)", zap.Error(err))
		return
	}
	log.Info("kafka topic ensured", zap.String("topic", topic), zap.Int("partitions", partitions))
}

// Publisher writes pact-stale events. Messages are keyed by pact id so one
// pact's events stay ordered within a partition.
type Publisher struct {
	w *kafka.Writer
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}}
}

// PublishPactStale enqueues ev. With the async writer this only fails on encoding.
func (p *Publisher) PublishPactStale(ctx context.Context, ev PactStaleEvent) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.PactID), 10)),
		Value: payload,
	})
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}

// Consume reads events for groupID until ctx is done, calling handle for each.
// Undecodable or failed messages are logged and committed so they cannot block the partition.
func Consume(ctx context.Context, brokers []string, topic, groupID string, log *zap.Logger, handle func(context.Context, PactStaleEvent) error) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	defer reader.Close()

	log.Info("kafka consumer started", zap.String("topic", topic), zap.String("group", groupID))
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("kafka fetch failed", zap.Error(err))
			if !sleepCtx(ctx, fetchRetryDelay) {
				return nil
			}
			continue
		}
		var ev PactStaleEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Error("kafka decode failed", zap.Error(err), zap.ByteString("payload", msg.Value))
		} else if err := handle(ctx, ev); err != nil {
			log.Error("kafka handle failed", zap.Error(err), zap.Uint("pact_id", ev.PactID))
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("kafka commit failed", zap.Error(err))
		}
	}
}

// fetchRetryDelay paces fetch retries while the broker is unreachable.
var fetchRetryDelay = time.Second

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
