package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
	"github.com/capitalize-ai/ace-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the assistant journal stream.
	StreamName = "ASSISTANT"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "assistant"

	publishTimeout = 2 * time.Second
)

// publisher is the part of jetstream.JetStream the journal writes through.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// StreamManager keeps the journal stream and publishes decisions and
// exchange outcomes to it. It implements action.Journal.
type StreamManager struct {
	client *Client
	pub    publisher
	logger *logger.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client, log *logger.Logger) *StreamManager {
	return &StreamManager{client: client, pub: client.JetStream(), logger: log}
}

// EnsureStream ensures the journal stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Assistant action decisions and exchange outcomes",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// ActionSubject returns the subject for a proposal transition.
func ActionSubject(sessionID string, status action.Status) string {
	return fmt.Sprintf("%s.%s.action.%s", SubjectPrefix, sessionID, status)
}

// EventSubject returns the subject for an exchange event.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, sessionID, eventType)
}

// SessionFilter returns the filter subject for a session's decisions.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.action.>", SubjectPrefix, sessionID)
}

// Record publishes a proposal transition. Failures are logged, never returned.
func (m *StreamManager) Record(ctx context.Context, rec action.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Error("failed to marshal decision", zap.Error(err))
		return
	}
	if _, err := m.publish(ctx, ActionSubject(rec.SessionID, rec.To), data); err != nil {
		m.logger.Warn("failed to journal decision",
			zap.String("session_id", rec.SessionID),
			zap.String("proposal_id", rec.ProposalID),
			zap.Error(err),
		)
	}
}

// PublishEvent publishes an exchange event.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ExchangeEvent) (uint64, error) {
	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	return m.publish(ctx, EventSubject(event.SessionID, event.Type), data)
}

func (m *StreamManager) publish(ctx context.Context, subject string, data []byte) (uint64, error) {
	// Decisions made by a request that is finishing still get recorded.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ack, err := m.pub.Publish(pctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return ack.Sequence, nil
}

// GetDecisions reads a session's journaled proposal transitions in order.
func (m *StreamManager) GetDecisions(ctx context.Context, sessionID string, limit int) ([]action.Record, error) {
	js := m.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: SessionFilter(sessionID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decisions: %w", err)
	}

	var records []action.Record
	for msg := range batch.Messages() {
		var rec action.Record
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", err)
	}

	return records, nil
}

// UpdateMetrics refreshes the stream size gauges.
func (m *StreamManager) UpdateMetrics(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	metrics.NATSStreamBytes.WithLabelValues(StreamName).Set(float64(info.State.Bytes))
	return nil
}
