// Package service provides the business logic of the assistant backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/store"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
	"github.com/capitalize-ai/ace-assistant/pkg/metrics"
)

var (
	// ErrMessagesRequired is returned when a conversation has no messages.
	ErrMessagesRequired = errors.New("messages array required")
	// ErrInvalidMessage is returned for messages with an unknown role.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrStoreUnavailable is returned when no gateway is configured.
	ErrStoreUnavailable = errors.New("conversation store not configured")
)

// ConversationService saves conversations through the persistence gateway.
type ConversationService struct {
	gateway store.Gateway
	logger  *logger.Logger
}

// NewConversationService creates a new conversation service. gateway may be
// nil, in which case every save fails with ErrStoreUnavailable.
func NewConversationService(gateway store.Gateway, log *logger.Logger) *ConversationService {
	return &ConversationService{
		gateway: gateway,
		logger:  log,
	}
}

// Save validates and stores a submitted conversation.
func (s *ConversationService) Save(ctx context.Context, req *model.SaveConversationRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrMessagesRequired
	}

	rows := make([]transcript.Row, len(req.Messages))
	messages := make([]store.NewMessage, len(req.Messages))
	for i, m := range req.Messages {
		role := transcript.Role(m.Role)
		if !role.Valid() {
			return "", fmt.Errorf("%w: messages[%d] has role %q", ErrInvalidMessage, i, m.Role)
		}
		rows[i] = transcript.Row{Role: role, Content: m.Content}

		var created time.Time
		if m.CreatedAt != nil {
			created = *m.CreatedAt
		}
		messages[i] = store.NewMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: created,
			Metadata:  m.Metadata,
		}
	}

	// Submitted conversations are titled after their first message.
	title := req.Title
	if title == "" {
		title = transcript.DeriveTitle(rows[:1])
	}

	return s.save(ctx, store.NewConversation{
		Title:    title,
		Metadata: req.Metadata,
		Messages: messages,
	})
}

// SaveTranscript stores a live transcript.
func (s *ConversationService) SaveTranscript(ctx context.Context, t *transcript.Transcript, metadata map[string]any) (string, error) {
	rows := t.ExportForPersistence()
	if len(rows) == 0 {
		return "", ErrMessagesRequired
	}

	messages := make([]store.NewMessage, len(rows))
	for i, r := range rows {
		messages[i] = store.NewMessage{Role: string(r.Role), Content: r.Content}
	}

	return s.save(ctx, store.NewConversation{
		Title:    transcript.DeriveTitle(rows),
		Metadata: metadata,
		Messages: messages,
	})
}

func (s *ConversationService) save(ctx context.Context, conv store.NewConversation) (string, error) {
	if s.gateway == nil {
		return "", ErrStoreUnavailable
	}

	ctx, span := otel.Tracer("service").Start(ctx, "conversation.save")
	defer span.End()
	span.SetAttributes(attribute.Int("messages", len(conv.Messages)))

	id, err := s.gateway.SaveConversation(ctx, conv)

	roles := make([]string, len(conv.Messages))
	for i, m := range conv.Messages {
		roles[i] = m.Role
	}
	metrics.RecordConversationSaved(err, roles)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("failed to save conversation", zap.Error(err))
		return "", err
	}

	s.logger.Info("conversation saved",
		zap.String("conversation_id", id),
		zap.Int("messages", len(conv.Messages)),
	)
	return id, nil
}

// Ping checks the store.
func (s *ConversationService) Ping(ctx context.Context) error {
	if s.gateway == nil {
		return ErrStoreUnavailable
	}
	return s.gateway.Ping(ctx)
}
