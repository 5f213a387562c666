package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/session"
	"github.com/capitalize-ai/ace-assistant/internal/settings"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
	"github.com/capitalize-ai/ace-assistant/internal/voice"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 2 * time.Hour

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrJournalDisabled is returned when no decision journal is configured.
	ErrJournalDisabled = errors.New("decision journal not configured")
)

// Journal records proposal transitions and exchange outcomes.
type Journal interface {
	action.Journal
	PublishEvent(ctx context.Context, event *model.ExchangeEvent) (uint64, error)
	GetDecisions(ctx context.Context, sessionID string, limit int) ([]action.Record, error)
}

// Session is one assistant conversation held in memory.
type Session struct {
	ID         string
	ClientID   string
	CreatedAt  time.Time
	Transcript *transcript.Transcript
	Proposals  *action.Registry
	Narrator   *voice.Narrator

	mu     sync.Mutex
	cancel context.CancelFunc
	runID  uint64
}

func (s *Session) clearCancel(runID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == runID {
		s.cancel = nil
	}
}

// stop cancels the running exchange and reports whether there was one.
func (s *Session) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// AssistantConfig configures the AssistantService.
type AssistantConfig struct {
	// Preamble is the system prompt sent with every provider step.
	Preamble   string
	SessionTTL time.Duration
}

// AssistantService owns the live sessions and routes user input to the
// coordinator, the proposal registries and the voice providers.
type AssistantService struct {
	coordinator   *session.Coordinator
	conversations *ConversationService
	settings      settings.Store
	journal       Journal
	synth         voice.Synthesizer
	transcriber   voice.Transcriber
	cfg           AssistantConfig
	logger        *logger.Logger

	sessions *cache.Cache
}

// AssistantDeps are the collaborators of the AssistantService. Journal,
// Synthesizer and Transcriber may be nil.
type AssistantDeps struct {
	Coordinator   *session.Coordinator
	Conversations *ConversationService
	Settings      settings.Store
	Journal       Journal
	Synthesizer   voice.Synthesizer
	Transcriber   voice.Transcriber
}

// NewAssistantService creates the service.
func NewAssistantService(deps AssistantDeps, cfg AssistantConfig, log *logger.Logger) *AssistantService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Preamble == "" {
		cfg.Preamble = DefaultPreamble
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewMemoryStore()
	}
	if deps.Conversations == nil {
		deps.Conversations = NewConversationService(nil, log)
	}
	return &AssistantService{
		coordinator:   deps.Coordinator,
		conversations: deps.Conversations,
		settings:      deps.Settings,
		journal:       deps.Journal,
		synth:         deps.Synthesizer,
		transcriber:   deps.Transcriber,
		cfg:           cfg,
		logger:        log,
		sessions:      cache.New(cfg.SessionTTL, cfg.SessionTTL/2),
	}
}

// Create starts a new empty session.
func (s *AssistantService) Create(ctx context.Context, clientID string) *Session {
	id := uuid.Must(uuid.NewV7()).String()

	var journal action.Journal
	if s.journal != nil {
		journal = s.journal
	}

	sess := &Session{
		ID:         id,
		ClientID:   clientID,
		CreatedAt:  time.Now(),
		Transcript: transcript.New(),
		Proposals:  action.NewRegistry(id, journal),
		Narrator:   voice.NewNarrator(s.synth),
	}
	s.sessions.SetDefault(id, sess)

	s.logger.WithSession(id, clientID).Info("session created")
	return sess
}

// Get returns a live session and extends its lifetime.
func (s *AssistantService) Get(id string) (*Session, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := v.(*Session)
	s.sessions.SetDefault(id, sess)
	return sess, nil
}

// View returns the renderable state of a session.
func (s *AssistantService) View(id string) (*model.SessionView, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return &model.SessionView{
		SessionID: sess.ID,
		Entries:   sess.Transcript.Entries(),
		Proposals: sess.Proposals.Snapshots(),
		Busy:      s.coordinator.Busy(sess.Transcript),
	}, nil
}

// Stop cancels the session's running exchange and any speech in flight. It
// reports whether an exchange was running.
func (s *AssistantService) Stop(id string) (bool, error) {
	sess, err := s.Get(id)
	if err != nil {
		return false, err
	}
	sess.Narrator.Stop()
	return sess.stop(), nil
}

// Save persists the session transcript and returns the conversation id.
func (s *AssistantService) Save(ctx context.Context, id string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	convID, err := s.conversations.SaveTranscript(ctx, sess.Transcript, map[string]any{
		"session_id": sess.ID,
		"proposals":  len(sess.Proposals.Snapshots()),
	})
	if err != nil {
		return "", err
	}
	s.publish(ctx, &model.ExchangeEvent{
		SessionID: sess.ID,
		Type:      model.EventTypeSaved,
		Metadata:  map[string]any{"conversation_id": convID},
	})
	return convID, nil
}

// Decisions returns the journaled proposal transitions of a session.
func (s *AssistantService) Decisions(ctx context.Context, id string, limit int) ([]action.Record, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	return s.journal.GetDecisions(ctx, id, limit)
}

// Settings returns the settings of a client; unknown clients get defaults.
func (s *AssistantService) Settings(ctx context.Context, clientID string) (settings.Settings, error) {
	if clientID == "" {
		return settings.Settings{}, nil
	}
	return s.settings.Get(ctx, clientID)
}

// UpdateSettings replaces the settings of a client.
func (s *AssistantService) UpdateSettings(ctx context.Context, clientID string, st settings.Settings) (settings.Settings, error) {
	if err := s.settings.Put(ctx, clientID, st); err != nil {
		return settings.Settings{}, err
	}
	return s.settings.Get(ctx, clientID)
}

func (s *AssistantService) publish(ctx context.Context, event *model.ExchangeEvent) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish exchange event",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
