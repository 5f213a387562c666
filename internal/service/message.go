package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/session"
	"github.com/capitalize-ai/ace-assistant/internal/settings"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
	"github.com/capitalize-ai/ace-assistant/internal/voice"
)

// MaxAttachments bounds the files sent with one message.
const MaxAttachments = 8

var (
	// ErrEmptyMessage is returned for a message without text or attachments.
	ErrEmptyMessage = errors.New("message text or attachment required")
	// ErrInvalidAttachment is returned for attachments that are not data URLs.
	ErrInvalidAttachment = errors.New("invalid attachment")
)

// SendMessage appends the user's message to the session transcript and
// starts an exchange. The returned channel must be drained; cancelling ctx
// or calling Stop aborts the exchange.
func (s *AssistantService) SendMessage(ctx context.Context, sessionID, clientID string, req *model.SendMessageRequest) (<-chan session.Event, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(req.Attachments) > MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", ErrInvalidAttachment, MaxAttachments)
	}

	var parts []transcript.Part
	if text != "" {
		prefs := s.clientSettings(ctx, clientID)
		parts = append(parts, &transcript.Text{Text: transcript.FrameUserText(prefs.Persona, text, req.Voice)})
	}
	for _, a := range req.Attachments {
		if !strings.HasPrefix(a.Data, "data:") || a.MediaType == "" {
			return nil, fmt.Errorf("%w: %q must be a data URL with a media type", ErrInvalidAttachment, a.Filename)
		}
		parts = append(parts, &transcript.File{Data: a.Data, MediaType: a.MediaType, Filename: a.Filename})
	}

	// Holding the session lock keeps the busy check, the append and the
	// start of the exchange together.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if s.coordinator.Busy(sess.Transcript) {
		return nil, session.ErrExchangeInProgress
	}
	if _, err := sess.Transcript.Append(transcript.Entry{Role: transcript.RoleUser, Parts: parts}); err != nil {
		return nil, err
	}

	exCtx, cancel := context.WithCancel(ctx)
	events, err := s.coordinator.Send(exCtx, session.Request{
		Transcript: sess.Transcript,
		Proposals:  sess.Proposals,
		Preamble:   s.cfg.Preamble,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	sess.runID++
	sess.cancel = cancel
	runID := sess.runID

	out := make(chan session.Event, 16)
	go func() {
		defer close(out)
		defer cancel()
		for ev := range events {
			if session.Terminal(ev) {
				sess.clearCancel(runID)
				s.recordOutcome(ctx, sess.ID, ev)
			}
			out <- ev
		}
	}()

	return out, nil
}

func (s *AssistantService) recordOutcome(ctx context.Context, sessionID string, ev session.Event) {
	event := &model.ExchangeEvent{SessionID: sessionID}
	switch e := ev.(type) {
	case session.Completed:
		event.Type = model.EventTypeCompleted
		event.Metadata = map[string]any{"steps": e.Steps, "truncated": e.Truncated}
	case session.Aborted:
		event.Type = model.EventTypeAborted
		event.Reason = "stopped by user"
	case session.Failed:
		event.Type = model.EventTypeError
		event.Reason = e.Message()
		event.Metadata = map[string]any{"kind": string(e.Kind)}
	default:
		return
	}
	s.publish(ctx, event)
}

// Confirm accepts a proposal. A confirmed proposal with a side effect is
// executed right away when the client allows automation.
func (s *AssistantService) Confirm(ctx context.Context, sessionID, clientID, proposalID, output string) (*model.DecisionResponse, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	snap, err := sess.Proposals.Confirm(ctx, proposalID, output)
	if err != nil {
		return nil, err
	}

	resp := &model.DecisionResponse{Proposal: snap}
	if action.HasSideEffect(snap.Kind) {
		allowed := s.clientSettings(ctx, clientID).AutomationAllowed
		executed, effect, err := sess.Proposals.Execute(ctx, proposalID, action.OpenURLExecutor{}, allowed)
		if err != nil {
			return nil, err
		}
		if executed.Status == action.StatusExecutionFailed {
			s.logger.Warn("action execution failed",
				zap.String("session_id", sessionID),
				zap.String("proposal_id", proposalID),
				zap.String("error", executed.Error),
			)
		}
		resp.Proposal = executed
		resp.OpenURL = effect.OpenURL
	}

	s.recordDecision(sess, resp.Proposal)
	return resp, nil
}

// Deny rejects a proposal.
func (s *AssistantService) Deny(ctx context.Context, sessionID, proposalID string) (*model.DecisionResponse, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	snap, err := sess.Proposals.Deny(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	s.recordDecision(sess, snap)
	return &model.DecisionResponse{Proposal: snap}, nil
}

// recordDecision appends the user's decision to the transcript.
func (s *AssistantService) recordDecision(sess *Session, snap action.Snapshot) {
	_, err := sess.Transcript.Append(transcript.Entry{
		Role: transcript.RoleUser,
		Parts: []transcript.Part{&transcript.Action{
			ProposalID: snap.ID,
			Kind:       snap.Kind,
			Status:     snap.Status,
			Output:     snap.Output,
		}},
	})
	if err != nil {
		s.logger.Error("failed to record decision", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// Speech synthesizes the latest assistant reply of a session.
func (s *AssistantService) Speech(ctx context.Context, sessionID, clientID string) (io.ReadCloser, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.clientSettings(ctx, clientID).TTSEnabled {
		return nil, voice.ErrSpeechDisabled
	}
	return sess.Narrator.Speak(ctx, sess.Transcript.LastAssistantText())
}

// Transcribe converts recorded speech to text.
func (s *AssistantService) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if s.transcriber == nil {
		return "", voice.ErrUnavailable
	}
	return s.transcriber.Transcribe(ctx, filename, audio)
}

// clientSettings returns the client's settings, falling back to the
// defaults when they cannot be read.
func (s *AssistantService) clientSettings(ctx context.Context, clientID string) settings.Settings {
	st, err := s.Settings(ctx, clientID)
	if err != nil {
		s.logger.Warn("failed to read settings", zap.String("client_id", clientID), zap.Error(err))
		return settings.Settings{}
	}
	return st
}
