// Package voice turns assistant replies into speech and recorded speech
// into text.
package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxUtteranceLength is the longest text sent for synthesis, in runes.
const MaxUtteranceLength = 4096

var (
	// ErrSpeechDisabled is returned when text-to-speech is turned off.
	ErrSpeechDisabled = errors.New("text-to-speech is disabled")
	// ErrNothingToSay is returned when there is no new text to speak.
	ErrNothingToSay = errors.New("nothing new to say")
	// ErrUnavailable is returned when no speech provider is configured.
	ErrUnavailable = errors.New("speech provider not configured")
)

// Synthesizer renders text as audio.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (io.ReadCloser, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Narrator speaks the latest assistant reply of one session. A reply is
// spoken once; starting a new utterance cancels the one in flight.
type Narrator struct {
	synth Synthesizer

	mu     sync.Mutex
	last   string
	seq    uint64
	cancel context.CancelFunc
}

// NewNarrator creates a narrator. synth may be nil.
func NewNarrator(synth Synthesizer) *Narrator {
	return &Narrator{synth: synth}
}

// Speak synthesizes text unless it was the previous utterance. The returned
// audio must be closed.
func (n *Narrator) Speak(ctx context.Context, text string) (io.ReadCloser, error) {
	if n.synth == nil {
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNothingToSay
	}
	if utf8.RuneCountInString(text) > MaxUtteranceLength {
		text = string([]rune(text)[:MaxUtteranceLength])
	}

	n.mu.Lock()
	if text == n.last {
		n.mu.Unlock()
		return nil, ErrNothingToSay
	}
	if n.cancel != nil {
		n.cancel()
	}
	uctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.last = text
	n.seq++
	seq := n.seq
	n.mu.Unlock()

	audio, err := n.synth.Speak(uctx, text)
	if err != nil {
		cancel()
		n.mu.Lock()
		if n.seq == seq {
			// Allow a retry of the same text.
			n.last = ""
			n.cancel = nil
		}
		n.mu.Unlock()
		return nil, err
	}
	return &utterance{ReadCloser: audio, cancel: cancel}, nil
}

// Stop cancels the utterance in flight, if any.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

type utterance struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (u *utterance) Close() error {
	err := u.ReadCloser.Close()
	u.cancel()
	return err
}
