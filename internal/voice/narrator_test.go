package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	ctxs  []context.Context
	err   error
}

func (f *fakeSynth) Speak(ctx context.Context, text string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.ctxs = append(f.ctxs, ctx)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("mp3:" + text)), nil
}

func TestNarratorSpeaksOnce(t *testing.T) {
	synth := &fakeSynth{}
	n := NewNarrator(synth)
	ctx := context.Background()

	audio, err := n.Speak(ctx, " Hello there ")
	require.NoError(t, err)
	b, err := io.ReadAll(audio)
	require.NoError(t, err)
	assert.Equal(t, "mp3:Hello there", string(b))
	require.NoError(t, audio.Close())

	_, err = n.Speak(ctx, "Hello there")
	assert.ErrorIs(t, err, ErrNothingToSay)

	_, err = n.Speak(ctx, "   ")
	assert.ErrorIs(t, err, ErrNothingToSay)

	assert.Equal(t, []string{"Hello there"}, synth.texts)
}

func TestNarratorCancelsPreviousUtterance(t *testing.T) {
	synth := &fakeSynth{}
	n := NewNarrator(synth)
	ctx := context.Background()

	first, err := n.Speak(ctx, "first")
	require.NoError(t, err)
	defer first.Close()

	second, err := n.Speak(ctx, "second")
	require.NoError(t, err)

	assert.ErrorIs(t, synth.ctxs[0].Err(), context.Canceled)
	assert.NoError(t, synth.ctxs[1].Err())

	n.Stop()
	assert.ErrorIs(t, synth.ctxs[1].Err(), context.Canceled)
	second.Close()
}

func TestNarratorRetriesAfterFailure(t *testing.T) {
	synth := &fakeSynth{err: errors.New("tts down")}
	n := NewNarrator(synth)

	_, err := n.Speak(context.Background(), "hello")
	require.Error(t, err)

	synth.err = nil
	audio, err := n.Speak(context.Background(), "hello")
	require.NoError(t, err)
	audio.Close()
	assert.Len(t, synth.texts, 2)
}

func TestNarratorTruncatesLongText(t *testing.T) {
	synth := &fakeSynth{}
	n := NewNarrator(synth)

	audio, err := n.Speak(context.Background(), strings.Repeat("a", MaxUtteranceLength+10))
	require.NoError(t, err)
	audio.Close()
	assert.Len(t, synth.texts[0], MaxUtteranceLength)
}

func TestNarratorWithoutProvider(t *testing.T) {
	_, err := NewNarrator(nil).Speak(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrUnavailable)
}
