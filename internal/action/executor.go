package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrNoSideEffect is returned when executing a kind that has nothing to perform.
var ErrNoSideEffect = errors.New("action kind has no client-side effect")

// Effect is the instruction handed to the client after a successful execution.
type Effect struct {
	OpenURL string `json:"open_url,omitempty"`
}

// Executor performs the side effect of a confirmed proposal.
type Executor interface {
	Execute(ctx context.Context, s Snapshot) (Effect, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, s Snapshot) (Effect, error)

// Execute calls f(ctx, s).
func (f ExecutorFunc) Execute(ctx context.Context, s Snapshot) (Effect, error) {
	return f(ctx, s)
}

// OpenURLExecutor turns a confirmed openUrl output into an open-tab instruction.
// Only http and https targets are performed.
type OpenURLExecutor struct{}

// Execute parses the confirmation output as {"url": ...}.
func (OpenURLExecutor) Execute(_ context.Context, s Snapshot) (Effect, error) {
	if s.Kind != KindOpenURL {
		return Effect{}, fmt.Errorf("%w: %s", ErrNoSideEffect, s.Kind)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(s.Output), &payload); err != nil {
		return Effect{}, fmt.Errorf("malformed openUrl payload: %w", err)
	}
	if payload.URL == "" {
		return Effect{}, errors.New("malformed openUrl payload: url is empty")
	}

	u, err := url.Parse(payload.URL)
	if err != nil {
		return Effect{}, fmt.Errorf("malformed openUrl payload: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Effect{}, fmt.Errorf("refusing to open %q URL", u.Scheme)
	}
	if u.Host == "" {
		return Effect{}, errors.New("malformed openUrl payload: url has no host")
	}

	return Effect{OpenURL: u.String()}, nil
}
