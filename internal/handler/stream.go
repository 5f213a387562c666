package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/session"
	"github.com/capitalize-ai/ace-assistant/pkg/metrics"
)

// heartbeatInterval keeps idle exchanges (waiting on the provider) from
// being closed by proxies.
const heartbeatInterval = 15 * time.Second

// eventStream writes exchange events as server-sent events. After the
// first failed write it stops writing; the caller keeps draining.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	broken  bool
}

// startEventStream sends the SSE headers. Streams outlive the server write
// timeout, so the deadline is cleared.
func startEventStream(w http.ResponseWriter, flusher http.Flusher) *eventStream {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}
}

func (s *eventStream) send(ev session.Event) {
	if s.broken {
		return
	}
	if err := sendSSEEvent(s.w, s.flusher, ev.Name(), eventPayload(ev)); err != nil {
		s.broken = true
	}
}

func (s *eventStream) heartbeat() {
	if s.broken {
		return
	}
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		s.broken = true
		return
	}
	s.flusher.Flush()
}

// eventPayload is the JSON data of an event.
func eventPayload(ev session.Event) interface{} {
	switch e := ev.(type) {
	case session.Failed:
		return &model.ErrorEvent{Kind: string(e.Kind), Message: e.Message()}
	case session.Aborted:
		return struct{}{}
	default:
		return ev
	}
}

// pipe forwards events until the channel closes, with heartbeats while the
// exchange is quiet.
func (s *eventStream) pipe(events <-chan session.Event) {
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.send(ev)
		case <-heartbeat.C:
			s.heartbeat()
		}
	}
}
