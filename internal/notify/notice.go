// Package notify carries short user-facing notices (the dashboard's toasts)
// from components to whatever displays or records them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Severity string

const (
	SeverityDefault     Severity = "default"
	SeverityDestructive Severity = "destructive"
)

type Notice struct {
	SessionID   string    `json:"session_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	At          time.Time `json:"at"`
}

// Sink receives notices. Implementations must not block for long: notices
// are raised while component state is being updated.
type Sink interface {
	Notify(ctx context.Context, n Notice)
}

type SinkFunc func(ctx context.Context, n Notice)

func (f SinkFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Fanout delivers every notice to each sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Tag stamps the session id onto notices before passing them on.
func Tag(sessionID string, next Sink) Sink {
	return SinkFunc(func(ctx context.Context, n Notice) {
		n.SessionID = sessionID
		next.Notify(ctx, n)
	})
}

// Recorder buffers the most recent notices until the client drains them.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	pending []Notice
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 20
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, n)
	if over := len(r.pending) - r.limit; over > 0 {
		r.pending = append(r.pending[:0:0], r.pending[over:]...)
	}
}

// Drain returns buffered notices oldest first and empties the buffer.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

// Log writes notices to a structured logger.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notice) {
	evt := l.logger.Info()
	if n.Severity == SeverityDestructive {
		evt = l.logger.Warn()
	}
	evt.
		Str("session_id", n.SessionID).
		Str("severity", string(n.Severity)).
		Str("description", n.Description).
		Msg(n.Title)
}
