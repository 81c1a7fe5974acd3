package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Telegram forwards success notices to the doctor's chat. Validation
// failures stay on the dashboard. Messages are queued and sent by Run; a
// full queue drops them.
type Telegram struct {
	sender MessageSender
	chatID int64
	logger zerolog.Logger
	queue  chan string
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewTelegram(sender MessageSender, chatID int64, buffer int, logger zerolog.Logger) *Telegram {
	if buffer <= 0 {
		buffer = 32
	}
	return &Telegram{
		sender: sender,
		chatID: chatID,
		logger: logger,
		queue:  make(chan string, buffer),
		done:   make(chan struct{}),
	}
}

func (t *Telegram) Notify(_ context.Context, n Notice) {
	if n.Severity == SeverityDestructive {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- fmt.Sprintf("%s\n%s", n.Title, n.Description):
	default:
		t.logger.Warn().Str("session_id", n.SessionID).Str("title", n.Title).Msg("telegram queue full, notice dropped")
	}
}

// Run sends queued messages until Close is called and the queue is empty.
func (t *Telegram) Run() {
	defer close(t.done)
	for text := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := t.sender.SendMessage(ctx, t.chatID, text); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("forward notice to telegram")
		}
		cancel()
	}
}

// Close stops accepting notices and waits for Run to send what is queued.
func (t *Telegram) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.done
}
