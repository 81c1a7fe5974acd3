// Package audit keeps a write-only journal of dashboard notices in Postgres.
// Nothing is ever read back into a session.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/notify"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertNotice = `
	INSERT INTO dashboard_notices (session_id, title, description, severity, raised_at)
	VALUES ($1, $2, $3, $4, $5)
`

// Journal is a notify.Sink that queues notices and writes them from a
// single background goroutine. A full queue drops notices.
type Journal struct {
	db     Execer
	logger zerolog.Logger
	queue  chan notify.Notice
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewJournal(db Execer, buffer int, logger zerolog.Logger) *Journal {
	if buffer <= 0 {
		buffer = 256
	}
	return &Journal{
		db:     db,
		logger: logger,
		queue:  make(chan notify.Notice, buffer),
		done:   make(chan struct{}),
	}
}

func (j *Journal) Notify(_ context.Context, n notify.Notice) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- n:
	default:
		j.logger.Warn().Str("title", n.Title).Msg("audit queue full, notice dropped")
	}
}

// Run writes queued notices until Close is called and the queue is empty.
func (j *Journal) Run() {
	defer close(j.done)
	for n := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := j.write(ctx, n); err != nil {
			j.logger.Error().Err(err).Str("session_id", n.SessionID).Msg("audit write failed")
		}
		cancel()
	}
}

func (j *Journal) write(ctx context.Context, n notify.Notice) error {
	_, err := j.db.ExecContext(ctx, insertNotice, n.SessionID, n.Title, n.Description, string(n.Severity), n.At)
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

// Close stops accepting notices and waits for Run to flush the queue.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done
}

// Migrate applies the schema in dir (a file:// source) to databaseURL.
func Migrate(dir, databaseURL string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
