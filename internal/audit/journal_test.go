package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clinical-dashboard/internal/notify"
)

type fakeDB struct {
	mu    sync.Mutex
	calls [][]any
	query string
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = query
	f.calls = append(f.calls, args)
	return nil, f.err
}

func TestJournal_WritesQueuedNotices(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db, 8, zerolog.Nop())
	go j.Run()

	at := time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)
	j.Notify(context.Background(), notify.Notice{SessionID: "s1", Title: "SOAP Notes Generated", Severity: notify.SeverityDefault, At: at})
	j.Notify(context.Background(), notify.Notice{SessionID: "s1", Title: "Please enter symptoms", Severity: notify.SeverityDestructive, At: at})
	j.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.calls) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(db.calls))
	}
	if !strings.Contains(db.query, "dashboard_notices") {
		t.Errorf("unexpected query %s", db.query)
	}
	if db.calls[1][1] != "Please enter symptoms" || db.calls[1][3] != "destructive" {
		t.Errorf("unexpected args %v", db.calls[1])
	}
}

func TestJournal_DropsAfterClose(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db, 1, zerolog.Nop())
	go j.Run()
	j.Close()
	j.Close()

	j.Notify(context.Background(), notify.Notice{Title: "late"})
	if len(db.calls) != 0 {
		t.Errorf("expected nothing written after close, got %d", len(db.calls))
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db, 1, zerolog.Nop())

	// Run is not started, so the second notice finds the queue full.
	j.Notify(context.Background(), notify.Notice{Title: "a"})
	j.Notify(context.Background(), notify.Notice{Title: "b"})

	go j.Run()
	j.Close()
	if len(db.calls) != 1 || db.calls[0][1] != "a" {
		t.Errorf("expected only the first notice written, got %v", db.calls)
	}
}

func TestJournal_WriteErrorKeepsRunning(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	j := NewJournal(db, 4, zerolog.Nop())
	go j.Run()
	j.Notify(context.Background(), notify.Notice{Title: "a"})
	j.Notify(context.Background(), notify.Notice{Title: "b"})
	j.Close()
	if len(db.calls) != 2 {
		t.Errorf("expected both writes attempted, got %d", len(db.calls))
	}
}
