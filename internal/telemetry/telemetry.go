package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// Event is one interaction record. Detail is event-kind-specific JSON.
type Event struct {
	SessionID string          `json:"session_id"`
	PageID    string          `json:"page_id"`
	PartID    string          `json:"part_id,omitempty"`
	Kind      string          `json:"kind"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	At        time.Time       `json:"at"`
}

// Event kinds written by the page service.
const (
	KindSessionOpen  = "session_open"
	KindSessionClose = "session_close"
	KindAttempt      = "attempt"
	KindSubmit       = "submit"
	KindHint         = "hint_reveal"
	KindContentError = "content_error"
)

// Recorder persists interaction events without ever blocking the request
// path: Record enqueues and returns immediately, a single worker drains the
// queue, and events are dropped with a log line when the queue is full.
type Recorder struct {
	db    *sql.DB
	queue chan Event
	done  chan struct{}
}

func NewRecorder(db *sql.DB, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		db:    db,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case r.queue <- ev:
	default:
		log.Printf(`{"level":"warn","component":"telemetry","msg":"event queue full, dropping","kind":%q}`, ev.Kind)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.queue {
		r.insert(ev)
	}
}

func (r *Recorder) insert(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	detail := ev.Detail
	if len(detail) == 0 {
		detail = json.RawMessage(`{}`)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO events (session_id, page_id, part_id, kind, detail, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5::jsonb, $6)
	`, ev.SessionID, ev.PageID, ev.PartID, ev.Kind, []byte(detail), ev.At); err != nil {
		log.Printf(`{"level":"error","component":"telemetry","msg":"insert event","kind":%q,"error":%q}`, ev.Kind, err.Error())
	}
}

// Close stops accepting events and waits for the queue to flush.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
}
