package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dean0x/devlog/internal/store"
)

// ErrNotFound is returned when an event id does not exist.
var ErrNotFound = errors.New("event not found")

// StateError reports an illegal state transition, such as claiming an event
// that is no longer pending. Exactly one of two concurrent claimants of the
// same event receives it.
type StateError struct {
	ID   string
	Want State
	Have State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("event %s: state is %s, want %s", e.ID, e.Have, e.Want)
}

// Queue is the durable event queue. Events live in the events table; every
// transition is a conditional UPDATE, so concurrent producers and a claiming
// watcher need no coordination beyond the database itself.
type Queue struct {
	db *store.DB
}

// New returns a Queue over an open database. Opening the database is the
// idempotent on-disk initialization.
func New(db *store.DB) *Queue {
	return &Queue{db: db}
}

// Stats holds read-only per-state event counts.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Enqueue validates the payload for the given event type, assigns a
// time-ordered id and enqueue timestamp, and inserts a pending record as a
// single statement. Safe for concurrent callers in separate processes.
func (q *Queue) Enqueue(typ EventType, sessionID string, payload json.RawMessage) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("enqueue: session_id required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := validatePayload(typ, payload); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	now := time.Now()
	id := ulid.Make().String()

	_, err := q.db.Exec(`
		INSERT INTO events (id, event_type, session_id, payload, state, attempts, enqueued_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?)
	`, id, string(typ), sessionID, string(payload), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// ListPending returns pending event ids ordered by enqueued_at, id as
// tie-break.
func (q *Queue) ListPending(limit int) ([]string, error) {
	rows, err := q.db.Query(`
		SELECT id FROM events WHERE state = 'pending'
		ORDER BY enqueued_at, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Read returns the full record for an event id.
func (q *Queue) Read(id string) (*Event, error) {
	var e Event
	var lastError sql.NullString
	err := q.db.QueryRow(`
		SELECT id, event_type, session_id, payload, state, attempts, last_error, enqueued_at, updated_at
		FROM events WHERE id = ?
	`, id).Scan(&e.ID, &e.Type, &e.SessionID, (*payloadScanner)(&e.Payload), &e.State,
		&e.Attempts, &lastError, &e.EnqueuedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", id, err)
	}
	e.LastError = lastError.String
	return &e, nil
}

// MarkProcessing claims a pending event. This is the sole mutual-exclusion
// point: the conditional UPDATE guarantees at most one claimant even under
// concurrent callers. Returns a StateError if the event is not pending.
func (q *Queue) MarkProcessing(id string) error {
	return q.transition(id, StatePending, StateProcessing, "", false)
}

// MarkCompleted transitions processing → completed.
func (q *Queue) MarkCompleted(id string) error {
	return q.transition(id, StateProcessing, StateCompleted, "", false)
}

// MarkFailed transitions processing → failed, increments the attempt
// counter, and records the reason. Failed records stay inspectable.
func (q *Queue) MarkFailed(id, reason string) error {
	return q.transition(id, StateProcessing, StateFailed, reason, true)
}

func (q *Queue) transition(id string, from, to State, reason string, bumpAttempts bool) error {
	now := time.Now().UnixMilli()

	var res sql.Result
	var err error
	if bumpAttempts {
		res, err = q.db.Exec(`
			UPDATE events SET state = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
			WHERE id = ? AND state = ?
		`, string(to), reason, now, id, string(from))
	} else {
		res, err = q.db.Exec(`
			UPDATE events SET state = ?, updated_at = ?
			WHERE id = ? AND state = ?
		`, string(to), now, id, string(from))
	}
	if err != nil {
		return fmt.Errorf("transition %s → %s: %w", from, to, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s → %s: %w", from, to, err)
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either lost the race or the id is wrong.
	cur, err := q.Read(id)
	if err != nil {
		return err
	}
	return &StateError{ID: id, Want: from, Have: cur.State}
}

// RequeueRetryable returns failed events with remaining attempts to pending
// so the next polling cycle picks them up again. Events at or beyond
// maxAttempts stay permanently failed.
func (q *Queue) RequeueRetryable(maxAttempts int) (int, error) {
	res, err := q.db.Exec(`
		UPDATE events SET state = 'pending', updated_at = ?
		WHERE state = 'failed' AND attempts < ?
	`, time.Now().UnixMilli(), maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeue retryable: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecoverAbandoned returns processing events older than the watchdog
// threshold to pending. Covers records stranded by an ungraceful
// termination mid-batch.
func (q *Queue) RecoverAbandoned(stuckAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-stuckAfter).UnixMilli()
	res, err := q.db.Exec(`
		UPDATE events SET state = 'pending', updated_at = ?
		WHERE state = 'processing' AND updated_at < ?
	`, time.Now().UnixMilli(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover abandoned: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetStats returns per-state counts.
func (q *Queue) GetStats() (*Stats, error) {
	rows, err := q.db.Query(`SELECT state, COUNT(*) FROM events GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch State(state) {
		case StatePending:
			s.Pending = count
		case StateProcessing:
			s.Processing = count
		case StateCompleted:
			s.Completed = count
		case StateFailed:
			s.Failed = count
		}
	}
	return &s, rows.Err()
}

// payloadScanner scans a TEXT column into a json.RawMessage.
type payloadScanner json.RawMessage

func (p *payloadScanner) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*p = payloadScanner(v)
	case []byte:
		*p = append((*p)[:0], v...)
	case nil:
		*p = nil
	default:
		return fmt.Errorf("unexpected payload type %T", src)
	}
	return nil
}
