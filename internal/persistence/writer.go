// Package persistence writes the event log to Postgres and loads it back
// at startup. The in-memory log is the source of truth during a run; the
// database copy exists so state can be replayed after a restart.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SpotLedger/internal/event"
)

// EventRow is a row in event_log.events. Payload is the JSON-encoded
// record; big integer amounts survive the round trip as JSON numbers.
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	Payload   []byte
	Timestamp time.Time
}

// RowFromEnvelope flattens an envelope for storage.
func RowFromEnvelope(env event.Envelope) (EventRow, error) {
	payload, err := json.Marshal(env.Record)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal %s payload: %w", env.Type, err)
	}
	return EventRow{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: env.Type.String(),
		Payload:   payload,
		Timestamp: env.Timestamp,
	}, nil
}

// EventLogWriter batch-writes event rows using multi-row INSERT.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteBatch inserts the rows in one statement. Sequence is the primary
// key, so replaying a batch that was already written is a no-op.
func (w *EventLogWriter) WriteBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_id, event_type, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*5)

	for i, r := range rows {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, r.Sequence, r.EventID, r.EventType, r.Payload, r.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest durable sequence, or -1 for an empty
// table.
func (w *EventLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM event_log.events`,
	).Scan(&seq)
	if err != nil {
		return -1, err
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}
