package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SpotLedger/internal/event"
)

// LoadEvents reads the whole durable log in sequence order and decodes
// each row back into an envelope.
func LoadEvents(ctx context.Context, db *sql.DB) ([]event.Envelope, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sequence, event_id, event_type, payload, timestamp
		FROM event_log.events
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var envs []event.Envelope
	for rows.Next() {
		var (
			seq       int64
			id        string
			eventType string
			payload   []byte
			ts        time.Time
		)
		if err := rows.Scan(&seq, &id, &eventType, &payload, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		env, err := decodeRow(seq, id, eventType, payload, ts)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

func decodeRow(seq int64, id, eventType string, payload []byte, ts time.Time) (event.Envelope, error) {
	typ := event.TypeFromString(eventType)
	if typ == event.TypeUnknown {
		return event.Envelope{}, fmt.Errorf("sequence %d: unknown event type %q", seq, eventType)
	}

	eventID, err := uuid.Parse(id)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("sequence %d event id: %w", seq, err)
	}

	var rec event.Record
	switch typ {
	case event.TypeDeposit:
		var r event.Deposit
		err = json.Unmarshal(payload, &r)
		rec = r
	case event.TypeWithdraw:
		var r event.Withdraw
		err = json.Unmarshal(payload, &r)
		rec = r
	case event.TypeOrder:
		var r event.Order
		err = json.Unmarshal(payload, &r)
		rec = r
	case event.TypeCancel:
		var r event.Cancel
		err = json.Unmarshal(payload, &r)
		rec = r
	case event.TypeTrade:
		var r event.Trade
		err = json.Unmarshal(payload, &r)
		rec = r
	}
	if err != nil {
		return event.Envelope{}, fmt.Errorf("decode %s payload at sequence %d: %w", eventType, seq, err)
	}

	return event.Envelope{
		Sequence:  seq,
		EventID:   eventID,
		Type:      typ,
		Timestamp: ts,
		Record:    rec,
	}, nil
}
