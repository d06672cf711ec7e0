package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docketline/internal/domain"
)

// SQLSink appends events to the events table.
type SQLSink struct {
	DB *sql.DB
}

func (SQLSink) Name() string { return "sql" }

func (s SQLSink) Deliver(ctx context.Context, evt domain.Event) error {
	payload := evt.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		evt.TS.UTC().Format("2006-01-02T15:04:05.000000000Z"), evt.Type, evt.EntityKind, nullable(evt.EntityID), nullable(evt.ActorID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
