package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"docketline/internal/domain"
)

func (r Repo) ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	var w where
	if f.Type != "" {
		w.add("type=?", f.Type)
	}
	if f.EntityKind != "" {
		w.add("entity_kind=?", f.EntityKind)
	}
	if f.EntityID != "" {
		w.add("entity_id=?", f.EntityID)
	}
	if f.BeforeID > 0 {
		w.add("id<?", f.BeforeID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events`+w.String()+` ORDER BY id DESC`+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var (
			e                 domain.Event
			ts, payload       string
			entityID, actorID sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Type, &e.EntityKind, &entityID, &actorID, &payload); err != nil {
			return nil, err
		}
		if e.TS, err = parseTime(ts); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		e.ActorID = actorID.String
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
