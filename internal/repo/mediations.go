package repo

import (
	"context"
	"database/sql"
	"errors"

	"docketline/internal/domain"
)

const mediationColumns = `id,case_id,initiator_id,mediator_id,reason,status,scheduled_date,location,notes,session_notes,created_at,updated_at`

func scanMediation(row rowScanner) (domain.Mediation, error) {
	var (
		m                              domain.Mediation
		scheduled, loc, notes, session sql.NullString
		created, updated               string
	)
	err := row.Scan(&m.ID, &m.CaseID, &m.InitiatorID, &m.MediatorID, &m.Reason, &m.Status, &scheduled, &loc, &notes, &session, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if m.ScheduledDate, err = parseNullTime(scheduled); err != nil {
		return m, err
	}
	m.Location = strPtr(loc)
	m.Notes = strPtr(notes)
	m.SessionNotes = strPtr(session)
	if m.CreatedAt, err = parseTime(created); err != nil {
		return m, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return m, err
	}
	return m, nil
}

func (r Repo) GetMediation(ctx context.Context, id string) (domain.Mediation, error) {
	return scanMediation(r.DB.QueryRowContext(ctx, `SELECT `+mediationColumns+` FROM mediations WHERE id=?`, id))
}

func (r Repo) InsertMediation(ctx context.Context, m domain.Mediation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO mediations(`+mediationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.CaseID, m.InitiatorID, m.MediatorID, m.Reason, string(m.Status), formatTimePtr(m.ScheduledDate),
		nullableStr(m.Location), nullableStr(m.Notes), nullableStr(m.SessionNotes), formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	return err
}

// UpdateMediation writes m only if the stored status still equals expected.
func (r Repo) UpdateMediation(ctx context.Context, m domain.Mediation, expected domain.MediationStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE mediations SET case_id=?,initiator_id=?,mediator_id=?,reason=?,status=?,scheduled_date=?,location=?,notes=?,session_notes=?,updated_at=?
WHERE id=? AND status=?`,
		m.CaseID, m.InitiatorID, m.MediatorID, m.Reason, string(m.Status), formatTimePtr(m.ScheduledDate),
		nullableStr(m.Location), nullableStr(m.Notes), nullableStr(m.SessionNotes), formatTime(m.UpdatedAt), m.ID, string(expected))
	return r.compareAndSet(ctx, "mediations", m.ID, res, err)
}

func (r Repo) DeleteMediation(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM mediations WHERE id=?`, id)
	return expectOneRow(res, err, ErrNotFound)
}

func (r Repo) ListMediations(ctx context.Context, f MediationFilter) ([]domain.Mediation, error) {
	var w where
	if f.CaseID != "" {
		w.add("case_id=?", f.CaseID)
	}
	if f.MediatorID != "" {
		w.add("mediator_id=?", f.MediatorID)
	}
	w.in("status", statusStrings(f.Status))
	rows, err := r.DB.QueryContext(ctx, `SELECT `+mediationColumns+` FROM mediations`+w.String()+` ORDER BY created_at DESC, id DESC`+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Mediation
	for rows.Next() {
		m, err := scanMediation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
