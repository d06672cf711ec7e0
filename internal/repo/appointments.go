package repo

import (
	"context"
	"database/sql"
	"errors"

	"docketline/internal/domain"
)

const appointmentColumns = `id,lawyer_id,client_id,case_id,type,scheduled_at,duration_minutes,status,cancellation_reason,notes,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (domain.Appointment, error) {
	var (
		a                     domain.Appointment
		caseID, reason        sql.NullString
		scheduled, created, u string
	)
	err := row.Scan(&a.ID, &a.LawyerID, &a.ClientID, &caseID, &a.Type, &scheduled, &a.DurationMinutes, &a.Status, &reason, &a.Notes, &created, &u)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.CaseID = strPtr(caseID)
	a.CancellationReason = strPtr(reason)
	if a.ScheduledAt, err = parseTime(scheduled); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = parseTime(u); err != nil {
		return a, err
	}
	return a, nil
}

func (r Repo) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return scanAppointment(r.DB.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id=?`, id))
}

// InsertAppointment relies on the partial unique index over
// (lawyer_id, scheduled_at) WHERE status='SCHEDULED' to reject a second
// holder of the same slot atomically.
func (r Repo) InsertAppointment(ctx context.Context, a domain.Appointment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO appointments(`+appointmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.LawyerID, a.ClientID, nullableStr(a.CaseID), string(a.Type), formatTime(a.ScheduledAt), a.DurationMinutes,
		string(a.Status), nullableStr(a.CancellationReason), a.Notes, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if isUniqueViolation(err, "lawyer_id", "scheduled_at") {
		return ErrSlotTaken
	}
	return err
}

// UpdateAppointment writes a only if the stored status still equals expected.
func (r Repo) UpdateAppointment(ctx context.Context, a domain.Appointment, expected domain.AppointmentStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE appointments SET lawyer_id=?,client_id=?,case_id=?,type=?,scheduled_at=?,duration_minutes=?,status=?,cancellation_reason=?,notes=?,updated_at=?
WHERE id=? AND status=?`,
		a.LawyerID, a.ClientID, nullableStr(a.CaseID), string(a.Type), formatTime(a.ScheduledAt), a.DurationMinutes,
		string(a.Status), nullableStr(a.CancellationReason), a.Notes, formatTime(a.UpdatedAt), a.ID, string(expected))
	if isUniqueViolation(err, "lawyer_id", "scheduled_at") {
		return ErrSlotTaken
	}
	return r.compareAndSet(ctx, "appointments", a.ID, res, err)
}

func (r Repo) DeleteAppointment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM appointments WHERE id=?`, id)
	return expectOneRow(res, err, ErrNotFound)
}

func (r Repo) ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error) {
	var w where
	if f.LawyerID != "" {
		w.add("lawyer_id=?", f.LawyerID)
	}
	if f.ClientID != "" {
		w.add("client_id=?", f.ClientID)
	}
	if f.CaseID != "" {
		w.add("case_id=?", f.CaseID)
	}
	w.in("status", statusStrings(f.Status))
	if f.At != nil {
		w.add("scheduled_at=?", formatTime(*f.At))
	}
	if f.From != nil {
		w.add("scheduled_at>=?", formatTime(*f.From))
	}
	if f.To != nil {
		w.add("scheduled_at<?", formatTime(*f.To))
	}
	order := " ORDER BY scheduled_at ASC, id ASC"
	if f.Desc {
		order = " ORDER BY scheduled_at DESC, id DESC"
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments`+w.String()+order+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
