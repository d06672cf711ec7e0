package repo

import (
	"context"
	"database/sql"
	"errors"

	"docketline/internal/domain"
)

const taskColumns = `id,case_id,milestone_id,assigned_to,title,description,status,priority,due_date,completed_date,estimated_hours,actual_hours,progress_notes,created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                     domain.Task
		milestone, completed  sql.NullString
		estimated, actual     sql.NullInt64
		due, created, updated string
	)
	err := row.Scan(&t.ID, &t.CaseID, &milestone, &t.AssignedTo, &t.Title, &t.Description, &t.Status, &t.Priority,
		&due, &completed, &estimated, &actual, &t.ProgressNotes, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.MilestoneID = strPtr(milestone)
	t.EstimatedHours = intPtr(estimated)
	t.ActualHours = intPtr(actual)
	if t.DueDate, err = parseTime(due); err != nil {
		return t, err
	}
	if t.CompletedDate, err = parseNullTime(completed); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CaseID, nullableStr(t.MilestoneID), t.AssignedTo, t.Title, t.Description, string(t.Status), string(t.Priority),
		formatTime(t.DueDate), formatTimePtr(t.CompletedDate), nullableInt(t.EstimatedHours), nullableInt(t.ActualHours),
		t.ProgressNotes, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return err
}

// UpdateTask writes t only if the stored status still equals expected.
func (r Repo) UpdateTask(ctx context.Context, t domain.Task, expected domain.TaskStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET case_id=?,milestone_id=?,assigned_to=?,title=?,description=?,status=?,priority=?,due_date=?,completed_date=?,estimated_hours=?,actual_hours=?,progress_notes=?,updated_at=?
WHERE id=? AND status=?`,
		t.CaseID, nullableStr(t.MilestoneID), t.AssignedTo, t.Title, t.Description, string(t.Status), string(t.Priority),
		formatTime(t.DueDate), formatTimePtr(t.CompletedDate), nullableInt(t.EstimatedHours), nullableInt(t.ActualHours),
		t.ProgressNotes, formatTime(t.UpdatedAt), t.ID, string(expected))
	return r.compareAndSet(ctx, "tasks", t.ID, res, err)
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	return expectOneRow(res, err, ErrNotFound)
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	var w where
	if f.CaseID != "" {
		w.add("case_id=?", f.CaseID)
	}
	if f.AssignedTo != "" {
		w.add("assigned_to=?", f.AssignedTo)
	}
	w.in("status", statusStrings(f.Status))
	if f.DueBefore != nil {
		w.add("due_date<?", formatTime(*f.DueBefore))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+w.String()+` ORDER BY due_date ASC, id ASC`+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTasksByStatus returns the number of tasks per stored status for a case.
func (r Repo) CountTasksByStatus(ctx context.Context, caseID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE case_id=? GROUP BY status`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
