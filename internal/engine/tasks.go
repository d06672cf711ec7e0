package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	CaseID         string
	MilestoneID    string
	AssignedTo     string
	Title          string
	Description    string
	Priority       domain.TaskPriority
	DueDate        time.Time
	EstimatedHours *int
	ActorID        string
}

// TaskUpdateOptions is a partial update; nil fields are left unchanged.
type TaskUpdateOptions struct {
	ID             string
	Title          *string
	Description    *string
	AssignedTo     *string
	MilestoneID    *string
	Priority       *domain.TaskPriority
	DueDate        *time.Time
	Status         *domain.TaskStatus
	EstimatedHours *int
	ActualHours    *int
	ProgressNotes  *string
	Actor          domain.Actor
}

func validTaskStatus(s domain.TaskStatus) bool {
	switch s {
	case domain.TaskPending, domain.TaskInProgress, domain.TaskCompleted, domain.TaskOverdue, domain.TaskCancelled:
		return true
	}
	return false
}

func checkHours(field string, v *int) error {
	if v != nil && *v < 0 {
		return ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	switch {
	case opts.CaseID == "":
		return domain.Task{}, e.reject("task", ValidationError{Field: "case_id", Reason: "is required"})
	case opts.AssignedTo == "":
		return domain.Task{}, e.reject("task", ValidationError{Field: "assigned_to", Reason: "is required"})
	case strings.TrimSpace(opts.Title) == "":
		return domain.Task{}, e.reject("task", ValidationError{Field: "title", Reason: "is required"})
	case opts.DueDate.IsZero():
		return domain.Task{}, e.reject("task", ValidationError{Field: "due_date", Reason: "is required"})
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, e.reject("task", ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", opts.Priority)})
	}
	if err := checkHours("estimated_hours", opts.EstimatedHours); err != nil {
		return domain.Task{}, e.reject("task", err)
	}
	now := e.now()
	t := domain.Task{
		ID:             newID(),
		CaseID:         opts.CaseID,
		MilestoneID:    optionalString(opts.MilestoneID),
		AssignedTo:     opts.AssignedTo,
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         domain.TaskPending,
		Priority:       opts.Priority,
		DueDate:        opts.DueDate.UTC(),
		EstimatedHours: opts.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Store.InsertTask(ctx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	e.Metrics.IncTransition("task", string(t.Status))
	e.emit(ctx, events.TaskCreated, "task", t.ID, opts.ActorID, events.Payload{
		"case_id":     t.CaseID,
		"assigned_to": t.AssignedTo,
		"priority":    t.Priority,
		"due_date":    t.DueDate,
	})
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return t, notFound("task", id, err)
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error) {
	return e.Store.ListTasks(ctx, f)
}

// ListOverdueTasks returns open tasks whose due date has passed. caseID is
// optional.
func (e Engine) ListOverdueTasks(ctx context.Context, caseID string) ([]domain.Task, error) {
	now := e.now()
	return e.Store.ListTasks(ctx, repo.TaskFilter{
		CaseID:    caseID,
		Status:    []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress},
		DueBefore: &now,
	})
}

// IsOverdue evaluates the overdue predicate against the engine clock.
func (e Engine) IsOverdue(t domain.Task) bool {
	return t.IsOverdue(e.now())
}

func (e Engine) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus, actor domain.Actor) (domain.Task, error) {
	return e.UpdateTask(ctx, TaskUpdateOptions{ID: id, Status: &status, Actor: actor})
}

// UpdateTask merges the non-nil fields of opts into the task. A status change
// goes through the task transition table; reaching COMPLETED stamps the
// completed date.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if opts.Status != nil && !validTaskStatus(*opts.Status) {
		return domain.Task{}, e.reject("task", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", *opts.Status)})
	}
	if opts.Priority != nil && !opts.Priority.Valid() {
		return domain.Task{}, e.reject("task", ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", *opts.Priority)})
	}
	if err := checkHours("estimated_hours", opts.EstimatedHours); err != nil {
		return domain.Task{}, e.reject("task", err)
	}
	if err := checkHours("actual_hours", opts.ActualHours); err != nil {
		return domain.Task{}, e.reject("task", err)
	}
	if opts.Title != nil && strings.TrimSpace(*opts.Title) == "" {
		return domain.Task{}, e.reject("task", ValidationError{Field: "title", Reason: "must not be empty"})
	}
	if opts.AssignedTo != nil && *opts.AssignedTo == "" {
		return domain.Task{}, e.reject("task", ValidationError{Field: "assigned_to", Reason: "must not be empty"})
	}

	t, err := e.Store.GetTask(ctx, opts.ID)
	if err != nil {
		return t, e.reject("task", notFound("task", opts.ID, err))
	}
	rels := taskRelations(t, opts.Actor)
	if len(rels) == 0 {
		return t, e.reject("task", ForbiddenError{Entity: "task", ActorID: opts.Actor.ID, Action: "update"})
	}
	from := t.Status
	statusChanged := opts.Status != nil && *opts.Status != t.Status
	if statusChanged {
		if err := taskFSM.check(t.Status, *opts.Status, opts.Actor.ID, rels); err != nil {
			return t, e.reject("task", err)
		}
	}

	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.AssignedTo != nil {
		t.AssignedTo = *opts.AssignedTo
	}
	if opts.MilestoneID != nil {
		t.MilestoneID = optionalString(*opts.MilestoneID)
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate.UTC()
	}
	if opts.EstimatedHours != nil {
		t.EstimatedHours = opts.EstimatedHours
	}
	if opts.ActualHours != nil {
		t.ActualHours = opts.ActualHours
	}
	if opts.ProgressNotes != nil {
		t.ProgressNotes = *opts.ProgressNotes
	}
	now := e.now()
	if statusChanged {
		t.Status = *opts.Status
		if t.Status == domain.TaskCompleted {
			t.CompletedDate = &now
		}
	}
	t.UpdatedAt = now
	if err := e.Store.UpdateTask(ctx, t, from); err != nil {
		return t, e.reject("task", e.storeErr("task", opts.ID, from, t.Status, err))
	}

	if statusChanged {
		e.Metrics.IncTransition("task", string(t.Status))
		evtType := events.TaskStatusChanged
		if t.Status == domain.TaskCompleted {
			evtType = events.TaskCompleted
		}
		e.emit(ctx, evtType, "task", t.ID, opts.Actor.ID, events.Payload{
			"from":        from,
			"to":          t.Status,
			"case_id":     t.CaseID,
			"assignee":    t.AssignedTo,
			"was_overdue": t.DueDate.Before(now),
		})
	} else {
		e.emit(ctx, events.TaskUpdated, "task", t.ID, opts.Actor.ID, events.Payload{"status": t.Status})
	}
	return t, nil
}

// DeleteTask removes a task. Lawyers and admins may delete.
func (e Engine) DeleteTask(ctx context.Context, id string, actor domain.Actor) error {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return e.reject("task", notFound("task", id, err))
	}
	if actor.Role != domain.RoleLawyer && actor.Role != domain.RoleAdmin {
		return e.reject("task", ForbiddenError{Entity: "task", ActorID: actor.ID, Action: "delete"})
	}
	if err := e.Store.DeleteTask(ctx, id); err != nil {
		return notFound("task", id, err)
	}
	e.emit(ctx, events.TaskDeleted, "task", id, actor.ID, events.Payload{"status": t.Status})
	return nil
}
