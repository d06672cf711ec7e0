package server

import (
	"time"

	"docketline/internal/domain"
)

// Request bodies

type CreateAppointmentRequest struct {
	LawyerID        string                 `json:"lawyer_id" minLength:"1"`
	ClientID        string                 `json:"client_id" minLength:"1"`
	CaseID          string                 `json:"case_id,omitempty"`
	Type            domain.AppointmentType `json:"type,omitempty" enum:"CONSULTATION,FOLLOW_UP,COURT_PREP,MEDIATION,OTHER"`
	ScheduledAt     time.Time              `json:"scheduled_at" format:"date-time"`
	DurationMinutes int                    `json:"duration_minutes,omitempty" minimum:"0" maximum:"480"`
	Notes           string                 `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type ConflictResponse struct {
	LawyerID    string    `json:"lawyer_id"`
	ScheduledAt time.Time `json:"scheduled_at" format:"date-time"`
	Conflict    bool      `json:"conflict"`
}

type InitiateMediationRequest struct {
	CaseID     string `json:"case_id" minLength:"1"`
	MediatorID string `json:"mediator_id" minLength:"1"`
	Reason     string `json:"reason" minLength:"1"`
	Notes      string `json:"notes,omitempty"`
}

type ScheduleSessionRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" format:"date-time"`
	Location      string    `json:"location,omitempty"`
}

type ScheduleSessionResponse struct {
	Mediation  domain.Mediation `json:"mediation"`
	ReminderID string           `json:"reminder_id,omitempty"`
}

type MediationStatusRequest struct {
	Status       domain.MediationStatus `json:"status" enum:"PENDING,SCHEDULED,IN_PROGRESS,COMPLETED,FAILED"`
	SessionNotes string                 `json:"session_notes,omitempty"`
	Force        bool                   `json:"force,omitempty"`
}

type CreateTaskRequest struct {
	CaseID         string              `json:"case_id" minLength:"1"`
	MilestoneID    string              `json:"milestone_id,omitempty"`
	AssignedTo     string              `json:"assigned_to" minLength:"1"`
	Title          string              `json:"title" minLength:"1"`
	Description    string              `json:"description,omitempty"`
	Priority       domain.TaskPriority `json:"priority,omitempty" enum:"LOW,MEDIUM,HIGH,URGENT"`
	DueDate        time.Time           `json:"due_date" format:"date-time"`
	EstimatedHours *int                `json:"estimated_hours,omitempty"`
}

type UpdateTaskRequest struct {
	Title          *string              `json:"title,omitempty"`
	Description    *string              `json:"description,omitempty"`
	AssignedTo     *string              `json:"assigned_to,omitempty"`
	MilestoneID    *string              `json:"milestone_id,omitempty"`
	Priority       *domain.TaskPriority `json:"priority,omitempty" enum:"LOW,MEDIUM,HIGH,URGENT"`
	DueDate        *time.Time           `json:"due_date,omitempty" format:"date-time"`
	Status         *domain.TaskStatus   `json:"status,omitempty" enum:"PENDING,IN_PROGRESS,COMPLETED,OVERDUE,CANCELLED"`
	EstimatedHours *int                 `json:"estimated_hours,omitempty"`
	ActualHours    *int                 `json:"actual_hours,omitempty"`
	ProgressNotes  *string              `json:"progress_notes,omitempty"`
}

type TaskStatusRequest struct {
	Status domain.TaskStatus `json:"status" enum:"PENDING,IN_PROGRESS,COMPLETED,OVERDUE,CANCELLED"`
}

type DevLoginRequest struct {
	ActorID string      `json:"actor_id"`
	Role    domain.Role `json:"role,omitempty" enum:"ADMIN,LAWYER,CLIENT,MEDIATOR"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Responses

// TaskResponse adds the derived overdue flag to a task.
type TaskResponse struct {
	domain.Task
	Overdue bool `json:"overdue"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func taskResponse(t domain.Task, overdue func(domain.Task) bool) TaskResponse {
	return TaskResponse{Task: t, Overdue: overdue(t)}
}

func mapTasks(items []domain.Task, overdue func(domain.Task) bool) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t, overdue))
	}
	return out
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
