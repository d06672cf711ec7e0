package domain

import "time"

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
)

type AppointmentType string

const (
	AppointmentConsultation AppointmentType = "CONSULTATION"
	AppointmentFollowUp     AppointmentType = "FOLLOW_UP"
	AppointmentCourtPrep    AppointmentType = "COURT_PREP"
	AppointmentMediation    AppointmentType = "MEDIATION"
	AppointmentOther        AppointmentType = "OTHER"
)

const (
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 480
	DefaultDurationMinutes = 60
)

type Appointment struct {
	ID                 string            `json:"id"`
	LawyerID           string            `json:"lawyer_id"`
	ClientID           string            `json:"client_id"`
	CaseID             *string           `json:"case_id,omitempty"`
	Type               AppointmentType   `json:"type" enum:"CONSULTATION,FOLLOW_UP,COURT_PREP,MEDIATION,OTHER"`
	ScheduledAt        time.Time         `json:"scheduled_at" format:"date-time"`
	DurationMinutes    int               `json:"duration_minutes"`
	Status             AppointmentStatus `json:"status" enum:"SCHEDULED,CONFIRMED,CANCELLED,COMPLETED"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"created_at" format:"date-time"`
	UpdatedAt          time.Time         `json:"updated_at" format:"date-time"`
}

type MediationStatus string

const (
	MediationPending    MediationStatus = "PENDING"
	MediationScheduled  MediationStatus = "SCHEDULED"
	MediationInProgress MediationStatus = "IN_PROGRESS"
	MediationCompleted  MediationStatus = "COMPLETED"
	MediationFailed     MediationStatus = "FAILED"
)

type Mediation struct {
	ID            string          `json:"id"`
	CaseID        string          `json:"case_id"`
	InitiatorID   string          `json:"initiator_id"`
	MediatorID    string          `json:"mediator_id"`
	Reason        string          `json:"reason"`
	Status        MediationStatus `json:"status" enum:"PENDING,SCHEDULED,IN_PROGRESS,COMPLETED,FAILED"`
	ScheduledDate *time.Time      `json:"scheduled_date,omitempty" format:"date-time"`
	Location      *string         `json:"location,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	SessionNotes  *string         `json:"session_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at" format:"date-time"`
	UpdatedAt     time.Time       `json:"updated_at" format:"date-time"`
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskOverdue    TaskStatus = "OVERDUE"
	TaskCancelled  TaskStatus = "CANCELLED"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID             string       `json:"id"`
	CaseID         string       `json:"case_id"`
	MilestoneID    *string      `json:"milestone_id,omitempty"`
	AssignedTo     string       `json:"assigned_to"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         TaskStatus   `json:"status" enum:"PENDING,IN_PROGRESS,COMPLETED,OVERDUE,CANCELLED"`
	Priority       TaskPriority `json:"priority" enum:"LOW,MEDIUM,HIGH,URGENT"`
	DueDate        time.Time    `json:"due_date" format:"date-time"`
	CompletedDate  *time.Time   `json:"completed_date,omitempty" format:"date-time"`
	EstimatedHours *int         `json:"estimated_hours,omitempty"`
	ActualHours    *int         `json:"actual_hours,omitempty"`
	ProgressNotes  string       `json:"progress_notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at" format:"date-time"`
	UpdatedAt      time.Time    `json:"updated_at" format:"date-time"`
}

// IsOverdue reports whether an open task has passed its due date. OVERDUE is
// never stored by a transition; callers query this instead.
func (t Task) IsOverdue(now time.Time) bool {
	if t.Status != TaskPending && t.Status != TaskInProgress {
		return false
	}
	return t.DueDate.Before(now)
}

type Reminder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	DueAt     time.Time `json:"due_at" format:"date-time"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64          `json:"id"`
	TS         time.Time      `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Role is the coarse role carried by the caller's principal.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleLawyer   Role = "LAWYER"
	RoleClient   Role = "CLIENT"
	RoleMediator Role = "MEDIATOR"
)

// Actor identifies who performs an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role,omitempty"`
}
