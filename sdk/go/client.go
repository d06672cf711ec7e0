package docketlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Docketline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID and ActorRole are sent as X-Actor-* headers when no token is
	// set. The server only honours them when allow_header_actor is on.
	ActorID    string
	ActorRole  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Appointment represents the API appointment model.
type Appointment struct {
	ID                 string    `json:"id"`
	LawyerID           string    `json:"lawyer_id"`
	ClientID           string    `json:"client_id"`
	CaseID             string    `json:"case_id,omitempty"`
	Type               string    `json:"type"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	DurationMinutes    int       `json:"duration_minutes"`
	Status             string    `json:"status"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// Mediation represents the API mediation model (partial).
type Mediation struct {
	ID            string     `json:"id"`
	CaseID        string     `json:"case_id"`
	InitiatorID   string     `json:"initiator_id"`
	MediatorID    string     `json:"mediator_id"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Location      string     `json:"location,omitempty"`
	SessionNotes  string     `json:"session_notes,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	AssignedTo string    `json:"assigned_to"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	DueDate    time.Time `json:"due_date"`
	Overdue    bool      `json:"overdue"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         time.Time      `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the envelope's error code when
// the body carried one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAppointmentRequest books an appointment.
type CreateAppointmentRequest struct {
	LawyerID        string    `json:"lawyer_id"`
	ClientID        string    `json:"client_id"`
	CaseID          string    `json:"case_id,omitempty"`
	Type            string    `json:"type,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

func (c *Client) CreateAppointment(ctx context.Context, in CreateAppointmentRequest) (Appointment, error) {
	var resp Appointment
	err := c.do(ctx, http.MethodPost, "appointments", in, &resp)
	return resp, err
}

// HasConflict reports whether the lawyer already holds a scheduled
// appointment starting at at.
func (c *Client) HasConflict(ctx context.Context, lawyerID string, at time.Time) (bool, error) {
	q := url.Values{}
	q.Set("lawyer_id", lawyerID)
	q.Set("scheduled_at", at.UTC().Format(time.RFC3339Nano))
	var resp struct {
		Conflict bool `json:"conflict"`
	}
	err := c.do(ctx, http.MethodGet, "appointments/conflicts?"+q.Encode(), nil, &resp)
	return resp.Conflict, err
}

func (c *Client) ConfirmAppointment(ctx context.Context, id string) (Appointment, error) {
	var resp Appointment
	err := c.do(ctx, http.MethodPost, "appointments/"+url.PathEscape(id)+"/confirm", nil, &resp)
	return resp, err
}

func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (Appointment, error) {
	var resp Appointment
	err := c.do(ctx, http.MethodPost, "appointments/"+url.PathEscape(id)+"/cancel", map[string]any{"reason": reason}, &resp)
	return resp, err
}

func (c *Client) CompleteAppointment(ctx context.Context, id string) (Appointment, error) {
	var resp Appointment
	err := c.do(ctx, http.MethodPost, "appointments/"+url.PathEscape(id)+"/complete", nil, &resp)
	return resp, err
}

// InitiateMediation opens a mediation; the caller becomes the initiator.
func (c *Client) InitiateMediation(ctx context.Context, caseID, mediatorID, reason string) (Mediation, error) {
	body := map[string]any{
		"case_id":     caseID,
		"mediator_id": mediatorID,
		"reason":      reason,
	}
	var resp Mediation
	err := c.do(ctx, http.MethodPost, "mediations", body, &resp)
	return resp, err
}

// ScheduleSession sets the session date and returns the armed reminder id.
func (c *Client) ScheduleSession(ctx context.Context, id string, at time.Time, location string) (Mediation, string, error) {
	body := map[string]any{
		"scheduled_date": at,
		"location":       location,
	}
	var resp struct {
		Mediation  Mediation `json:"mediation"`
		ReminderID string    `json:"reminder_id"`
	}
	err := c.do(ctx, http.MethodPost, "mediations/"+url.PathEscape(id)+"/schedule", body, &resp)
	return resp.Mediation, resp.ReminderID, err
}

func (c *Client) UpdateMediationStatus(ctx context.Context, id, status, sessionNotes string) (Mediation, error) {
	body := map[string]any{
		"status":        status,
		"session_notes": sessionNotes,
	}
	var resp Mediation
	err := c.do(ctx, http.MethodPost, "mediations/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// CreateTask creates a task due at due.
func (c *Client) CreateTask(ctx context.Context, caseID, assignedTo, title string, due time.Time) (Task, error) {
	body := map[string]any{
		"case_id":     caseID,
		"assigned_to": assignedTo,
		"title":       title,
		"due_date":    due,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// OverdueTasks lists open tasks past their due date. caseID may be empty.
func (c *Client) OverdueTasks(ctx context.Context, caseID string) ([]Task, error) {
	endpoint := "tasks/overdue"
	if caseID != "" {
		endpoint += "?case_id=" + url.QueryEscape(caseID)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
		if c.ActorRole != "" {
			req.Header.Set("X-Actor-Role", c.ActorRole)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
