package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/repo"
)

type appointmentBody struct {
	Body domain.Appointment `json:"body"`
}

func registerAppointments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-appointment",
		Method:        http.MethodPost,
		Path:          "/appointments",
		Summary:       "Book an appointment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateAppointmentRequest `json:"body"`
	}) (*appointmentBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAppointment(ctx, engine.AppointmentCreateOptions{
			LawyerID:        input.Body.LawyerID,
			ClientID:        input.Body.ClientID,
			CaseID:          input.Body.CaseID,
			Type:            input.Body.Type,
			ScheduledAt:     input.Body.ScheduledAt,
			DurationMinutes: input.Body.DurationMinutes,
			Notes:           input.Body.Notes,
			ActorID:         actor.ID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &appointmentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-appointments",
		Method:      http.MethodGet,
		Path:        "/appointments",
		Summary:     "List appointments",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LawyerID string `query:"lawyer_id"`
		ClientID string `query:"client_id"`
		CaseID   string `query:"case_id"`
		Status   string `query:"status" doc:"Comma separated statuses"`
		From     string `query:"from" doc:"RFC3339 lower bound, inclusive"`
		To       string `query:"to" doc:"RFC3339 upper bound, exclusive"`
		Desc     bool   `query:"desc"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Appointment `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		from, perr := parseTimeParam("from", input.From)
		if perr != nil {
			return nil, perr
		}
		to, perr := parseTimeParam("to", input.To)
		if perr != nil {
			return nil, perr
		}
		items, err := e.ListAppointments(ctx, repo.AppointmentFilter{
			LawyerID: input.LawyerID,
			ClientID: input.ClientID,
			CaseID:   input.CaseID,
			Status:   splitStatuses[domain.AppointmentStatus](input.Status),
			From:     from,
			To:       to,
			Desc:     input.Desc,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Appointment `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-appointment-conflict",
		Method:      http.MethodGet,
		Path:        "/appointments/conflicts",
		Summary:     "Check whether a lawyer's slot is already scheduled",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LawyerID    string `query:"lawyer_id" required:"true"`
		ScheduledAt string `query:"scheduled_at" required:"true"`
	}) (*struct {
		Body ConflictResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		at, perr := parseTimeParam("scheduled_at", input.ScheduledAt)
		if perr != nil {
			return nil, perr
		}
		if at == nil || input.LawyerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "lawyer_id and scheduled_at are required", nil)
		}
		held, err := e.HasConflict(ctx, input.LawyerID, *at)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConflictResponse `json:"body"`
		}{Body: ConflictResponse{LawyerID: input.LawyerID, ScheduledAt: *at, Conflict: held}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-appointment",
		Method:      http.MethodGet,
		Path:        "/appointments/{appointment_id}",
		Summary:     "Get an appointment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AppointmentID string `path:"appointment_id"`
	}) (*appointmentBody, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		a, err := e.GetAppointment(ctx, input.AppointmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &appointmentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-appointment",
		Method:      http.MethodPost,
		Path:        "/appointments/{appointment_id}/confirm",
		Summary:     "Confirm a scheduled appointment",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AppointmentID string `path:"appointment_id"`
	}) (*appointmentBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ConfirmAppointment(ctx, input.AppointmentID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &appointmentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-appointment",
		Method:      http.MethodPost,
		Path:        "/appointments/{appointment_id}/cancel",
		Summary:     "Cancel an appointment with a reason",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AppointmentID string                   `path:"appointment_id"`
		Body          CancelAppointmentRequest `json:"body"`
	}) (*appointmentBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CancelAppointment(ctx, input.AppointmentID, input.Body.Reason, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &appointmentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-appointment",
		Method:      http.MethodPost,
		Path:        "/appointments/{appointment_id}/complete",
		Summary:     "Mark an appointment as completed",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AppointmentID string `path:"appointment_id"`
	}) (*appointmentBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CompleteAppointment(ctx, input.AppointmentID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &appointmentBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-appointment",
		Method:        http.MethodDelete,
		Path:          "/appointments/{appointment_id}",
		Summary:       "Delete an appointment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AppointmentID string `path:"appointment_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAppointment(ctx, input.AppointmentID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
