package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/repo"
)

type mediationBody struct {
	Body domain.Mediation `json:"body"`
}

func registerMediations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "initiate-mediation",
		Method:        http.MethodPost,
		Path:          "/mediations",
		Summary:       "Initiate a mediation for a case",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body InitiateMediationRequest `json:"body"`
	}) (*mediationBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.InitiateMediation(ctx, engine.MediationCreateOptions{
			CaseID:      input.Body.CaseID,
			InitiatorID: actor.ID,
			MediatorID:  input.Body.MediatorID,
			Reason:      input.Body.Reason,
			Notes:       input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &mediationBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-mediations",
		Method:      http.MethodGet,
		Path:        "/mediations",
		Summary:     "List mediations",
	}, func(ctx context.Context, input *struct {
		CaseID     string `query:"case_id"`
		MediatorID string `query:"mediator_id"`
		Status     string `query:"status" doc:"Comma separated statuses"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Mediation `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListMediations(ctx, repo.MediationFilter{
			CaseID:     input.CaseID,
			MediatorID: input.MediatorID,
			Status:     splitStatuses[domain.MediationStatus](input.Status),
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Mediation `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mediation",
		Method:      http.MethodGet,
		Path:        "/mediations/{mediation_id}",
		Summary:     "Get a mediation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MediationID string `path:"mediation_id"`
	}) (*mediationBody, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.GetMediation(ctx, input.MediationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &mediationBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "schedule-mediation-session",
		Method:      http.MethodPost,
		Path:        "/mediations/{mediation_id}/schedule",
		Summary:     "Schedule the mediation session and arm its reminder",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MediationID string                 `path:"mediation_id"`
		Body        ScheduleSessionRequest `json:"body"`
	}) (*struct {
		Body ScheduleSessionResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, reminderID, err := e.ScheduleSession(ctx, input.MediationID, input.Body.ScheduledDate, input.Body.Location, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScheduleSessionResponse `json:"body"`
		}{Body: ScheduleSessionResponse{Mediation: m, ReminderID: reminderID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-mediation-status",
		Method:      http.MethodPost,
		Path:        "/mediations/{mediation_id}/status",
		Summary:     "Move a mediation to a new status",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MediationID string                 `path:"mediation_id"`
		Body        MediationStatusRequest `json:"body"`
	}) (*mediationBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.UpdateMediationStatus(ctx, engine.MediationStatusOptions{
			ID:           input.MediationID,
			Status:       input.Body.Status,
			SessionNotes: input.Body.SessionNotes,
			Actor:        actor,
			Force:        input.Body.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &mediationBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-mediation",
		Method:        http.MethodDelete,
		Path:          "/mediations/{mediation_id}",
		Summary:       "Delete a mediation",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MediationID string `path:"mediation_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteMediation(ctx, input.MediationID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
