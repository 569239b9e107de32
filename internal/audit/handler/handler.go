// Package handler exposes the audit event HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/audit/service"
	"supplytrail/internal/audit/store"
	"supplytrail/internal/transport/http/shared"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/requestcontext"
)

// Service defines the interface for audit operations.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.AuditEvent, error)
	Get(ctx context.Context, id int64) (*models.AuditEvent, error)
	List(ctx context.Context, filter store.ListFilter, page store.Page) (*service.ListResult, error)
	Acknowledge(ctx context.Context, id int64, by string) (*models.AuditEvent, error)
	AcknowledgeIncludingPrevious(ctx context.Context, id int64, by string) ([]*models.AuditEvent, error)
}

// Handler handles the audit event endpoints.
type Handler struct {
	logger *slog.Logger
	audit  Service
}

// New creates a new audit Handler.
func New(audit Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, audit: audit}
}

// Register registers the audit routes with the chi router. The id pattern is
// digits-only, so non-numeric ids fall through to the router's 404 rather
// than reaching a parse error here.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit-events", h.handleList)
	r.Post("/audit-events", h.handleCreate)
	r.Get("/audit-events/{id:[0-9]+}", h.handleGet)
	r.Post("/audit-events/{id:[0-9]+}/acknowledge", h.handleAcknowledge)
	r.Post("/audit-events/{id:[0-9]+}/acknowledge-including-previous", h.handleAcknowledgeIncludingPrevious)
}

// eventView is the wire form of one audit event.
type eventView struct {
	ID             int64             `json:"id"`
	Type           string            `json:"type"`
	User           string            `json:"user"`
	Data           map[string]any    `json:"data"`
	CreatedAt      string            `json:"createdAt"`
	ObjectType     string            `json:"objectType,omitempty"`
	ObjectID       *int64            `json:"objectId,omitempty"`
	Acknowledged   bool              `json:"acknowledged"`
	AcknowledgedAt string            `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string            `json:"acknowledgedBy,omitempty"`
	Links          map[string]string `json:"links"`
}

func viewOf(event *models.AuditEvent) eventView {
	view := eventView{
		ID:           event.ID,
		Type:         string(event.Type),
		User:         event.User,
		Data:         event.Data,
		CreatedAt:    event.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Acknowledged: event.Acknowledged,
		Links: map[string]string{
			"self": "/audit-events/" + strconv.FormatInt(event.ID, 10),
		},
	}
	if view.Data == nil {
		view.Data = map[string]any{}
	}
	if event.Object != nil {
		view.ObjectType = string(event.Object.Kind)
		id := event.Object.ID
		view.ObjectID = &id
	}
	if event.AcknowledgedAt != nil {
		view.AcknowledgedAt = event.AcknowledgedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	view.AcknowledgedBy = event.AcknowledgedBy
	return view
}

func viewsOf(events []*models.AuditEvent) []eventView {
	views := make([]eventView, 0, len(events))
	for _, event := range events {
		views = append(views, viewOf(event))
	}
	return views
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, page, err := service.ParseListQuery(r.URL.Query())
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.audit.List(ctx, filter, page)
	if err != nil {
		h.logListFailure(ctx, err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"auditEvents": viewsOf(result.Events),
		"links":       pageLinks(r.URL, result),
	})
}

// pageLinks builds the self/next/prev pagination links, preserving every
// filter parameter from the request.
func pageLinks(u *url.URL, result *service.ListResult) map[string]string {
	withPage := func(page int) string {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		return u.Path + "?" + q.Encode()
	}

	links := map[string]string{"self": withPage(result.Page)}
	if result.HasNext {
		links["next"] = withPage(result.Page + 1)
	}
	if result.HasPrev {
		links["prev"] = withPage(result.Page - 1)
	}
	return links
}

// createRequest is the POST body; the event fields are nested under the
// auditEvents key just as they come back in responses.
type createRequest struct {
	AuditEvents struct {
		Type       string         `json:"type"`
		User       string         `json:"user"`
		Data       map[string]any `json:"data"`
		ObjectType string         `json:"objectType"`
		ObjectID   *int64         `json:"objectId"`
	} `json:"auditEvents"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	event, err := h.audit.Create(ctx, service.CreateInput{
		Type:       req.AuditEvents.Type,
		User:       req.AuditEvents.User,
		Data:       req.AuditEvents.Data,
		ObjectKind: req.AuditEvents.ObjectType,
		ObjectID:   req.AuditEvents.ObjectID,
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "failed to create audit event",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{"auditEvents": viewOf(event)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	event, err := h.audit.Get(ctx, pathID(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"auditEvents": viewOf(event)})
}

// acknowledgeRequest carries the actor performing an acknowledgment.
type acknowledgeRequest struct {
	UpdatedBy string `json:"updated_by"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	by, err := decodeAcknowledgeBody(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	event, err := h.audit.Acknowledge(ctx, pathID(r), by)
	if err != nil {
		h.logAckFailure(ctx, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"auditEvents": viewOf(event)})
}

func (h *Handler) handleAcknowledgeIncludingPrevious(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	by, err := decodeAcknowledgeBody(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	delta, err := h.audit.AcknowledgeIncludingPrevious(ctx, pathID(r), by)
	if err != nil {
		h.logAckFailure(ctx, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"auditEvents": viewsOf(delta)})
}

func decodeAcknowledgeBody(r *http.Request) (string, error) {
	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	if req.UpdatedBy == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "'updated_by' must be provided")
	}
	return req.UpdatedBy, nil
}

// pathID parses the id path segment. The route pattern guarantees digits, so
// a parse failure cannot happen for matched routes.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (h *Handler) logListFailure(ctx context.Context, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
}

func (h *Handler) logAckFailure(ctx context.Context, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to acknowledge audit events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
}
