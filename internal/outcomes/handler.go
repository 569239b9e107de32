package outcomes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"supplytrail/internal/transport/http/shared"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/requestcontext"
)

// Handler handles the process outcome endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register registers the process outcome routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/process-outcomes/{externalID:[0-9]+}", h.handleGet)
	r.Put("/process-outcomes/{externalID:[0-9]+}", h.handleUpdate)
}

func outcomeView(outcome *ProcessOutcome) map[string]any {
	// The stored payload keys come first so the canonical fields always
	// win on collision.
	view := make(map[string]any, len(outcome.Data)+5)
	for k, v := range outcome.Data {
		view[k] = v
	}
	view["id"] = outcome.ExternalID
	view["completed"] = outcome.Completed()
	if outcome.BriefID != nil {
		view["briefId"] = *outcome.BriefID
	}
	if outcome.ProjectID != nil {
		view["directAwardProjectId"] = *outcome.ProjectID
	}
	if outcome.CompletedAt != nil {
		view["completedAt"] = outcome.CompletedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	return view
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Get(r.Context(), externalID(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"processOutcome": outcomeView(outcome)})
}

// updateRequest is the PUT body: the updater plus the outcome payload nested
// under processOutcome.
type updateRequest struct {
	UpdatedBy      string         `json:"updated_by"`
	ProcessOutcome map[string]any `json:"processOutcome"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.UpdatedBy == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "'updated_by' must be provided"))
		return
	}
	if req.ProcessOutcome == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "'processOutcome' must be provided"))
		return
	}

	input := UpdateInput{UpdatedBy: req.UpdatedBy, Payload: req.ProcessOutcome}
	if raw, present := req.ProcessOutcome["completed"]; present {
		completed, ok := raw.(bool)
		if !ok {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "'completed' must be a boolean"))
			return
		}
		input.Completed = &completed
	}

	outcome, err := h.service.Update(ctx, externalID(r), input)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to update process outcome",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"processOutcome": outcomeView(outcome)})
}

// externalID parses the externalID path segment; the route pattern
// guarantees digits.
func externalID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "externalID"), 10, 64)
	return id
}
