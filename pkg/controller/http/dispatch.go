package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// DispatchHandler accepts release trigger requests
type DispatchHandler struct {
	triggerUC interfaces.TriggerUseCase
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(triggerUC interfaces.TriggerUseCase) *DispatchHandler {
	return &DispatchHandler{
		triggerUC: triggerUC,
	}
}

type dispatchRequest struct {
	Version       string `json:"version"`
	ContainerArch string `json:"container_arch"`
	RequestedBy   string `json:"requested_by"`
}

type dispatchResponse struct {
	RunID  types.RunID     `json:"run_id"`
	Status model.RunStatus `json:"status"`
}

// Handle accepts a trigger request and responds 202 once the run is
// recorded. An empty body dispatches a release with all defaults.
func (h *DispatchHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req dispatchRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			logger.Error("Failed to parse request body", "error", err)
			writeError(w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
			return
		}
	}

	input := &model.TriggerInput{
		Version:       req.Version,
		ContainerArch: req.ContainerArch,
		RequestedBy:   req.RequestedBy,
		Kind:          types.TriggerAPI,
	}

	run, err := h.triggerUC.Dispatch(ctx, input)
	if err != nil {
		logger.Error("Failed to dispatch release trigger", "error", err)
		writeError(w, err, statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(dispatchResponse{
		RunID:  run.ID,
		Status: run.Status,
	}); err != nil {
		logger.Error("Failed to encode dispatch response", "error", err)
	}
}

// statusFromError maps the error taxonomy to HTTP status codes
func statusFromError(err error) int {
	switch types.ErrorKind(err) {
	case "bad_request":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
