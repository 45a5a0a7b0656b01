package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const defaultListLimit = 20

// RunsHandler serves recorded pipeline runs
type RunsHandler struct {
	runs interfaces.RunLedger
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(runs interfaces.RunLedger) *RunsHandler {
	return &RunsHandler{
		runs: runs,
	}
}

type listRunsResponse struct {
	Runs []*model.PipelineRun `json:"runs"`
}

// List returns recent runs, newest first
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, goerr.New("limit must be a positive integer"), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.runs.List(ctx, limit)
	if err != nil {
		logger.Error("Failed to list runs", "error", err)
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.PipelineRun{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(listRunsResponse{Runs: runs}); err != nil {
		logger.Error("Failed to encode runs response", "error", err)
	}
}

// Get returns one run by ID
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	id := types.RunID(chi.URLParam(r, "runID"))

	run, err := h.runs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrRunNotFound) {
			writeError(w, err, http.StatusNotFound)
			return
		}
		logger.Error("Failed to get run", "run_id", id, "error", err)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(run); err != nil {
		logger.Error("Failed to encode run response", "error", err)
	}
}
