// Package handler contains the HTTP handlers behind the chi router.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/directory"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/job"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
)

// Analysis serves the per-class analysis trigger and status endpoints.
type Analysis struct {
	machine   *job.Machine
	worker    *job.Worker
	directory directory.Client
}

// NewAnalysis creates the analysis handler.
func NewAnalysis(machine *job.Machine, worker *job.Worker, dir directory.Client) *Analysis {
	return &Analysis{machine: machine, worker: worker, directory: dir}
}

// Trigger starts an analysis job for a class. Exactly one job can be in
// flight per class; a concurrent or repeated trigger gets 409 with a
// reference to the job already running.
func (h *Analysis) Trigger(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}
	userID, _, ok := mw.GetUserIdentity(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "MISSING_IDENTITY",
			"X-User-ID header is required", nil)
		return
	}

	classID := chi.URLParam(r, "classID")
	class, err := h.directory.GetClass(r.Context(), classID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	if class.TenantID != tenantID {
		response.Error(w, http.StatusNotFound, "CLASS_NOT_FOUND", "Class not found", nil)
		return
	}

	created, err := h.machine.TryCreate(r.Context(), class, userID)
	if err != nil {
		var active *job.AlreadyActiveError
		if errors.As(err, &active) {
			response.Error(w, http.StatusConflict, "ALREADY_ACTIVE",
				"An analysis is already running for this class", map[string]any{
					"active_job_id": active.Active.ID,
					"status":        active.Active.Status,
				})
			return
		}
		slog.Error("create analysis job", "class_id", classID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to create analysis job", nil)
		return
	}

	go h.worker.Run(created)

	response.Accepted(w, created)
}

// Status returns the most recent analysis job for a class.
func (h *Analysis) Status(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}

	classID := chi.URLParam(r, "classID")
	latest, err := h.machine.GetLatest(r.Context(), tenantID, classID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
				"No analysis job for this class", nil)
			return
		}
		slog.Error("get analysis job", "class_id", classID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to load analysis job", nil)
		return
	}

	response.JSON(w, latest)
}

func writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrClassNotFound):
		response.Error(w, http.StatusNotFound, "CLASS_NOT_FOUND", "Class not found", nil)
	case errors.Is(err, directory.ErrDirectoryTimeout):
		response.Error(w, http.StatusGatewayTimeout, "DIRECTORY_TIMEOUT",
			"Class directory timed out", nil)
	default:
		slog.Error("directory lookup", "error", err)
		response.Error(w, http.StatusBadGateway, "DIRECTORY_UNAVAILABLE",
			"Class directory unavailable", nil)
	}
}
