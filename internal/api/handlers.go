package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/relayservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *relayservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *relayservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetSnapshot handles GET /api/snapshot.
//
//	@Summary		Last published snapshot
//	@Tags			snapshot
//	@Produce		json
//	@Success		200	{object}	SnapshotDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshot [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "get snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}

// GetMetadata handles GET /api/metadata?path=...&load=true.
//
//	@Summary		Cache state of a model file
//	@Tags			metadata
//	@Produce		json
//	@Param			path	query		string	true	"Model file path"
//	@Param			load	query		bool	false	"Queue a load when unknown"
//	@Success		200		{object}	MetadataDetail
//	@Success		202		{object}	MetadataDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/metadata [get]
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	load, _ := strconv.ParseBool(r.URL.Query().Get("load"))

	detail, err := h.svc.Metadata(r.Context(), path, load)
	if err != nil {
		writeError(w, "get metadata", err)
		return
	}
	status := http.StatusOK
	if detail.Status == relayservice.StatusQueued || detail.Status == relayservice.StatusLoading {
		status = http.StatusAccepted
	}
	writeJSON(w, status, detail)
}

// InvalidateMetadata handles DELETE /api/metadata?path=....
func (h *Handler) InvalidateMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	if err := h.svc.Invalidate(r.Context(), path); err != nil {
		writeError(w, "invalidate metadata", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForgetMissing handles DELETE /api/metadata/missing.
func (h *Handler) ForgetMissing(w http.ResponseWriter, r *http.Request) {
	n := h.svc.ForgetMissing(r.Context())
	writeJSON(w, http.StatusOK, ForgetMissingResponse{Cleared: n})
}

// ListTrack handles GET /api/tracks?registration=...&limit=....
//
//	@Summary		Archived positions, newest first
//	@Tags			archive
//	@Produce		json
//	@Param			registration	query		string	false	"Registration; empty selects the user aircraft"
//	@Param			limit			query		int		false	"Max points"
//	@Success		200				{object}	TrackResponse
//	@Failure		503				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tracks [get]
func (h *Handler) ListTrack(w http.ResponseWriter, r *http.Request) {
	reg := r.URL.Query().Get("registration")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	pts, err := h.svc.Track(r.Context(), reg, limit)
	if err != nil {
		writeError(w, "list track", err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Registration: reg, Points: pts})
}

// ListModelFiles handles GET /api/models.
func (h *Handler) ListModelFiles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	files, err := h.svc.ModelFiles(r.Context(), limit)
	if err != nil {
		writeError(w, "list model files", err)
		return
	}
	writeJSON(w, http.StatusOK, ModelFilesResponse{Files: files})
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("archive disabled"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
