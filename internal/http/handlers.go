package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/services"
	"conti/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type listResponse struct {
	Records []store.Document `json:"records"`
}

type createRequest struct {
	Records []store.Document `json:"records"`
}

type updateRequest struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

type incrementRequest struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Delta int64  `json:"delta"`
}

type countResponse struct {
	Count int `json:"count"`
}

type valueResponse struct {
	Value int64 `json:"value"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner, col, ok := s.pathTarget(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := services.QueryOptions{
		StartDate: strings.TrimSpace(q.Get("start")),
		EndDate:   strings.TrimSpace(q.Get("end")),
		Category:  strings.TrimSpace(q.Get("category")),
		SkipCache: q.Get("skip_cache") == "true",
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}

	docs := s.data.Queries().Query(r.Context(), owner, col, opts)
	writeJSON(w, http.StatusOK, listResponse{Records: docs})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, col, ok := s.pathTarget(w, r)
	if !ok {
		return
	}

	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}

	count, err := s.data.Mutations().CreateMany(r.Context(), owner, col, req.Records)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, countResponse{Count: count})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, col, ok := s.pathTarget(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.data.Mutations().Update(r.Context(), owner, col, req.ID, req.Fields); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, col, ok := s.pathTarget(w, r)
	if !ok {
		return
	}

	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch {
	case req.All:
		count, err := s.data.Mutations().DeleteAll(r.Context(), owner, col)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: count})

	case len(req.IDs) == 1:
		if err := s.data.Mutations().Delete(r.Context(), owner, col, req.IDs[0]); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: 1})

	default:
		count, err := s.data.Mutations().DeleteMany(r.Context(), owner, col, req.IDs)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: count})
	}
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	owner, col, ok := s.pathTarget(w, r)
	if !ok {
		return
	}

	var req incrementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	value, err := s.data.Counters().Increment(r.Context(), owner, col, req.ID, req.Field, req.Delta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Value: value})
}

func (s *Server) handleResetOwner(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing owner")
		return
	}
	s.data.ResetOwner(owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.data.ResetAll()
	w.WriteHeader(http.StatusNoContent)
}

// pathTarget extracts and validates owner and collection from the path.
func (s *Server) pathTarget(w http.ResponseWriter, r *http.Request) (string, core.Collection, bool) {
	owner := r.PathValue("owner")
	col := core.Collection(strings.Trim(r.PathValue("collection"), "/"))

	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing owner")
		return "", "", false
	}
	if err := col.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return owner, col, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, services.ErrNoRecords),
		errors.Is(err, services.ErrNoFields),
		errors.Is(err, services.ErrMissingID),
		errors.Is(err, core.ErrInvalidCollection),
		errors.Is(err, core.ErrUnknownDomain),
		errors.Is(err, core.ErrEmptyCollection),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNegativeUsageCount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "remote store unavailable")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
