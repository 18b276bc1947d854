// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/dragboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	boards common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// moveTaskBody is the JSON shape accepted by the move endpoints.
type moveTaskBody struct {
	TaskID    string `json:"task_id"`
	Lane      string `json:"lane"`
	Position  *int   `json:"position,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(boards common.BoardService) *Handler {
	return &Handler{boards: boards}
}

// routes maps a normalized path to its method and handler.
var routes = map[string]struct {
	method string
	serve  func(*Handler, http.ResponseWriter, *http.Request)
}{
	"projects": {http.MethodGet, (*Handler).handleListProjects},
	"board":    {http.MethodGet, (*Handler).handleGetBoard},
	"activity": {http.MethodGet, (*Handler).handleListActivity},
	"tasks/move": {http.MethodPost, func(h *Handler, w http.ResponseWriter, r *http.Request) {
		h.handleMoveTask(w, r, "")
	}},
}

// ServeHTTP dispatches paths relative to the API mount point.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.boards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.Path)
	if route, ok := routes[path]; ok {
		if r.Method != route.method {
			writeMethodNotAllowed(w, route.method)
			return
		}
		route.serve(h, w, r)
		return
	}
	taskID, ok := resolveTaskMoveID(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
			Context: map[string]any{"path": path},
		})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.handleMoveTask(w, r, taskID)
}

// handleListProjects serves GET `/projects`.
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	includeArchived := false
	if raw := strings.TrimSpace(r.URL.Query().Get("include_archived")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeInvalid(w, "include_archived must be a boolean", nil)
			return
		}
		includeArchived = parsed
	}
	projects, err := h.boards.ListProjects(r.Context(), includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
	})
}

// handleGetBoard serves GET `/board?project_id=`.
func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if projectID == "" {
		writeInvalid(w, "project_id is required", nil)
		return
	}
	board, err := h.boards.GetBoard(r.Context(), projectID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleListActivity serves GET `/activity?project_id=&limit=`.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	req := common.ActivityRequest{
		ProjectID: strings.TrimSpace(r.URL.Query().Get("project_id")),
	}
	if req.ProjectID == "" {
		writeInvalid(w, "project_id is required", nil)
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeInvalid(w, "limit must be a non-negative integer", map[string]any{"limit": raw})
			return
		}
		req.Limit = limit
	}
	events, err := h.boards.ListActivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// handleMoveTask serves POST `/tasks/move` and `/tasks/{id}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request, pathTaskID string) {
	var body moveTaskBody
	if err := decodeJSONBody(r.Context(), w, r, &body); err != nil {
		writeErrorFrom(w, err)
		return
	}
	taskID := strings.TrimSpace(body.TaskID)
	if pathTaskID != "" {
		if taskID != "" && taskID != pathTaskID {
			writeInvalid(w, "task_id in body does not match path", map[string]any{"path_task_id": pathTaskID, "body_task_id": taskID})
			return
		}
		taskID = pathTaskID
	}

	actorType := strings.TrimSpace(body.ActorType)
	if actorType == "" {
		actorType = common.ActorTypeUser
	}
	result, err := h.boards.MoveTask(r.Context(), common.MoveTaskRequest{
		TaskID:    taskID,
		Lane:      body.Lane,
		Position:  body.Position,
		ActorID:   body.ActorID,
		ActorType: actorType,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveTaskMoveID parses `tasks/{id}/move` and returns `{id}`.
func resolveTaskMoveID(path string) (string, bool) {
	const (
		prefix = "tasks/"
		suffix = "/move"
	)
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Restore the task before moving it.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeInvalid writes a 400 invalid_request error.
func writeInvalid(w http.ResponseWriter, message string, context map[string]any) {
	writeJSONError(w, http.StatusBadRequest, APIError{
		Code:    "invalid_request",
		Message: message,
		Hint:    "Project ids come from GET /projects; task ids from GET /board.",
		Context: context,
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
