package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/timetracker/internal/taskdir"
)

type taskDirectory interface {
	Boards(ctx context.Context, boardIDs []string) ([]taskdir.BoardOption, error)
	Tasks(ctx context.Context, boardID, searchTerm string) ([]taskdir.TaskGroup, error)
}

// TaskHandler proxies board and task lookups to the project-management API.
type TaskHandler struct {
	directory taskDirectory
	responder responder
}

func NewTaskHandler(directory taskDirectory, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{directory: directory, responder: newResponder(logger)}
}

func (h *TaskHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.directory == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	boardID := strings.TrimSpace(query.Get("boardId"))
	if n, err := strconv.Atoi(boardID); boardID == "" || err != nil || n <= 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("boardId must be a valid positive integer"))
		return
	}

	groups, err := h.directory.Tasks(r.Context(), boardID, query.Get("searchTerm"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, tasksResponse{Groups: groups})
}

func (h *TaskHandler) Boards(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.directory == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var ids []string
	for _, raw := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}

	boards, err := h.directory.Boards(r.Context(), ids)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, boardsResponse{Boards: boards})
}

type tasksResponse struct {
	Groups []taskdir.TaskGroup `json:"groups"`
}

type boardsResponse struct {
	Boards []taskdir.BoardOption `json:"boards"`
}
