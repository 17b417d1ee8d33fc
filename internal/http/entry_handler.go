package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/timetracker/internal/application"
	"github.com/example/timetracker/internal/persistence"
)

type entryService interface {
	List(ctx context.Context, userID string) ([]persistence.TimeEntry, error)
	Get(ctx context.Context, id, userID string) (persistence.TimeEntry, error)
	Add(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error)
	Autosave(ctx context.Context, userID string, input application.AutosaveInput) error
	Delete(ctx context.Context, id, userID string) error
}

// EntryHandler exposes the time-entry endpoints.
type EntryHandler struct {
	service   entryService
	responder responder
}

func NewEntryHandler(service entryService, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{service: service, responder: newResponder(logger)}
}

func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	entries, err := h.service.List(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEntriesResponse{Entries: toEntryDTOs(entries)})
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	entryID, ok := EntryIDFromContext(r.Context())
	if !ok || strings.TrimSpace(entryID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEntryID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	entry, err := h.service.Get(r.Context(), entryID, principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEntryDTO(entry))
}

// Add backs both the manual-entry form and the comment autosave hook: with an
// entryId it updates that draft's comment, without one it creates a draft.
func (h *EntryHandler) Add(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if strings.TrimSpace(req.EntryID) != "" {
		if err := h.service.Autosave(r.Context(), principal.UserID, application.AutosaveInput{
			DraftID: req.EntryID,
			Comment: req.Comment,
		}); err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
		return
	}

	entry := persistence.TimeEntry{
		UserID:   principal.UserID,
		IsDraft:  req.IsDraft,
		TaskName: req.TaskName,
		BoardID:  req.BoardID,
		ItemID:   req.ItemID,
		Role:     req.Role,
		Duration: req.Duration,
	}
	if req.Comment != "" {
		comment := req.Comment
		entry.Comment = &comment
	}

	created, err := h.service.Add(r.Context(), entry)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, addEntryResponse{
		Success: true,
		Entry:   toEntryDTO(created),
	})
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	entryID, ok := EntryIDFromContext(r.Context())
	if !ok || strings.TrimSpace(entryID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEntryID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Delete(r.Context(), entryID, principal.UserID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

type addEntryRequest struct {
	EntryID  string  `json:"entryId"`
	Comment  string  `json:"comment"`
	IsDraft  bool    `json:"isDraft"`
	TaskName *string `json:"taskName"`
	BoardID  *string `json:"boardId"`
	ItemID   *string `json:"itemId"`
	Role     *string `json:"role"`
	Duration *int64  `json:"duration"`
}

type addEntryResponse struct {
	Success bool     `json:"success"`
	Entry   entryDTO `json:"entry"`
}

type listEntriesResponse struct {
	Entries []entryDTO `json:"entries"`
}

type entryDTO struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	IsDraft   bool       `json:"isDraft"`
	TaskName  *string    `json:"taskName"`
	Comment   *string    `json:"comment"`
	BoardID   *string    `json:"boardId"`
	ItemID    *string    `json:"itemId"`
	Role      *string    `json:"role"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Duration  *int64     `json:"duration"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func toEntryDTO(entry persistence.TimeEntry) entryDTO {
	return entryDTO{
		ID:        entry.ID,
		UserID:    entry.UserID,
		IsDraft:   entry.IsDraft,
		TaskName:  entry.TaskName,
		Comment:   entry.Comment,
		BoardID:   entry.BoardID,
		ItemID:    entry.ItemID,
		Role:      entry.Role,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		Duration:  entry.Duration,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}

func toEntryDTOs(entries []persistence.TimeEntry) []entryDTO {
	dtos := make([]entryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, toEntryDTO(entry))
	}
	return dtos
}
