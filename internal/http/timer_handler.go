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

type timerService interface {
	Start(ctx context.Context, userID string) (application.StartOutcome, error)
	Pause(ctx context.Context, params application.PauseParams) (application.PauseOutcome, error)
	SessionWithElapsed(ctx context.Context, userID string) (*application.SessionView, error)
	Reset(ctx context.Context, params application.ResetParams) error
	SoftReset(ctx context.Context, params application.SoftResetParams) error
	Finalize(ctx context.Context, userID string, input application.FinalizeInput) (persistence.TimeEntry, error)
}

// TimerHandler exposes the timer control endpoints.
type TimerHandler struct {
	service   timerService
	responder responder
	now       func() time.Time
}

// NewTimerHandler builds the handler. now is optional and defaults to time.Now.
func NewTimerHandler(service timerService, logger *slog.Logger, now func() time.Time) *TimerHandler {
	if now == nil {
		now = time.Now
	}
	return &TimerHandler{service: service, responder: newResponder(logger), now: now}
}

func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	outcome, err := h.service.Start(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := startResponse{
		Session:     toSessionDTO(outcome.Session),
		ElapsedTime: outcome.ElapsedMs,
		Created:     outcome.Created,
		Resumed:     outcome.Resumed,
	}
	if outcome.Draft != nil {
		dto := toEntryDTO(*outcome.Draft)
		response.Draft = &dto
	}

	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	h.responder.writeJSON(r.Context(), w, status, response)
}

func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	outcome, err := h.service.Pause(r.Context(), application.PauseParams{
		UserID:    principal.UserID,
		SessionID: req.SessionID,
		IsPausing: req.IsPausing,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, pauseResponse{
		Success:     true,
		Paused:      outcome.Paused,
		ElapsedTime: outcome.ElapsedMs,
	})
}

func (h *TimerHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	view, err := h.service.SessionWithElapsed(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if view == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
			Session:    nil,
			ServerTime: h.now().UTC(),
		})
		return
	}

	dto := toSessionViewDTO(*view)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Session:    &dto,
		ServerTime: view.ServerTime,
	})
}

// Reset reads its identifiers from headers, mirroring the companion clients.
func (h *TimerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("user-id"))
	sessionID := strings.TrimSpace(r.Header.Get("session-id"))
	draftID := strings.TrimSpace(r.Header.Get("draft-id"))
	if userID == "" || sessionID == "" || draftID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingTeardownID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if userID != principal.UserID {
		h.responder.writeError(r.Context(), w, http.StatusForbidden, errForeignTeardown)
		return
	}

	if err := h.service.Reset(r.Context(), application.ResetParams{
		UserID:    principal.UserID,
		SessionID: sessionID,
		DraftID:   draftID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

func (h *TimerHandler) SoftReset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req softResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.SoftReset(r.Context(), application.SoftResetParams{
		UserID:    principal.UserID,
		SessionID: req.SessionID,
		DraftID:   req.DraftID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

func (h *TimerHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	entry, err := h.service.Finalize(r.Context(), principal.UserID, application.FinalizeInput{
		DraftID:  req.DraftID,
		TaskName: req.TaskName,
		Comment:  req.Comment,
		BoardID:  req.BoardID,
		ItemID:   req.ItemID,
		Role:     req.Role,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, finalizeResponse{
		Success: true,
		Data:    toEntryDTO(entry),
	})
}

type pauseRequest struct {
	SessionID string `json:"sessionId"`
	// ElapsedTime is accepted for compatibility with older clients; the
	// server recomputes the authoritative value and never trusts it.
	ElapsedTime int64 `json:"elapsedTime"`
	IsPausing   bool  `json:"isPausing"`
}

type softResetRequest struct {
	SessionID string `json:"sessionId"`
	DraftID   string `json:"draftId"`
}

type finalizeRequest struct {
	DraftID  string  `json:"draftId"`
	TaskName string  `json:"taskName"`
	Comment  *string `json:"comment"`
	BoardID  *string `json:"boardId"`
	ItemID   *string `json:"itemId"`
	Role     *string `json:"role"`
}

type startResponse struct {
	Session     sessionDTO `json:"session"`
	Draft       *entryDTO  `json:"draft,omitempty"`
	ElapsedTime int64      `json:"elapsedTime"`
	Created     bool       `json:"created"`
	Resumed     bool       `json:"resumed"`
}

type pauseResponse struct {
	Success     bool  `json:"success"`
	Paused      bool  `json:"paused"`
	ElapsedTime int64 `json:"elapsedTime"`
}

type sessionResponse struct {
	Session    *sessionViewDTO `json:"session"`
	ServerTime time.Time       `json:"serverTime"`
}

type finalizeResponse struct {
	Success bool     `json:"success"`
	Data    entryDTO `json:"data"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type sessionDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DraftID     *string   `json:"draftId"`
	StartTime   time.Time `json:"startTime"`
	ElapsedTime int64     `json:"elapsedTime"`
	IsPaused    bool      `json:"isPaused"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type sessionViewDTO struct {
	sessionDTO
	CalculatedElapsedTime int64   `json:"calculatedElapsedTime"`
	Comment               *string `json:"comment"`
}

func toSessionDTO(session persistence.Session) sessionDTO {
	return sessionDTO{
		ID:          session.ID,
		UserID:      session.UserID,
		DraftID:     session.DraftID,
		StartTime:   session.StartTime,
		ElapsedTime: session.ElapsedTime,
		IsPaused:    session.IsPaused,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func toSessionViewDTO(view application.SessionView) sessionViewDTO {
	return sessionViewDTO{
		sessionDTO:            toSessionDTO(view.Session),
		CalculatedElapsedTime: view.CalculatedElapsedMs,
		Comment:               view.Comment,
	}
}
