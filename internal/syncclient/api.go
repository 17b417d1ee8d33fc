package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PlatformContextHeader carries the caller's platform identity on every
// control-API request.
const PlatformContextHeader = "platform-context"

// ErrAPIUnavailable reports a transport failure or 5xx from the control API.
var ErrAPIUnavailable = errors.New("syncclient: control api unavailable")

// SessionPayload is the session as the control API presents it.
type SessionPayload struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	DraftID               *string   `json:"draftId"`
	StartTime             time.Time `json:"startTime"`
	ElapsedTime           int64     `json:"elapsedTime"`
	IsPaused              bool      `json:"isPaused"`
	CalculatedElapsedTime int64     `json:"calculatedElapsedTime"`
	Comment               *string   `json:"comment"`
}

// SessionResponse is the envelope of GET /timer/session. A nil Session means
// no active timer.
type SessionResponse struct {
	Session    *SessionPayload `json:"session"`
	ServerTime time.Time       `json:"serverTime"`
}

// StartResponse is the envelope of POST /timer/start.
type StartResponse struct {
	Session     SessionPayload `json:"session"`
	Draft       *EntryPayload  `json:"draft,omitempty"`
	ElapsedTime int64          `json:"elapsedTime"`
	Created     bool           `json:"created"`
	Resumed     bool           `json:"resumed"`
}

// PauseResponse is the envelope of POST /timer/pause.
type PauseResponse struct {
	Success     bool  `json:"success"`
	Paused      bool  `json:"paused"`
	ElapsedTime int64 `json:"elapsedTime"`
}

// EntryPayload is a time entry as the control API presents it.
type EntryPayload struct {
	ID       string  `json:"id"`
	IsDraft  bool    `json:"isDraft"`
	TaskName *string `json:"taskName"`
	Comment  *string `json:"comment"`
	Duration *int64  `json:"duration"`
}

// FinalizeRequest is the body of POST /timer/finalize.
type FinalizeRequest struct {
	DraftID  string  `json:"draftId"`
	TaskName string  `json:"taskName"`
	Comment  *string `json:"comment,omitempty"`
	BoardID  *string `json:"boardId,omitempty"`
	ItemID   *string `json:"itemId,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// ControlAPI is the subset of the daemon's HTTP surface the sync client
// drives. Tests substitute it with a stub.
type ControlAPI interface {
	Session(ctx context.Context) (SessionResponse, error)
	Start(ctx context.Context) (StartResponse, error)
	Pause(ctx context.Context, sessionID string, elapsedMs int64, isPausing bool) (PauseResponse, error)
	Reset(ctx context.Context, userID, sessionID, draftID string) error
	Finalize(ctx context.Context, req FinalizeRequest) error
	Autosave(ctx context.Context, draftID, comment string) error
}

// HTTPControl talks to the daemon's control API over HTTP.
type HTTPControl struct {
	httpClient      *http.Client
	baseURL         string
	platformContext string
}

// HTTPControlConfig holds configuration for the control-API client.
type HTTPControlConfig struct {
	// BaseURL is the daemon's root URL, without trailing slash.
	BaseURL string
	// PlatformContext is the identity token sent on every request. Required.
	PlatformContext string
	// Timeout bounds each request; defaults to 10 seconds.
	Timeout time.Duration
}

// NewHTTPControl validates the config and returns a client.
func NewHTTPControl(cfg *HTTPControlConfig) (*HTTPControl, error) {
	if cfg == nil || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("syncclient: base url cannot be empty")
	}
	if strings.TrimSpace(cfg.PlatformContext) == "" {
		return nil, errors.New("syncclient: platform context cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPControl{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		platformContext: cfg.PlatformContext,
	}, nil
}

func (c *HTTPControl) Session(ctx context.Context) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodGet, "/timer/session", nil, nil, &out)
	return out, err
}

func (c *HTTPControl) Start(ctx context.Context) (StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, http.MethodPost, "/timer/start", nil, nil, &out)
	return out, err
}

func (c *HTTPControl) Pause(ctx context.Context, sessionID string, elapsedMs int64, isPausing bool) (PauseResponse, error) {
	body := map[string]any{
		"sessionId":   sessionID,
		"elapsedTime": elapsedMs,
		"isPausing":   isPausing,
	}
	var out PauseResponse
	err := c.do(ctx, http.MethodPost, "/timer/pause", body, nil, &out)
	return out, err
}

func (c *HTTPControl) Reset(ctx context.Context, userID, sessionID, draftID string) error {
	headers := map[string]string{
		"user-id":    userID,
		"session-id": sessionID,
		"draft-id":   draftID,
	}
	return c.do(ctx, http.MethodPost, "/timer/reset", nil, headers, nil)
}

func (c *HTTPControl) Finalize(ctx context.Context, req FinalizeRequest) error {
	return c.do(ctx, http.MethodPost, "/timer/finalize", req, nil, nil)
}

func (c *HTTPControl) Autosave(ctx context.Context, draftID, comment string) error {
	body := map[string]any{
		"entryId": draftID,
		"comment": comment,
	}
	return c.do(ctx, http.MethodPost, "/time-entries/add", body, nil, nil)
}

func (c *HTTPControl) do(ctx context.Context, method, path string, body any, headers map[string]string, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("syncclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("syncclient: build request: %w", err)
	}
	req.Header.Set(PlatformContextHeader, c.platformContext)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrAPIUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrAPIUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("syncclient: request rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("syncclient: decode response: %w", err)
	}
	return nil
}
