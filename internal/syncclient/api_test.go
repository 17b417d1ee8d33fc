package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newControl(t *testing.T, baseURL string) *HTTPControl {
	t.Helper()
	control, err := NewHTTPControl(&HTTPControlConfig{
		BaseURL:         baseURL,
		PlatformContext: "platform-7",
	})
	if err != nil {
		t.Fatalf("control construction failed: %v", err)
	}
	return control
}

func TestHTTPControlSendsPlatformContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(PlatformContextHeader); got != "platform-7" {
			t.Errorf("missing platform context, got %q", got)
		}
		_, _ = w.Write([]byte(`{"session":null,"serverTime":"2025-06-02T09:00:00Z"}`))
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	resp, err := control.Session(context.Background())
	if err != nil {
		t.Fatalf("session failed: %v", err)
	}
	if resp.Session != nil {
		t.Fatalf("expected nil session, got %+v", resp.Session)
	}
	if resp.ServerTime.IsZero() {
		t.Fatal("expected decoded server time")
	}
}

func TestHTTPControlPauseBody(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timer/pause" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("undecodable body: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"paused":true,"elapsedTime":8000}`))
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	resp, err := control.Pause(context.Background(), "session-1", 7900, true)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !resp.Paused || resp.ElapsedTime != 8000 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if body["sessionId"] != "session-1" || body["isPausing"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHTTPControlResetSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for header, want := range map[string]string{
			"user-id":    "alice",
			"session-id": "session-1",
			"draft-id":   "draft-1",
		} {
			if got := r.Header.Get(header); got != want {
				t.Errorf("header %s: got %q, want %q", header, got, want)
			}
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	if err := control.Reset(context.Background(), "alice", "session-1", "draft-1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
}

func TestHTTPControlAutosavePostsEntryID(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/time-entries/add" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("undecodable body: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	if err := control.Autosave(context.Background(), "draft-1", "typing"); err != nil {
		t.Fatalf("autosave failed: %v", err)
	}
	if body["entryId"] != "draft-1" || body["comment"] != "typing" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHTTPControlMapsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	_, err := control.Session(context.Background())
	if !errors.Is(err, ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestHTTPControlRejectionsAreNotAvailabilityErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"the request is invalid"}`))
	}))
	defer server.Close()

	control := newControl(t, server.URL)
	_, err := control.Start(context.Background())
	if err == nil {
		t.Fatal("expected a rejection error")
	}
	if errors.Is(err, ErrAPIUnavailable) {
		t.Fatal("a 4xx rejection is not an availability failure")
	}
}

func TestNewHTTPControlValidatesConfig(t *testing.T) {
	if _, err := NewHTTPControl(nil); err == nil {
		t.Fatal("expected nil config rejection")
	}
	if _, err := NewHTTPControl(&HTTPControlConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected missing platform context rejection")
	}
	if _, err := NewHTTPControl(&HTTPControlConfig{PlatformContext: "x"}); err == nil {
		t.Fatal("expected missing base url rejection")
	}
}
