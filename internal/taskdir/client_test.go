package taskdir

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type graphqlCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// newGraphQLServer routes each incoming query to the handler matching a
// substring of the query text.
func newGraphQLServer(t *testing.T, handlers map[string]func(call graphqlCall) string) (*httptest.Server, *[]graphqlCall) {
	t.Helper()
	var calls []graphqlCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "test-token" {
			t.Errorf("missing api token, got %q", got)
		}
		if got := r.Header.Get("API-Version"); got == "" {
			t.Error("missing API-Version header")
		}

		var call graphqlCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Fatalf("undecodable request: %v", err)
		}
		calls = append(calls, call)

		for needle, handler := range handlers {
			if strings.Contains(call.Query, needle) {
				w.Header().Set("Content-Type", "application/json")
				if _, err := w.Write([]byte(handler(call))); err != nil {
					t.Errorf("write response: %v", err)
				}
				return
			}
		}
		t.Fatalf("no handler for query %q", call.Query)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{Endpoint: endpoint, Token: "test-token"})
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	return client
}

func TestConnectedBoards(t *testing.T) {
	server, _ := newGraphQLServer(t, map[string]func(graphqlCall) string{
		"boards(ids: $ids)": func(call graphqlCall) string {
			return `{"data":{"boards":[
				{"id":"101","name":"Platform"},
				{"id":"102","name":"Mobile"}
			]}}`
		},
	})
	client := newClient(t, server.URL)

	boards, err := client.ConnectedBoards(context.Background(), []string{"101", "102"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(boards))
	}
	if boards[0].Value != "101" || boards[0].Label != "Platform" {
		t.Fatalf("unexpected option %+v", boards[0])
	}
}

func TestConnectedBoardsWithNoIDs(t *testing.T) {
	client := newClient(t, "http://unused.invalid")

	boards, err := client.ConnectedBoards(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("expected no boards and no upstream call, got %+v", boards)
	}
}

func TestBoardTasksFlattensSubitems(t *testing.T) {
	server, _ := newGraphQLServer(t, map[string]func(graphqlCall) string{
		"boards(ids:": func(call graphqlCall) string {
			return `{"data":{"boards":[{"groups":[
				{"id":"g1","title":"Sprint 12","items_page":{"cursor":"","items":[
					{"id":"1","name":"Checkout flow","subitems":[
						{"id":"11","name":"Payment form"},
						{"id":"12","name":"Receipt email"}
					]},
					{"id":"2","name":"Standalone task","subitems":[]}
				]}}
			]}]}}`
		},
	})
	client := newClient(t, server.URL)

	groups, err := client.BoardTasks(context.Background(), "101", "")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Label != "Sprint 12" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	options := groups[0].Options
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %+v", options)
	}
	if options[0].Label != "Checkout flow > Payment form" || options[0].Value != "11" {
		t.Fatalf("subitem not flattened: %+v", options[0])
	}
	if options[2].Label != "Standalone task" || options[2].Value != "2" {
		t.Fatalf("parent without subitems should be selectable: %+v", options[2])
	}
}

func TestBoardTasksFollowsCursor(t *testing.T) {
	server, calls := newGraphQLServer(t, map[string]func(graphqlCall) string{
		"boards(ids:": func(call graphqlCall) string {
			return `{"data":{"boards":[{"groups":[
				{"id":"g1","title":"Backlog","items_page":{"cursor":"page-2","items":[
					{"id":"1","name":"First","subitems":[]}
				]}}
			]}]}}`
		},
		"next_items_page": func(call graphqlCall) string {
			if call.Variables["cursor"] != "page-2" {
				t.Fatalf("unexpected cursor %v", call.Variables["cursor"])
			}
			return `{"data":{"next_items_page":{"cursor":"","items":[
				{"id":"2","name":"Second","subitems":[]}
			]}}}`
		},
	})
	client := newClient(t, server.URL)

	groups, err := client.BoardTasks(context.Background(), "101", "")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Options) != 2 {
		t.Fatalf("expected both pages merged, got %+v", groups)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", len(*calls))
	}
}

func TestBoardTasksUsesDefaultGroupLabel(t *testing.T) {
	server, _ := newGraphQLServer(t, map[string]func(graphqlCall) string{
		"boards(ids:": func(call graphqlCall) string {
			return `{"data":{"boards":[{"groups":[
				{"id":"g1","title":"","items_page":{"cursor":"","items":[
					{"id":"1","name":"Task","subitems":[]}
				]}}
			]}]}}`
		},
	})
	client := newClient(t, server.URL)

	groups, err := client.BoardTasks(context.Background(), "101", "")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Label != "Default Group" {
		t.Fatalf("expected the fallback label, got %+v", groups)
	}
}

func TestBoardTasksFiltersBySearchTerm(t *testing.T) {
	server, _ := newGraphQLServer(t, map[string]func(graphqlCall) string{
		"boards(ids:": func(call graphqlCall) string {
			return `{"data":{"boards":[{"groups":[
				{"id":"g1","title":"Sprint","items_page":{"cursor":"","items":[
					{"id":"1","name":"Deploy pipeline","subitems":[]},
					{"id":"2","name":"Design review","subitems":[]}
				]}}
			]}]}}`
		},
	})
	client := newClient(t, server.URL)

	groups, err := client.BoardTasks(context.Background(), "101", "deploy")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Options) != 1 || groups[0].Options[0].ID != "1" {
		t.Fatalf("expected only the matching task, got %+v", groups)
	}
}

func TestBoardTasksRejectsInvalidBoardID(t *testing.T) {
	client := newClient(t, "http://unused.invalid")

	for _, boardID := range []string{"", "abc", "-3", "0"} {
		if _, err := client.BoardTasks(context.Background(), boardID, ""); err == nil {
			t.Fatalf("expected rejection for boardId %q", boardID)
		}
	}
}

func TestQueryMapsUpstreamFailures(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newClient(t, server.URL)
		_, err := client.ConnectedBoards(context.Background(), []string{"101"})
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("graphql errors envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"complexity budget exhausted"}]}`))
		}))
		defer server.Close()

		client := newClient(t, server.URL)
		_, err := client.ConnectedBoards(context.Background(), []string{"101"})
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
	})
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(&ClientConfig{}); err == nil {
		t.Fatal("expected token validation error")
	}
	if _, err := NewClient(nil); err == nil {
		t.Fatal("expected nil config rejection")
	}
}
