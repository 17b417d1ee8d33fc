// Package taskdir looks up boards and selectable tasks from the external
// project-management API over its GraphQL endpoint.
package taskdir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEndpoint   = "https://api.monday.com/v2"
	defaultAPIVersion = "2025-10"
	itemsPageLimit    = 500
)

// ErrUpstream reports a failure talking to the project-management API.
var ErrUpstream = errors.New("taskdir: upstream request failed")

// BoardOption is a board presented as a selectable value/label pair.
type BoardOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TaskOption is a selectable task. Subitems are flattened into options
// labelled "parent > subitem".
type TaskOption struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// TaskGroup is a board group with its selectable tasks.
type TaskGroup struct {
	Label   string       `json:"label"`
	Options []TaskOption `json:"options"`
}

// Client issues GraphQL queries against the project-management API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	apiVersion string
	logger     *slog.Logger
}

// ClientConfig holds configuration for the API client.
type ClientConfig struct {
	// Endpoint overrides the production GraphQL endpoint; used in tests.
	Endpoint string
	// Token is the API token. Required.
	Token string
	// APIVersion pins the API version header.
	APIVersion string
	// Timeout bounds each request; defaults to 10 seconds.
	Timeout time.Duration
	// Logger is optional; defaults to slog.Default.
	Logger *slog.Logger
}

// NewClient validates the config and returns a client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("taskdir: api token cannot be empty")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		token:      cfg.Token,
		apiVersion: apiVersion,
		logger:     logger,
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, dest any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("taskdir: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("taskdir: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("API-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Join(ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("task directory request rejected", "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Join(ErrUpstream, err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrUpstream, envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return errors.Join(ErrUpstream, err)
	}
	return nil
}

const boardsQuery = `query ($ids: [ID!]) {
  boards(ids: $ids) {
    id
    name
  }
}`

// ConnectedBoards resolves board ids to value/label options. Unknown ids are
// silently absent from the result.
func (c *Client) ConnectedBoards(ctx context.Context, boardIDs []string) ([]BoardOption, error) {
	if len(boardIDs) == 0 {
		return []BoardOption{}, nil
	}

	var data struct {
		Boards []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"boards"`
	}
	if err := c.query(ctx, boardsQuery, map[string]any{"ids": boardIDs}, &data); err != nil {
		return nil, err
	}

	options := make([]BoardOption, 0, len(data.Boards))
	for _, board := range data.Boards {
		options = append(options, BoardOption{Value: board.ID, Label: board.Name})
	}
	return options, nil
}

const boardTasksQuery = `query ($boardId: ID!) {
  boards(ids: [$boardId]) {
    groups {
      id
      title
      items_page(limit: %d) {
        cursor
        items {
          id
          name
          subitems {
            id
            name
          }
        }
      }
    }
  }
}`

const nextTasksPageQuery = `query ($cursor: String!) {
  next_items_page(limit: %d, cursor: $cursor) {
    cursor
    items {
      id
      name
      subitems {
        id
        name
      }
    }
  }
}`

type taskItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subitems []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"subitems"`
}

type itemsPage struct {
	Cursor string     `json:"cursor"`
	Items  []taskItem `json:"items"`
}

// BoardTasks returns the board's tasks grouped by board group, following the
// per-group cursor until each group is exhausted. An optional searchTerm
// filters options by case-insensitive substring match.
func (c *Client) BoardTasks(ctx context.Context, boardID, searchTerm string) ([]TaskGroup, error) {
	if n, err := strconv.Atoi(boardID); err != nil || n <= 0 {
		return nil, fmt.Errorf("taskdir: boardId must be a positive integer")
	}

	var data struct {
		Boards []struct {
			Groups []struct {
				ID        string    `json:"id"`
				Title     string    `json:"title"`
				ItemsPage itemsPage `json:"items_page"`
			} `json:"groups"`
		} `json:"boards"`
	}
	query := fmt.Sprintf(boardTasksQuery, itemsPageLimit)
	if err := c.query(ctx, query, map[string]any{"boardId": boardID}, &data); err != nil {
		return nil, err
	}
	if len(data.Boards) == 0 {
		return []TaskGroup{}, nil
	}

	groups := make([]TaskGroup, 0, len(data.Boards[0].Groups))
	for _, group := range data.Boards[0].Groups {
		items := group.ItemsPage.Items
		cursor := group.ItemsPage.Cursor
		for cursor != "" {
			page, err := c.nextPage(ctx, cursor)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Items...)
			cursor = page.Cursor
		}

		label := group.Title
		if label == "" {
			label = "Default Group"
		}
		options := flattenOptions(items, searchTerm)
		if len(options) == 0 {
			continue
		}
		groups = append(groups, TaskGroup{Label: label, Options: options})
	}
	return groups, nil
}

func (c *Client) nextPage(ctx context.Context, cursor string) (itemsPage, error) {
	var data struct {
		NextItemsPage itemsPage `json:"next_items_page"`
	}
	query := fmt.Sprintf(nextTasksPageQuery, itemsPageLimit)
	if err := c.query(ctx, query, map[string]any{"cursor": cursor}, &data); err != nil {
		return itemsPage{}, err
	}
	return data.NextItemsPage, nil
}

func flattenOptions(items []taskItem, searchTerm string) []TaskOption {
	term := strings.ToLower(strings.TrimSpace(searchTerm))
	var options []TaskOption
	for _, item := range items {
		if len(item.Subitems) > 0 {
			for _, sub := range item.Subitems {
				label := item.Name + " > " + sub.Name
				if term != "" && !strings.Contains(strings.ToLower(label), term) {
					continue
				}
				options = append(options, TaskOption{ID: sub.ID, Value: sub.ID, Label: label})
			}
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(item.Name), term) {
			continue
		}
		options = append(options, TaskOption{ID: item.ID, Value: item.ID, Label: item.Name})
	}
	return options
}
