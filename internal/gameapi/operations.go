package gameapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Client exposes the backend's logical operations over the shared Executor.
// Only match creation carries a local retry policy: a transient failure
// there aborts a whole match, while any other lost call just costs one
// update.
type Client struct {
	exec        *Executor
	createRetry RetryPolicy
}

func NewClient(exec *Executor, createRetries int) *Client {
	return &Client{
		exec:        exec,
		createRetry: DefaultCreateRetryPolicy(createRetries),
	}
}

// CreateRating registers a player's initial rating.
func (c *Client) CreateRating(ctx context.Context, playerID string, elo int) error {
	payload := map[string]any{"player": playerID, "elo": elo}
	_, err := c.exec.Do(ctx, "create_rating", http.MethodPost, "/elo", payload)
	return err
}

// GetRating fetches a player's current rating. The backend either returns a
// flat {"elo": n} object or a history list whose most recent entry is
// authoritative.
func (c *Client) GetRating(ctx context.Context, playerID string) (int, error) {
	resp, err := c.exec.Do(ctx, "get_rating", http.MethodGet, "/elo/"+url.PathEscape(playerID), nil)
	if err != nil {
		return 0, err
	}

	doc := resp.JSON()
	if field := doc.Get("elo"); field.Exists() {
		return int(field.Int()), nil
	}
	if history := doc.Get("elo_history"); history.IsArray() {
		entries := history.Array()
		if len(entries) > 0 {
			if last := entries[len(entries)-1].Get("elo"); last.Exists() {
				return int(last.Int()), nil
			}
		}
	}
	if doc.IsArray() {
		entries := doc.Array()
		if len(entries) > 0 {
			if last := entries[len(entries)-1].Get("elo"); last.Exists() {
				return int(last.Int()), nil
			}
		}
	}
	return 0, &Error{Kind: KindMalformedResponse, Op: "get_rating", Status: resp.Status, Body: snippet(resp.Body)}
}

// UpdateRating writes a player's new rating after a completed match.
func (c *Client) UpdateRating(ctx context.Context, playerID string, elo int) error {
	payload := map[string]any{"player": playerID, "elo": elo}
	_, err := c.exec.Do(ctx, "update_rating", http.MethodPost, "/elo", payload)
	return err
}

// CreateMatch creates a match between two players and returns the
// backend-assigned id. Retried locally per the create policy.
func (c *Client) CreateMatch(ctx context.Context, playerA, playerB string) (string, error) {
	payload := map[string]any{"player_1": playerA, "player_2": playerB}

	var matchID string
	err := withRetry(ctx, c.createRetry, func(ctx context.Context) error {
		resp, err := c.exec.Do(ctx, "create_match", http.MethodPost, "/matches", payload)
		if err != nil {
			return err
		}
		doc := resp.JSON()
		id := doc.Get("id")
		if !id.Exists() {
			// Older backend revisions name the field m_id.
			id = doc.Get("m_id")
		}
		if !id.Exists() || id.String() == "" {
			return &Error{Kind: KindMalformedResponse, Op: "create_match", Status: resp.Status, Body: snippet(resp.Body)}
		}
		matchID = id.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return matchID, nil
}

// UpdateMatch reports match progress or its terminal state.
func (c *Client) UpdateMatch(ctx context.Context, matchID string, completed bool, duration time.Duration, timedOut bool) error {
	payload := map[string]any{
		"completed": completed,
		"duration":  durationSeconds(duration),
		"timeout":   timedOut,
	}
	_, err := c.exec.Do(ctx, "update_match", http.MethodPut, "/matches/"+url.PathEscape(matchID), payload)
	return err
}

// CreateGoal reports one scoring event. The backend requires an integer
// duration of at least one second.
func (c *Client) CreateGoal(ctx context.Context, matchID, playerID string, duration time.Duration) error {
	payload := map[string]any{
		"match_id": matchID,
		"player":   playerID,
		"duration": durationSeconds(duration),
	}
	_, err := c.exec.Do(ctx, "create_goal", http.MethodPost, "/goals", payload)
	return err
}

// GetMatch fetches a match by id.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*Response, error) {
	return c.exec.Do(ctx, "get_match", http.MethodGet, "/matches/"+url.PathEscape(matchID), nil)
}

func durationSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
