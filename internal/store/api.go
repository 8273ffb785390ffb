package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"campusnotify/internal/common"
)

const genericNetworkError = "network error, please try again"

// TokenSource supplies the bearer credential for each request, so a token
// refreshed mid-session is picked up without rebuilding the client.
type TokenSource func() string

// APIError is a server-side rejection. Message comes from the response body's
// message field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the notification REST API under /api/notifications.
type Client struct {
	baseURL string
	token   TokenSource
	http    *http.Client
}

func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListResult is the paginated list payload; UnreadCount covers the whole
// collection, not just the returned page.
type ListResult struct {
	Notifications []common.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	TotalPages    int                   `json:"totalPages"`
}

type listPayload struct {
	Notifications []common.Notification `json:"notifications"`
}

type countPayload struct {
	Count int `json:"count"`
}

type preferencesPayload struct {
	Preferences common.Preferences `json:"preferences"`
}

// FilterOptions narrows the filtered list query. Nil/zero fields are omitted.
type FilterOptions struct {
	Read     *bool
	Category common.Category
	Priority common.Priority
	Sort     string
	Page     int
	Limit    int
}

func (f FilterOptions) query() url.Values {
	q := url.Values{}
	if f.Read != nil {
		q.Set("read", strconv.FormatBool(*f.Read))
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) List(ctx context.Context, page, limit int) (ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out ListResult
	err := c.do(ctx, http.MethodGet, "", q, nil, &out)
	return out, err
}

func (c *Client) Filtered(ctx context.Context, opts FilterOptions) ([]common.Notification, error) {
	var out listPayload
	if err := c.do(ctx, http.MethodGet, "/filtered", opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]common.Notification, error) {
	q := url.Values{}
	q.Set("q", query)
	var out listPayload
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) Stats(ctx context.Context) (common.Stats, error) {
	var out common.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out)
	return out, err
}

func (c *Client) Important(ctx context.Context) ([]common.Notification, error) {
	var out listPayload
	if err := c.do(ctx, http.MethodGet, "/important", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) ByCategory(ctx context.Context, category common.Category) ([]common.Notification, error) {
	var out listPayload
	if err := c.do(ctx, http.MethodGet, "/category/"+url.PathEscape(string(category)), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out countPayload
	if err := c.do(ctx, http.MethodGet, "/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *Client) MarkImportant(ctx context.Context, id string, important bool) error {
	body := map[string]bool{"isImportant": important}
	return c.do(ctx, http.MethodPut, "/"+url.PathEscape(id)+"/important", nil, body, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/mark-all-read", nil, nil, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Preferences(ctx context.Context) (common.Preferences, error) {
	var out preferencesPayload
	if err := c.do(ctx, http.MethodGet, "/preferences", nil, nil, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs common.Preferences) (common.Preferences, error) {
	var out preferencesPayload
	if err := c.do(ctx, http.MethodPut, "/preferences", nil, prefs, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) UpdateTypePreference(ctx context.Context, typ common.NotificationType, channel string, enabled bool) (common.Preferences, error) {
	body := map[string]interface{}{
		"type":    typ,
		"channel": channel,
		"enabled": enabled,
	}
	var out preferencesPayload
	if err := c.do(ctx, http.MethodPut, "/preferences/type", nil, body, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) UpdateFrequency(ctx context.Context, freq common.Frequency) (common.Preferences, error) {
	var out preferencesPayload
	if err := c.do(ctx, http.MethodPut, "/preferences/frequency", nil, freq, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) UpdateQuietHours(ctx context.Context, q common.QuietHours) (common.Preferences, error) {
	var out preferencesPayload
	if err := c.do(ctx, http.MethodPut, "/preferences/quiet-hours", nil, q, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) ResetPreferences(ctx context.Context) (common.Preferences, error) {
	var out preferencesPayload
	if err := c.do(ctx, http.MethodPost, "/preferences/reset", nil, nil, &out); err != nil {
		return common.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + "/api/notifications" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", genericNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError surfaces the server's message field when the error body is
// JSON, else the generic network message.
func decodeError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		return &APIError{Status: resp.StatusCode, Message: body.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: genericNetworkError}
}
