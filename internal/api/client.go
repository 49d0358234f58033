package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"karas-agent/internal/models"
)

// Client talks to the Karas reminders server. It owns no retry logic:
// every call surfaces its outcome once and the periodic triggers retry.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SetToken(token string) { c.token = token }

// TokenExpired reports whether the bearer token's exp claim has passed.
// The parse is unverified: the server stays the authority, this only
// avoids polling with a token already known to be dead.
func TokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// ---------- auth ------------------------------------------------------------

func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var s models.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*models.Session, error) {
	var s models.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "password": password, "name": name}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ---------- reminders -------------------------------------------------------

// ReminderFields is a partial update; nil fields are left untouched server
// side, matching the notes-only save in the original client.
type ReminderFields struct {
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
	RemindAt *string `json:"remind_at,omitempty"`
	Repeat   *string `json:"repeat,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (c *Client) Reminders(ctx context.Context) ([]models.Reminder, error) {
	var out struct {
		Reminders []models.Reminder `json:"reminders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/reminders", nil, &out); err != nil {
		return nil, err
	}
	return out.Reminders, nil
}

func (c *Client) CreateReminder(ctx context.Context, f ReminderFields) (*models.Reminder, error) {
	var r models.Reminder
	if err := c.do(ctx, http.MethodPost, "/api/reminders", f, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UpdateReminder(ctx context.Context, id int64, f ReminderFields) (*models.Reminder, error) {
	var r models.Reminder
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/reminders/%d", id), f, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteReminder(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/reminders/%d", id), nil, nil)
}

// ---------- push ------------------------------------------------------------

// VapidPublicKey returns the server's application key, stripped of the
// stray whitespace that broke real deployments.
func (c *Client) VapidPublicKey(ctx context.Context) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/push/public-key", nil, &out); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(out.Key), ""), nil
}

func (c *Client) SubscribePush(ctx context.Context, sub models.PushSubscription) error {
	return c.do(ctx, http.MethodPost, "/api/push/subscribe", sub, nil)
}

// ---------- plumbing --------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &ServerError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
