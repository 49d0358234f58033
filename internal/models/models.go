package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reminder is one scheduled notification as served by the Karas API.
type Reminder struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	RemindAt string `json:"remind_at"` // RFC3339 or one of the tolerated formats
	Repeat   string `json:"repeat"`    // advisory label, never expanded here
	Notes    string `json:"notes"`
}

// remindAtFormats are tried in order after RFC3339.
var remindAtFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DueAt parses the scheduled instant. A malformed value is an error; the
// caller decides whether that means never-due or user-facing failure.
func (r Reminder) DueAt() (time.Time, error) {
	s := strings.TrimSpace(r.RemindAt)
	if s == "" {
		return time.Time{}, fmt.Errorf("reminder %d: empty remind_at", r.ID)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, f := range remindAtFormats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("reminder %d: unparseable remind_at %q", r.ID, r.RemindAt)
}

// UnmarshalJSON normalizes the identifier at the ingestion boundary: the
// server has served ids both as numbers and as strings, and a ledger keyed
// on mixed representations silently stops deduplicating.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type alias Reminder
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ID) > 0 {
		id, err := ParseID(string(aux.ID))
		if err != nil {
			return err
		}
		r.ID = id
	}
	return nil
}

// ParseID canonicalizes a reminder identifier to int64. Accepts bare
// numbers and quoted numeric strings.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid reminder id %q", s)
	}
	return id, nil
}

// User is the authenticated account profile.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"is_admin"`
}

// Session pairs the bearer token with its user profile.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PushPayload is the message delivered over the background channel.
type PushPayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushSubscription is the descriptor registered with the server so the
// background channel can reach this device.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	DeviceID string           `json:"device_id"`
	Keys     SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	Auth string `json:"auth"`
}
