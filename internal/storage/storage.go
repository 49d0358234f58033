package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"karas-agent/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err = migrate(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- fired ledger ----------------------------------------------------

// ClaimFired records that a reminder has been fired for this user. Returns
// true only for the caller that actually inserted the row: concurrent
// claimants race on a single INSERT OR IGNORE and exactly one wins.
func (d *DB) ClaimFired(userID, reminderID int64) (bool, error) {
	res, err := d.Exec(`
        INSERT OR IGNORE INTO fired (user_id, reminder_id, fired_at)
        VALUES (?,?,?)
    `, userID, reminderID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) IsFired(userID, reminderID int64) (bool, error) {
	var one int
	err := d.QueryRow(`SELECT 1 FROM fired WHERE user_id=? AND reminder_id=?`,
		userID, reminderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) FiredIDs(userID int64) (map[int64]bool, error) {
	rows, err := d.Query(`SELECT reminder_id FROM fired WHERE user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fired := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		fired[id] = true
	}
	return fired, rows.Err()
}

// ClearFired wipes one user's fired history. Rows for reminders that have
// vanished from the server list are otherwise never purged, so a reminder
// that reappears after a flaky fetch stays fired.
func (d *DB) ClearFired(userID int64) error {
	_, err := d.Exec(`DELETE FROM fired WHERE user_id=?`, userID)
	return err
}

// ---------- session ---------------------------------------------------------

func (d *DB) SaveSession(s *models.Session) error {
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	_, err = d.Exec(`
        INSERT INTO sessions (id, token, user_json, saved_at) VALUES (1,?,?,?)
        ON CONFLICT(id) DO UPDATE SET token=excluded.token,
            user_json=excluded.user_json,
            saved_at=excluded.saved_at
    `, s.Token, string(userJSON), time.Now().Unix())
	return err
}

func (d *DB) LoadSession() (*models.Session, error) {
	var s models.Session
	var userJSON string

	err := d.QueryRow(`SELECT token, user_json FROM sessions WHERE id=1`).
		Scan(&s.Token, &userJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(userJSON), &s.User); err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) DeleteSession() error {
	_, err := d.Exec(`DELETE FROM sessions WHERE id=1`)
	return err
}
