package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

const SessionTTL = 30 * 24 * time.Hour

// Session is a browser session of the web frontend. UserID is zero until the
// browser signs in. Upstream holds the sealed API session cookies.
type Session struct {
	ID        int64
	Token     string
	UserID    int64
	UserName  string
	FamilyID  int64
	Upstream  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create starts an anonymous session.
func (s *SessionStore) Create() (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expires := now.Add(SessionTTL)
	res, err := s.db.Exec(
		`INSERT INTO sessions (token, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, now, now, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &Session{ID: id, Token: token, CreatedAt: now, UpdatedAt: now, ExpiresAt: expires}, nil
}

// GetByToken returns nil when the token is unknown or expired.
func (s *SessionStore) GetByToken(token string) (*Session, error) {
	var (
		sess   Session
		userID sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, token, user_id, user_name, family_id, upstream, created_at, updated_at, expires_at
		 FROM sessions WHERE token = ? AND expires_at > ?`,
		token, s.now().UTC(),
	).Scan(&sess.ID, &sess.Token, &userID, &sess.UserName, &sess.FamilyID, &sess.Upstream,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.UserID = userID.Int64
	return &sess, nil
}

// Save stores the signed-in user, selected family and sealed upstream
// cookies of a session.
func (s *SessionStore) Save(sess *Session) error {
	var userID sql.NullInt64
	if sess.UserID != 0 {
		userID = sql.NullInt64{Int64: sess.UserID, Valid: true}
	}
	sess.UpdatedAt = s.now().UTC()

	_, err := s.db.Exec(
		`UPDATE sessions SET user_id = ?, user_name = ?, family_id = ?, upstream = ?, updated_at = ?
		 WHERE token = ?`,
		userID, sess.UserName, sess.FamilyID, sess.Upstream, sess.UpdatedAt, sess.Token,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(token string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
