// Package session keeps one synchronizer per browser session and restores it
// from the session store after a restart.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
	"github.com/dukerupert/familytask/internal/render"
	"github.com/dukerupert/familytask/internal/seal"
	"github.com/dukerupert/familytask/internal/store"
	"github.com/dukerupert/familytask/internal/view"
	"github.com/dukerupert/familytask/internal/viewstate"
	"github.com/dukerupert/familytask/internal/websocket"
)

type Config struct {
	API       api.Config
	NotifyTTL time.Duration
}

// Session is one browser's view of the family-task API.
type Session struct {
	Token   string
	Sync    *viewstate.Synchronizer
	Notices *notify.Center

	registry *Registry
	client   *api.Client
	logger   *slog.Logger

	mu       sync.Mutex
	record   store.Session
	cookies  []byte
	lastSeen time.Time
}

// Registry owns the live sessions of this process.
type Registry struct {
	cfg      Config
	store    *store.SessionStore
	sealer   *seal.Sealer
	hub      *websocket.Hub
	tmpl     *render.Templates
	logger   *slog.Logger
	now      func() time.Time
	sessions map[string]*Session
	mu       sync.Mutex
}

func NewRegistry(cfg Config, st *store.SessionStore, sealer *seal.Sealer, hub *websocket.Hub, tmpl *render.Templates, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		store:    st,
		sealer:   sealer,
		hub:      hub,
		tmpl:     tmpl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new anonymous session.
func (r *Registry) Create() (*Session, error) {
	rec, err := r.store.Create()
	if err != nil {
		return nil, err
	}
	s, err := r.build(*rec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.Token] = s
	r.mu.Unlock()

	r.logger.Debug("session created", "session_id", rec.ID)
	return s, nil
}

// Get returns the live session for token, restoring it from the store if this
// process has not seen it yet. It returns nil for unknown or expired tokens.
func (r *Registry) Get(ctx context.Context, token string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
		return s, nil
	}

	rec, err := r.store.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	s, err = r.build(*rec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[token]; ok {
		// A concurrent request restored it first.
		r.mu.Unlock()
		s.Notices.Close()
		return existing, nil
	}
	r.sessions[token] = s
	r.mu.Unlock()

	if rec.UserID != 0 {
		r.logger.Info("restoring session", "session_id", rec.ID, "user_id", rec.UserID, "family_id", rec.FamilyID)
		user := model.User{ID: rec.UserID, Name: rec.UserName}
		if err := s.Sync.Resume(ctx, user, rec.FamilyID); err != nil {
			r.logger.Warn("restore session failed", "session_id", rec.ID, "error", err)
		}
	}
	return s, nil
}

func (r *Registry) build(rec store.Session) (*Session, error) {
	client, err := api.NewClient(r.cfg.API)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Token:    rec.Token,
		registry: r,
		client:   client,
		logger:   r.logger.With("session_id", rec.ID),
		record:   rec,
		lastSeen: r.now(),
	}

	if len(rec.Upstream) > 0 {
		cookies, err := r.openCookies(rec.Upstream)
		if err != nil {
			// Unreadable cookies only cost the user a fresh login.
			s.logger.Warn("discarding upstream cookies", "error", err)
		} else {
			client.SetCookies(cookies)
		}
	}
	s.cookies = s.encodeCookies()

	s.Notices = notify.NewCenter(notify.Config{
		TTL:      r.cfg.NotifyTTL,
		OnChange: s.pushNotifications,
	})
	s.Sync = viewstate.New(client, viewstate.Options{
		Renderer: viewstate.RendererFunc(s.render),
		Notifier: s.Notices,
		Logger:   s.logger.With("component", "viewstate"),
	})
	return s, nil
}

func (r *Registry) openCookies(sealed []byte) ([]*http.Cookie, error) {
	plain, err := r.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(plain, &cookies); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return cookies, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Cleanup deletes expired sessions from the store and forgets live sessions
// idle for longer than the session lifetime.
func (r *Registry) Cleanup() {
	n, err := r.store.DeleteExpired()
	if err != nil {
		r.logger.Error("delete expired sessions", "error", err)
	} else if n > 0 {
		r.logger.Info("deleted expired sessions", "count", n)
	}

	cutoff := r.now().Add(-store.SessionTTL)
	r.mu.Lock()
	var idle []*Session
	for token, s := range r.sessions {
		if s.seen().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Notices.Close()
		r.hub.CloseSession(s.Token)
	}
}

// Run calls Cleanup every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops every session's notification timers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, s := range r.sessions {
		s.Notices.Close()
		delete(r.sessions, token)
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Panels projects the current state.
func (s *Session) Panels() view.Panels {
	return view.Project(s.Sync.Snapshot(), s.registry.now())
}

func (s *Session) encodeCookies() []byte {
	cookies := s.client.Cookies()
	if len(cookies) == 0 {
		return nil
	}
	b, _ := json.Marshal(cookies)
	return b
}

// render is the synchronizer's renderer: it persists what a restart needs and
// pushes the new panels to the session's open tabs.
func (s *Session) render(_ context.Context, st viewstate.State) {
	s.persist(st)

	r := s.registry
	if !st.LoggedIn() {
		r.hub.Send(s.Token, websocket.NewMessage("session", "ended", ""))
		return
	}
	html, err := r.tmpl.PanelsHTML(view.Project(st, r.now()))
	if err != nil {
		s.logger.Error("render panels", "error", err)
		return
	}
	r.hub.Send(s.Token, websocket.NewMessage("panels", "updated", html))
}

func (s *Session) persist(st viewstate.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.record
	next.UserID, next.UserName, next.FamilyID = 0, "", 0
	if st.User != nil {
		next.UserID, next.UserName = st.User.ID, st.User.Name
	}
	if st.Family != nil {
		next.FamilyID = st.Family.ID
	}
	cookies := s.encodeCookies()

	if next.UserID == s.record.UserID && next.UserName == s.record.UserName &&
		next.FamilyID == s.record.FamilyID && bytes.Equal(cookies, s.cookies) {
		return
	}

	next.Upstream = nil
	if cookies != nil {
		sealed, err := s.registry.sealer.Seal(cookies)
		if err != nil {
			s.logger.Error("seal upstream cookies", "error", err)
			return
		}
		next.Upstream = sealed
	}
	if err := s.registry.store.Save(&next); err != nil {
		s.logger.Error("persist session", "error", err)
		return
	}
	s.record = next
	s.cookies = cookies
}

func (s *Session) pushNotifications(active []notify.Notification) {
	html, err := s.registry.tmpl.NotificationsHTML(active)
	if err != nil {
		s.logger.Error("render notifications", "error", err)
		return
	}
	s.registry.hub.Send(s.Token, websocket.NewMessage("notification", "updated", html))
}
