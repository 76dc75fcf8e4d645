package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/familytask/internal/render"
	"github.com/dukerupert/familytask/internal/session"
)

// Handler serves the dashboard page and its HTMX partials. Every action runs
// one synchronizer operation and answers with the re-rendered panels and
// banner stack as out-of-band fragments.
type Handler struct {
	tmpl   *render.Templates
	logger *slog.Logger
}

// New creates a Handler rendering with tmpl.
func New(tmpl *render.Templates, logger *slog.Logger) *Handler {
	return &Handler{tmpl: tmpl, logger: logger}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
	}
	return sess, ok
}

// Page renders the full document.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Page(w, sess.Panels(), sess.Notices.Active()); err != nil {
		h.logger.Error("template error", "template", "layout", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// Panels renders the family bar, invite confirmation and family content.
func (h *Handler) Panels(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, sess)
}

// Notifications renders the active banners.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Notifications(w, sess.Notices.Active()); err != nil {
		h.logger.Error("template error", "template", "notifications", "error", err)
	}
}

func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Notices.Dismiss(r.PathValue("id"))
	h.Notifications(w, r)
}

// respond writes the current panels and banners as out-of-band fragments.
func (h *Handler) respond(w http.ResponseWriter, sess *session.Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Panels(w, sess.Panels()); err != nil {
		h.logger.Error("template error", "template", "panels", "error", err)
		w.Write([]byte(`<div class="alert alert-error">Template error</div>`))
		return
	}
	if err := h.tmpl.Notifications(w, sess.Notices.Active()); err != nil {
		h.logger.Error("template error", "template", "notifications", "error", err)
	}
}

// finish logs the outcome of an action and responds. Failures have already
// been turned into banners by the synchronizer.
func (h *Handler) finish(w http.ResponseWriter, sess *session.Session, action string, err error) {
	if err != nil {
		h.logger.Debug("action failed", "action", action, "error", err)
	}
	h.respond(w, sess)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
