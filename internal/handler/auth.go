package handler

import (
	"net/http"
	"strings"
)

// Login signs the session in against the API. Failures show up as a banner
// on the page the browser is sent back to.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	if err := sess.Sync.Login(r.Context(), email, r.FormValue("password")); err != nil {
		h.logger.Info("login failed", "error", err)
	}
	redirect(w, r, "/")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	if err := sess.Sync.Register(r.Context(), name, email, r.FormValue("password")); err != nil {
		h.logger.Info("registration failed", "error", err)
	}
	redirect(w, r, "/")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Sync.Logout(r.Context()); err != nil {
		h.logger.Warn("logout failed", "error", err)
	}
	redirect(w, r, "/")
}
