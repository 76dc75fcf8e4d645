package handler

import (
	"net/http"
	"strconv"
	"strings"
)

// SelectFamily switches the current family; an empty family_id clears it.
func (h *Handler) SelectFamily(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var id int64
	if raw := strings.TrimSpace(r.FormValue("family_id")); raw != "" {
		var err error
		id, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			http.Error(w, "invalid family_id", http.StatusBadRequest)
			return
		}
	}

	h.finish(w, sess, "select family", sess.Sync.SelectFamily(r.Context(), id))
}

func (h *Handler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.finish(w, sess, "create family", sess.Sync.CreateFamily(r.Context(), r.FormValue("name")))
}

func (h *Handler) AcknowledgeInvite(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.finish(w, sess, "acknowledge invite", sess.Sync.AcknowledgeInvite(r.Context()))
}

func (h *Handler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.finish(w, sess, "join family", sess.Sync.JoinFamily(r.Context(), r.FormValue("invite_code")))
}
