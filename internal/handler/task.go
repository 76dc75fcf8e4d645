package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/familytask/internal/model"
)

// optionalID parses an optional positive ID form value; "" yields nil.
func optionalID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid id %q", raw)
	}
	return &id, nil
}

func optionalInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// CreateTask adds a task from a template when template_id is set, otherwise
// from the custom fields.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	assignedTo, err := optionalID(r.FormValue("assigned_to"))
	if err != nil {
		http.Error(w, "invalid assigned_to", http.StatusBadRequest)
		return
	}

	templateID, err := optionalID(r.FormValue("template_id"))
	if err != nil {
		http.Error(w, "invalid template_id", http.StatusBadRequest)
		return
	}
	if templateID != nil {
		h.finish(w, sess, "create task from template", sess.Sync.CreateTaskFromTemplate(r.Context(), *templateID, assignedTo))
		return
	}

	difficulty, err := optionalInt(r.FormValue("difficulty"), model.DefaultDifficulty)
	if err != nil {
		http.Error(w, "invalid difficulty", http.StatusBadRequest)
		return
	}
	days, err := optionalInt(r.FormValue("estimated_days"), model.DefaultEstimatedDays)
	if err != nil {
		http.Error(w, "invalid estimated_days", http.StatusBadRequest)
		return
	}

	in := model.TaskInput{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		Difficulty:    difficulty,
		EstimatedDays: days,
		AssignedTo:    assignedTo,
	}
	h.finish(w, sess, "create task", sess.Sync.CreateTask(r.Context(), in))
}

func (h *Handler) AssignTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	memberID, err := optionalID(r.FormValue("assigned_to"))
	if err != nil {
		http.Error(w, "invalid assigned_to", http.StatusBadRequest)
		return
	}
	h.finish(w, sess, "assign task", sess.Sync.AssignTask(r.Context(), id, memberID))
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.finish(w, sess, "complete task", sess.Sync.CompleteTask(r.Context(), id))
}

func (h *Handler) RandomAssign(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.finish(w, sess, "random assign", sess.Sync.RandomAssign(r.Context()))
}
