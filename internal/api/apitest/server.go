// Package apitest provides an in-memory stand-in for the family-task API.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/familytask/internal/model"
)

const cookieName = "session"

type user struct {
	id       int64
	name     string
	email    string
	password string
}

type failure struct {
	status  int
	message string
}

// Server is an httptest-backed fake of the family-task API. Route keys used
// by Calls and Fail are the mux patterns, e.g. "GET /api/family/{id}/tasks".
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int64
	users     map[int64]*user
	families  map[int64]*model.Family
	members   map[int64][]int64
	tasks     []model.Task
	templates []model.TaskTemplate
	calls     map[string]int
	failures  map[string]failure
	delays    map[string]chan struct{}
	now       func() time.Time
}

// New starts a fake API server that is closed when the test finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   100,
		users:    make(map[int64]*user),
		families: make(map[int64]*model.Family),
		members:  make(map[int64][]int64),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		delays:   make(map[string]chan struct{}),
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/logout", s.logout)
	mux.HandleFunc("GET /api/families", s.authed(s.listFamilies))
	mux.HandleFunc("POST /api/create-family", s.authed(s.createFamily))
	mux.HandleFunc("POST /api/join-family", s.authed(s.joinFamily))
	mux.HandleFunc("GET /api/task-templates", s.authed(s.listTemplates))
	mux.HandleFunc("GET /api/family/{id}/members", s.authed(s.member(s.listMembers)))
	mux.HandleFunc("GET /api/family/{id}/tasks", s.authed(s.member(s.listTasks)))
	mux.HandleFunc("POST /api/family/{id}/tasks", s.authed(s.createTask))
	mux.HandleFunc("PUT /api/tasks/{id}/assign", s.authed(s.assignTask))
	mux.HandleFunc("PUT /api/tasks/{id}/complete", s.authed(s.completeTask))
	mux.HandleFunc("POST /api/family/{id}/random-assign", s.authed(s.randomAssign))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		s.mu.Lock()
		s.calls[pattern]++
		f, failing := s.failures[pattern]
		delete(s.failures, pattern)
		gate := s.delays[pattern]
		delete(s.delays, pattern)
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if failing {
			writeJSON(w, f.status, map[string]string{"error": f.message})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// AddUser registers a user directly and returns its ID.
func (s *Server) AddUser(name, email, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.users[s.nextID] = &user{id: s.nextID, name: name, email: email, password: password}
	return s.nextID
}

// AddFamily creates a family with the given members and returns its ID.
func (s *Server) AddFamily(name, inviteCode string, memberIDs ...int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.families[s.nextID] = &model.Family{ID: s.nextID, Name: name, InviteCode: inviteCode}
	s.members[s.nextID] = append([]int64(nil), memberIDs...)
	return s.nextID
}

// AddTask stores a task in a family and returns its ID.
func (s *Server) AddTask(familyID int64, task model.Task) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	task.FamilyID = familyID
	if task.CreatedAt.IsZero() {
		task.CreatedAt = model.NewTimestamp(s.now().UTC())
	}
	s.tasks = append(s.tasks, task)
	return task.ID
}

// SetTemplates replaces the template catalog.
func (s *Server) SetTemplates(templates ...model.TaskTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append([]model.TaskTemplate(nil), templates...)
}

// Task returns a stored task by ID.
func (s *Server) Task(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// RemoveMember drops a user from a family.
func (s *Server) RemoveMember(familyID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.members[familyID]
	for i, id := range ids {
		if id == userID {
			s.members[familyID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// Fail makes the next request to pattern answer with status and an error body.
func (s *Server) Fail(pattern string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = failure{status: status, message: message}
}

// Hold blocks the next request to pattern until the returned func is called.
func (s *Server) Hold(pattern string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.delays[pattern] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns how many requests matched pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// ResetCalls zeroes the request counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
		return
	}

	s.mu.Lock()
	var found *user
	for _, u := range s.users {
		if u.email == req.Email && u.password == req.Password {
			found = u
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	s.startSession(w, found)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "All fields are required"})
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.email == req.Email {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User already exists"})
			return
		}
	}
	s.mu.Unlock()

	id := s.AddUser(req.Name, req.Email, req.Password)
	s.mu.Lock()
	u := s.users[id]
	s.mu.Unlock()
	s.startSession(w, u)
}

func (s *Server) startSession(w http.ResponseWriter, u *user) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: strconv.FormatInt(u.id, 10), Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user_id": u.id, "name": u.name})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(cookieName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			return
		}
		id, err := strconv.ParseInt(c.Value, 10, 64)
		s.mu.Lock()
		_, ok := s.users[id]
		s.mu.Unlock()
		if err != nil || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			return
		}
		h(w, r, id)
	}
}

func (s *Server) member(h authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, userID int64) {
		familyID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if !s.isMember(familyID, userID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access denied. You are not a member of this family."})
			return
		}
		h(w, r, userID)
	}
}

func (s *Server) isMember(familyID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[familyID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Server) listFamilies(w http.ResponseWriter, r *http.Request, userID int64) {
	s.mu.Lock()
	out := []model.Family{}
	for id, f := range s.families {
		for _, m := range s.members[id] {
			if m == userID {
				out = append(out, *f)
			}
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createFamily(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Name string `json:"name"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Family name is required"})
		return
	}
	s.mu.Lock()
	code := fmt.Sprintf("CODE%04d", s.nextID+1)
	s.mu.Unlock()
	id := s.AddFamily(req.Name, code, userID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "family_id": id, "invite_code": code})
}

func (s *Server) joinFamily(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.InviteCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invite code is required"})
		return
	}

	s.mu.Lock()
	var familyID int64
	for id, f := range s.families {
		if f.InviteCode == req.InviteCode {
			familyID = id
		}
	}
	s.mu.Unlock()
	if familyID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid invite code"})
		return
	}
	if s.isMember(familyID, userID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Already member of this family"})
		return
	}

	s.mu.Lock()
	s.members[familyID] = append(s.members[familyID], userID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "family_id": familyID})
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request, _ int64) {
	s.mu.Lock()
	out := append([]model.TaskTemplate{}, s.templates...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request, _ int64) {
	familyID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	out := []model.Member{}
	for _, uid := range s.members[familyID] {
		u := s.users[uid]
		m := model.Member{ID: u.id, Name: u.name, Email: u.email}
		for _, t := range s.tasks {
			if t.FamilyID != familyID || t.AssignedTo == nil || *t.AssignedTo != uid {
				continue
			}
			if t.IsCompleted {
				m.CompletedTasks++
			} else {
				m.ActiveTasks++
			}
		}
		out = append(out, m)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, _ int64) {
	familyID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.FamilyID != familyID {
			continue
		}
		if t.AssignedTo != nil {
			t.AssignedToName = s.users[*t.AssignedTo].name
		}
		out = append(out, t)
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsCompleted != out[j].IsCompleted {
			return !out[i].IsCompleted
		}
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, userID int64) {
	familyID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var in model.TaskInput
	json.NewDecoder(r.Body).Decode(&in)
	if in.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Task title is required"})
		return
	}
	created := userID
	id := s.AddTask(familyID, model.Task{
		Title:         in.Title,
		Description:   in.Description,
		Difficulty:    in.Difficulty,
		EstimatedDays: in.EstimatedDays,
		AssignedTo:    in.AssignedTo,
		CreatedBy:     &created,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task_id": id})
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request, _ int64) {
	taskID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var req struct {
		AssignedTo *int64 `json:"assigned_to"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks[i].AssignedTo = req.AssignedTo
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request, userID int64) {
	taskID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.ID == taskID && t.AssignedTo != nil && *t.AssignedTo == userID {
			t.IsCompleted = true
			done := model.NewTimestamp(s.now().UTC())
			t.CompletedAt = &done
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found or not assigned to you"})
}

// randomAssign hands each unassigned open task, hardest first, to the member
// with the lowest accumulated difficulty.
func (s *Server) randomAssign(w http.ResponseWriter, r *http.Request, _ int64) {
	familyID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []int
	for i, t := range s.tasks {
		if t.FamilyID == familyID && t.AssignedTo == nil && !t.IsCompleted {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No unassigned tasks found"})
		return
	}
	members := s.members[familyID]
	if len(members) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No family members found"})
		return
	}

	sort.SliceStable(open, func(a, b int) bool {
		return s.tasks[open[a]].Difficulty > s.tasks[open[b]].Difficulty
	})
	load := make(map[int64]int, len(members))
	for _, i := range open {
		target := members[0]
		for _, m := range members[1:] {
			if load[m] < load[target] {
				target = m
			}
		}
		id := target
		s.tasks[i].AssignedTo = &id
		load[target] += s.tasks[i].Difficulty
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "assigned_tasks": len(open)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
