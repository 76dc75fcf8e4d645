package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
)

// API is the subset of the family-task API the synchronizer calls.
type API interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
	Families(ctx context.Context) ([]model.Family, error)
	CreateFamily(ctx context.Context, name string) (*api.CreatedFamily, error)
	JoinFamily(ctx context.Context, inviteCode string) (int64, error)
	TaskTemplates(ctx context.Context) ([]model.TaskTemplate, error)
	Members(ctx context.Context, familyID int64) ([]model.Member, error)
	Tasks(ctx context.Context, familyID int64) ([]model.Task, error)
	CreateTask(ctx context.Context, familyID int64, in model.TaskInput) (int64, error)
	AssignTask(ctx context.Context, taskID int64, memberID *int64) error
	CompleteTask(ctx context.Context, taskID int64) error
	RandomAssign(ctx context.Context, familyID int64) (*api.RandomAssignResult, error)
}

// Renderer projects a snapshot onto the screen.
type Renderer interface {
	Render(ctx context.Context, st State)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, st State)

func (f RendererFunc) Render(ctx context.Context, st State) { f(ctx, st) }

// Notifier shows transient banners.
type Notifier interface {
	Notify(level notify.Level, message string)
}

var (
	ErrNoFamily        = errors.New("no family selected")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrTitleRequired   = errors.New("task title is required")
	ErrNameRequired    = errors.New("family name is required")
	ErrCodeRequired    = errors.New("invite code is required")
	ErrUnknownTemplate = errors.New("unknown task template")
)

const accessDeniedMessage = "Access denied. You are not a member of this family."

// Options configures a Synchronizer. Renderer and Notifier may be nil.
type Options struct {
	Renderer Renderer
	Notifier Notifier
	Logger   *slog.Logger
}

// Synchronizer keeps State consistent with the API for one user session.
type Synchronizer struct {
	api      API
	renderer Renderer
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	// renderMu serializes renders so the last one always reflects the
	// latest state.
	renderMu sync.Mutex
}

// New returns a synchronizer with an empty, signed-out state.
func New(client API, opts Options) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer{
		api:      client,
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

// Snapshot returns the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// commit replaces the state with fn(current) and renders.
func (s *Synchronizer) commit(ctx context.Context, fn func(State) State) State {
	s.mu.Lock()
	s.state = fn(s.state)
	next := s.state
	s.mu.Unlock()

	s.render(ctx)
	return next
}

// apply mutates the state only if gen is still the current generation and a
// family is selected. It reports whether the update was applied.
func (s *Synchronizer) apply(ctx context.Context, gen uint64, fn func(*State)) bool {
	s.mu.Lock()
	if s.state.Generation != gen || s.state.Family == nil {
		s.mu.Unlock()
		s.logger.Debug("discarding stale result", "generation", gen)
		return false
	}
	next := s.state
	fn(&next)
	s.state = next
	s.mu.Unlock()

	s.render(ctx)
	return true
}

func (s *Synchronizer) render(ctx context.Context) {
	if s.renderer == nil {
		return
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.renderer.Render(ctx, s.Snapshot())
}

func (s *Synchronizer) notify(level notify.Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}

// reportFailure surfaces a failed call: the server's text for rejections,
// fallback for transport errors. An expired upstream session signs the user
// out locally.
func (s *Synchronizer) reportFailure(ctx context.Context, fallback string, err error) {
	s.logger.Warn("api call failed", "message", fallback, "error", err)

	if errors.Is(err, api.ErrUnauthorized) && s.Snapshot().LoggedIn() {
		s.commit(ctx, State.loggedOut)
		s.notify(notify.LevelError, "Your session has expired. Please log in again.")
		return
	}
	s.notify(notify.LevelError, api.Message(err, fallback))
}

// current returns the selected family and generation, or ErrNoFamily.
func (s *Synchronizer) current() (model.Family, uint64, error) {
	st := s.Snapshot()
	if st.Family == nil {
		return model.Family{}, st.Generation, ErrNoFamily
	}
	return *st.Family, st.Generation, nil
}

// SelectFamily makes familyID the current family and loads its templates,
// members and tasks concurrently. familyID 0 clears the selection.
func (s *Synchronizer) SelectFamily(ctx context.Context, familyID int64) error {
	if familyID == 0 {
		s.commit(ctx, State.withoutFamily)
		return nil
	}

	next := s.commit(ctx, func(st State) State {
		f, ok := st.findFamily(familyID)
		if !ok {
			// Not in the cached list; the API decides whether the user may see it.
			f = model.Family{ID: familyID}
		}
		return st.withFamily(f)
	})
	gen := next.Generation

	s.logger.Debug("family selected", "family_id", familyID, "generation", gen)

	var g errgroup.Group
	g.Go(func() error { s.loadTemplates(ctx, gen); return nil })
	g.Go(func() error { s.loadMembers(ctx, familyID, gen); return nil })
	g.Go(func() error { s.loadTasks(ctx, familyID, gen); return nil })
	g.Wait()

	s.apply(ctx, gen, func(st *State) { st.Phase = PhaseReady })
	return nil
}

// LoadTasks re-fetches the selected family's tasks. With no family it
// renders the empty state.
func (s *Synchronizer) LoadTasks(ctx context.Context) error {
	f, gen, err := s.current()
	if err != nil {
		s.commit(ctx, func(st State) State { st.Tasks = nil; return st })
		return nil
	}
	return s.loadTasks(ctx, f.ID, gen)
}

// LoadMembers re-fetches the selected family's members. With no family it
// renders the empty state.
func (s *Synchronizer) LoadMembers(ctx context.Context) error {
	f, gen, err := s.current()
	if err != nil {
		s.commit(ctx, func(st State) State { st.Members = nil; return st })
		return nil
	}
	return s.loadMembers(ctx, f.ID, gen)
}

// LoadTemplates re-fetches the task template catalog for the selected family.
func (s *Synchronizer) LoadTemplates(ctx context.Context) error {
	_, gen, err := s.current()
	if err != nil {
		s.commit(ctx, func(st State) State { st.Templates = nil; return st })
		return nil
	}
	return s.loadTemplates(ctx, gen)
}

func (s *Synchronizer) loadTasks(ctx context.Context, familyID int64, gen uint64) error {
	tasks, err := s.api.Tasks(ctx, familyID)
	if err != nil {
		s.fetchFailed(ctx, gen, "Failed to load tasks", err, func(st *State) { st.Tasks = nil })
		return err
	}
	s.apply(ctx, gen, func(st *State) { st.Tasks = tasks })
	return nil
}

func (s *Synchronizer) loadMembers(ctx context.Context, familyID int64, gen uint64) error {
	members, err := s.api.Members(ctx, familyID)
	if err != nil {
		s.fetchFailed(ctx, gen, "Failed to load family members", err, func(st *State) { st.Members = nil })
		return err
	}
	s.apply(ctx, gen, func(st *State) { st.Members = members })
	return nil
}

func (s *Synchronizer) loadTemplates(ctx context.Context, gen uint64) error {
	templates, err := s.api.TaskTemplates(ctx)
	if err != nil {
		s.fetchFailed(ctx, gen, "Failed to load task templates", err, func(st *State) { st.Templates = nil })
		return err
	}
	s.apply(ctx, gen, func(st *State) { st.Templates = templates })
	return nil
}

// fetchFailed handles a failed family-scoped read. A 403 resets the selection
// entirely; anything else empties the affected collection. Results from a
// superseded generation are ignored, so one selection yields one notice.
func (s *Synchronizer) fetchFailed(ctx context.Context, gen uint64, fallback string, err error, clear func(*State)) {
	if errors.Is(err, api.ErrForbidden) {
		s.mu.Lock()
		stale := s.state.Generation != gen
		if !stale {
			s.state = s.state.withoutFamily()
		}
		s.mu.Unlock()
		if stale {
			return
		}
		s.logger.Warn("family access denied", "generation", gen, "error", err)
		s.render(ctx)
		s.notify(notify.LevelError, accessDeniedMessage)
		return
	}

	if s.apply(ctx, gen, clear) {
		s.reportFailure(ctx, fallback, err)
	}
}

// refresh re-fetches tasks and members after a mutation.
func (s *Synchronizer) refresh(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { s.LoadTasks(ctx); return nil })
	g.Go(func() error { s.LoadMembers(ctx); return nil })
	g.Wait()
}
