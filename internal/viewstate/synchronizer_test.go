package viewstate

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/api/apitest"
	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
)

const (
	tasksRoute   = "GET /api/family/{id}/tasks"
	membersRoute = "GET /api/family/{id}/members"
)

type recorder struct {
	mu      sync.Mutex
	renders []State
	notes   []notify.Notification
}

func (r *recorder) Render(_ context.Context, st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, st)
}

func (r *recorder) Notify(level notify.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notify.Notification{Level: level, Message: message})
}

func (r *recorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders[len(r.renders)-1]
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		out = append(out, n.Message)
	}
	return out
}

type fixture struct {
	srv  *apitest.Server
	sync *Synchronizer
	rec  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	client, err := api.NewClient(api.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	rec := &recorder{}
	return &fixture{
		srv:  srv,
		rec:  rec,
		sync: New(client, Options{Renderer: rec, Notifier: rec}),
	}
}

func (f *fixture) login(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, f.sync.Login(context.Background(), email, "pw"))
}

func TestLoginWithoutFamiliesHidesFamilyPanels(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("Alice", "alice@example.com", "pw")

	f.login(t, "alice@example.com")

	st := f.sync.Snapshot()
	assert.True(t, st.LoggedIn())
	assert.False(t, st.FamilySelected())
	assert.Equal(t, PhaseNoFamily, st.Phase)
	assert.Empty(t, st.Families)
	assert.Zero(t, f.srv.Calls(tasksRoute))
}

func TestLoginWithOneFamilyAutoSelects(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.AddTask(fam, model.Task{Title: "Dishes", Difficulty: 2, EstimatedDays: 1})
	f.srv.SetTemplates(model.TaskTemplate{ID: 1, Category: "Kitchen", Name: "Dishes", Difficulty: 2, EstimatedDays: 1})

	f.login(t, "alice@example.com")

	st := f.sync.Snapshot()
	require.True(t, st.FamilySelected())
	assert.Equal(t, fam, st.Family.ID)
	assert.Equal(t, "Smiths", st.Family.Name)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Len(t, st.Tasks, 1)
	assert.Len(t, st.Members, 1)
	assert.Len(t, st.Templates, 1)
	assert.Equal(t, st, f.rec.last())
}

func TestLoginWithSeveralFamiliesWaitsForSelection(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.AddFamily("Joneses", "DEF", alice)

	f.login(t, "alice@example.com")

	st := f.sync.Snapshot()
	assert.Len(t, st.Families, 2)
	assert.False(t, st.FamilySelected())
	assert.Zero(t, f.srv.Calls(tasksRoute))
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("Alice", "alice@example.com", "pw")

	err := f.sync.Login(context.Background(), "alice@example.com", "nope")
	require.Error(t, err)
	assert.False(t, f.sync.Snapshot().LoggedIn())
	assert.Equal(t, []string{"Invalid credentials"}, f.rec.messages())
}

func TestSelectFamilyZeroClearsEverything(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.AddTask(fam, model.Task{Title: "Dishes"})
	f.login(t, "alice@example.com")
	require.NotEmpty(t, f.sync.Snapshot().Tasks)

	require.NoError(t, f.sync.SelectFamily(context.Background(), 0))

	st := f.sync.Snapshot()
	assert.Nil(t, st.Family)
	assert.Nil(t, st.Tasks)
	assert.Nil(t, st.Members)
	assert.Nil(t, st.Templates)
	assert.Equal(t, PhaseNoFamily, st.Phase)
	assert.Equal(t, st, f.rec.last())
}

func TestForbiddenFamilyResetsSelectionOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	bob := f.srv.AddUser("Bob", "bob@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	other := f.srv.AddFamily("Joneses", "DEF", bob)
	f.login(t, "alice@example.com")

	require.NoError(t, f.sync.SelectFamily(context.Background(), other))

	st := f.sync.Snapshot()
	assert.False(t, st.FamilySelected())
	assert.Empty(t, st.Tasks)
	assert.Empty(t, st.Members)
	assert.Equal(t, []string{"Access denied. You are not a member of this family."}, f.rec.messages())
	assert.True(t, st.LoggedIn())
}

func TestForbiddenTaskRefreshResetsSelection(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	f.login(t, "alice@example.com")
	require.True(t, f.sync.Snapshot().FamilySelected())

	f.srv.Fail(tasksRoute, http.StatusForbidden, "Access denied. You are not a member of this family.")
	require.Error(t, f.sync.LoadTasks(context.Background()))

	st := f.sync.Snapshot()
	assert.False(t, st.FamilySelected())
	assert.Len(t, st.Families, 1)
	assert.Equal(t, fam, st.Families[0].ID)
}

func TestLoadFailureEmptiesOnlyThatPanel(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.AddTask(fam, model.Task{Title: "Dishes"})
	f.login(t, "alice@example.com")

	f.srv.Fail(tasksRoute, http.StatusInternalServerError, "boom")
	require.Error(t, f.sync.LoadTasks(context.Background()))

	st := f.sync.Snapshot()
	assert.True(t, st.FamilySelected())
	assert.Empty(t, st.Tasks)
	assert.Len(t, st.Members, 1)
	assert.Equal(t, []string{"boom"}, f.rec.messages())
}

func TestLoadWithoutFamilyRendersEmpty(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.login(t, "alice@example.com")
	f.srv.ResetCalls()

	require.NoError(t, f.sync.LoadTasks(context.Background()))
	require.NoError(t, f.sync.LoadMembers(context.Background()))

	assert.Zero(t, f.srv.Calls(tasksRoute))
	assert.Zero(t, f.srv.Calls(membersRoute))
	assert.Empty(t, f.rec.last().Tasks)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	first := f.srv.AddFamily("Smiths", "ABC", alice)
	second := f.srv.AddFamily("Joneses", "DEF", alice)
	f.srv.AddTask(first, model.Task{Title: "Old family task"})
	f.srv.AddTask(second, model.Task{Title: "New family task"})
	f.login(t, "alice@example.com")
	f.srv.ResetCalls()

	release := f.srv.Hold(tasksRoute)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sync.SelectFamily(context.Background(), first)
	}()
	require.Eventually(t, func() bool { return f.srv.Calls(tasksRoute) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.sync.SelectFamily(context.Background(), second))
	release()
	<-done

	st := f.sync.Snapshot()
	require.True(t, st.FamilySelected())
	assert.Equal(t, second, st.Family.ID)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "New family task", st.Tasks[0].Title)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, st, f.rec.last())
}

func TestCreateTaskRefetchesTasksAndMembers(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	f.login(t, "alice@example.com")
	f.srv.ResetCalls()

	err := f.sync.CreateTask(context.Background(), model.TaskInput{Title: "  Laundry ", AssignedTo: &alice})
	require.NoError(t, err)

	assert.Equal(t, 1, f.srv.Calls(tasksRoute))
	assert.Equal(t, 1, f.srv.Calls(membersRoute))

	st := f.sync.Snapshot()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Laundry", st.Tasks[0].Title)
	assert.Equal(t, model.DefaultDifficulty, st.Tasks[0].Difficulty)
	assert.Equal(t, 1, st.Members[0].ActiveTasks)
	assert.Contains(t, f.rec.messages(), "Task added successfully!")
}

func TestCreateTaskRequiresTitleAndFamily(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.login(t, "alice@example.com")

	err := f.sync.CreateTask(context.Background(), model.TaskInput{Title: "Dishes"})
	assert.ErrorIs(t, err, ErrNoFamily)

	f.srv.AddFamily("Smiths", "ABC", alice)
	require.NoError(t, f.sync.LoadFamilies(context.Background()))
	f.srv.ResetCalls()

	err = f.sync.CreateTask(context.Background(), model.TaskInput{Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)
	assert.Zero(t, f.srv.Calls("POST /api/family/{id}/tasks"))
}

func TestCreateTaskFromTemplate(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.SetTemplates(model.TaskTemplate{ID: 7, Category: "Yard", Name: "Mow lawn", Difficulty: 4, EstimatedDays: 2})
	f.login(t, "alice@example.com")

	require.NoError(t, f.sync.CreateTaskFromTemplate(context.Background(), 7, nil))
	st := f.sync.Snapshot()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Mow lawn", st.Tasks[0].Title)
	assert.Equal(t, 4, st.Tasks[0].Difficulty)
	assert.Equal(t, 2, st.Tasks[0].EstimatedDays)

	assert.ErrorIs(t, f.sync.CreateTaskFromTemplate(context.Background(), 99, nil), ErrUnknownTemplate)
}

func TestAssignAndCompleteTask(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	task := f.srv.AddTask(fam, model.Task{Title: "Dishes", Difficulty: 2})
	f.login(t, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, f.sync.AssignTask(ctx, task, &alice))
	st := f.sync.Snapshot()
	require.NotNil(t, st.Tasks[0].AssignedTo)
	assert.Equal(t, alice, *st.Tasks[0].AssignedTo)
	assert.Equal(t, 1, st.Members[0].ActiveTasks)

	f.srv.ResetCalls()
	require.NoError(t, f.sync.CompleteTask(ctx, task))
	st = f.sync.Snapshot()
	assert.True(t, st.Tasks[0].IsCompleted)
	assert.Equal(t, 1, st.Members[0].CompletedTasks)
	assert.Equal(t, 1, f.srv.Calls(tasksRoute))
	assert.Equal(t, 1, f.srv.Calls(membersRoute))
}

func TestCompleteUnassignedTaskSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	task := f.srv.AddTask(fam, model.Task{Title: "Dishes"})
	f.login(t, "alice@example.com")
	f.srv.ResetCalls()

	require.Error(t, f.sync.CompleteTask(context.Background(), task))
	assert.Contains(t, f.rec.messages(), "Task not found or not assigned to you")
	assert.Zero(t, f.srv.Calls(tasksRoute))
	assert.True(t, f.sync.Snapshot().FamilySelected())
}

func TestAssignServerErrorShowsFallback(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	task := f.srv.AddTask(fam, model.Task{Title: "Dishes"})
	f.login(t, "alice@example.com")

	f.srv.Fail("PUT /api/tasks/{id}/assign", http.StatusInternalServerError, "")
	require.Error(t, f.sync.AssignTask(context.Background(), task, &alice))
	assert.Contains(t, f.rec.messages(), "Failed to assign task")
	assert.NotContains(t, f.rec.messages(), "Internal Server Error")
	assert.True(t, f.sync.Snapshot().LoggedIn())
}

func TestRandomAssign(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	bob := f.srv.AddUser("Bob", "bob@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice, bob)
	f.srv.AddTask(fam, model.Task{Title: "Dishes", Difficulty: 2})
	f.srv.AddTask(fam, model.Task{Title: "Laundry", Difficulty: 4})
	f.login(t, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, f.sync.RandomAssign(ctx))
	for _, task := range f.sync.Snapshot().Tasks {
		assert.NotNil(t, task.AssignedTo, task.Title)
	}
	assert.Contains(t, f.rec.messages(), "Randomly assigned 2 tasks!")

	require.NoError(t, f.sync.RandomAssign(ctx))
	assert.Contains(t, f.rec.messages(), "No unassigned tasks found")
}

func TestCreateFamilyShowsInviteUntilAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.login(t, "alice@example.com")
	ctx := context.Background()

	assert.ErrorIs(t, f.sync.CreateFamily(ctx, " "), ErrNameRequired)

	require.NoError(t, f.sync.CreateFamily(ctx, "Smiths"))
	st := f.sync.Snapshot()
	assert.NotEmpty(t, st.InviteCode)
	assert.Equal(t, "Smiths", st.InviteFamily)
	assert.False(t, st.FamilySelected())

	require.NoError(t, f.sync.AcknowledgeInvite(ctx))
	st = f.sync.Snapshot()
	assert.Empty(t, st.InviteCode)
	assert.Empty(t, st.InviteFamily)
	require.True(t, st.FamilySelected())
	assert.Equal(t, "Smiths", st.Family.Name)
}

func TestJoinFamily(t *testing.T) {
	f := newFixture(t)
	bob := f.srv.AddUser("Bob", "bob@example.com", "pw")
	f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "JOINME", bob)
	f.login(t, "alice@example.com")
	ctx := context.Background()

	assert.ErrorIs(t, f.sync.JoinFamily(ctx, ""), ErrCodeRequired)

	require.Error(t, f.sync.JoinFamily(ctx, "WRONG"))
	assert.Contains(t, f.rec.messages(), "Invalid invite code")

	require.NoError(t, f.sync.JoinFamily(ctx, " joinme "))
	st := f.sync.Snapshot()
	require.True(t, st.FamilySelected())
	assert.Equal(t, fam, st.Family.ID)
	assert.Len(t, st.Members, 2)
}

func TestLogoutClearsState(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	f.login(t, "alice@example.com")
	before := f.sync.Snapshot().Generation

	require.NoError(t, f.sync.Logout(context.Background()))

	st := f.sync.Snapshot()
	assert.False(t, st.LoggedIn())
	assert.False(t, st.FamilySelected())
	assert.Greater(t, st.Generation, before)
}

func TestExpiredUpstreamSessionSignsOut(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	f.login(t, "alice@example.com")

	f.srv.Fail("POST /api/family/{id}/random-assign", http.StatusUnauthorized, "Authentication required")
	require.Error(t, f.sync.RandomAssign(context.Background()))

	assert.False(t, f.sync.Snapshot().LoggedIn())
	assert.Contains(t, f.rec.messages(), "Your session has expired. Please log in again.")
}

func TestResumeReselectsStoredFamily(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	f.srv.AddFamily("Smiths", "ABC", alice)
	second := f.srv.AddFamily("Joneses", "DEF", alice)

	// Establish the upstream cookie, then start over from a blank state.
	f.login(t, "alice@example.com")
	f.sync.commit(context.Background(), State.loggedOut)

	require.NoError(t, f.sync.Resume(context.Background(), model.User{ID: alice, Name: "Alice"}, second))
	st := f.sync.Snapshot()
	require.True(t, st.FamilySelected())
	assert.Equal(t, second, st.Family.ID)
	assert.Equal(t, "Joneses", st.Family.Name)
}

func TestRenderReceivesLatestSnapshot(t *testing.T) {
	f := newFixture(t)
	alice := f.srv.AddUser("Alice", "alice@example.com", "pw")
	fam := f.srv.AddFamily("Smiths", "ABC", alice)
	f.srv.AddTask(fam, model.Task{Title: "Dishes"})
	f.login(t, "alice@example.com")

	require.NoError(t, f.sync.LoadTasks(context.Background()))
	first := f.rec.last()
	require.NoError(t, f.sync.LoadTasks(context.Background()))
	assert.Equal(t, first.Tasks, f.rec.last().Tasks)
	assert.Equal(t, f.sync.Snapshot(), f.rec.last())
}
