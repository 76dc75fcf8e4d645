package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/familytask/internal/api/apitest"
	"github.com/dukerupert/familytask/internal/model"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "/api"})
	require.Error(t, err)
}

func TestLoginStoresSessionCookie(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddUser("Alice", "alice@example.com", "secret")
	c := newTestClient(t, srv.URL)

	user, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Alice", user.Name)
	require.Len(t, c.Cookies(), 1)

	families, err := c.Families(context.Background())
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Alice", "alice@example.com", "secret")
	c := newTestClient(t, srv.URL)

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "Invalid credentials", Message(err, "fallback"))
}

func TestRegisterThenCreateAndJoinFamily(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()

	owner := newTestClient(t, srv.URL)
	_, err := owner.Register(ctx, "Alice", "alice@example.com", "secret")
	require.NoError(t, err)

	created, err := owner.CreateFamily(ctx, "Smiths")
	require.NoError(t, err)
	require.NotEmpty(t, created.InviteCode)

	joiner := newTestClient(t, srv.URL)
	_, err = joiner.Register(ctx, "Bob", "bob@example.com", "secret")
	require.NoError(t, err)

	familyID, err := joiner.JoinFamily(ctx, created.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, created.FamilyID, familyID)

	_, err = joiner.JoinFamily(ctx, created.InviteCode)
	require.Error(t, err)
	assert.Equal(t, "Already member of this family", Message(err, ""))

	members, err := owner.Members(ctx, familyID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestTasksForbidden(t *testing.T) {
	srv := apitest.New(t)
	uid := srv.AddUser("Alice", "alice@example.com", "secret")
	other := srv.AddUser("Eve", "eve@example.com", "secret")
	familyID := srv.AddFamily("Smiths", "ABCD1234", other)
	_ = uid

	c := newTestClient(t, srv.URL)
	_, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	_, err = c.Tasks(context.Background(), familyID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = c.Members(context.Background(), familyID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestTaskLifecycle(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	uid := srv.AddUser("Alice", "alice@example.com", "secret")
	familyID := srv.AddFamily("Smiths", "ABCD1234", uid)

	c := newTestClient(t, srv.URL)
	_, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	taskID, err := c.CreateTask(ctx, familyID, model.TaskInput{Title: "Dishes", Difficulty: 2, EstimatedDays: 1})
	require.NoError(t, err)

	require.NoError(t, c.AssignTask(ctx, taskID, &uid))
	require.NoError(t, c.CompleteTask(ctx, taskID))

	tasks, err := c.Tasks(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsCompleted)
	assert.Equal(t, "Alice", tasks[0].AssignedToName)

	require.NoError(t, c.AssignTask(ctx, taskID, nil))
	task, _ := srv.Task(taskID)
	assert.Nil(t, task.AssignedTo)
}

func TestCompleteUnassignedTaskRejected(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	uid := srv.AddUser("Alice", "alice@example.com", "secret")
	familyID := srv.AddFamily("Smiths", "ABCD1234", uid)
	taskID := srv.AddTask(familyID, model.Task{Title: "Laundry", Difficulty: 3})

	c := newTestClient(t, srv.URL)
	_, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	err = c.CompleteTask(ctx, taskID)
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.Equal(t, "Task not found or not assigned to you", Message(err, ""))
}

func TestRandomAssign(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	alice := srv.AddUser("Alice", "alice@example.com", "secret")
	bob := srv.AddUser("Bob", "bob@example.com", "secret")
	familyID := srv.AddFamily("Smiths", "ABCD1234", alice, bob)

	c := newTestClient(t, srv.URL)
	_, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	res, err := c.RandomAssign(ctx, familyID)
	require.NoError(t, err)
	assert.Zero(t, res.AssignedTasks)
	assert.Equal(t, "No unassigned tasks found", res.Message)

	srv.AddTask(familyID, model.Task{Title: "Garage", Difficulty: 5})
	srv.AddTask(familyID, model.Task{Title: "Dishes", Difficulty: 2})
	srv.AddTask(familyID, model.Task{Title: "Trash", Difficulty: 1})

	res, err = c.RandomAssign(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.AssignedTasks)

	members, err := c.Members(ctx, familyID)
	require.NoError(t, err)
	total := 0
	for _, m := range members {
		total += m.ActiveTasks
	}
	assert.Equal(t, 3, total)
}

func TestErrorPayloadWithSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"Family name is required"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.CreateFamily(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "Family name is required", Message(err, ""))
}

func TestErrorStatusWithoutPayload(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		w.Write([]byte("<html><body>Internal Server Error</body></html>"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.AssignTask(context.Background(), 1, nil)
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Equal(t, "Failed to assign task", Message(err, "Failed to assign task"))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)

	status = http.StatusForbidden
	_, err = c.Tasks(context.Background(), 1)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "Failed to load tasks", Message(err, "Failed to load tasks"))

	status = http.StatusUnauthorized
	_, err = c.Families(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.Families(context.Background())
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Equal(t, "Loading families failed", Message(err, "Loading families failed"))
}

func TestLogoutClearsCookies(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Alice", "alice@example.com", "secret")
	c := newTestClient(t, srv.URL)

	_, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.Cookies())

	_, err = c.Families(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestRestoreCookies(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Alice", "alice@example.com", "secret")
	first := newTestClient(t, srv.URL)
	_, err := first.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	second := newTestClient(t, srv.URL)
	second.SetCookies(first.Cookies())

	_, err = second.Families(context.Background())
	require.NoError(t, err)
}
