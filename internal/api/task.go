package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/familytask/internal/model"
)

// Tasks lists a family's tasks, open tasks first and newest first. It returns
// an error matching ErrForbidden when the caller is not a member.
func (c *Client) Tasks(ctx context.Context, familyID int64) ([]model.Task, error) {
	var tasks []model.Task
	path := fmt.Sprintf("/api/family/%d/tasks", familyID)
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a task to a family and returns the new task's ID.
func (c *Client) CreateTask(ctx context.Context, familyID int64, in model.TaskInput) (int64, error) {
	var resp struct {
		TaskID int64 `json:"task_id"`
	}
	path := fmt.Sprintf("/api/family/%d/tasks", familyID)
	if err := c.do(ctx, http.MethodPost, path, in, &resp); err != nil {
		return 0, err
	}
	return resp.TaskID, nil
}

// AssignTask assigns a task to a member; a nil memberID unassigns it.
func (c *Client) AssignTask(ctx context.Context, taskID int64, memberID *int64) error {
	in := struct {
		AssignedTo *int64 `json:"assigned_to"`
	}{AssignedTo: memberID}
	path := fmt.Sprintf("/api/tasks/%d/assign", taskID)
	return c.do(ctx, http.MethodPut, path, in, nil)
}

// CompleteTask marks a task assigned to the caller as completed.
func (c *Client) CompleteTask(ctx context.Context, taskID int64) error {
	path := fmt.Sprintf("/api/tasks/%d/complete", taskID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// RandomAssignResult reports how many tasks the server distributed. When
// nothing was assigned Message holds the server's explanation.
type RandomAssignResult struct {
	AssignedTasks int    `json:"assigned_tasks"`
	Message       string `json:"message"`
}

// RandomAssign distributes a family's unassigned open tasks across members.
func (c *Client) RandomAssign(ctx context.Context, familyID int64) (*RandomAssignResult, error) {
	var resp RandomAssignResult
	path := fmt.Sprintf("/api/family/%d/random-assign", familyID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
