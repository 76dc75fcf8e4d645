package viewstate

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
)

// CreateTask adds a task to the selected family, then re-syncs.
func (s *Synchronizer) CreateTask(ctx context.Context, in model.TaskInput) error {
	f, _, err := s.current()
	if err != nil {
		s.notify(notify.LevelError, "Please select a family first")
		return err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		s.notify(notify.LevelError, "Please enter a task title")
		return ErrTitleRequired
	}

	if _, err := s.api.CreateTask(ctx, f.ID, in.Normalize()); err != nil {
		s.reportFailure(ctx, "Failed to add task", err)
		return err
	}

	s.notify(notify.LevelSuccess, "Task added successfully!")
	s.refresh(ctx)
	return nil
}

// CreateTaskFromTemplate creates a task prefilled from a cached template.
func (s *Synchronizer) CreateTaskFromTemplate(ctx context.Context, templateID int64, assignedTo *int64) error {
	tpl, ok := s.Snapshot().findTemplate(templateID)
	if !ok {
		s.notify(notify.LevelError, "Please choose a task template")
		return ErrUnknownTemplate
	}
	in := tpl.Input()
	in.AssignedTo = assignedTo
	return s.CreateTask(ctx, in)
}

// AssignTask assigns a task to memberID, or unassigns it when memberID is nil.
func (s *Synchronizer) AssignTask(ctx context.Context, taskID int64, memberID *int64) error {
	if err := s.api.AssignTask(ctx, taskID, memberID); err != nil {
		s.reportFailure(ctx, "Failed to assign task", err)
		return err
	}

	s.notify(notify.LevelSuccess, "Task assigned successfully!")
	s.refresh(ctx)
	return nil
}

// CompleteTask marks a task as done, then re-syncs.
func (s *Synchronizer) CompleteTask(ctx context.Context, taskID int64) error {
	if err := s.api.CompleteTask(ctx, taskID); err != nil {
		s.reportFailure(ctx, "Failed to complete task", err)
		return err
	}

	s.notify(notify.LevelSuccess, "Task completed! Great job! 🎉")
	s.refresh(ctx)
	return nil
}

// RandomAssign distributes the selected family's unassigned tasks, then re-syncs.
func (s *Synchronizer) RandomAssign(ctx context.Context) error {
	f, _, err := s.current()
	if err != nil {
		s.notify(notify.LevelError, "Please select a family first")
		return err
	}

	res, err := s.api.RandomAssign(ctx, f.ID)
	if err != nil {
		s.reportFailure(ctx, "Failed to assign tasks randomly", err)
		return err
	}

	switch {
	case res.AssignedTasks > 0:
		s.notify(notify.LevelSuccess, fmt.Sprintf("Randomly assigned %d tasks!", res.AssignedTasks))
	case res.Message != "":
		s.notify(notify.LevelInfo, res.Message)
	}
	s.refresh(ctx)
	return nil
}
