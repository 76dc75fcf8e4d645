// Package view projects synchronizer state into the values templates render.
// Everything here is pure: the same state and clock always produce the same
// output.
package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dukerupert/familytask/internal/model"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusDueToday  Status = "due_today"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
)

// DaysLeft returns the whole days between now and createdAt+estimatedDays,
// rounded up. Zero means due today; negative means overdue.
func DaysLeft(createdAt time.Time, estimatedDays int, now time.Time) int {
	due := createdAt.AddDate(0, 0, estimatedDays)
	days := math.Ceil(due.Sub(now).Hours() / 24)
	if days == 0 {
		// Ceil of a small negative fraction is -0.
		return 0
	}
	return int(days)
}

// DueLabel formats a DaysLeft result.
func DueLabel(daysLeft int) string {
	switch {
	case daysLeft == 0:
		return "Due today"
	case daysLeft == 1:
		return "1 day left"
	case daysLeft > 1:
		return fmt.Sprintf("%d days left", daysLeft)
	case daysLeft == -1:
		return "1 day overdue"
	default:
		return fmt.Sprintf("%d days overdue", -daysLeft)
	}
}

// ComputeStatus classifies a task for styling.
func ComputeStatus(task model.Task, now time.Time) (Status, int) {
	days := DaysLeft(task.CreatedAt.Time, task.EstimatedDays, now)
	switch {
	case task.IsCompleted:
		return StatusCompleted, days
	case days < 0:
		return StatusOverdue, days
	case days == 0:
		return StatusDueToday, days
	default:
		return StatusOpen, days
	}
}

// Stars renders a difficulty as filled and empty stars, e.g. "★★★☆☆".
func Stars(difficulty int) string {
	difficulty = min(max(difficulty, model.MinDifficulty), model.MaxDifficulty)
	return strings.Repeat("★", difficulty) + strings.Repeat("☆", model.MaxDifficulty-difficulty)
}
