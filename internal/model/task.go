package model

const (
	MinDifficulty = 1
	MaxDifficulty = 5

	DefaultDifficulty    = 3
	DefaultEstimatedDays = 1
)

type Task struct {
	ID             int64      `json:"id"`
	FamilyID       int64      `json:"family_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Difficulty     int        `json:"difficulty"`
	EstimatedDays  int        `json:"estimated_days"`
	CreatedAt      Timestamp  `json:"created_at"`
	DueDate        *Timestamp `json:"due_date,omitempty"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedAt    *Timestamp `json:"completed_at,omitempty"`
	AssignedTo     *int64     `json:"assigned_to"`
	AssignedToName string     `json:"assigned_to_name,omitempty"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	CreatedByName  string     `json:"created_by_name,omitempty"`
}

// TaskInput is the body of a task creation request.
type TaskInput struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Difficulty    int    `json:"difficulty"`
	EstimatedDays int    `json:"estimated_days"`
	AssignedTo    *int64 `json:"assigned_to"`
}

// Normalize applies creation defaults and clamps difficulty into range.
func (in TaskInput) Normalize() TaskInput {
	if in.Difficulty == 0 {
		in.Difficulty = DefaultDifficulty
	}
	if in.Difficulty < MinDifficulty {
		in.Difficulty = MinDifficulty
	}
	if in.Difficulty > MaxDifficulty {
		in.Difficulty = MaxDifficulty
	}
	if in.EstimatedDays < 0 {
		in.EstimatedDays = DefaultEstimatedDays
	}
	return in
}

type TaskTemplate struct {
	ID            int64  `json:"id"`
	Category      string `json:"category"`
	Name          string `json:"name"`
	Difficulty    int    `json:"difficulty"`
	EstimatedDays int    `json:"estimated_days"`
}

// Input prefills a new task from the template.
func (t TaskTemplate) Input() TaskInput {
	return TaskInput{
		Title:         t.Name,
		Difficulty:    t.Difficulty,
		EstimatedDays: t.EstimatedDays,
	}
}
