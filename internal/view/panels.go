package view

import (
	"time"

	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/viewstate"
)

const (
	NoTasksMessage     = "No tasks yet. Add your first task!"
	NoMembersMessage   = "Select or join a family to see members"
	NoTemplatesMessage = "No task templates available"

	AssignLaterLabel = "Assign later"
	ChooseTaskLabel  = "Choose a task..."
	SelectFamily     = "Select Family"
)

// Option is one <option> of a select.
type Option struct {
	Value    int64
	Label    string
	Selected bool
}

// TaskItem is one row of the task list.
type TaskItem struct {
	ID          int64
	Title       string
	Description string
	Stars       string
	DueLabel    string
	Status      Status
	Added       string
	Completed   bool
	// CompletedBy is shown instead of the assignment controls once done.
	CompletedBy string
	CanComplete bool
	Assignees   []Option
}

// TaskList holds the active and completed sections, or a placeholder when
// there are no tasks.
type TaskList struct {
	Empty     bool
	Message   string
	Active    []TaskItem
	Completed []TaskItem
}

type MemberCard struct {
	ID        int64
	Name      string
	Active    int
	Completed int
}

// Roster is the member cards, or a placeholder when no family is loaded.
type Roster struct {
	Empty   bool
	Message string
	Members []MemberCard
}

type AssignOptions struct {
	Default string
	Options []Option
}

type TemplateGroup struct {
	Category string
	Options  []Option
}

// TemplatePicker is the grouped template dropdown.
type TemplatePicker struct {
	Empty   bool
	Message string
	Prompt  string
	Groups  []TemplateGroup
}

// FamilyBar is the family dropdown plus the pending invite confirmation.
type FamilyBar struct {
	Prompt       string
	Options      []Option
	Selected     *model.Family
	InviteCode   string
	InviteFamily string
}

// Panels is everything the dashboard shows for one snapshot.
type Panels struct {
	User       *model.User
	ShowFamily bool
	Loading    bool
	Families   FamilyBar
	Roster     Roster
	Tasks      TaskList
	Assign     AssignOptions
	Templates  TemplatePicker
}

// Project builds every panel from st.
func Project(st viewstate.State, now time.Time) Panels {
	return Panels{
		User:       st.User,
		ShowFamily: st.FamilySelected(),
		Loading:    st.Phase == viewstate.PhaseLoading,
		Families:   Families(st),
		Roster:     Members(st),
		Tasks:      Tasks(st, now),
		Assign:     Assignees(st),
		Templates:  Templates(st),
	}
}

func Families(st viewstate.State) FamilyBar {
	bar := FamilyBar{Prompt: SelectFamily, Selected: st.Family, InviteCode: st.InviteCode, InviteFamily: st.InviteFamily}
	for _, f := range st.Families {
		bar.Options = append(bar.Options, Option{
			Value:    f.ID,
			Label:    f.Name,
			Selected: st.Family != nil && st.Family.ID == f.ID,
		})
	}
	return bar
}

// Tasks splits the task list into active and completed sections, keeping the
// API's order within each.
func Tasks(st viewstate.State, now time.Time) TaskList {
	if len(st.Tasks) == 0 {
		return TaskList{Empty: true, Message: NoTasksMessage}
	}

	var list TaskList
	for _, t := range st.Tasks {
		item := taskItem(st, t, now)
		if t.IsCompleted {
			list.Completed = append(list.Completed, item)
		} else {
			list.Active = append(list.Active, item)
		}
	}
	return list
}

func taskItem(st viewstate.State, t model.Task, now time.Time) TaskItem {
	status, days := ComputeStatus(t, now)
	item := TaskItem{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Stars:       Stars(t.Difficulty),
		DueLabel:    DueLabel(days),
		Status:      status,
		Completed:   t.IsCompleted,
	}
	if !t.CreatedAt.IsZero() {
		item.Added = t.CreatedAt.Format("Jan 2, 2006")
	}

	if t.IsCompleted {
		item.CompletedBy = t.AssignedToName
		if item.CompletedBy == "" {
			item.CompletedBy = "Unknown"
		}
		return item
	}

	item.CanComplete = st.User != nil && t.AssignedTo != nil && *t.AssignedTo == st.User.ID
	for _, m := range st.Members {
		item.Assignees = append(item.Assignees, Option{
			Value:    m.ID,
			Label:    m.Name,
			Selected: t.AssignedTo != nil && *t.AssignedTo == m.ID,
		})
	}
	return item
}

func Members(st viewstate.State) Roster {
	if len(st.Members) == 0 {
		return Roster{Empty: true, Message: NoMembersMessage}
	}
	r := Roster{Members: make([]MemberCard, 0, len(st.Members))}
	for _, m := range st.Members {
		r.Members = append(r.Members, MemberCard{ID: m.ID, Name: m.Name, Active: m.ActiveTasks, Completed: m.CompletedTasks})
	}
	return r
}

// Assignees builds the "assign to" dropdown of the new-task form.
func Assignees(st viewstate.State) AssignOptions {
	a := AssignOptions{Default: AssignLaterLabel}
	for _, m := range st.Members {
		a.Options = append(a.Options, Option{Value: m.ID, Label: m.Name})
	}
	return a
}

// Templates groups consecutive templates by category, in API order.
func Templates(st viewstate.State) TemplatePicker {
	if len(st.Templates) == 0 {
		return TemplatePicker{Empty: true, Message: NoTemplatesMessage, Prompt: ChooseTaskLabel}
	}
	p := TemplatePicker{Prompt: ChooseTaskLabel}
	for _, t := range st.Templates {
		if n := len(p.Groups); n == 0 || p.Groups[n-1].Category != t.Category {
			p.Groups = append(p.Groups, TemplateGroup{Category: t.Category})
		}
		g := &p.Groups[len(p.Groups)-1]
		g.Options = append(g.Options, Option{Value: t.ID, Label: t.Name + " " + Stars(t.Difficulty)})
	}
	return p
}
