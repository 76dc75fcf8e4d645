// Package viewstate keeps one user's view of the family-task API in sync.
//
// A Synchronizer owns an immutable State that is replaced wholesale on every
// transition. Mutations never patch cached collections; they re-fetch tasks
// and members from the API instead. Every transition ends with a call to the
// Renderer, which receives a snapshot and never sees later changes.
package viewstate

import "github.com/dukerupert/familytask/internal/model"

// Phase tracks the family-selection lifecycle.
type Phase int

const (
	// PhaseNoFamily means no family is selected and family panels are hidden.
	PhaseNoFamily Phase = iota
	// PhaseLoading means a family is selected and its fetches are in flight.
	PhaseLoading
	// PhaseReady means every fetch for the selected family has resolved.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "no_family"
	}
}

// State is a snapshot of everything the panels are rendered from. Slices are
// shared between snapshots and must be treated as read-only.
type State struct {
	User     *model.User
	Families []model.Family

	Family *model.Family
	Phase  Phase

	// Generation increases on every family selection or reset. Fetch results
	// started under an older generation are discarded.
	Generation uint64

	Templates []model.TaskTemplate
	Members   []model.Member
	Tasks     []model.Task

	// InviteCode is set after creating a family until the user acknowledges it.
	InviteCode string
	// InviteFamily is the name of the family InviteCode belongs to.
	InviteFamily string
}

// LoggedIn reports whether a user is signed in.
func (s State) LoggedIn() bool {
	return s.User != nil
}

// FamilySelected reports whether family-scoped panels should be shown.
func (s State) FamilySelected() bool {
	return s.Family != nil
}

// withoutFamily clears the selection and everything cached for it.
func (s State) withoutFamily() State {
	s.Family = nil
	s.Phase = PhaseNoFamily
	s.Generation++
	s.Templates = nil
	s.Members = nil
	s.Tasks = nil
	return s
}

// withFamily selects f and clears the previous family's collections.
func (s State) withFamily(f model.Family) State {
	s = s.withoutFamily()
	s.Family = &f
	s.Phase = PhaseLoading
	s.InviteCode = ""
	s.InviteFamily = ""
	return s
}

// loggedOut drops the user and all cached data, keeping the generation
// counter monotonic.
func (s State) loggedOut() State {
	return State{Generation: s.Generation + 1}
}

func (s State) findFamily(id int64) (model.Family, bool) {
	for _, f := range s.Families {
		if f.ID == id {
			return f, true
		}
	}
	return model.Family{}, false
}

func (s State) findTemplate(id int64) (model.TaskTemplate, bool) {
	for _, t := range s.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return model.TaskTemplate{}, false
}
