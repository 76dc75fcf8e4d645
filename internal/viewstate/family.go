package viewstate

import (
	"context"
	"strings"

	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
)

// LoadFamilies fetches the user's families. With none, family content is
// hidden; with exactly one it is selected and loaded; with several the
// selection is left empty until the user picks one.
func (s *Synchronizer) LoadFamilies(ctx context.Context) error {
	if !s.Snapshot().LoggedIn() {
		return ErrNotLoggedIn
	}

	families, err := s.api.Families(ctx)
	if err != nil {
		s.reportFailure(ctx, "Failed to load families", err)
		return err
	}
	s.commit(ctx, func(st State) State { st.Families = families; return st })
	return s.autoSelect(ctx, families)
}

func (s *Synchronizer) autoSelect(ctx context.Context, families []model.Family) error {
	if len(families) == 1 {
		return s.SelectFamily(ctx, families[0].ID)
	}
	return s.SelectFamily(ctx, 0)
}

// CreateFamily creates a family and shows its invite code until the user
// acknowledges it.
func (s *Synchronizer) CreateFamily(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		s.notify(notify.LevelError, "Please enter a family name")
		return ErrNameRequired
	}

	created, err := s.api.CreateFamily(ctx, name)
	if err != nil {
		s.reportFailure(ctx, "Failed to create family", err)
		return err
	}

	s.commit(ctx, func(st State) State {
		st.InviteCode = created.InviteCode
		st.InviteFamily = name
		return st
	})
	return nil
}

// AcknowledgeInvite dismisses the invite-code confirmation and reloads the
// family list.
func (s *Synchronizer) AcknowledgeInvite(ctx context.Context) error {
	s.commit(ctx, func(st State) State { st.InviteCode, st.InviteFamily = "", ""; return st })
	return s.LoadFamilies(ctx)
}

// JoinFamily joins the family owning inviteCode and reloads the family list.
func (s *Synchronizer) JoinFamily(ctx context.Context, inviteCode string) error {
	// Codes are issued uppercase and matched exactly.
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		s.notify(notify.LevelError, "Please enter an invite code")
		return ErrCodeRequired
	}

	if _, err := s.api.JoinFamily(ctx, inviteCode); err != nil {
		s.reportFailure(ctx, "Failed to join family", err)
		return err
	}

	s.notify(notify.LevelSuccess, "Successfully joined family!")
	return s.LoadFamilies(ctx)
}
