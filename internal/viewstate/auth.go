package viewstate

import (
	"context"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/model"
	"github.com/dukerupert/familytask/internal/notify"
)

// Login signs in and loads the user's families.
func (s *Synchronizer) Login(ctx context.Context, email, password string) error {
	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Info("login rejected", "error", err)
		s.notify(notify.LevelError, api.Message(err, "Login failed. Please try again."))
		return err
	}
	s.signedIn(ctx, user)
	return s.LoadFamilies(ctx)
}

// Register creates an account, signs in and loads the (empty) family list.
func (s *Synchronizer) Register(ctx context.Context, name, email, password string) error {
	user, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		s.logger.Info("registration rejected", "error", err)
		s.notify(notify.LevelError, api.Message(err, "Registration failed. Please try again."))
		return err
	}
	s.signedIn(ctx, user)
	s.notify(notify.LevelSuccess, "Welcome, "+user.Name+"!")
	return s.LoadFamilies(ctx)
}

// Logout ends the upstream session and clears all state. Local state is
// cleared even if the API call fails.
func (s *Synchronizer) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		s.logger.Warn("logout failed", "error", err)
	}
	s.commit(ctx, State.loggedOut)
	return err
}

// Resume restores a previously signed-in user without calling login, then
// reselects familyID when it is still in the user's family list.
func (s *Synchronizer) Resume(ctx context.Context, user model.User, familyID int64) error {
	s.signedIn(ctx, &user)

	families, err := s.api.Families(ctx)
	if err != nil {
		s.reportFailure(ctx, "Failed to load families", err)
		return err
	}
	s.commit(ctx, func(st State) State { st.Families = families; return st })

	if _, ok := s.Snapshot().findFamily(familyID); ok {
		return s.SelectFamily(ctx, familyID)
	}
	return s.autoSelect(ctx, families)
}

func (s *Synchronizer) signedIn(ctx context.Context, user *model.User) {
	s.commit(ctx, func(st State) State {
		next := st.loggedOut()
		next.User = user
		return next
	})
}
