package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/familytask/internal/model"
)

// Families lists the families the signed-in user belongs to.
func (c *Client) Families(ctx context.Context) ([]model.Family, error) {
	var families []model.Family
	if err := c.do(ctx, http.MethodGet, "/api/families", nil, &families); err != nil {
		return nil, err
	}
	return families, nil
}

// CreatedFamily is the result of creating a family.
type CreatedFamily struct {
	FamilyID   int64  `json:"family_id"`
	InviteCode string `json:"invite_code"`
}

// CreateFamily creates a family with the caller as its first member.
func (c *Client) CreateFamily(ctx context.Context, name string) (*CreatedFamily, error) {
	var resp CreatedFamily
	in := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/create-family", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinFamily adds the caller to the family owning inviteCode and returns its ID.
func (c *Client) JoinFamily(ctx context.Context, inviteCode string) (int64, error) {
	var resp struct {
		FamilyID int64 `json:"family_id"`
	}
	in := map[string]string{"invite_code": inviteCode}
	if err := c.do(ctx, http.MethodPost, "/api/join-family", in, &resp); err != nil {
		return 0, err
	}
	return resp.FamilyID, nil
}

// Members lists a family's members with their task counts. It returns an
// error matching ErrForbidden when the caller is not a member.
func (c *Client) Members(ctx context.Context, familyID int64) ([]model.Member, error) {
	var members []model.Member
	path := fmt.Sprintf("/api/family/%d/members", familyID)
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// TaskTemplates returns the predefined task catalog.
func (c *Client) TaskTemplates(ctx context.Context) ([]model.TaskTemplate, error) {
	var templates []model.TaskTemplate
	if err := c.do(ctx, http.MethodGet, "/api/task-templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}
