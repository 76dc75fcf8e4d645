package api

import (
	"context"
	"net/http"

	"github.com/dukerupert/familytask/internal/model"
)

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
}

// Login signs in and stores the upstream session cookie in the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &model.User{ID: resp.UserID, Name: resp.Name}, nil
}

// Register creates an account; the API signs the new user in immediately.
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	var resp authResponse
	in := credentials{Name: name, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/register", in, &resp); err != nil {
		return nil, err
	}
	return &model.User{ID: resp.UserID, Name: resp.Name}, nil
}

// Logout ends the upstream session. The local cookie jar is cleared even if
// the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearCookies()
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}
