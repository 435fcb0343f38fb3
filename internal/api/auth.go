package api

import (
	"context"
	"errors"
	"net/http"

	"agendaaberta/internal/model"
)

// Credentials is the /login/ body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the /register/ body. The validate tags are enforced by
// package validate before submission.
type Registration struct {
	Username  string         `json:"username" validate:"required,nospace"`
	FirstName string         `json:"first_name" validate:"notblank"`
	LastName  string         `json:"last_name" validate:"notblank"`
	Email     string         `json:"email" validate:"required,email,institutional"`
	Password  string         `json:"password" validate:"required"`
	Kind      model.UserKind `json:"tipo" validate:"oneof=aluno professor monitor"`
}

// Me fetches the authenticated profile.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/users/me/", nil, nil, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Login exchanges credentials for an access/refresh pair.
func (c *Client) Login(ctx context.Context, creds Credentials) (model.Tokens, error) {
	var tokens model.Tokens
	if err := c.do(ctx, http.MethodPost, "/login/", nil, creds, &tokens); err != nil {
		return model.Tokens{}, err
	}
	if tokens.Access == "" {
		return model.Tokens{}, errors.New("POST /login/: response carried no access token")
	}
	return tokens, nil
}

// Register creates an account. The server echoes the created user.
func (c *Client) Register(ctx context.Context, reg Registration) (model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPost, "/register/", nil, reg, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// DeleteAccount removes the authenticated user.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/delete-user/", nil, nil, nil)
}
