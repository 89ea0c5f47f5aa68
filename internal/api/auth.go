package api

import (
	"context"
	"net/http"
)

// LoginResult carries the bearer token and display identity returned
// by a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Login authenticates against the backend and stores the returned
// bearer token on the client, so subsequent reservation calls are
// authenticated.  Session management beyond carrying the token is not
// this client's concern.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return LoginResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}
