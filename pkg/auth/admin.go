package auth

import (
	"context"
	"net/http"
	"net/url"
)

// AdminLogin signs in an administrator. Unlike Login, a non-200 envelope is
// returned as an *APIError.
func (c *Client) AdminLogin(ctx context.Context, account, password string) (*Response, error) {
	resp, err := c.Request(ctx, "/auth/admin/login", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"account": account, "password": password},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = "login failed"
		}
		return resp, &APIError{Code: resp.Code, Message: msg}
	}
	c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken)
	c.storeUser(resp)
	return resp, nil
}

func (c *Client) storeUser(resp *Response) {
	if !resp.HasData() {
		return
	}
	var u map[string]interface{}
	if err := resp.DecodeData(&u); err == nil {
		_ = c.tokens.SetUser(u)
	}
}

func (c *Client) Statistics(ctx context.Context) (*Response, error) {
	return c.Request(ctx, "/admin/statistics", RequestOptions{Method: http.MethodGet})
}

// ListUsers lists users with optional filters such as page, size, keyword
// and status.
func (c *Client) ListUsers(ctx context.Context, params url.Values) (*Response, error) {
	path := "/admin/users"
	if qs := params.Encode(); qs != "" {
		path += "?" + qs
	}
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet})
}

func (c *Client) GetUser(ctx context.Context, id string) (*Response, error) {
	return c.Request(ctx, "/admin/users/"+url.PathEscape(id), RequestOptions{Method: http.MethodGet})
}

func (c *Client) CreateUser(ctx context.Context, user map[string]interface{}) (*Response, error) {
	return c.Request(ctx, "/admin/users", RequestOptions{Method: http.MethodPost, Body: user})
}

func (c *Client) UpdateUser(ctx context.Context, id string, user map[string]interface{}) (*Response, error) {
	return c.Request(ctx, "/admin/users/"+url.PathEscape(id), RequestOptions{Method: http.MethodPut, Body: user})
}

func (c *Client) DeleteUser(ctx context.Context, id string) (*Response, error) {
	return c.Request(ctx, "/admin/users/"+url.PathEscape(id), RequestOptions{Method: http.MethodDelete})
}

// User status values accepted by UpdateUserStatus.
const (
	UserDisabled = 0
	UserEnabled  = 1
)

func (c *Client) UpdateUserStatus(ctx context.Context, id string, status int) (*Response, error) {
	return c.Request(ctx, "/admin/users/"+url.PathEscape(id)+"/status", RequestOptions{
		Method: http.MethodPatch,
		Body:   map[string]int{"status": status},
	})
}

// SendAdminResetPasswordCode only supports email delivery.
func (c *Client) SendAdminResetPasswordCode(ctx context.Context, email string) (*Response, error) {
	if !c.allowCode("admin-reset-code") {
		return nil, ErrCooldown
	}
	return c.Request(ctx, "/auth/admin/forgot-password/send-code", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"email": email},
	})
}

func (c *Client) ResetAdminPassword(ctx context.Context, email, code, newPassword string) (*Response, error) {
	return c.Request(ctx, "/auth/admin/forgot-password/reset", RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"email":       email,
			"code":        code,
			"newPassword": newPassword,
		},
	})
}
