package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vortexlabs/loginchat/pkg/logger"
)

// Crop selects the avatar region to keep. Nil fields are not sent.
type Crop struct {
	X      *int
	Y      *int
	Width  *int
	Height *int
}

func (c *Client) CurrentUser(ctx context.Context) (*Response, error) {
	return c.Request(ctx, "/user/profile", RequestOptions{Method: http.MethodGet})
}

// UpdateProfile saves profile fields and merges the returned data into the
// cached user.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]interface{}) (*Response, error) {
	resp, err := c.Request(ctx, "/user/profile", RequestOptions{Method: http.MethodPut, Body: fields})
	if err != nil {
		return nil, err
	}
	if resp.OK() && resp.HasData() {
		var updated map[string]interface{}
		if err := resp.DecodeData(&updated); err == nil {
			if err := c.tokens.MergeUser(updated); err != nil {
				logger.WarnCF("auth", "Failed to update cached user", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return resp, nil
}

// SetPassword sets a first password for accounts created through social
// login, or changes it when oldPassword or a verification code is given.
func (c *Client) SetPassword(ctx context.Context, password, oldPassword, code string) (*Response, error) {
	body := map[string]string{"password": password}
	if oldPassword != "" {
		body["oldPassword"] = oldPassword
	}
	if code != "" {
		body["code"] = code
	}
	return c.Request(ctx, "/user/set-password", RequestOptions{Method: http.MethodPost, Body: body})
}

func (c *Client) SocialAccounts(ctx context.Context) (*Response, error) {
	return c.Request(ctx, "/user/social-accounts", RequestOptions{Method: http.MethodGet})
}

func (c *Client) UnbindSocialAccount(ctx context.Context, provider string) (*Response, error) {
	return c.Request(ctx, "/user/social-accounts/"+url.PathEscape(provider), RequestOptions{Method: http.MethodDelete})
}

// UploadAvatar posts a multipart avatar upload. It bypasses Request: there
// is no JSON content type and no refresh attempt, and a 401 ends the session.
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader, crop *Crop) (*Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("avatar", filename, r)

	if crop != nil {
		form := map[string]string{}
		for name, v := range map[string]*int{"x": crop.X, "y": crop.Y, "width": crop.Width, "height": crop.Height} {
			if v != nil {
				form[name] = strconv.Itoa(*v)
			}
		}
		req.SetFormData(form)
	}

	if token := c.tokens.AccessToken(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := req.Post("/user/avatar")
	if err != nil {
		return nil, fmt.Errorf("auth: upload avatar: %w", err)
	}

	out, err := parseUploadResponse(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.tokens.Clear()
		c.redirectTo(RouteLogin)
		return nil, ErrSessionExpired
	}

	if out.OK() && out.HasData() {
		var data struct {
			Avatar string `json:"avatar"`
		}
		if err := out.DecodeData(&data); err == nil {
			if err := c.tokens.MergeUser(map[string]interface{}{"avatar": data.Avatar}); err != nil {
				logger.WarnCF("auth", "Failed to update cached avatar", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	return out, nil
}

func parseUploadResponse(status int, contentType string, body []byte) (*Response, error) {
	var out Response
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("auth: upload avatar: %w", ErrBadResponse)
		}
		out.Status = status
		return &out, nil
	}
	if err := json.Unmarshal(body, &out); err == nil {
		out.Status = status
		return &out, nil
	}
	msg := string(body)
	if msg == "" {
		msg = "upload failed"
	}
	return &Response{Code: status, Message: msg, Status: status}, nil
}
