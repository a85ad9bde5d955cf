package auth

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/tokens"
)

// RegisterRequest is the body of POST /auth/register. Either Email or Phone
// identifies the account; VerifyCode is the code sent to it.
type RegisterRequest struct {
	Nickname   string `json:"nickname,omitempty"`
	Password   string `json:"password"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	VerifyCode string `json:"verifyCode,omitempty"`
}

// Login signs in with account and password.
func (c *Client) Login(ctx context.Context, account, password string) (*Response, error) {
	resp, err := c.Request(ctx, "/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"account": account, "password": password},
	})
	if err != nil {
		return nil, err
	}
	c.storeSession(resp)
	return resp, nil
}

// LoginWithCode signs in with account and a verification code.
func (c *Client) LoginWithCode(ctx context.Context, account, code string) (*Response, error) {
	resp, err := c.Request(ctx, "/auth/login/code", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"account": account, "code": code},
	})
	if err != nil {
		return nil, err
	}
	c.storeSession(resp)
	return resp, nil
}

// storeSession saves tokens (only when both are present) and the user
// profile from a successful login envelope.
func (c *Client) storeSession(resp *Response) {
	if !resp.OK() {
		return
	}
	if resp.AccessToken != "" && resp.RefreshToken != "" {
		c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken)
	}
	if resp.HasData() {
		var u tokens.User
		if err := resp.DecodeData(&u); err != nil {
			logger.WarnCF("auth", "Login returned unreadable user data", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := c.tokens.SetUser(u); err != nil {
			logger.WarnCF("auth", "Failed to cache user", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Logout only drops local credentials; the backend keeps no session to end.
func (c *Client) Logout() {
	c.tokens.Clear()
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	return c.Request(ctx, "/auth/register", RequestOptions{Method: http.MethodPost, Body: req})
}

// SendVerificationCode asks the backend to send a code to an email address
// or phone number.
func (c *Client) SendVerificationCode(ctx context.Context, emailOrPhone string) (*Response, error) {
	if !c.allowCode("send-code") {
		return nil, ErrCooldown
	}
	return c.Request(ctx, "/auth/send-code", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"account": emailOrPhone},
	})
}

func (c *Client) CheckAccount(ctx context.Context, account string) (*Response, error) {
	return c.Request(ctx, "/user/check/account/"+url.PathEscape(account), RequestOptions{})
}

func (c *Client) CheckEmail(ctx context.Context, email string) (*Response, error) {
	return c.Request(ctx, "/user/check/email/"+url.PathEscape(email), RequestOptions{})
}

// Availability holds the results of CheckAvailability. A field is nil when
// the corresponding input was empty.
type Availability struct {
	Account *Response
	Email   *Response
}

// CheckAvailability runs the account and email checks concurrently.
func (c *Client) CheckAvailability(ctx context.Context, account, email string) (*Availability, error) {
	var out Availability
	g, gctx := errgroup.WithContext(ctx)
	if account != "" {
		g.Go(func() error {
			r, err := c.CheckAccount(gctx, account)
			out.Account = r
			return err
		})
	}
	if email != "" {
		g.Go(func() error {
			r, err := c.CheckEmail(gctx, email)
			out.Email = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendResetPasswordCode(ctx context.Context, emailOrPhone string) (*Response, error) {
	if !c.allowCode("reset-code") {
		return nil, ErrCooldown
	}
	return c.Request(ctx, "/auth/forgot-password/send-code", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"emailOrPhone": emailOrPhone},
	})
}

func (c *Client) ResetPassword(ctx context.Context, emailOrPhone, code, newPassword string) (*Response, error) {
	return c.Request(ctx, "/auth/forgot-password/reset", RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"emailOrPhone": emailOrPhone,
			"code":         code,
			"newPassword":  newPassword,
		},
	})
}
