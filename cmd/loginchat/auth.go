package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vortexlabs/loginchat/pkg/auth"
	"github.com/vortexlabs/loginchat/pkg/security"
)

func newAuthCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, register and manage your account",
	}
	cmd.AddCommand(
		newAuthLoginCmd(app),
		newAuthRegisterCmd(app),
		newAuthSendCodeCmd(app),
		newAuthCheckCmd(app),
		newAuthForgotCmd(app),
		newAuthResetCmd(app),
		newAuthLogoutCmd(app),
		newAuthWhoamiCmd(app),
		newAuthProfileCmd(app),
		newAuthAvatarCmd(app),
		newAuthPasswordCmd(app),
		newAuthSocialCmd(app),
	)
	return cmd
}

func newAuthLoginCmd(app *cliApp) *cobra.Command {
	var password, code string
	var useCode bool
	cmd := &cobra.Command{
		Use:   "login [account]",
		Short: "Sign in with a password or a verification code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := ""
			if len(args) == 1 {
				account = args[0]
			}
			account, err := app.valueOrPrompt(cmd, account, "Account (email or phone): ", false)
			if err != nil {
				return err
			}
			if security.ContainsDangerousChars(account) {
				return errors.New("account contains characters that are not allowed")
			}

			ctx := cmd.Context()
			var resp *auth.Response
			if useCode || code != "" {
				code, err = app.valueOrPrompt(cmd, code, "Verification code: ", false)
				if err != nil {
					return err
				}
				resp, err = app.client.LoginWithCode(ctx, account, code)
			} else {
				password, err = app.valueOrPrompt(cmd, password, "Password: ", true)
				if err != nil {
					return err
				}
				resp, err = app.client.Login(ctx, account, password)
			}
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().BoolVar(&useCode, "code", false, "Sign in with a verification code instead of a password")
	cmd.Flags().StringVar(&code, "verify-code", "", "Verification code (implies --code)")
	return cmd
}

func newAuthRegisterCmd(app *cliApp) *cobra.Command {
	var req auth.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Email == "" && req.Phone == "" {
				return errors.New("one of --email or --phone is required")
			}
			if req.Email != "" && !security.IsValidEmail(req.Email) {
				return fmt.Errorf("invalid email address %q", req.Email)
			}
			if req.Phone != "" && !security.IsValidPhone(req.Phone) {
				return fmt.Errorf("invalid phone number %q", req.Phone)
			}
			req.Nickname = security.SanitizeInput(req.Nickname)

			var err error
			req.Password, err = app.valueOrPrompt(cmd, req.Password, "Password: ", true)
			if err != nil {
				return err
			}
			if check := security.ValidatePasswordStrength(req.Password); !check.Valid {
				return errors.New(check.Message)
			}

			resp, err := app.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Mobile phone number")
	cmd.Flags().StringVar(&req.Nickname, "nickname", "", "Display name")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&req.VerifyCode, "verify-code", "", "Verification code sent by `auth send-code`")
	return cmd
}

func newAuthSendCodeCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "send-code <email-or-phone>",
		Short: "Send a verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateContact(args[0]); err != nil {
				return err
			}
			resp, err := app.client.SendVerificationCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func validateContact(v string) error {
	if security.IsValidEmail(v) || security.IsValidPhone(v) {
		return nil
	}
	return fmt.Errorf("%q is neither an email address nor a phone number", v)
}

func newAuthCheckCmd(app *cliApp) *cobra.Command {
	var account, email string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether an account name or email is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" && email == "" {
				return errors.New("one of --account or --email is required")
			}
			res, err := app.client.CheckAvailability(cmd.Context(), account, email)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Account != nil {
				fmt.Fprintf(out, "account %s: ", account)
				if err := printResponse(out, res.Account); err != nil {
					return err
				}
			}
			if res.Email != nil {
				fmt.Fprintf(out, "email %s: ", email)
				if err := printResponse(out, res.Email); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account name to check")
	cmd.Flags().StringVar(&email, "email", "", "Email address to check")
	return cmd
}

func newAuthForgotCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot <email-or-phone>",
		Short: "Send a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateContact(args[0]); err != nil {
				return err
			}
			resp, err := app.client.SendResetPasswordCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func newAuthResetCmd(app *cliApp) *cobra.Command {
	var code, password string
	cmd := &cobra.Command{
		Use:   "reset <email-or-phone>",
		Short: "Reset the password with a code from `auth forgot`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if code, err = app.valueOrPrompt(cmd, code, "Reset code: ", false); err != nil {
				return err
			}
			if password, err = app.valueOrPrompt(cmd, password, "New password: ", true); err != nil {
				return err
			}
			if check := security.ValidatePasswordStrength(password); !check.Valid {
				return errors.New(check.Message)
			}
			resp, err := app.client.ResetPassword(cmd.Context(), args[0], code, password)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&code, "verify-code", "", "Reset code")
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password (prompted when omitted)")
	return cmd
}

func newAuthLogoutCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.client.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newAuthWhoamiCmd(app *cliApp) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				resp, err := app.client.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				return printResponse(cmd.OutOrStdout(), resp)
			}
			u, err := app.client.Tokens().User()
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			return printJSON(cmd, u)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the profile from the server instead of the local cache")
	return cmd
}

func newAuthProfileCmd(app *cliApp) *cobra.Command {
	var set []string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(set) == 0 {
				resp, err := app.client.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				return printResponse(cmd.OutOrStdout(), resp)
			}
			fields, err := parseFields(set)
			if err != nil {
				return err
			}
			for k, v := range fields {
				if s, ok := v.(string); ok {
					fields[k] = security.SanitizeInput(s)
				}
			}
			resp, err := app.client.UpdateProfile(cmd.Context(), fields)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "Field to update as key=value (repeatable)")
	return cmd
}

func newAuthAvatarCmd(app *cliApp) *cobra.Command {
	var x, y, width, height int
	cmd := &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a new avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var crop *auth.Crop
			flags := cmd.Flags()
			if flags.Changed("x") || flags.Changed("y") || flags.Changed("width") || flags.Changed("height") {
				crop = &auth.Crop{}
				if flags.Changed("x") {
					crop.X = &x
				}
				if flags.Changed("y") {
					crop.Y = &y
				}
				if flags.Changed("width") {
					crop.Width = &width
				}
				if flags.Changed("height") {
					crop.Height = &height
				}
			}

			resp, err := app.client.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f, crop)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "Crop left edge")
	cmd.Flags().IntVar(&y, "y", 0, "Crop top edge")
	cmd.Flags().IntVar(&width, "width", 0, "Crop width")
	cmd.Flags().IntVar(&height, "height", 0, "Crop height")
	return cmd
}

func newAuthPasswordCmd(app *cliApp) *cobra.Command {
	var password, old, code string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Set or change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if password, err = app.valueOrPrompt(cmd, password, "New password: ", true); err != nil {
				return err
			}
			if check := security.ValidatePasswordStrength(password); !check.Valid {
				return errors.New(check.Message)
			}
			resp, err := app.client.SetPassword(cmd.Context(), password, old, code)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password (prompted when omitted)")
	cmd.Flags().StringVar(&old, "old", "", "Current password, when changing an existing one")
	cmd.Flags().StringVar(&code, "verify-code", "", "Verification code, instead of the current password")
	return cmd
}

func newAuthSocialCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "social",
		Short: "List linked social logins",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.client.SocialAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "unbind <provider>",
		Short: "Unlink a social login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.client.UnbindSocialAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	return writeIndented(cmd.OutOrStdout(), v)
}

