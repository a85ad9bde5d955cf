package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vortexlabs/loginchat/pkg/auth"
	"github.com/vortexlabs/loginchat/pkg/security"
)

func newAdminCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator console",
	}
	cmd.AddCommand(
		newAdminLoginCmd(app),
		newAdminStatsCmd(app),
		newAdminUsersCmd(app),
		newAdminForgotCmd(app),
		newAdminResetCmd(app),
	)
	return cmd
}

func newAdminLoginCmd(app *cliApp) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login [account]",
		Short: "Sign in as an administrator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := ""
			if len(args) == 1 {
				account = args[0]
			}
			account, err := app.valueOrPrompt(cmd, account, "Admin account: ", false)
			if err != nil {
				return err
			}
			if password, err = app.valueOrPrompt(cmd, password, "Password: ", true); err != nil {
				return err
			}
			resp, err := app.client.AdminLogin(cmd.Context(), account, password)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newAdminStatsCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show user statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.client.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func newAdminUsersCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var page, size int
	var keyword, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if page > 0 {
				q.Set("page", strconv.Itoa(page))
			}
			if size > 0 {
				q.Set("size", strconv.Itoa(size))
			}
			if keyword != "" {
				q.Set("keyword", security.SanitizeInput(keyword))
			}
			if status != "" {
				q.Set("status", status)
			}
			resp, err := app.client.ListUsers(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	list.Flags().IntVar(&page, "page", 0, "Page number")
	list.Flags().IntVar(&size, "size", 0, "Page size")
	list.Flags().StringVar(&keyword, "keyword", "", "Filter by keyword")
	list.Flags().StringVar(&status, "status", "", "Filter by status (0 disabled, 1 enabled)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.client.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	var createFields []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(createFields)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return errors.New("at least one --field is required")
			}
			resp, err := app.client.CreateUser(cmd.Context(), fields)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	create.Flags().StringArrayVar(&createFields, "field", nil, "User field as key=value (repeatable)")

	var updateFields []string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(updateFields)
			if err != nil {
				return err
			}
			resp, err := app.client.UpdateUser(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	update.Flags().StringArrayVar(&updateFields, "field", nil, "User field as key=value (repeatable)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.client.DeleteUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	setStatus := &cobra.Command{
		Use:       "status <id> enable|disable",
		Short:     "Enable or disable a user",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"enable", "disable"},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseUserStatus(args[1])
			if err != nil {
				return err
			}
			resp, err := app.client.UpdateUserStatus(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(list, get, create, update, del, setStatus)
	return cmd
}

func parseUserStatus(s string) (int, error) {
	switch s {
	case "enable", "enabled", "1":
		return auth.UserEnabled, nil
	case "disable", "disabled", "0":
		return auth.UserDisabled, nil
	}
	return 0, fmt.Errorf("unknown status %q, want enable or disable", s)
}

func newAdminForgotCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot <email>",
		Short: "Send an administrator password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !security.IsValidEmail(args[0]) {
				return fmt.Errorf("invalid email address %q", args[0])
			}
			resp, err := app.client.SendAdminResetPasswordCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func newAdminResetCmd(app *cliApp) *cobra.Command {
	var code, password string
	cmd := &cobra.Command{
		Use:   "reset <email>",
		Short: "Reset an administrator password",
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
			resp, err := app.client.ResetAdminPassword(cmd.Context(), args[0], code, password)
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
