package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vortexlabs/loginchat/pkg/auth"
	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/store"
	"github.com/vortexlabs/loginchat/pkg/tokens"
)

// defaultCLISession keeps tokens across invocations; the widget server uses
// per-browser ids instead.
const defaultCLISession = "cli"

// cliApp carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type cliApp struct {
	configPath string
	storePath  string
	sessionID  string
	logLevel   string
	jsonLogs   bool

	cfg    *config.Config
	store  store.Store
	closer io.Closer
	client *auth.Client

	in     *bufio.Reader
	inOnce sync.Once
}

func newRootCmd() *cobra.Command {
	app := &cliApp{}

	root := &cobra.Command{
		Use:           "loginchat",
		Short:         "Account and chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", config.DefaultPath(), "Config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&app.storePath, "store", "", "Session database path (overrides config)")
	root.PersistentFlags().StringVar(&app.sessionID, "session", "", "Session id to use in the session database")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&app.jsonLogs, "log-json", false, "Write logs as JSON")

	root.AddCommand(newAuthCmd(app))
	root.AddCommand(newAdminCmd(app))
	root.AddCommand(newChatCmd(app))
	root.AddCommand(newServeCmd(app))
	return root
}

func (a *cliApp) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger.Init(level, a.jsonLogs || cfg.Log.JSON)

	sessionID := a.sessionID
	if sessionID == "" {
		sessionID = cfg.Session.SessionID
	}
	if sessionID == "" {
		sessionID = defaultCLISession
	}

	path := a.storePath
	if path == "" {
		path = cfg.StorePath()
	}
	st, err := store.OpenSQLite(path, sessionID)
	if err != nil {
		logger.WarnCF("cli", "Session database unavailable, using memory", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		a.store = store.NewMemoryStore()
	} else {
		a.store = st
		a.closer = st
	}

	errOut := cmd.ErrOrStderr()
	a.client = auth.NewClient(tokens.NewManager(a.store), auth.Options{
		BaseURL:          cfg.Auth.APIBase,
		Timeout:          cfg.AuthTimeout(),
		LoginPath:        cfg.Auth.LoginPath,
		SendCodeCooldown: cfg.SendCodeCooldown(),
		Redirect: func(target string) {
			fmt.Fprintln(errOut, loginNotice(target))
		},
	})
	return nil
}

func (a *cliApp) close() error {
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// loginNotice is what the CLI shows where a browser would navigate to a
// login view.
func loginNotice(target string) string {
	if strings.Contains(target, "admin") {
		return "Your session has ended. Run `loginchat admin login` to sign in again."
	}
	return "Your session has ended. Run `loginchat auth login` to sign in again."
}

func (a *cliApp) reader(cmd *cobra.Command) *bufio.Reader {
	a.inOnce.Do(func() {
		a.in = bufio.NewReader(cmd.InOrStdin())
	})
	return a.in
}

// prompt reads one line, showing label first.
func (a *cliApp) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := a.reader(cmd).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a line without echo when stdin is a terminal.
func (a *cliApp) promptSecret(cmd *cobra.Command, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return a.prompt(cmd, label)
}

// valueOrPrompt returns v, or asks for it when empty.
func (a *cliApp) valueOrPrompt(cmd *cobra.Command, v, label string, secret bool) (string, error) {
	if v != "" {
		return v, nil
	}
	if secret {
		return a.promptSecret(cmd, label)
	}
	return a.prompt(cmd, label)
}

// printResponse writes the envelope message and data. A non-200 envelope is
// returned as an error so the exit code reflects it.
func printResponse(w io.Writer, resp *auth.Response) error {
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
	}
	if resp.RemainingAttempts != nil {
		fmt.Fprintf(w, "Remaining attempts: %d\n", *resp.RemainingAttempts)
	}
	if resp.HasData() {
		var v interface{}
		if err := json.Unmarshal(resp.Data, &v); err == nil {
			writeIndented(w, v)
		}
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = "request failed"
		}
		return &auth.APIError{Code: resp.Code, Message: msg}
	}
	return nil
}

// parseFields turns key=value pairs into a JSON-ready map. Values that parse
// as JSON (numbers, booleans, null) keep their type.
func parseFields(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", p)
		}
		var typed interface{}
		if err := json.Unmarshal([]byte(v), &typed); err == nil {
			switch typed.(type) {
			case float64, bool, nil:
				out[k] = typed
				continue
			}
		}
		out[k] = v
	}
	return out, nil
}

func writeIndented(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
