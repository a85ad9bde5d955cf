package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/vortexlabs/loginchat/pkg/chat"
	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/providers"
	"github.com/vortexlabs/loginchat/pkg/store"
	"github.com/vortexlabs/loginchat/pkg/typewriter"
)

const replHelp = `Commands:
  /new            start a new chat
  /pause          pause or resume the reply being typed (Enter works too)
  /copy           copy the last reply to the clipboard
  /history        show this conversation
  /attach <path>  send a file with the next message
  /quit           leave`

func chatOptions(cfg *config.Config) chat.Options {
	return chat.Options{
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	}
}

func newChatCmd(app *cliApp) *cobra.Command {
	var noReveal bool
	var chatID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providers.CreateProvider(app.cfg)
			if err != nil {
				return err
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			opts := chatOptions(app.cfg)
			opts.OnThinking = func(pending bool) {
				if pending {
					fmt.Fprintln(out, chat.ThinkingText)
				}
			}

			r := &repl{
				session:  chat.NewSession(chatID, provider, opts),
				store:    app.store,
				out:      out,
				delay:    app.cfg.RevealDelay(),
				noReveal: noReveal,
				copyText: clipboard.WriteAll,
			}
			return r.run(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVar(&noReveal, "no-reveal", false, "Print replies at once instead of typing them out")
	cmd.Flags().StringVar(&chatID, "chat", "terminal", "Conversation id; transcripts are saved per id")
	return cmd
}

// syncWriter serialises writes from the REPL loop and the reveal goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// reveal is a reply being typed out.
type reveal struct {
	id     string
	runes  []rune
	tw     *typewriter.Typewriter
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	emitted int
}

type repl struct {
	session  *chat.Session
	store    store.Store
	out      io.Writer
	delay    time.Duration
	noReveal bool
	copyText func(string) error

	pending *chat.Attachment
	active  *reveal
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	if err := r.session.Load(r.store); err != nil {
		logger.WarnCF("cli", "Could not restore chat history", map[string]interface{}{"error": err.Error()})
	}
	fmt.Fprintln(r.out, "Hello! Ask me anything. Type /help for commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	r.prompt()
	for {
		var revealed <-chan struct{}
		if r.active != nil {
			revealed = r.active.done
		}

		select {
		case <-ctx.Done():
			r.skipReveal()
			return nil
		case <-revealed:
			r.active = nil
			fmt.Fprintln(r.out)
			r.prompt()
		case line, ok := <-lines:
			if !ok {
				if r.active != nil {
					<-r.active.done
					r.active = nil
					fmt.Fprintln(r.out)
				}
				return nil
			}
			if r.handle(ctx, line) {
				r.skipReveal()
				return nil
			}
		}
	}
}

func (r *repl) prompt() {
	fmt.Fprint(r.out, "you> ")
}

// handle processes one input line and reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	cmd := strings.TrimSpace(line)

	if r.active != nil {
		if cmd == "" || cmd == "/pause" {
			paused := r.active.tw.Toggle()
			r.session.TogglePause(r.active.id)
			if paused {
				fmt.Fprint(r.out, " [paused]")
			}
			return false
		}
		r.skipReveal()
	}

	switch {
	case cmd == "":
	case cmd == "/quit" || cmd == "/exit":
		return true
	case cmd == "/help":
		fmt.Fprintln(r.out, replHelp)
	case cmd == "/new":
		r.session.NewChat()
		r.pending = nil
		r.save()
		fmt.Fprintln(r.out, "Started a new chat.")
	case cmd == "/pause":
		fmt.Fprintln(r.out, "Nothing is being typed right now.")
	case cmd == "/copy":
		r.copyLast()
	case cmd == "/history":
		r.printHistory()
	case cmd == "/attach" || strings.HasPrefix(cmd, "/attach "):
		r.attach(strings.TrimSpace(strings.TrimPrefix(cmd, "/attach")))
	case strings.HasPrefix(cmd, "/"):
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", cmd)
	default:
		r.send(ctx, line)
		return false
	}
	r.prompt()
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	att := r.pending
	r.pending = nil

	bot, err := r.session.Send(ctx, text, att)
	if err != nil {
		fmt.Fprintln(r.out, err)
		r.prompt()
		return
	}
	r.save()

	fmt.Fprint(r.out, "bot> ")
	if r.noReveal {
		fmt.Fprintln(r.out, bot.Content)
		r.prompt()
		return
	}

	rv := &reveal{id: bot.ID, runes: []rune(bot.Content), done: make(chan struct{})}
	rctx, cancel := context.WithCancel(ctx)
	rv.cancel = cancel
	rv.tw = typewriter.New(r.delay, func(s string) {
		rv.mu.Lock()
		fmt.Fprint(r.out, s)
		rv.emitted++
		rv.mu.Unlock()
	})
	go func() {
		defer close(rv.done)
		rv.tw.Run(rctx, bot.Content)
	}()
	r.active = rv
}

// skipReveal stops the running reveal and prints the rest of the reply at once.
func (r *repl) skipReveal() {
	rv := r.active
	if rv == nil {
		return
	}
	rv.cancel()
	<-rv.done
	rv.mu.Lock()
	rest := string(rv.runes[rv.emitted:])
	rv.mu.Unlock()
	fmt.Fprintln(r.out, rest)
	r.active = nil
}

func (r *repl) save() {
	if err := r.session.Save(r.store); err != nil {
		logger.WarnCF("cli", "Could not save chat history", map[string]interface{}{"error": err.Error()})
	}
}

func (r *repl) copyLast() {
	last, ok := r.session.LastReply()
	if !ok {
		fmt.Fprintln(r.out, "No reply to copy yet.")
		return
	}
	if err := r.copyText(last.Content); err != nil {
		fmt.Fprintf(r.out, "Failed to copy text: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "Copied to clipboard.")
}

func (r *repl) printHistory() {
	history := r.session.History()
	if len(history) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, m := range history {
		who := "you"
		if m.Role == chat.RoleBot {
			who = "bot"
		}
		fmt.Fprintf(r.out, "[%s] %s: %s\n", m.Time.Format("15:04:05"), who, m.Content)
	}
}

func (r *repl) attach(path string) {
	if path == "" {
		fmt.Fprintln(r.out, "Usage: /attach <path>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(r.out, "No such file: %s\n", path)
			return
		}
		fmt.Fprintf(r.out, "Could not read %s: %v\n", path, err)
		return
	}
	r.pending = &chat.Attachment{Name: filepath.Base(path), Data: data}
	fmt.Fprintf(r.out, "Uploaded: %s (%s, %d bytes; sent with your next message)\n",
		r.pending.Name, r.pending.MIME(), len(data))
}
