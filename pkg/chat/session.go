// Package chat holds the state of one chat widget conversation: the
// transcript, per-message pause flags and the call to the model.
package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/providers"
	"github.com/vortexlabs/loginchat/pkg/store"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

const (
	DefaultModel = "deepseek-chat"

	EmptyReply   = "I'm sorry, I couldn't understand that."
	ErrorReply   = "Oops! Something went wrong."
	ThinkingText = "Thinking..."
)

// ErrEmptyInput is returned by Send when there is neither text nor a file.
var ErrEmptyInput = errors.New("chat: empty message")

type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	Time       time.Time `json:"time"`
}

// Attachment is a file sent along with a user message.
type Attachment struct {
	Name string
	Data []byte
}

// MIME sniffs the content type from the file's magic bytes. Unrecognised
// UTF-8 content is reported as plain text.
func (a *Attachment) MIME() string {
	kind, err := filetype.Match(a.Data)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if utf8.Valid(a.Data) {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

type Options struct {
	Model string
	// Temperature is passed through as is, zero included.
	Temperature float64
	MaxTokens   int
	// OnThinking is called with true before the model is called and with
	// false once a reply (or the error reply) is ready.
	OnThinking func(pending bool)
}

type Session struct {
	id       string
	provider providers.LLMProvider
	opts     Options

	mu       sync.Mutex
	messages []Message
	paused   map[string]bool
}

// NewSession creates an empty conversation. An empty id gets a random one.
func NewSession(id string, provider providers.LLMProvider, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Session{
		id:       id,
		provider: provider,
		opts:     opts,
		paused:   make(map[string]bool),
	}
}

func (s *Session) ID() string {
	return s.id
}

// NewMessageID returns an id of the form message-<unix ms>-<0..999>.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("message-%d-%d", now.UnixMilli(), rand.IntN(1000))
}

// Send records the user message, asks the model and records the reply.
// Provider failures are not returned: they become the error reply.
func (s *Session) Send(ctx context.Context, text string, att *Attachment) (*Message, error) {
	if text == "" && att == nil {
		return nil, ErrEmptyInput
	}

	user := Message{ID: NewMessageID(time.Now()), Role: RoleUser, Content: text, Time: time.Now()}
	if att != nil {
		user.Attachment = att.Name
		user.Content += "\nAttached file: " + att.Name
		logger.DebugCF("chat", "Message carries a file", map[string]interface{}{
			"session": s.id,
			"name":    att.Name,
			"type":    att.MIME(),
			"bytes":   len(att.Data),
		})
	}
	s.append(user)

	s.thinking(true)
	reply := s.ask(ctx, text, att)
	s.thinking(false)

	bot := Message{ID: NewMessageID(time.Now()), Role: RoleBot, Content: reply, Time: time.Now()}
	s.append(bot)
	return &bot, nil
}

func (s *Session) ask(ctx context.Context, text string, att *Attachment) string {
	if s.provider == nil {
		logger.ErrorCF("chat", "No provider configured", map[string]interface{}{"session": s.id})
		return ErrorReply
	}

	options := map[string]interface{}{providers.OptTemperature: s.opts.Temperature}
	if s.opts.MaxTokens > 0 {
		options[providers.OptMaxTokens] = s.opts.MaxTokens
	}
	if att != nil {
		options[providers.OptFile] = &providers.Attachment{
			Name:    att.Name,
			Content: base64.StdEncoding.EncodeToString(att.Data),
		}
	}

	resp, err := s.provider.Chat(ctx,
		[]providers.Message{{Role: providers.RoleUser, Content: text}},
		s.opts.Model, options)
	if err != nil {
		logger.ErrorCF("chat", "Error fetching the response", map[string]interface{}{
			"session": s.id,
			"error":   err.Error(),
		})
		return ErrorReply
	}
	if resp == nil || resp.Content == "" {
		return EmptyReply
	}
	return resp.Content
}

func (s *Session) thinking(pending bool) {
	if s.opts.OnThinking != nil {
		s.opts.OnThinking(pending)
	}
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.paused[m.ID] = false
	s.mu.Unlock()
}

// NewChat clears the transcript and every pause flag.
func (s *Session) NewChat() {
	s.mu.Lock()
	s.messages = nil
	s.paused = make(map[string]bool)
	s.mu.Unlock()
}

// TogglePause flips the pause flag of a message and returns the new value.
func (s *Session) TogglePause(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[id] = !s.paused[id]
	return s.paused[id]
}

func (s *Session) IsPaused(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[id]
}

// History returns a copy of the transcript.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastReply returns the most recent bot message, if any.
func (s *Session) LastReply() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleBot {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

func (s *Session) storeKey() string {
	return "chat:" + s.id
}

// Save writes the transcript to st as JSON.
func (s *Session) Save(st store.Store) error {
	data, err := json.Marshal(s.History())
	if err != nil {
		return err
	}
	return st.Set(s.storeKey(), string(data))
}

// Load replaces the transcript with the one saved in st. A missing
// transcript leaves the session empty.
func (s *Session) Load(st store.Store) error {
	raw, err := st.Get(s.storeKey())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return fmt.Errorf("chat: decode transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = msgs
	s.paused = make(map[string]bool, len(msgs))
	for _, m := range msgs {
		s.paused[m.ID] = false
	}
	return nil
}
