package channels

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vortexlabs/loginchat/pkg/chat"
	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/providers"
	"github.com/vortexlabs/loginchat/pkg/render"
	"github.com/vortexlabs/loginchat/pkg/store"
)

const (
	sessionCookie = "loginchat_session"
	defaultChatID = "default"
	// maxUploadBytes bounds /chat/send bodies, base64 file included.
	maxUploadBytes = 10 << 20
)

// WebChatOptions wires the widget server to the chat backend.
type WebChatOptions struct {
	Provider    providers.LLMProvider
	Chat        chat.Options
	RevealDelay time.Duration
	// Store, when set, persists each transcript after every reply.
	Store store.Store
}

// WebChatChannel serves the chat widget page and its JSON/WebSocket API.
type WebChatChannel struct {
	config   config.WebChatConfig
	opts     WebChatOptions
	router   *mux.Router
	upgrader websocket.Upgrader
	server   *http.Server

	cookies *cookieSessions

	mu      sync.RWMutex
	chats   map[string]*chat.Session // chatID -> session
	running bool
}

type fileUpload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type chatRequest struct {
	ChatID  string      `json:"chat_id"`
	Message string      `json:"message"`
	File    *fileUpload `json:"file,omitempty"`
}

type chatResponse struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	HTML      string `json:"html"`
}

type chatMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	HTML    string `json:"html"`
	Paused  bool   `json:"paused"`
	Time    string `json:"time"`
}

func NewWebChatChannel(cfg config.WebChatConfig, opts WebChatOptions) (*WebChatChannel, error) {
	if opts.Provider == nil {
		return nil, errors.New("webchat: provider is required")
	}
	c := &WebChatChannel{
		config:  cfg,
		opts:    opts,
		cookies: newCookieSessions(sessionTTL),
		chats:   make(map[string]*chat.Session),
	}
	c.upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	c.router = c.routes()
	return c, nil
}

func (c *WebChatChannel) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(c.authGate)
	r.HandleFunc("/", c.handleUI).Methods(http.MethodGet)
	r.HandleFunc("/login", c.handleLogin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", c.handleLogout)

	api := r.PathPrefix("/chat").Subrouter()
	api.HandleFunc("/send", c.handleSend).Methods(http.MethodPost)
	api.HandleFunc("/poll", c.handlePoll).Methods(http.MethodGet)
	api.HandleFunc("/new", c.handleNew).Methods(http.MethodPost)
	api.HandleFunc("/pause", c.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/stream", c.handleStream).Methods(http.MethodGet)
	return r
}

// Handler exposes the router, mainly for tests and embedding.
func (c *WebChatChannel) Handler() http.Handler {
	return c.router
}

func (c *WebChatChannel) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	c.mu.Lock()
	c.server = &http.Server{
		Addr:              addr,
		Handler:           c.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	c.running = true
	c.mu.Unlock()

	if c.authEnabled() {
		logger.InfoCF("channels", "WebChat started (auth enabled)", map[string]interface{}{"addr": addr})
	} else {
		logger.InfoCF("channels", "WebChat started (no auth)", map[string]interface{}{"addr": addr})
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("channels", "WebChat server error", map[string]interface{}{"error": err.Error()})
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
		}
	}()

	return nil
}

func (c *WebChatChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.running = false
	srv := c.server
	c.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (c *WebChatChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// session returns the conversation for chatID, restoring a saved transcript
// the first time it is used.
func (c *WebChatChannel) session(chatID string) *chat.Session {
	if chatID == "" {
		chatID = defaultChatID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.chats[chatID]; ok {
		return s
	}
	s := chat.NewSession(chatID, c.opts.Provider, c.opts.Chat)
	if c.opts.Store != nil {
		if err := s.Load(c.opts.Store); err != nil {
			logger.WarnCF("channels", "Failed to restore transcript", map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
	}
	c.chats[chatID] = s
	return s
}

func (c *WebChatChannel) save(s *chat.Session) {
	if c.opts.Store == nil {
		return
	}
	if err := s.Save(c.opts.Store); err != nil {
		logger.WarnCF("channels", "Failed to save transcript", map[string]interface{}{
			"chat_id": s.ID(),
			"error":   err.Error(),
		})
	}
}

func decodeUpload(f *fileUpload) (*chat.Attachment, error) {
	if f == nil || f.Name == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		return nil, fmt.Errorf("file %q is not valid base64", f.Name)
	}
	return &chat.Attachment{Name: f.Name, Data: data}, nil
}

func (c *WebChatChannel) handleSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	att, err := decodeUpload(req.File)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s := c.session(req.ChatID)
	reply, err := s.Send(r.Context(), req.Message, att)
	if errors.Is(err, chat.ErrEmptyInput) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is empty"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.save(s)

	writeJSON(w, http.StatusOK, chatResponse{
		ChatID:    s.ID(),
		MessageID: reply.ID,
		Message:   reply.Content,
		HTML:      render.MarkdownToHTML(reply.Content),
	})
}

func (c *WebChatChannel) handlePoll(w http.ResponseWriter, r *http.Request) {
	s := c.session(r.URL.Query().Get("chat_id"))
	history := s.History()

	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		html := render.UserHTML(m.Content)
		if m.Role == chat.RoleBot {
			html = render.MarkdownToHTML(m.Content)
		}
		msgs = append(msgs, chatMessage{
			ID:      m.ID,
			Role:    m.Role,
			Content: m.Content,
			HTML:    html,
			Paused:  s.IsPaused(m.ID),
			Time:    m.Time.Format("15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (c *WebChatChannel) handleNew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	s := c.session(req.ChatID)
	s.NewChat()
	c.save(s)
	writeJSON(w, http.StatusOK, map[string]string{"chat_id": s.ID(), "status": "cleared"})
}

func (c *WebChatChannel) handlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_id"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	paused := c.session(req.ChatID).TogglePause(req.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": req.ID, "paused": paused})
}

func (c *WebChatChannel) handleUI(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, webChatHTML)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
