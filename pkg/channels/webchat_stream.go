package channels

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vortexlabs/loginchat/pkg/chat"
	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/render"
	"github.com/vortexlabs/loginchat/pkg/typewriter"
)

// streamFrame is used in both directions on /chat/stream.
//
// Client to server: send {message, file}, pause {id}, new.
// Server to client: thinking, start, char {id, text}, done {id, html},
// paused {id, paused}, cleared, error {text}.
type streamFrame struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Text    string      `json:"text,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Message string      `json:"message,omitempty"`
	File    *fileUpload `json:"file,omitempty"`
	Paused  bool        `json:"paused,omitempty"`
}

// streamConn is one WebSocket client. gorilla connections allow a single
// concurrent writer, so every write goes through send.
type streamConn struct {
	conn    *websocket.Conn
	session *chat.Session
	channel *WebChatChannel

	writeMu sync.Mutex

	mu       sync.Mutex
	reveals  map[string]*typewriter.Typewriter
	cancelFn map[string]context.CancelFunc
}

func (s *streamConn) send(f streamFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

func (c *WebChatChannel) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("channels", "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	sc := &streamConn{
		conn:     conn,
		session:  c.session(r.URL.Query().Get("chat_id")),
		channel:  c,
		reveals:  make(map[string]*typewriter.Typewriter),
		cancelFn: make(map[string]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		var f streamFrame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.DebugCF("channels", "WebSocket closed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		switch f.Type {
		case "send":
			wg.Add(1)
			go func() {
				defer wg.Done()
				sc.reply(ctx, f)
			}()
		case "pause":
			sc.togglePause(f.ID)
		case "new":
			sc.stopReveals()
			sc.session.NewChat()
			c.save(sc.session)
			sc.send(streamFrame{Type: "cleared"})
		default:
			sc.send(streamFrame{Type: "error", Text: "unknown frame type " + f.Type})
		}
	}
}

func (s *streamConn) reply(ctx context.Context, f streamFrame) {
	att, err := decodeUpload(f.File)
	if err != nil {
		s.send(streamFrame{Type: "error", Text: err.Error()})
		return
	}

	s.send(streamFrame{Type: "thinking"})
	bot, err := s.session.Send(ctx, f.Message, att)
	if errors.Is(err, chat.ErrEmptyInput) {
		s.send(streamFrame{Type: "error", Text: "message is empty"})
		return
	}
	if err != nil {
		s.send(streamFrame{Type: "error", Text: err.Error()})
		return
	}
	s.channel.save(s.session)

	tw := typewriter.New(s.channel.opts.RevealDelay, func(ch string) {
		s.send(streamFrame{Type: "char", ID: bot.ID, Text: ch})
	})
	revealCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.reveals[bot.ID] = tw
	s.cancelFn[bot.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.reveals, bot.ID)
		delete(s.cancelFn, bot.ID)
		s.mu.Unlock()
	}()

	if s.session.IsPaused(bot.ID) {
		tw.Pause()
	}
	s.send(streamFrame{Type: "start", ID: bot.ID})
	if err := tw.Run(revealCtx, bot.Content); err != nil {
		return
	}
	s.send(streamFrame{Type: "done", ID: bot.ID, HTML: render.MarkdownToHTML(bot.Content)})
}

func (s *streamConn) togglePause(id string) {
	if id == "" {
		return
	}
	paused := s.session.TogglePause(id)
	s.mu.Lock()
	tw := s.reveals[id]
	s.mu.Unlock()
	if tw != nil {
		if paused {
			tw.Pause()
		} else {
			tw.Resume()
		}
	}
	s.send(streamFrame{Type: "paused", ID: id, Paused: paused})
}

func (s *streamConn) stopReveals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancelFn {
		cancel()
	}
}
