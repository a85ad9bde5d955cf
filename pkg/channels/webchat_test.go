package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/providers"
	"github.com/vortexlabs/loginchat/pkg/store"
)

type echoProvider struct {
	mu    sync.Mutex
	files []*providers.Attachment
}

func (p *echoProvider) Chat(_ context.Context, messages []providers.Message, _ string, options map[string]interface{}) (*providers.LLMResponse, error) {
	if f, ok := options[providers.OptFile].(*providers.Attachment); ok {
		p.mu.Lock()
		p.files = append(p.files, f)
		p.mu.Unlock()
	}
	return &providers.LLMResponse{Content: "**echo** " + messages[0].Content}, nil
}

func (p *echoProvider) GetDefaultModel() string { return "echo" }

func newTestChannel(t *testing.T, cfg config.WebChatConfig, st store.Store) (*WebChatChannel, *httptest.Server, *echoProvider) {
	t.Helper()
	p := &echoProvider{}
	c, err := NewWebChatChannel(cfg, WebChatOptions{Provider: p, RevealDelay: time.Millisecond, Store: st})
	require.NoError(t, err)
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)
	return c, srv, p
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func TestNewWebChatChannelRequiresProvider(t *testing.T) {
	_, err := NewWebChatChannel(config.WebChatConfig{}, WebChatOptions{})
	assert.Error(t, err)
}

func TestSendAndPoll(t *testing.T) {
	st := store.NewMemoryStore()
	_, srv, p := newTestChannel(t, config.WebChatConfig{}, st)

	resp := postJSON(t, srv.Client(), srv.URL+"/chat/send", chatRequest{
		ChatID:  "c1",
		Message: "hello",
		File:    &fileUpload{Name: "a.txt", Content: "aGk="},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "c1", out.ChatID)
	assert.Equal(t, "**echo** hello", out.Message)
	assert.Contains(t, out.HTML, "<strong>echo</strong>")
	assert.True(t, strings.HasPrefix(out.MessageID, "message-"))
	require.Len(t, p.files, 1)
	assert.Equal(t, "a.txt", p.files[0].Name)

	poll, err := srv.Client().Get(srv.URL + "/chat/poll?chat_id=c1")
	require.NoError(t, err)
	defer poll.Body.Close()
	var msgs []chatMessage
	require.NoError(t, json.NewDecoder(poll.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hello\nAttached file: a.txt", msgs[0].Content)
	assert.Equal(t, "bot", msgs[1].Role)

	raw, err := st.Get("chat:c1")
	require.NoError(t, err)
	assert.Contains(t, raw, "echo")
}

func TestSendRejectsBadInput(t *testing.T) {
	_, srv, _ := newTestChannel(t, config.WebChatConfig{}, nil)

	resp := postJSON(t, srv.Client(), srv.URL+"/chat/send", chatRequest{ChatID: "c1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.Client(), srv.URL+"/chat/send", chatRequest{
		ChatID: "c1", File: &fileUpload{Name: "x", Content: "%%%"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := srv.Client().Get(srv.URL + "/chat/send")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestNewChatAndPause(t *testing.T) {
	c, srv, _ := newTestChannel(t, config.WebChatConfig{}, nil)

	resp := postJSON(t, srv.Client(), srv.URL+"/chat/send", chatRequest{ChatID: "c2", Message: "hi"})
	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()

	resp = postJSON(t, srv.Client(), srv.URL+"/chat/pause", map[string]string{"chat_id": "c2", "id": out.MessageID})
	var paused map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&paused))
	resp.Body.Close()
	assert.Equal(t, true, paused["paused"])

	resp = postJSON(t, srv.Client(), srv.URL+"/chat/new", map[string]string{"chat_id": "c2"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, c.session("c2").History())
}

func TestNewChatRejectsMalformedBody(t *testing.T) {
	c, srv, _ := newTestChannel(t, config.WebChatConfig{}, nil)

	resp := postJSON(t, srv.Client(), srv.URL+"/chat/send", chatRequest{ChatID: "c3", Message: "hi"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bad, err := srv.Client().Post(srv.URL+"/chat/new", "application/json", strings.NewReader(`{"chat_id":`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Len(t, c.session("c3").History(), 2)

	// An empty body clears the default chat.
	empty, err := srv.Client().Post(srv.URL+"/chat/new", "application/json", nil)
	require.NoError(t, err)
	defer empty.Body.Close()
	assert.Equal(t, http.StatusOK, empty.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(empty.Body).Decode(&out))
	assert.Equal(t, defaultChatID, out["chat_id"])
}

func TestAuthGate(t *testing.T) {
	_, srv, _ := newTestChannel(t, config.WebChatConfig{Username: "admin", Password: "hunter2"}, nil)
	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = postJSON(t, client, srv.URL+"/chat/send", chatRequest{Message: "hi"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, client, srv.URL+"/login", map[string]string{"username": "admin", "password": "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, client, srv.URL+"/login", map[string]string{"username": "admin", "password": "hunter2"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	req.AddCookie(cookie)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/logout", nil)
	req.AddCookie(cookie)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/chat/poll", nil)
	req.AddCookie(cookie)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUIPage(t *testing.T) {
	_, srv, _ := newTestChannel(t, config.WebChatConfig{}, nil)
	resp, err := srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func dialStream(t *testing.T, srv *httptest.Server, chatID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/stream?chat_id=" + chatID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamRevealsReply(t *testing.T) {
	_, srv, _ := newTestChannel(t, config.WebChatConfig{}, nil)
	conn := dialStream(t, srv, "ws1")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(streamFrame{Type: "send", Message: "hey"}))

	var (
		types    []string
		revealed strings.Builder
		done     streamFrame
	)
	for {
		var f streamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if len(types) == 0 || types[len(types)-1] != f.Type {
			types = append(types, f.Type)
		}
		if f.Type == "char" {
			revealed.WriteString(f.Text)
		}
		if f.Type == "done" {
			done = f
			break
		}
	}

	assert.Equal(t, []string{"thinking", "start", "char", "done"}, types)
	assert.Equal(t, "**echo** hey", revealed.String())
	assert.Contains(t, done.HTML, "<strong>echo</strong>")
}

func TestStreamPauseAndNew(t *testing.T) {
	c, err := NewWebChatChannel(config.WebChatConfig{}, WebChatOptions{
		Provider:    &echoProvider{},
		RevealDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)

	conn := dialStream(t, srv, "ws2")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.WriteJSON(streamFrame{Type: "send", Message: "a long enough message"}))

	var id string
	for id == "" {
		var f streamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "start" {
			id = f.ID
		}
	}

	require.NoError(t, conn.WriteJSON(streamFrame{Type: "pause", ID: id}))
	for {
		var f streamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "paused" {
			assert.Equal(t, id, f.ID)
			assert.True(t, f.Paused)
			break
		}
	}
	assert.True(t, c.session("ws2").IsPaused(id))

	require.NoError(t, conn.WriteJSON(streamFrame{Type: "new"}))
	for {
		var f streamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "cleared" {
			break
		}
		assert.NotEqual(t, "done", f.Type)
	}
	assert.Empty(t, c.session("ws2").History())
}

func TestCookieSessions(t *testing.T) {
	s := newCookieSessions(time.Hour)
	tok, err := s.issue()
	require.NoError(t, err)
	assert.Len(t, tok, 64)
	assert.True(t, s.valid(tok))
	assert.False(t, s.valid(""))
	assert.False(t, s.valid("nope"))

	s.revoke(tok)
	assert.False(t, s.valid(tok))

	expired := newCookieSessions(-time.Second)
	old, err := expired.issue()
	require.NoError(t, err)
	assert.False(t, expired.valid(old))
	_, err = expired.issue()
	require.NoError(t, err)
	assert.NotContains(t, expired.expiry, old)
}
