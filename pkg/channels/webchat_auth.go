package channels

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vortexlabs/loginchat/pkg/logger"
)

const sessionTTL = 24 * time.Hour

// cookieSessions holds the tokens of signed-in browsers.
type cookieSessions struct {
	mu     sync.Mutex
	ttl    time.Duration
	expiry map[string]time.Time
}

func newCookieSessions(ttl time.Duration) *cookieSessions {
	return &cookieSessions{ttl: ttl, expiry: make(map[string]time.Time)}
}

// issue returns a fresh random token. Expired tokens are dropped on the way.
func (s *cookieSessions) issue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("webchat: session token: %w", err)
	}
	token := hex.EncodeToString(b)

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, exp := range s.expiry {
		if now.After(exp) {
			delete(s.expiry, t)
		}
	}
	s.expiry[token] = now.Add(s.ttl)
	return token, nil
}

func (s *cookieSessions) valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[token]
	return ok && time.Now().Before(exp)
}

func (s *cookieSessions) revoke(token string) {
	s.mu.Lock()
	delete(s.expiry, token)
	s.mu.Unlock()
}

// authEnabled reports whether both username and password are configured.
func (c *WebChatChannel) authEnabled() bool {
	return c.config.Username != "" && c.config.Password != ""
}

func (c *WebChatChannel) signedIn(r *http.Request) bool {
	ck, err := r.Cookie(sessionCookie)
	return err == nil && c.cookies.valid(ck.Value)
}

// authGate is router middleware. Pages redirect to /login, the /chat API
// answers 401.
func (c *WebChatChannel) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case !c.authEnabled(), r.URL.Path == "/login", r.URL.Path == "/logout", c.signedIn(r):
			next.ServeHTTP(w, r)
		case strings.HasPrefix(r.URL.Path, "/chat/"):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		default:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
	})
}

// credentials reads a login attempt from a JSON body or a form post.
func credentials(r *http.Request) (user, pass string, isJSON bool, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		err = json.NewDecoder(r.Body).Decode(&body)
		return body.Username, body.Password, true, err
	}
	if err = r.ParseForm(); err != nil {
		return "", "", false, err
	}
	return r.FormValue("username"), r.FormValue("password"), false, nil
}

func (c *WebChatChannel) checkCredentials(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.config.Password)) == 1
	return userOK && passOK
}

func (c *WebChatChannel) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !c.authEnabled() || c.signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if r.Method == http.MethodGet {
		writeHTML(w, http.StatusOK, webChatLoginHTML)
		return
	}

	user, pass, isJSON, err := credentials(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if !c.checkCredentials(user, pass) {
		logger.WarnCF("channels", "Widget login failed", map[string]interface{}{"remote": r.RemoteAddr})
		if isJSON {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		} else {
			writeHTML(w, http.StatusUnauthorized, webChatLoginErrorHTML)
		}
		return
	}

	token, err := c.cookies.issue()
	if err != nil {
		logger.ErrorCF("channels", "Could not start widget session", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL / time.Second),
	})

	if isJSON {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *WebChatChannel) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		c.cookies.revoke(ck.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", HttpOnly: true, MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func writeHTML(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, page)
}
