package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexlabs/loginchat/pkg/store"
	"github.com/vortexlabs/loginchat/pkg/tokens"
)

type redirectRecorder struct {
	targets []string
}

func (r *redirectRecorder) redirect(target string) {
	r.targets = append(r.targets, target)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *tokens.Manager, *redirectRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tm := tokens.NewManager(store.NewMemoryStore())
	rec := &redirectRecorder{}
	c := NewClient(tm, Options{
		BaseURL:  srv.URL,
		Timeout:  5 * time.Second,
		Redirect: rec.redirect,
	})
	return c, tm, rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestIsPublicEndpoint(t *testing.T) {
	for _, p := range []string{
		"/auth/login", "/auth/login/code", "/auth/admin/login", "/auth/register",
		"/auth/send-code", "/auth/refresh", "/auth/forgot-password/reset",
		"/auth/admin/forgot-password/send-code",
	} {
		assert.True(t, IsPublicEndpoint(p), p)
	}
	for _, p := range []string{"/user/profile", "/admin/users", "/user/check/account/bob"} {
		assert.False(t, IsPublicEndpoint(p), p)
	}
}

func TestRequestAttachesBearerOnlyForPrivatePaths(t *testing.T) {
	var profileAuth, loginAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		profileAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200, "data": map[string]string{"username": "alice"}})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		loginAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 401, "message": "bad credentials"})
	})

	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("access-1", "refresh-1")

	resp, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "Bearer access-1", profileAuth)

	_, err = c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Empty(t, loginAuth)
}

func TestRequestRefreshesAndRetriesOnce(t *testing.T) {
	var profileCalls, refreshCalls int32
	var seenAuth []string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileCalls, 1)
		seenAuth = append(seenAuth, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200, "message": "ok"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200, "accessToken": "fresh"})
	})

	c, tm, rec := newTestClient(t, mux)
	tm.SetTokens("stale", "refresh-1")

	resp, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, http.StatusOK, resp.Status)

	assert.EqualValues(t, 2, atomic.LoadInt32(&profileCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, seenAuth)
	assert.Equal(t, "fresh", tm.AccessToken())
	assert.Equal(t, "refresh-1", tm.RefreshToken())
	assert.Empty(t, rec.targets)
}

func TestRequestRetryStillUnauthorizedClearsSession(t *testing.T) {
	var profileCalls, refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200, "accessToken": "fresh"})
	})

	c, tm, rec := newTestClient(t, mux)
	tm.SetTokens("stale", "refresh-1")

	resp, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Code)
	assert.Equal(t, "unauthorized, please log in again", resp.Message)

	assert.EqualValues(t, 2, atomic.LoadInt32(&profileCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.Empty(t, tm.AccessToken())
	assert.Empty(t, tm.RefreshToken())
	assert.Equal(t, []string{RouteLogin}, rec.targets)
}

func TestRequestRetriesWithSameBody(t *testing.T) {
	var bodies []string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body["nickname"])
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200, "accessToken": "fresh"})
	})

	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("stale", "r")

	_, err := c.UpdateProfile(context.Background(), map[string]interface{}{"nickname": "Al"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Al", "Al"}, bodies)
}

func TestRequestRefreshFailureClearsAndRedirects(t *testing.T) {
	var profileCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 401, "message": "refresh token expired"})
	})

	c, tm, rec := newTestClient(t, mux)
	tm.SetTokens("stale", "expired")
	require.NoError(t, tm.SetUser(tokens.User{"username": "alice"}))

	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.EqualValues(t, 1, atomic.LoadInt32(&profileCalls))
	assert.Empty(t, tm.AccessToken())
	assert.Empty(t, tm.RefreshToken())
	u, err := tm.User()
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, []string{"/login"}, rec.targets)
}

func TestRequestRefreshFailureSkipsRedirectOnLoginView(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := tokens.NewManager(store.NewMemoryStore())
	tm.SetTokens("stale", "r")
	var redirected bool
	c := NewClient(tm, Options{
		BaseURL:     srv.URL,
		CurrentView: func() string { return "/login" },
		Redirect:    func(string) { redirected = true },
	})

	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, redirected)
}

func TestRequest401WithoutRefreshTokenRedirectsByArea(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, tm, rec := newTestClient(t, mux)

	tm.SetTokens("only-access", "")
	resp, err := c.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Code)
	assert.Equal(t, "unauthorized, please log in again", resp.Message)
	assert.Empty(t, tm.AccessToken())

	resp, err = c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Code)

	assert.Equal(t, []string{RouteAdminLogin, RouteLogin}, rec.targets)
}

func TestPublicEndpoint401DoesNotRefresh(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": 401, "message": "wrong password", "remainingAttempts": 2})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("a", "r")

	resp, err := c.Login(context.Background(), "alice", "nope")
	require.NoError(t, err)
	assert.Equal(t, "wrong password", resp.Message)
	require.NotNil(t, resp.RemainingAttempts)
	assert.Equal(t, 2, *resp.RemainingAttempts)
	assert.Zero(t, atomic.LoadInt32(&refreshCalls))
}

func TestForbiddenDoesNotRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/users/9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
	})
	c, tm, rec := newTestClient(t, mux)
	tm.SetTokens("a", "r")

	resp, err := c.DeleteUser(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, 403, resp.Code)
	assert.Equal(t, "access denied", resp.Message)
	assert.Empty(t, rec.targets)
	assert.Equal(t, "a", tm.AccessToken())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantCode    int
		wantMessage string
	}{
		{"json envelope", 200, "application/json;charset=UTF-8", `{"code":200,"message":"ok"}`, 200, "ok"},
		{"empty json body", 500, "application/json", "  ", 500, "request failed"},
		{"broken json", 401, "application/json", "{", 401, "unauthorized, please log in again"},
		{"json 404 is generic", 404, "application/json", "", 404, "request failed"},
		{"html 404", 404, "text/html", "<h1>nope</h1>", 404, "resource not found"},
		{"plain 403", 403, "text/plain", "denied", 403, "access denied"},
		{"plain 502", 502, "", "", 502, "request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := normalize(tt.status, tt.contentType, []byte(tt.body))
			assert.Equal(t, tt.wantCode, r.Code)
			assert.Equal(t, tt.wantMessage, r.Message)
			assert.Equal(t, tt.status, r.Status)
		})
	}
}

func TestRequestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(tokens.NewManager(store.NewMemoryStore()), Options{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.CurrentUser(context.Background())
	assert.Error(t, err)
}
