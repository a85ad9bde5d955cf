package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexlabs/loginchat/pkg/tokens"
)

func intPtr(v int) *int { return &v }

func TestUpdateProfileMergesCachedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{"nickname": "Alice B."},
		})
	})
	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("a", "r")
	require.NoError(t, tm.SetUser(tokens.User{"username": "alice", "nickname": "Alice"}))

	_, err := c.UpdateProfile(context.Background(), map[string]interface{}{"nickname": "Alice B."})
	require.NoError(t, err)

	u, err := tm.User()
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", u["nickname"])
	assert.Equal(t, "alice", u["username"])
}

func TestSetPasswordOmitsEmptyFields(t *testing.T) {
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/set-password", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200})
	})
	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("a", "r")

	_, err := c.SetPassword(context.Background(), "Fresh1!", "", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"password": "Fresh1!"}, body)

	_, err = c.SetPassword(context.Background(), "Fresh2!", "Fresh1!", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"password": "Fresh2!", "oldPassword": "Fresh1!"}, body)
}

func TestSocialAccounts(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/social-accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code": 200,
			"data": []map[string]string{{"provider": "github"}},
		})
	})
	mux.HandleFunc("/user/social-accounts/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = strings.TrimPrefix(r.URL.Path, "/user/social-accounts/")
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": 200})
	})
	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("a", "r")

	resp, err := c.SocialAccounts(context.Background())
	require.NoError(t, err)
	var accounts []map[string]string
	require.NoError(t, resp.DecodeData(&accounts))
	assert.Equal(t, "github", accounts[0]["provider"])

	_, err = c.UnbindSocialAccount(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "github", deleted)
}

func TestUploadAvatar(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/avatar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		f, hdr, err := r.FormFile("avatar")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "me.png", hdr.Filename)
		assert.Equal(t, "PNGDATA", string(data))

		assert.Equal(t, "10", r.FormValue("x"))
		assert.Equal(t, "128", r.FormValue("width"))
		assert.Empty(t, r.FormValue("y"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code": 200,
			"data": map[string]string{"avatar": "/avatars/7.png"},
		})
	})
	c, tm, _ := newTestClient(t, mux)
	tm.SetTokens("a", "r")
	require.NoError(t, tm.SetUser(tokens.User{"username": "alice"}))

	resp, err := c.UploadAvatar(context.Background(), "me.png", strings.NewReader("PNGDATA"),
		&Crop{X: intPtr(10), Width: intPtr(128)})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	u, err := tm.User()
	require.NoError(t, err)
	assert.Equal(t, "/avatars/7.png", u["avatar"])
}

func TestUploadAvatarUnauthorizedEndsSession(t *testing.T) {
	var refreshed bool
	mux := http.NewServeMux()
	mux.HandleFunc("/user/avatar", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": 401, "message": "token expired"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshed = true
	})
	c, tm, rec := newTestClient(t, mux)
	tm.SetTokens("a", "r")

	_, err := c.UploadAvatar(context.Background(), "me.png", strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, refreshed)
	assert.Empty(t, tm.AccessToken())
	assert.Equal(t, []string{RouteLogin}, rec.targets)
}

func TestParseUploadResponse(t *testing.T) {
	r, err := parseUploadResponse(500, "text/plain", []byte("disk full"))
	require.NoError(t, err)
	assert.Equal(t, 500, r.Code)
	assert.Equal(t, "disk full", r.Message)

	r, err = parseUploadResponse(413, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "upload failed", r.Message)

	r, err = parseUploadResponse(200, "text/plain", []byte(`{"code":200,"message":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Message)

	_, err = parseUploadResponse(200, "application/json", []byte("<html>"))
	assert.ErrorIs(t, err, ErrBadResponse)
}
