package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/handler"
	"github.com/sakif/tubeclone/internal/repository/sqlite"
	"github.com/sakif/tubeclone/internal/service"
)

const clientURL = "http://localhost:5173"

type authEnv struct {
	h       *handler.AuthHandler
	db      *sqlite.DB
	access  *auth.TokenService
	refresh *auth.TokenService
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthEnv(t *testing.T, google *auth.GoogleProvider) *authEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	access, err := auth.NewTokenService("access-secret-at-least-16", 15*time.Minute)
	require.NoError(t, err)
	refresh, err := auth.NewTokenService("refresh-secret-at-least-16", 7*24*time.Hour)
	require.NoError(t, err)

	svc := service.NewAuthService(db, access, refresh, auth.NewPasswordServiceForTest(4), quietLogger())
	h := handler.NewAuthHandler(svc, google, handler.CookieConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clientURL, quietLogger())

	return &authEnv{h: h, db: db, access: access, refresh: refresh}
}

func cookiesByName(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rr.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestAuthHandler_Signup(t *testing.T) {
	env := newAuthEnv(t, nil)

	t.Run("creates user and sets cookies", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.h.HandleSignup(rr, postJSON("/api/auth/signup", `{"email":"new@example.com","password":"secret1"}`))

		assert.Equal(t, http.StatusCreated, rr.Code)

		var res handler.AuthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "new@example.com", res.User.Email)
		assert.Equal(t, "@new", res.User.Channel.DisplayName)

		cookies := cookiesByName(rr)
		require.Contains(t, cookies, auth.AccessCookie)
		require.Contains(t, cookies, auth.RefreshCookie)
		assert.True(t, cookies[auth.AccessCookie].HttpOnly)
		assert.Equal(t, int((15 * time.Minute).Seconds()), cookies[auth.AccessCookie].MaxAge)

		id, err := env.access.Validate(cookies[auth.AccessCookie].Value)
		assert.NoError(t, err)
		assert.Equal(t, res.User.ID, id)
	})

	t.Run("duplicate email is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.h.HandleSignup(rr, postJSON("/api/auth/signup", `{"email":"NEW@example.com","password":"secret2"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "email already registered", decodeError(t, rr).Message)
	})

	t.Run("invalid JSON is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.h.HandleSignup(rr, postJSON("/api/auth/signup", `{"email":`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	env := newAuthEnv(t, nil)
	env.h.HandleSignup(httptest.NewRecorder(), postJSON("/api/auth/signup", `{"email":"me@example.com","password":"secret1"}`))

	rr := httptest.NewRecorder()
	env.h.HandleLogin(rr, postJSON("/api/auth/login", `{"email":"me@example.com","password":"secret1"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, cookiesByName(rr), auth.AccessCookie)

	rr = httptest.NewRecorder()
	env.h.HandleLogin(rr, postJSON("/api/auth/login", `{"email":"me@example.com","password":"wrong!"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
}

func TestAuthHandler_Logout(t *testing.T) {
	env := newAuthEnv(t, nil)

	rr := httptest.NewRecorder()
	env.h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := cookiesByName(rr)
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie, auth.GoogleCookie} {
		require.Contains(t, cookies, name)
		assert.Negative(t, cookies[name].MaxAge, name)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	env := newAuthEnv(t, nil)

	signup := httptest.NewRecorder()
	env.h.HandleSignup(signup, postJSON("/api/auth/signup", `{"email":"r@example.com","password":"secret1"}`))
	refreshCookie := cookiesByName(signup)[auth.RefreshCookie]
	require.NotNil(t, refreshCookie)

	t.Run("valid refresh cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
		req.AddCookie(refreshCookie)
		rr := httptest.NewRecorder()
		env.h.HandleRefresh(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, cookiesByName(rr), auth.AccessCookie)
	})

	t.Run("missing cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.h.HandleRefresh(rr, httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rr).Error)
	})

	t.Run("expired cookie", func(t *testing.T) {
		expired, err := env.refresh.GenerateWithDuration("someone", -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: expired})
		rr := httptest.NewRecorder()
		env.h.HandleRefresh(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "token_expired", decodeError(t, rr).Error)
	})
}

func TestAuthHandler_GoogleDisabled(t *testing.T) {
	env := newAuthEnv(t, nil)

	rr := httptest.NewRecorder()
	env.h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// fakeGoogle serves the token and userinfo endpoints the provider calls.
func fakeGoogle(t *testing.T) *auth.GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "g-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "g-1", "email": "viewer@example.com", "name": "Viewer", "picture": "https://img/v.png",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return auth.NewGoogleProvider("client-id", "secret", "http://localhost/cb",
		auth.WithGoogleEndpoints(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/"))
}

func TestAuthHandler_GoogleFlow(t *testing.T) {
	env := newAuthEnv(t, fakeGoogle(t))

	// Step 1: consent redirect carries the state cookie.
	rr := httptest.NewRecorder()
	env.h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	state := cookiesByName(rr)["oauth_state"]
	require.NotNil(t, state)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))

	// Step 2: callback with a forged state is rejected.
	bad := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=c&state=forged", nil)
	bad.AddCookie(state)
	rr = httptest.NewRecorder()
	env.h.HandleGoogleCallback(rr, bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Step 3: the real callback creates the user and sets all three cookies.
	good := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=c&state="+state.Value, nil)
	good.AddCookie(state)
	rr = httptest.NewRecorder()
	env.h.HandleGoogleCallback(rr, good)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, clientURL, rr.Header().Get("Location"))

	cookies := cookiesByName(rr)
	require.Contains(t, cookies, auth.GoogleCookie)
	assert.Equal(t, "g-access", cookies[auth.GoogleCookie].Value)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookies[auth.GoogleCookie].MaxAge)
	assert.Contains(t, cookies, auth.AccessCookie)
	assert.Contains(t, cookies, auth.RefreshCookie)

	u, err := env.db.GetUserByEmail(t.Context(), "viewer@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsGoogleSignIn())
	assert.Equal(t, "Viewer", u.Channel.DisplayName)
}
