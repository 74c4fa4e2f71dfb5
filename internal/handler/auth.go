package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/service"
)

const (
	stateCookie     = "oauth_state"
	googleCookieTTL = 24 * time.Hour
)

// CookieConfig controls the credential cookies.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler manages local signup/login, the Google OAuth flow and the
// credential cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup / HandleLogin  → local accounts
//   - HandleGoogleLogin           → redirect the browser to Google's consent page
//   - HandleGoogleCallback        → receive the code, find or create the user, set cookies
//   - HandleRefresh               → trade the refresh cookie for a new access cookie
//   - HandleLogout                → clear every credential cookie
//   - HandleProfile               → return the current user
//
// The business rules live in service.AuthService; this file only deals with
// requests, cookies and redirects.
type AuthHandler struct {
	svc       *service.AuthService
	google    *auth.GoogleProvider
	cookies   CookieConfig
	clientURL string
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(
	svc *service.AuthService,
	google *auth.GoogleProvider,
	cookies CookieConfig,
	clientURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:       svc,
		google:    google,
		cookies:   cookies,
		clientURL: clientURL,
		logger:    logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login. The tokens travel only as
// cookies.
type AuthResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// HandleSignup creates a local account.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "a@b.c", "password": "secret"}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookies(w, result)
	writeJSON(w, http.StatusCreated, AuthResponse{Message: "Signup successful", User: result.User})
}

// HandleLogin checks a local account's password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookies(w, result)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Login successful", User: result.User})
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /api/auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the consent URL.
// HandleGoogleCallback only proceeds when both match, which proves the
// callback was initiated by this server.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, h.logger, apperror.ValidationFailed("provider", "google sign-in is not configured"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the Google profile and access token
//  3. Find the user by email, or create a Google account
//  4. Set the access, refresh and googleAccessToken cookies
//  5. Redirect to the client app
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, h.logger, apperror.ValidationFailed("provider", "google sign-in is not configured"))
		return
	}

	// --- Step 1: Validate CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	h.clearCookie(w, stateCookie)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.clientURL+"/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange the code ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	gu, token, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.Unauthenticated("google authentication failed"))
		return
	}

	// --- Step 3: Find or create the user ---
	result, err := h.svc.SignInWithGoogle(r.Context(), gu)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// --- Step 4: Cookies ---
	h.setSessionCookies(w, result)
	h.setCookie(w, auth.GoogleCookie, token.AccessToken, googleCookieTTL)

	// --- Step 5: Back to the app ---
	http.Redirect(w, r, h.clientURL, http.StatusSeeOther)
}

// HandleRefresh issues a new access cookie from the refresh cookie.
//
// HTTP: POST /api/auth/refresh-token
//
// An expired refresh token answers 401 "token_expired" (the client sends the
// user to the login page); a malformed one answers 401 "unauthorized".
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var refresh string
	if c, err := r.Cookie(auth.RefreshCookie); err == nil {
		refresh = c.Value
	}

	access, err := h.svc.Refresh(r.Context(), refresh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setCookie(w, auth.AccessCookie, access, h.cookies.AccessTTL)
	writeMessage(w, http.StatusOK, "Token refreshed successfully")
}

// HandleLogout clears every credential cookie.
//
// HTTP: POST /api/auth/logout
//
// Tokens stay technically valid until they expire, but without the cookies
// the browser can no longer send them.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie, auth.GoogleCookie} {
		h.clearCookie(w, name)
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleProfile returns the current user. The password hash never leaves the
// server (model.User tags it json:"-").
//
// HTTP: GET /api/auth/profile
// Auth: Required
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, result *service.AuthResult) {
	h.setCookie(w, auth.AccessCookie, result.AccessToken, h.cookies.AccessTTL)
	h.setCookie(w, auth.RefreshCookie, result.RefreshToken, h.cookies.RefreshTTL)
}

// setCookie writes an HttpOnly credential cookie. Secure should be on in
// production (HTTPS only); local development runs without it.
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
