package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
)

// Cookie names shared by the auth handler and the middleware.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	GoogleCookie  = "googleAccessToken"
)

// contextKey is an unexported type so no other package can read or shadow
// the values this package stores in a request context.
type contextKey string

const identityKey contextKey = "identity"

// Identity is the acting user for one request.
//
// GoogleAccessToken is whatever the googleAccessToken cookie held. It is only
// meaningful for Google accounts; the capability layer refuses federated
// calls when it is empty.
type Identity struct {
	User              *model.User
	GoogleAccessToken string
}

func (id *Identity) UserID() string {
	return id.User.ID
}

// UserLookup is the slice of repository.UserRepository the resolver needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver turns an access token into an Identity.
type Resolver struct {
	tokens *TokenService
	users  UserLookup
}

func NewResolver(tokens *TokenService, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve validates the access token and loads its user. A token for a user
// that no longer exists is treated as unauthenticated rather than as a
// server error.
func (rv *Resolver) Resolve(ctx context.Context, accessToken, googleToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, apperror.Unauthenticated("no access token")
	}

	userID, err := rv.tokens.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := rv.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("user not found")
		}
		return nil, fmt.Errorf("auth: loading user %s: %w", userID, err)
	}

	return &Identity{User: user, GoogleAccessToken: googleToken}, nil
}

// RequireAuth resolves the identity from the accessToken and
// googleAccessToken cookies and stores it in the request context. Failures
// stop the chain with 401 (500 when the user lookup itself failed).
func RequireAuth(rv *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := rv.Resolve(r.Context(), cookieValue(r, AccessCookie), cookieValue(r, GoogleCookie))
			if err != nil {
				writeAuthError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity RequireAuth stored, or false on
// routes it does not guard.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil && id.User != nil
}

// UserIDFromContext is a shortcut for handlers that only need the ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.User.ID, true
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// writeAuthError mirrors handler.writeError for the two outcomes this
// middleware can produce. It lives here because handler imports auth.
func writeAuthError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusUnauthorized
	body := map[string]string{"error": "unauthorized", "message": "valid authentication required"}

	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrTokenExpired):
		body["error"] = "token_expired"
		body["message"] = "access token expired"
	case errors.As(err, &appErr) && errors.Is(err, apperror.ErrUnauthenticated):
		body["message"] = appErr.Message
	default:
		logger.Error("resolving identity", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		body = map[string]string{"error": "internal_error", "message": "An internal error occurred"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
