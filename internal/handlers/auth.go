package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
)

const (
	tokenHeader        = "x-token"
	sessionExpiredText = "Your session expired. Sign in again."
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Identity resolves the caller from the x-token or Authorization header.
// Requests without a token continue anonymously; an invalid token is
// rejected.
func Identity(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := tokens.Verify(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: sessionExpiredText,
					Code:  string(apperr.CodeUnauthenticated),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// Loaders attaches a fresh loader set to every request.
func Loaders(res *resolvers.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := resolvers.WithLoaders(r.Context(), res.NewLoaders())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(tokenHeader)); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthHandler serves sign-up and sign-in.
type AuthHandler struct {
	resolver *resolvers.Resolver
	logger   logging.Logger
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, res *resolvers.Resolver, logger logging.Logger) {
	handler := &AuthHandler{resolver: res, logger: logger}

	r.Post("/sign-up", handler.SignUp)
	r.Post("/sign-in", handler.SignIn)
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	token, err := h.resolver.SignUp(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	token, err := h.resolver.SignIn(r.Context(), req.Login, req.Password)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
