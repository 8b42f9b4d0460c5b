package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
	"github.com/phrasebook-app/apiserver/types"
)

// UserHandler provides HTTP handlers for users.
type UserHandler struct {
	resolver *resolvers.Resolver
	logger   logging.Logger
}

func NewUserHandler(res *resolvers.Resolver, logger logging.Logger) *UserHandler {
	return &UserHandler{resolver: res, logger: logger}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, res *resolvers.Resolver, logger logging.Logger) {
	handler := NewUserHandler(res, logger)

	r.Get("/", handler.ListUsers)
	r.Get("/me", handler.Me)
	r.Put("/me/avatar", handler.UploadAvatar)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.resolver.Users(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	views, err := userViews(r.Context(), h.resolver, users)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.resolver.User(r.Context(), id)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeUser(w, r, user)
}

// Me returns the caller, or null for anonymous requests.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolver.Me(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeUser(w, r, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.resolver.DeleteUser(r.Context(), id)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: ok})
}

// UploadAvatar stores the raw request body as the caller's avatar. The
// image type is taken from the Content-Type header.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > resolvers.MaxAvatarSize {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar must be at most 2 MiB")
		return
	}
	body := http.MaxBytesReader(w, r.Body, resolvers.MaxAvatarSize)

	user, err := h.resolver.UploadAvatar(r.Context(), body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeUser(w, r, user)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, user *types.User) {
	if user == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	view, err := userView(r.Context(), h.resolver, *user)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
