package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
	"github.com/phrasebook-app/apiserver/types"
)

// MessageHandler provides HTTP handlers for messages.
type MessageHandler struct {
	resolver *resolvers.Resolver
	logger   logging.Logger
}

// NewMessageHandler constructs a handler backed by res.
func NewMessageHandler(res *resolvers.Resolver, logger logging.Logger) *MessageHandler {
	return &MessageHandler{resolver: res, logger: logger}
}

// MessageRouter registers message routes on the given router. The stream
// route is registered separately because it must outlive request timeouts.
func MessageRouter(r chi.Router, res *resolvers.Resolver, logger logging.Logger) {
	handler := NewMessageHandler(res, logger)

	r.Get("/", handler.ListMessages)
	r.Post("/", handler.CreateMessage)
	r.Get("/random", handler.RandomMessages)
	r.Get("/random-one", handler.RandomMessage)
	r.Route("/{messageID}", func(r chi.Router) {
		r.Get("/", handler.GetMessage)
		r.Patch("/", handler.UpdateMessage)
		r.Delete("/", handler.DeleteMessage)
		r.Post("/like", handler.LikeMessage)
	})
}

func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.resolver.Messages(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeConnection(w, r, page)
}

func (h *MessageHandler) RandomMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.resolver.RandomX(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeConnection(w, r, page)
}

func (h *MessageHandler) RandomMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.resolver.RandomOne(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeMessage(w, r, http.StatusOK, message)
}

func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "messageID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.resolver.Message(r.Context(), id)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeMessage(w, r, http.StatusOK, message)
}

func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var input types.MessageInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	message, err := h.resolver.CreateMessage(r.Context(), input)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	h.writeMessage(w, r, http.StatusCreated, &message)
}

func (h *MessageHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "messageID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch types.MessagePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ok, err := h.resolver.UpdateMessage(r.Context(), id, patch)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: ok})
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "messageID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.resolver.DeleteMessage(r.Context(), id)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: ok})
}

func (h *MessageHandler) LikeMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "messageID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.resolver.LikeMessage(r.Context(), id)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: ok})
}

func (h *MessageHandler) writeMessage(w http.ResponseWriter, r *http.Request, status int, message *types.Message) {
	if message == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	view, err := messageView(r.Context(), h.resolver, *message)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, view)
}

func (h *MessageHandler) writeConnection(w http.ResponseWriter, r *http.Request, page types.MessageConnection) {
	view, err := connectionView(r.Context(), h.resolver, page)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
