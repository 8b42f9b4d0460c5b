package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
)

const streamKeepAlive = 25 * time.Second

// MessageStream serves messageCreated events as Server-Sent Events. Only
// messages created after the connection opens are delivered.
func MessageStream(res *resolvers.Resolver, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// The server write timeout would otherwise end the stream.
		_ = rc.SetWriteDeadline(time.Time{})

		sub := res.MessageCreated(r.Context())
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			logger.Warn(r.Context(), "streaming unsupported", "error", err)
			return
		}

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				view, err := messageView(r.Context(), res, ev.Message)
				if err != nil {
					logger.Error(r.Context(), "failed to resolve message author", "message_id", ev.Message.ID, "error", err)
					continue
				}
				data, err := json.Marshal(map[string]MessageView{"message": view})
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: messageCreated\ndata: %s\n\n", data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
