package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// SessionFunc resolves the session a request belongs to.
type SessionFunc func(r *http.Request) (string, bool)

// HandleWebSocket upgrades the connection and attaches it to the caller's
// session. Requests without a session are rejected before the upgrade.
func HandleWebSocket(hub *Hub, sessionOf SessionFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOf(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept failed", "error", err)
			return
		}

		NewClient(hub, conn, session).Run(r.Context())
	}
}
