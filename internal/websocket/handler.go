package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/habitflow/internal/auth"
)

// SessionVerifier validates session tokens.
type SessionVerifier interface {
	ParseSession(token string) (*auth.Claims, error)
}

// HandleWebSocket upgrades authenticated connections and runs them as Hub
// clients. Browsers cannot set headers on upgrade requests, so the session
// token is read from the "token" query parameter.
func HandleWebSocket(hub *Hub, verifier SessionVerifier, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	patterns := originPatterns(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := verifier.ParseSession(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, claims.UserID, conn)
		client.Run(r.Context())
	}
}

// originPatterns converts origins like "https://app.example.com" into the
// host patterns the websocket library matches against.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
