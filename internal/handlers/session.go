// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/thitainfo/typer-service/internal/auth"
)

const connCookieName = "typer_token"

// EnsureConnectionID resolves the caller's stable connection id from the
// typer_token cookie, minting a fresh identity and setting the cookie when the
// cookie is missing or no longer verifies. Must run before any WebSocket
// upgrade so the Set-Cookie header can still go out with the handshake
// response.
func EnsureConnectionID(w http.ResponseWriter, r *http.Request) (string, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, connCookieName+"=") {
		token := extractCookieToken(cookieHeader, connCookieName)
		if connID, err := auth.AuthenticateToken(token); err == nil {
			return connID, nil
		}
	}
	return issueConnectionID(w)
}

func issueConnectionID(w http.ResponseWriter) (string, error) {
	connID := uuid.NewString()
	token, err := auth.CreateConnectionToken(connID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     connCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return connID, nil
}
