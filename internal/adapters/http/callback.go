package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	tokenMessageType = "oauth_token"
	maxTokenBody     = 64 << 10
	maxBeaconBody    = 4 << 10
)

type tokenMessage struct {
	Type      string          `json:"type"`
	State     string          `json:"state"`
	Token     json.RawMessage `json:"token"`
	ExpiresIn *int64          `json:"expires_in,omitempty"`
}

func (rt *Router) receiveToken(w http.ResponseWriter, r *http.Request) {
	var msg tokenMessage
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenBody))
	if err := decoder.Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if msg.Type != "" && msg.Type != tokenMessageType {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unsupported message type %q", msg.Type)})
		return
	}
	token := bytes.TrimSpace(msg.Token)
	if len(token) == 0 || bytes.Equal(token, []byte("null")) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	if err := rt.deliver(r, msg.State, token, expiresAt(msg.ExpiresIn)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// callback is the redirect target of the authorization page. It accepts a
// plain token query parameter or an error reported by the provider; both
// must carry the state of the attempt.
func (rt *Router) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	if reason := strings.TrimSpace(query.Get("error")); reason != "" {
		if _, err := rt.abandon(state); err != nil {
			writeHTML(w, mapErrorToHTTPStatus(err), "Authorization failed", "This authorization request is unknown or has expired.")
			return
		}
		writeHTML(w, http.StatusOK, "Authorization cancelled", reason)
		return
	}

	raw := strings.TrimSpace(query.Get("token"))
	if raw == "" {
		writeHTML(w, http.StatusBadRequest, "Authorization failed", "No token was received.")
		return
	}
	token, _ := json.Marshal(raw)

	var expiresIn *int64
	if v := query.Get("expires_in"); v != "" {
		if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
			expiresIn = &seconds
		}
	}

	if err := rt.deliver(r, state, token, expiresAt(expiresIn)); err != nil {
		message := err.Error()
		if domain.IsKind(err, domain.ErrStateMismatch) {
			message = "This authorization request is unknown or has expired."
		}
		writeHTML(w, mapErrorToHTTPStatus(err), "Authorization failed", message)
		return
	}
	writeHTML(w, http.StatusOK, "Account connected", "You can close this window and return to the terminal.")
}

// windowClosed is the beacon the authorization page sends when it unloads.
// The state comes from the query string or a {"state": ...} body.
func (rt *Router) windowClosed(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		var body struct {
			State string `json:"state"`
		}
		raw, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBeaconBody))
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
				return
			}
		}
		state = body.State
	}

	ended, err := rt.abandon(state)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": ended})
}

func (rt *Router) deliver(r *http.Request, state string, token json.RawMessage, expires *time.Time) error {
	if rt.tokens == nil {
		return domain.WrapError(domain.ErrSessionClosed, "deliver token", errors.New("no session is accepting tokens"))
	}
	if strings.TrimSpace(state) == "" {
		return domain.WrapError(domain.ErrStateMismatch, "deliver token", errors.New("state is required"))
	}
	return rt.tokens.DeliverToken(r.Context(), state, token, expires)
}

func (rt *Router) abandon(state string) (bool, error) {
	if rt.tokens == nil {
		return false, domain.WrapError(domain.ErrSessionClosed, "abandon authorization", errors.New("no session is accepting tokens"))
	}
	if strings.TrimSpace(state) == "" {
		return false, domain.WrapError(domain.ErrStateMismatch, "abandon authorization", errors.New("state is required"))
	}
	return rt.tokens.AbandonAuthorization(state)
}

func expiresAt(expiresIn *int64) *time.Time {
	if expiresIn == nil || *expiresIn <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(*expiresIn) * time.Second)
	return &t
}

func writeHTML(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><html><head><title>%[1]s</title></head><body><h1>%[1]s</h1><p>%[2]s</p></body></html>",
		html.EscapeString(title), html.EscapeString(message))
}
