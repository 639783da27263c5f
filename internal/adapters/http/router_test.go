package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	authOrigin  = "http://localhost:8000"
	issuedState = "5b0c3f7e-attempt"
)

type tokenReceiverFake struct {
	state     string
	pending   bool
	tokens    []json.RawMessage
	expiresAt []*time.Time
	abandons  int
	err       error
}

func newTokenReceiverFake() *tokenReceiverFake {
	return &tokenReceiverFake{state: issuedState, pending: true}
}

func (f *tokenReceiverFake) DeliverToken(_ context.Context, state string, token json.RawMessage, expiresAt *time.Time) error {
	if f.err != nil {
		return f.err
	}
	if state != f.state {
		return domain.WrapError(domain.ErrStateMismatch, "deliver token", errors.New("unknown authorization state"))
	}
	f.tokens = append(f.tokens, token)
	f.expiresAt = append(f.expiresAt, expiresAt)
	return nil
}

func (f *tokenReceiverFake) AbandonAuthorization(state string) (bool, error) {
	if state != f.state {
		return false, domain.WrapError(domain.ErrStateMismatch, "abandon authorization", errors.New("unknown authorization state"))
	}
	f.abandons++
	ended := f.pending
	f.pending = false
	return ended, nil
}

func newTestHandler(tokens *tokenReceiverFake) http.Handler {
	return NewRouter(Deps{Tokens: tokens, AllowedOrigins: []string{authOrigin + "/"}}).Handler()
}

func serve(handler http.Handler, method, target string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestReceiveTokenDeliversToSession(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	body := []byte(`{"type":"oauth_token","state":"` + issuedState + `","token":{"access_token":"abc"},"expires_in":3600}`)
	res := serve(handler, http.MethodPost, "/oauth/token", body, "Origin", authOrigin)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(tokens.tokens) != 1 || string(tokens.tokens[0]) != `{"access_token":"abc"}` {
		t.Fatalf("unexpected delivered tokens: %q", tokens.tokens)
	}
	if tokens.expiresAt[0] == nil || time.Until(*tokens.expiresAt[0]) < 59*time.Minute {
		t.Fatalf("expected expiry about an hour ahead, got %v", tokens.expiresAt[0])
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != authOrigin {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestReceiveTokenRefusesForeignOrigin(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	body := []byte(`{"type":"oauth_token","state":"` + issuedState + `","token":"attacker"}`)
	res := serve(handler, http.MethodPost, "/oauth/token", body, "Origin", "https://evil.example")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("no CORS grant expected for a foreign origin")
	}

	res = serve(handler, http.MethodOptions, "/oauth/token", nil, "Origin", "null")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected preflight from opaque origin refused, got %d", res.Code)
	}
	if len(tokens.tokens) != 0 {
		t.Fatalf("expected no delivered tokens, got %d", len(tokens.tokens))
	}
}

func TestReceiveTokenRequiresState(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	for _, body := range []string{
		`{"type":"oauth_token","token":"attacker"}`,
		`{"type":"oauth_token","state":"guessed","token":"attacker"}`,
	} {
		res := serve(handler, http.MethodPost, "/oauth/token", []byte(body), "Origin", authOrigin)
		if res.Code != http.StatusForbidden {
			t.Fatalf("body %s: expected 403, got %d", body, res.Code)
		}
	}
	if len(tokens.tokens) != 0 {
		t.Fatalf("expected no delivered tokens, got %d", len(tokens.tokens))
	}
}

func TestReceiveTokenRejectsBadMessages(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	for _, body := range []string{
		`not json`,
		`{"type":"something_else","state":"` + issuedState + `","token":"abc"}`,
		`{"type":"oauth_token","state":"` + issuedState + `"}`,
		`{"type":"oauth_token","state":"` + issuedState + `","token":null}`,
	} {
		res := serve(handler, http.MethodPost, "/oauth/token", []byte(body))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
	}
	if len(tokens.tokens) != 0 {
		t.Fatalf("expected no delivered tokens, got %d", len(tokens.tokens))
	}
}

func TestReceiveTokenMapsSessionClosedTo410(t *testing.T) {
	tokens := newTokenReceiverFake()
	tokens.err = domain.ErrSessionClosed
	handler := newTestHandler(tokens)

	res := serve(handler, http.MethodPost, "/oauth/token", []byte(`{"type":"oauth_token","state":"`+issuedState+`","token":"abc"}`))
	if res.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", res.Code)
	}
}

func TestCallbackDeliversQueryToken(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	res := serve(handler, http.MethodGet, "/oauth/callback?token=abc123&state="+issuedState, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(tokens.tokens) != 1 || string(tokens.tokens[0]) != `"abc123"` {
		t.Fatalf("expected token delivered as json string, got %q", tokens.tokens)
	}
	if tokens.expiresAt[0] != nil {
		t.Fatalf("expected no expiry without expires_in")
	}
	if !strings.Contains(res.Body.String(), "Account connected") {
		t.Fatalf("unexpected page: %s", res.Body.String())
	}
}

func TestCallbackRefusesWrongOrMissingState(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	for _, target := range []string{
		"/oauth/callback?token=attacker2",
		"/oauth/callback?token=attacker2&state=guessed",
		"/oauth/callback?error=access_denied",
		"/oauth/callback?error=access_denied&state=guessed",
	} {
		res := serve(handler, http.MethodGet, target, nil, "Referer", "https://evil.example/page")
		if res.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", target, res.Code)
		}
		if strings.Contains(res.Body.String(), "attacker2") {
			t.Fatalf("%s: page must not echo the token", target)
		}
	}
	if len(tokens.tokens) != 0 || tokens.abandons != 0 {
		t.Fatalf("expected nothing delivered or abandoned, tokens=%d abandons=%d", len(tokens.tokens), tokens.abandons)
	}
}

func TestCallbackErrorAbandonsAttempt(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	res := serve(handler, http.MethodGet, "/oauth/callback?error=access_denied&state="+issuedState, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if tokens.abandons != 1 || len(tokens.tokens) != 0 {
		t.Fatalf("expected attempt abandoned without a token, abandons=%d tokens=%d", tokens.abandons, len(tokens.tokens))
	}

	res = serve(handler, http.MethodGet, "/oauth/callback?state="+issuedState, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", res.Code)
	}
}

func TestWindowClosedBeacon(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	res := serve(handler, http.MethodPost, "/oauth/closed", []byte(`{"state":"`+issuedState+`"}`), "Origin", authOrigin)
	var body map[string]bool
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body["closed"] {
		t.Fatalf("expected first beacon to end the attempt")
	}

	res = serve(handler, http.MethodPost, "/oauth/closed?state="+issuedState, nil)
	body = nil
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["closed"] || tokens.abandons != 2 {
		t.Fatalf("expected second beacon to be a no-op, got %v abandons=%d", body, tokens.abandons)
	}
}

func TestWindowClosedBeaconRequiresStateAndPost(t *testing.T) {
	tokens := newTokenReceiverFake()
	handler := newTestHandler(tokens)

	if res := serve(handler, http.MethodPost, "/oauth/closed", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without state, got %d", res.Code)
	}
	if res := serve(handler, http.MethodPost, "/oauth/closed?state=guessed", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a wrong state, got %d", res.Code)
	}
	if res := serve(handler, http.MethodGet, "/oauth/closed?state="+issuedState, nil); res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected GET refused, got %d", res.Code)
	}
	if !tokens.pending || tokens.abandons != 0 {
		t.Fatalf("expected the attempt untouched")
	}
}

func TestPreflightAllowedForAuthOrigin(t *testing.T) {
	handler := newTestHandler(newTokenReceiverFake())

	res := serve(handler, http.MethodOptions, "/oauth/token", nil, "Origin", "HTTP://LOCALHOST:8000")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if res.Header().Get("Access-Control-Allow-Origin") != "HTTP://LOCALHOST:8000" {
		t.Fatalf("expected CORS header for the allowed origin")
	}
	if !strings.Contains(res.Header().Get("Vary"), "Origin") {
		t.Fatalf("expected Vary: Origin")
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("docassist_uploads_total 1\n"))
	})
	handler := NewRouter(Deps{Metrics: metrics}).Handler()

	if res := serve(handler, http.MethodGet, "/healthz", nil); res.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", res.Code)
	}
	res := serve(handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "docassist_uploads_total") {
		t.Fatalf("unexpected metrics response %d: %s", res.Code, res.Body.String())
	}
	if res := serve(handler, http.MethodGet, "/unknown", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := NewRouter(Deps{RateLimitRPS: 1, RateLimitBurst: 1}).Handler()

	if res := serve(handler, http.MethodGet, "/healthz", nil); res.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res.Code)
	}
	res := serve(handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestNormalizeOrigin(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000/":    "http://localhost:8000",
		"HTTPS://Auth.Example.test": "https://auth.example.test",
		"null":                      "",
		"":                          "",
	}
	for in, want := range cases {
		if got := normalizeOrigin(in); got != want {
			t.Fatalf("normalizeOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}
