package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/kirillkom/docassist/internal/core/ports"
)

type Deps struct {
	Tokens  ports.TokenReceiver
	Metrics http.Handler

	// AllowedOrigins lists the origins the authorization page may be served
	// from. Requests carrying any other Origin are refused.
	AllowedOrigins []string

	// RateLimitRPS caps requests on the loopback listener; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Router serves the loopback listener the authorization page talks to.
type Router struct {
	tokens  ports.TokenReceiver
	metrics http.Handler
	origins map[string]struct{}
	limiter *rate.Limiter
}

func NewRouter(deps Deps) *Router {
	rt := &Router{
		tokens:  deps.Tokens,
		metrics: deps.Metrics,
		origins: make(map[string]struct{}, len(deps.AllowedOrigins)),
	}
	for _, origin := range deps.AllowedOrigins {
		if o := normalizeOrigin(origin); o != "" {
			rt.origins[o] = struct{}{}
		}
	}
	if deps.RateLimitRPS > 0 {
		burst := deps.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		rt.limiter = rate.NewLimiter(rate.Limit(deps.RateLimitRPS), burst)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if rt.limiter != nil {
		r.Use(rateLimitMiddleware(rt.limiter))
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	r.Route("/oauth", func(r chi.Router) {
		r.Use(originMiddleware(rt.origins))
		r.Post("/token", rt.receiveToken)
		r.Get("/callback", rt.callback)
		r.Post("/closed", rt.windowClosed)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": strings.TrimSpace(err.Error())})
}
