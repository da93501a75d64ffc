package api

import (
	"encoding/json"
	"net/http"
	"time"

	domrepo "AlphaPipe/internal/domain/repository"
	icache "AlphaPipe/internal/service/cache"
	"AlphaPipe/internal/service/metrics"
	"AlphaPipe/internal/service/ratelimit"
	"AlphaPipe/internal/usecase"
	pkgcache "AlphaPipe/pkg/cache"
	xhttp "AlphaPipe/pkg/http"
	xmiddleware "AlphaPipe/pkg/http/middleware"
	applogger "AlphaPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PipelineHandler serves the cached, rate-limited plain-HTTP variant of
// the read API.
type PipelineHandler struct {
	query *usecase.QueryUseCase
	cache icache.BytesCache
	rl    *ratelimit.Limiter
	l     *applogger.Logger
}

func NewPipelineHandler(query *usecase.QueryUseCase) *PipelineHandler {
	metrics.Register()
	return &PipelineHandler{query: query, rl: ratelimit.New()}
}

func (h *PipelineHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *PipelineHandler) SetLogger(l *applogger.Logger) { h.l = l }

// RegisterRoutes mounts the plain handlers on the shared Echo server
// under /v1. These endpoints add server-side caching and per-client
// rate limiting on top of the same use cases as /api.
func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	mw := xmiddleware.Metrics(h.l, 500*time.Millisecond)
	g := e.Group("/v1")
	g.GET("/features", echo.WrapHandler(mw(h.Features())))
	g.GET("/signal", echo.WrapHandler(mw(h.Signal())))
	g.GET("/decide", echo.WrapHandler(mw(h.Decide())))
}

func (h *PipelineHandler) Features() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "features"
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("api.features missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		n := xhttp.ParseIntDefault(r.URL.Query().Get("n"), 120)
		tf := domrepo.NormalizeTimeframe(r.URL.Query().Get("tf"))
		if !h.rl.Allow(r.RemoteAddr+":features", 5, 2) {
			if h.l != nil {
				h.l.Warn("api.features rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}

		cacheKey := pkgcache.GenerateKeyWithParams("features", symbol, string(tf))
		if b, ok := h.cacheGet(endpoint, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(b)
			return
		}

		res, err := h.query.Features(r.Context(), symbol, n, tf)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("api.features error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, endpoint, cacheKey, res, 10*time.Second)
	}
}

func (h *PipelineHandler) Signal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "signal"
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("api.signal missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		model := r.URL.Query().Get("model")
		if model == "" {
			model = "ar4"
		}
		n := xhttp.ParseIntDefault(r.URL.Query().Get("n"), 600)
		tf := domrepo.NormalizeTimeframe(r.URL.Query().Get("tf"))
		if !h.rl.Allow(r.RemoteAddr+":signal", 5, 2) {
			if h.l != nil {
				h.l.Warn("api.signal rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}

		cacheKey := pkgcache.GenerateKeyWithParams("signal", symbol, model, string(tf))
		if b, ok := h.cacheGet(endpoint, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(b)
			return
		}

		res, err := h.query.Signal(r.Context(), symbol, model, n, tf)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("api.signal error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, endpoint, cacheKey, res, 15*time.Second)
	}
}

func (h *PipelineHandler) Decide() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "decide"
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("api.decide missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		n := xhttp.ParseIntDefault(r.URL.Query().Get("n"), 600)
		tf := domrepo.NormalizeTimeframe(r.URL.Query().Get("tf"))
		if !h.rl.Allow(r.RemoteAddr+":decide", 3, 1) {
			if h.l != nil {
				h.l.Warn("api.decide rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}

		cacheKey := pkgcache.GenerateKeyWithParams("decide", symbol, string(tf))
		if b, ok := h.cacheGet(endpoint, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(b)
			return
		}

		res, err := h.query.Decide(r.Context(), symbol, n, tf)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("api.decide error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, endpoint, cacheKey, res, 15*time.Second)
	}
}

func (h *PipelineHandler) cacheGet(endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.l != nil {
			h.l.Warn("api."+endpoint+" cache_get_error", applogger.Error(err))
		}
		return nil, false
	}
	if ok && h.l != nil {
		h.l.Debug("api."+endpoint+" cache_hit", applogger.String("key", key))
	}
	return b, ok
}

func (h *PipelineHandler) writeJSON(w http.ResponseWriter, endpoint, cacheKey string, res interface{}, ttl time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	b, err := json.Marshal(res)
	if err != nil {
		if h.l != nil {
			h.l.Error("api."+endpoint+" marshal_error", applogger.Error(err))
		}
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(cacheKey, b, ttl); err != nil && h.l != nil {
			h.l.Warn("api."+endpoint+" cache_set_error", applogger.Error(err))
		}
	}
	if _, err := w.Write(b); err != nil && h.l != nil {
		h.l.Warn("api."+endpoint+" write_error", applogger.Error(err))
	}
}
