package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/system"
)

// RouterConfig 路由装配参数
type RouterConfig struct {
	System         *system.System
	GraphOutputDir string
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewRouter 装配全部路由
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	qa := NewQAHandler(cfg.System, logger)
	kgH := NewKGHandler(cfg.System, cfg.GraphOutputDir, logger)
	docs := NewDocumentsHandler(cfg.System, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /qa", qa.Answer)
	mux.HandleFunc("GET /qa/cache/stats", qa.CacheStats)
	mux.HandleFunc("DELETE /qa/cache", qa.ClearCache)

	mux.HandleFunc("POST /knowledge-graph/generate", kgH.Generate)
	mux.HandleFunc("GET /knowledge-graph/entity/{name}", kgH.Entity)

	mux.HandleFunc("GET /documents", docs.List)
	mux.HandleFunc("POST /documents", docs.Add)
	mux.HandleFunc("DELETE /documents/{id}", docs.Remove)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]interface{}{
			"status":       "ok",
			"index_chunks": cfg.System.IndexSize(),
		})
	})
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return logRequests(mux, logger)
}

// logRequests 访问日志中间件
func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
