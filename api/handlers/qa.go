package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/system"
)

// QAHandler 问答相关端点
type QAHandler struct {
	sys    *system.System
	logger *zap.Logger
}

// NewQAHandler 创建问答处理器
func NewQAHandler(sys *system.System, logger *zap.Logger) *QAHandler {
	return &QAHandler{sys: sys, logger: logger.With(zap.String("handler", "qa"))}
}

type qaRequest struct {
	Query             string `json:"query"`
	TopK              int    `json:"top_k,omitempty"`
	UseCache          *bool  `json:"use_cache,omitempty"` // 缺省为 true
	CustomInstruction string `json:"custom_instruction,omitempty"`
	EnableFollowup    bool   `json:"enable_followup,omitempty"`
}

// Answer 处理 POST /qa
func (h *QAHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, err := h.sys.Answer(r.Context(), system.Request{
		Query:             req.Query,
		TopK:              req.TopK,
		UseCache:          useCache,
		CustomInstruction: req.CustomInstruction,
		EnableFollowup:    req.EnableFollowup,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// CacheStats 处理 GET /qa/cache/stats
func (h *QAHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.sys.CacheStats())
}

// ClearCache 处理 DELETE /qa/cache
func (h *QAHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.ClearCache(r.Context()); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "cleared"})
}
