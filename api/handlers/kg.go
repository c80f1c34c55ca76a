package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/system"
	"github.com/baiyu-dev/ragkb/types"
)

// KGHandler 知识图谱端点
type KGHandler struct {
	sys       *system.System
	outputDir string
	logger    *zap.Logger
}

// NewKGHandler 创建图谱处理器
func NewKGHandler(sys *system.System, outputDir string, logger *zap.Logger) *KGHandler {
	return &KGHandler{
		sys:       sys,
		outputDir: outputDir,
		logger:    logger.With(zap.String("handler", "kg")),
	}
}

type generateGraphRequest struct {
	// TopN 本次重建保留的实体上限，缺省用配置值
	TopN int `json:"top_n,omitempty"`
}

// Generate 处理 POST /knowledge-graph/generate：全量重建并导出。
// 请求体可省略。
func (h *KGHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateGraphRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, types.NewError(types.ErrInvalidInput, fmt.Sprintf("invalid request body: %v", err)), h.logger)
		return
	}
	if req.TopN < 0 {
		WriteError(w, types.NewError(types.ErrInvalidInput, "top_n must be non-negative"), h.logger)
		return
	}

	graph, paths, err := h.sys.RebuildGraph(r.Context(), h.outputDir, req.TopN)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"stats":   graph.Stats,
		"exports": paths,
	})
}

// Entity 处理 GET /knowledge-graph/entity/{name}
func (h *KGHandler) Entity(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		WriteError(w, types.NewError(types.ErrInvalidInput, "entity name is required"), h.logger)
		return
	}

	outgoing, incoming, err := h.sys.EntityNeighbors(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"entity":   name,
		"outgoing": outgoing,
		"incoming": incoming,
	})
}
