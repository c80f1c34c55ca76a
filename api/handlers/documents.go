package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/system"
	"github.com/baiyu-dev/ragkb/types"
)

// DocumentsHandler 语料管理端点
type DocumentsHandler struct {
	sys    *system.System
	logger *zap.Logger
}

// NewDocumentsHandler 创建语料处理器
func NewDocumentsHandler(sys *system.System, logger *zap.Logger) *DocumentsHandler {
	return &DocumentsHandler{sys: sys, logger: logger.With(zap.String("handler", "documents"))}
}

// List 处理 GET /documents
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"documents":    h.sys.Documents(),
		"index_chunks": h.sys.IndexSize(),
	})
}

type addDocumentRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Add 处理 POST /documents：新增文档并使问答缓存整体失效
func (h *DocumentsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	doc, err := h.sys.AddDocument(r.Context(), req.Title, req.Text)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, doc)
}

// Remove 处理 DELETE /documents/{id}
func (h *DocumentsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidInput, "document id is required"), h.logger)
		return
	}

	if err := h.sys.RemoveDocument(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "removed", "id": id})
}
