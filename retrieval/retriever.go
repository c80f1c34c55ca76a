package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/embed"
)

// Retriever 组合嵌入客户端与向量索引完成语义检索
type Retriever struct {
	embedder  embed.Embedder
	index     *Index
	threshold float32
	logger    *zap.Logger
}

// NewRetriever 创建检索器
func NewRetriever(embedder embed.Embedder, index *Index, threshold float32, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		logger:    logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve 向量化查询并检索最相关的 topK 个文档块
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	start := time.Now()

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Search(queryVec, topK, r.threshold)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieval done",
		zap.Int("top_k", topK),
		zap.Int("hits", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}
