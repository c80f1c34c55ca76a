package embed

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/baiyu-dev/ragkb/types"
)

// Config OpenAI 兼容嵌入服务配置
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	QueryInstruction string
	BatchSize        int
	Concurrency      int
	RatePerSecond    float64
}

// OpenAIEmbedder 基于 OpenAI 兼容接口的向量化实现
type OpenAIEmbedder struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger

	mu  sync.RWMutex
	dim int
}

// NewOpenAIEmbedder 创建嵌入客户端
func NewOpenAIEmbedder(cfg Config, logger *zap.Logger) *OpenAIEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)+1),
		logger:  logger.With(zap.String("component", "embedder")),
	}
}

// Init 探测向量维度。服务不可用时返回错误，由调用方决定是否中止启动。
func (e *OpenAIEmbedder) Init(ctx context.Context) error {
	vec, err := e.embedBatch(ctx, []string{"维度探测"})
	if err != nil {
		return fmt.Errorf("probe embedding dimension: %w", err)
	}
	e.mu.Lock()
	e.dim = len(vec[0])
	e.mu.Unlock()
	e.logger.Info("embedding backend ready",
		zap.String("model", e.cfg.Model),
		zap.Int("dimension", len(vec[0])))
	return nil
}

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dim
}

// EmbedDocuments 分批并发向量化文档，保持输入顺序
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		start := start
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery 向量化查询，附加查询指令前缀
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	text := query
	if e.cfg.QueryInstruction != "" {
		text = e.cfg.QueryInstruction + query
	}
	vecs, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.cfg.Model),
	})
	if err != nil {
		return nil, types.NewError(types.ErrBackendUnavailable, "embedding request failed").
			WithRetryable(true).WithCause(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, types.NewError(types.ErrBackendUnavailable,
			fmt.Sprintf("embedding backend returned %d vectors for %d inputs", len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, types.NewError(types.ErrBackendUnavailable,
				fmt.Sprintf("embedding backend returned out-of-range index %d", d.Index))
		}
		vectors[d.Index] = Normalize(d.Embedding)
	}

	e.mu.Lock()
	if e.dim == 0 && len(vectors) > 0 {
		e.dim = len(vectors[0])
	}
	dim := e.dim
	e.mu.Unlock()

	for i, v := range vectors {
		if len(v) != dim {
			return nil, types.NewError(types.ErrInternal,
				fmt.Sprintf("embedding dimension mismatch at %d: got %d, want %d", i, len(v), dim))
		}
	}
	return vectors, nil
}
