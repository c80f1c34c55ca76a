package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/api/handlers"
	"github.com/baiyu-dev/ragkb/config"
	"github.com/baiyu-dev/ragkb/embed"
	"github.com/baiyu-dev/ragkb/generator"
	"github.com/baiyu-dev/ragkb/internal/metrics"
	"github.com/baiyu-dev/ragkb/internal/server"
	"github.com/baiyu-dev/ragkb/kg"
	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/qacache"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/system"
	"github.com/baiyu-dev/ragkb/textproc"
)

// Server 服务装配：配置 → 组件 → 语料加载 → HTTP
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	sys     *system.System
	manager *server.Manager
	cache   *qacache.Manager
}

// NewServer 构建全部组件并加载语料。
// 嵌入后端探测失败或语料加载失败会中止启动。
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	chunker, err := textproc.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap, logger)
	if err != nil {
		return nil, err
	}
	lexicon := textproc.NewLexicon(cfg.Lexicon)

	embedder := embed.NewOpenAIEmbedder(embed.Config{
		BaseURL:          cfg.Embedding.BaseURL,
		APIKey:           cfg.Embedding.APIKey,
		Model:            cfg.Embedding.Model,
		QueryInstruction: cfg.Embedding.QueryInstruction,
		BatchSize:        cfg.Embedding.BatchSize,
		Concurrency:      cfg.Embedding.Concurrency,
		RatePerSecond:    cfg.Embedding.RatePerSecond,
	}, logger)
	if err := embedder.Init(ctx); err != nil {
		return nil, fmt.Errorf("embedding backend unavailable: %w", err)
	}

	llmClient := llm.NewOpenAIClient(llm.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		RatePerSecond: cfg.LLM.RatePerSecond,
	}, logger)

	index := retrieval.NewIndex(logger)
	retriever := retrieval.NewRetriever(embedder, index, cfg.Retrieval.SimilarityThreshold, logger)

	var reranker retrieval.Reranker
	if cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "" {
		reranker = retrieval.NewLLMReranker(llmClient, logger)
	} else {
		logger.Warn("no LLM backend configured, using lexical reranker")
		reranker = retrieval.NewLexicalReranker(logger)
	}

	gen := generator.NewGenerator(llmClient, generator.Config{
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
		MaxContextTokens: cfg.LLM.MaxContextTokens,
		EnableCitation:   cfg.LLM.EnableCitation,
	}, logger)

	store, err := openCacheStore(ctx, cfg.Cache, logger)
	if err != nil {
		// 缓存打不开只降级，不阻止启动
		logger.Warn("cache store unavailable, running without persistence", zap.Error(err))
		store = nil
	}
	cache := qacache.NewManager(ctx, store, logger)

	builder := kg.NewBuilder(lexicon, kg.Config{
		MaxEntities:   cfg.Graph.MaxEntities,
		MinEntityFreq: cfg.Graph.MinEntityFreq,
		MaxContexts:   cfg.Graph.MaxContexts,
	}, logger)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	sys := system.New(system.Deps{
		Chunker:    chunker,
		Embedder:   embedder,
		Index:      index,
		Retriever:  retriever,
		Reranker:   reranker,
		Generator:  gen,
		Cache:      cache,
		Builder:    builder,
		Metrics:    collector,
		Logger:     logger,
		TopK:       cfg.Retrieval.TopK,
		RerankTopK: cfg.Retrieval.RerankTopK,
	})

	if _, err := os.Stat(cfg.Documents.Dir); err == nil {
		if err := sys.LoadDocumentsDir(ctx, cfg.Documents.Dir); err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
	} else {
		logger.Warn("documents dir missing, starting with empty corpus",
			zap.String("dir", cfg.Documents.Dir))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		System:         sys,
		GraphOutputDir: cfg.Graph.OutputDir,
		MetricsHandler: promhttp.Handler(),
		Logger:         logger,
	})

	manager := server.NewManager(router, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return &Server{cfg: cfg, logger: logger, sys: sys, manager: manager, cache: cache}, nil
}

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start() error {
	return s.manager.Start()
}

// WaitForShutdown 等待退出并释放资源
func (s *Server) WaitForShutdown() error {
	err := s.manager.WaitForShutdown()
	if closeErr := s.cache.Close(); closeErr != nil {
		s.logger.Warn("cache close failed", zap.Error(closeErr))
	}
	return err
}

func openCacheStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (qacache.Store, error) {
	switch cfg.Backend {
	case "redis":
		return qacache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	case "memory":
		return nil, nil
	default:
		return qacache.NewSQLiteStore(cfg.Dir, cfg.File, logger)
	}
}
