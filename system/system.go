// Package system 将分块、检索、重排、生成、缓存与图谱组装为完整服务。
package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/baiyu-dev/ragkb/embed"
	"github.com/baiyu-dev/ragkb/generator"
	"github.com/baiyu-dev/ragkb/internal/metrics"
	"github.com/baiyu-dev/ragkb/kg"
	"github.com/baiyu-dev/ragkb/qacache"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/textproc"
	"github.com/baiyu-dev/ragkb/types"
)

// Document 语料中的一篇文档
type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	RawText    string `json:"-"`
	SourcePath string `json:"source_path,omitempty"`
}

// Deps 系统依赖
type Deps struct {
	Chunker   *textproc.Chunker
	Embedder  embed.Embedder
	Index     *retrieval.Index
	Retriever *retrieval.Retriever
	Reranker  retrieval.Reranker
	Generator *generator.Generator
	Cache     *qacache.Manager
	Builder   *kg.Builder
	Metrics   *metrics.Collector
	Logger    *zap.Logger

	TopK       int
	RerankTopK int
}

// System 服务核心。语料写操作互斥并使缓存整体失效；
// 不同查询的问答流水线并发执行。
type System struct {
	chunker   *textproc.Chunker
	embedder  embed.Embedder
	index     *retrieval.Index
	retriever *retrieval.Retriever
	reranker  retrieval.Reranker
	generator *generator.Generator
	cache     *qacache.Manager
	builder   *kg.Builder
	metrics   *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer

	topK       int
	rerankTopK int

	mu   sync.RWMutex
	docs map[string]*Document
	gen  uint64 // 语料代数，每次变更递增

	sf singleflight.Group
}

// New 创建系统
func New(deps Deps) *System {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := deps.TopK
	if topK <= 0 {
		topK = 10
	}
	rerankTopK := deps.RerankTopK
	if rerankTopK <= 0 || rerankTopK > topK {
		rerankTopK = topK
	}

	return &System{
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		index:      deps.Index,
		retriever:  deps.Retriever,
		reranker:   deps.Reranker,
		generator:  deps.Generator,
		cache:      deps.Cache,
		builder:    deps.Builder,
		metrics:    deps.Metrics,
		logger:     logger.With(zap.String("component", "system")),
		tracer:     otel.Tracer("ragkb/system"),
		topK:       topK,
		rerankTopK: rerankTopK,
		docs:       make(map[string]*Document),
	}
}

// LoadDocumentsDir 加载目录下的 .txt / .md 文档并重建索引。
// 目录为空不是错误，系统以空语料启动。
func (s *System) LoadDocumentsDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read documents dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".txt" || ext == ".md" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document %s: %w", path, err)
		}
		docs = append(docs, &Document{
			ID:         uuid.NewString(),
			Title:      strings.TrimSuffix(name, filepath.Ext(name)),
			RawText:    string(raw),
			SourcePath: path,
		})
	}

	var indexed []retrieval.IndexedChunk
	for _, doc := range docs {
		chunks, err := s.embedDocument(ctx, doc)
		if err != nil {
			return err
		}
		indexed = append(indexed, chunks...)
	}

	s.mu.Lock()
	s.docs = make(map[string]*Document, len(docs))
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	s.gen++
	s.mu.Unlock()

	if err := s.index.Replace(indexed); err != nil {
		return err
	}

	s.logger.Info("corpus loaded",
		zap.String("dir", dir),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(indexed)))
	return nil
}

// AddDocument 新增文档：分块与向量化在锁外完成，
// 之后拼接索引、递增代数并清空问答缓存
func (s *System) AddDocument(ctx context.Context, title, text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "document text is empty")
	}
	if title == "" {
		title = "未命名文档"
	}

	doc := &Document{ID: uuid.NewString(), Title: title, RawText: text}
	indexed, err := s.embedDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.index.Append(indexed); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.gen++
	s.invalidateCacheLocked(ctx)
	s.mu.Unlock()

	s.logger.Info("document added",
		zap.String("id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("chunks", len(indexed)))
	return doc, nil
}

// RemoveDocument 删除文档并清空问答缓存
func (s *System) RemoveDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.docs[id]; !ok {
		s.mu.Unlock()
		return types.NewError(types.ErrNotFound, "document not found: "+id)
	}
	delete(s.docs, id)
	s.gen++
	removed := s.index.RemoveDocument(id)
	s.invalidateCacheLocked(ctx)
	s.mu.Unlock()

	s.logger.Info("document removed", zap.String("id", id), zap.Int("chunks", removed))
	return nil
}

// Documents 返回语料中的文档列表，按标题排序
func (s *System) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RebuildGraph 全量重建知识图谱并导出 JSON 与 HTML。
// topN 覆盖本次重建的实体上限，0 表示使用配置值。
func (s *System) RebuildGraph(ctx context.Context, outputDir string, topN int) (*kg.Graph, []string, error) {
	ctx, span := s.tracer.Start(ctx, "system.RebuildGraph")
	defer span.End()
	start := time.Now()

	s.mu.RLock()
	docs := make([]kg.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, kg.Document{Title: doc.Title, Text: doc.RawText})
	}
	s.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })

	graph, err := s.builder.Build(ctx, docs, topN)
	if err != nil {
		return nil, nil, err
	}

	jsonPath, err := kg.ExportJSON(graph, outputDir)
	if err != nil {
		return nil, nil, err
	}
	htmlPath, err := kg.ExportHTML(graph, outputDir)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveGraphBuild(time.Since(start))
	}
	return graph, []string{jsonPath, htmlPath}, nil
}

// EntityNeighbors 查询图谱中某实体的邻接边
func (s *System) EntityNeighbors(name string) (outgoing, incoming []kg.Edge, err error) {
	if s.builder.Graph() == nil {
		return nil, nil, types.NewError(types.ErrNotFound, "knowledge graph not built yet")
	}
	outgoing, incoming, found := s.builder.Neighbors(name)
	if !found {
		return nil, nil, types.NewError(types.ErrNotFound, "entity not found: "+name)
	}
	return outgoing, incoming, nil
}

// CacheStats 问答缓存统计
func (s *System) CacheStats() qacache.Stats {
	return s.cache.Stats()
}

// ClearCache 清空问答缓存
func (s *System) ClearCache(ctx context.Context) error {
	err := s.cache.Clear(ctx)
	if s.metrics != nil {
		s.metrics.SetCacheEntries(s.cache.Size())
	}
	return err
}

// IndexSize 索引中的块数
func (s *System) IndexSize() int {
	return s.index.Size()
}

func (s *System) embedDocument(ctx context.Context, doc *Document) ([]retrieval.IndexedChunk, error) {
	chunks := s.chunker.Split(doc.ID, doc.RawText)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	indexed := make([]retrieval.IndexedChunk, len(chunks))
	for i, c := range chunks {
		indexed[i] = retrieval.IndexedChunk{Chunk: c, Title: doc.Title, Vector: vectors[i]}
	}
	return indexed, nil
}

// invalidateCacheLocked 语料变更后整体失效缓存。必须持有语料写锁调用：
// 缓存写入在读锁内校验代数，与这里互斥，保证失效后不会再落下陈旧条目。
func (s *System) invalidateCacheLocked(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.SetCacheEntries(s.cache.Size())
	}
}
