package system

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/qacache"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/types"
)

// Request 一次问答请求
type Request struct {
	Query             string `json:"query"`
	TopK              int    `json:"top_k,omitempty"`
	UseCache          bool   `json:"use_cache"`
	CustomInstruction string `json:"custom_instruction,omitempty"`
	EnableFollowup    bool   `json:"enable_followup,omitempty"`
}

// SourceChunk 返回给调用方的片段信息
type SourceChunk struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// Result 问答结果
type Result struct {
	Query             string        `json:"query"`
	Answer            string        `json:"answer"`
	RetrievedChunks   []SourceChunk `json:"retrieved_chunks"`
	ProcessingTimeMs  int64         `json:"processing_time_ms"`
	FollowupQuestions []string      `json:"followup_questions,omitempty"`
	RerankFallback    bool          `json:"rerank_fallback,omitempty"`
	FromCache         bool          `json:"from_cache"`
}

// Answer 执行问答流水线：缓存命中直接返回；未命中时
// 检索→重排→生成，相同指纹的并发未命中只触发一次生成。
func (s *System) Answer(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "system.Answer")
	defer span.End()
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.observeQA("error", start)
		return nil, types.NewError(types.ErrInvalidInput, "query is empty")
	}
	req.Query = query
	if req.TopK <= 0 {
		req.TopK = s.topK
	}

	fingerprint := qacache.Fingerprint(req.Query, req.TopK, req.CustomInstruction, req.EnableFollowup)

	if req.UseCache {
		if entry, ok := s.cache.Get(fingerprint); ok {
			var result Result
			// 解不开的条目当作未命中，流水线重新生成后会覆盖它
			if err := json.Unmarshal([]byte(entry.Payload), &result); err != nil {
				s.logger.Warn("ignoring undecodable cache entry",
					zap.String("fingerprint", fingerprint), zap.Error(err))
			} else {
				result.FromCache = true
				result.ProcessingTimeMs = time.Since(start).Milliseconds()
				s.observeQA("hit", start)
				return &result, nil
			}
		}
	}

	// 语料代数快照：生成期间语料变更则放弃缓存写入
	s.mu.RLock()
	genAtStart := s.gen
	s.mu.RUnlock()

	v, err, _ := s.sf.Do(fingerprint, func() (interface{}, error) {
		return s.runPipeline(ctx, req, fingerprint, genAtStart)
	})
	if err != nil {
		s.observeQA("error", start)
		return nil, err
	}

	// 合并的调用共享同一个结果，复制后再填充本次耗时
	result := *v.(*Result)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return &result, nil
}

func (s *System) runPipeline(ctx context.Context, req Request, fingerprint string, genAtStart uint64) (*Result, error) {
	start := time.Now()

	retrieved, err := s.retriever.Retrieve(ctx, req.Query, req.TopK)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveRetrieval(len(retrieved), time.Since(start))
	}

	if len(retrieved) == 0 {
		result := &Result{
			Query:  req.Query,
			Answer: s.generator.NoContextAnswer(),
		}
		s.cachePut(ctx, req, fingerprint, genAtStart, result)
		s.observeQA("no_context", start)
		return result, nil
	}

	reranked, fallback, err := s.reranker.Rerank(ctx, req.Query, retrieved, s.rerankTopK)
	if err != nil {
		return nil, err
	}
	if fallback {
		s.logger.Warn("rerank degraded to retrieval order", zap.String("query", req.Query))
		if s.metrics != nil {
			s.metrics.RerankFallback()
		}
	}

	answer, err := s.generator.Generate(ctx, req.Query, req.CustomInstruction, reranked)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Query:           req.Query,
		Answer:          answer,
		RetrievedChunks: toSourceChunks(reranked),
		RerankFallback:  fallback,
	}
	if req.EnableFollowup {
		result.FollowupQuestions = s.generator.Followups(ctx, req.Query, answer)
	}

	s.cachePut(ctx, req, fingerprint, genAtStart, result)
	s.observeQA("generated", start)
	return result, nil
}

// cachePut 写入缓存。代数校验与写入都在语料读锁内进行，
// 与失效互斥：生成期间语料变更过就跳过写入，不会留下陈旧条目。
func (s *System) cachePut(ctx context.Context, req Request, fingerprint string, genAtStart uint64, result *Result) {
	if !req.UseCache {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("cache payload encode failed", zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen != genAtStart {
		s.logger.Debug("corpus changed during generation, skipping cache write",
			zap.String("fingerprint", fingerprint))
		return
	}
	s.cache.Put(ctx, qacache.Entry{
		Fingerprint: fingerprint,
		Query:       req.Query,
		Payload:     string(payload),
	})
	if s.metrics != nil {
		s.metrics.SetCacheEntries(s.cache.Size())
	}
}

func (s *System) observeQA(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveQA(outcome, time.Since(start))
	}
}

func toSourceChunks(chunks []retrieval.ScoredChunk) []SourceChunk {
	out := make([]SourceChunk, len(chunks))
	for i, sc := range chunks {
		out[i] = SourceChunk{
			Title:      sc.Title,
			Content:    sc.Chunk.Text,
			Score:      sc.Similarity,
			ChunkIndex: sc.Chunk.Index,
		}
	}
	return out
}
