package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/textproc"
)

// Reranker 重排序器接口
type Reranker interface {
	// Rerank 对检索结果重排并截断到 topK。
	// fallback 为 true 表示重排失败、返回的是原始顺序。
	// 结果永远是输入的子集，不引入新块。
	Rerank(ctx context.Context, query string, results []ScoredChunk, topK int) (reranked []ScoredChunk, fallback bool, err error)
}

// ====== LLM 重排序器 ======

// LLMReranker 让大模型输出候选块的相关性排序
type LLMReranker struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMReranker 创建 LLM 重排序器
func NewLLMReranker(client llm.Client, logger *zap.Logger) *LLMReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMReranker{
		client: client,
		logger: logger.With(zap.String("component", "llm_reranker")),
	}
}

// Rerank 实现 Reranker。后端失败时退回原始顺序并记录警告。
func (r *LLMReranker) Rerank(ctx context.Context, query string, results []ScoredChunk, topK int) ([]ScoredChunk, bool, error) {
	if len(results) <= 1 {
		return truncate(results, topK), false, nil
	}

	raw, err := r.client.Complete(ctx, llm.Request{
		System:      "你是一个文档相关性排序助手。只输出序号，不要输出任何解释。",
		User:        buildRerankPrompt(query, results),
		MaxTokens:   100,
		Temperature: 0,
	})
	if err != nil {
		r.logger.Warn("rerank backend failed, falling back to retrieval order", zap.Error(err))
		return truncate(results, topK), true, nil
	}

	order := parseRankOrder(raw, len(results))
	reranked := make([]ScoredChunk, 0, len(results))
	for rank, i := range order {
		sc := results[i]
		sc.RerankScore = float32(len(order)-rank) / float32(len(order))
		reranked = append(reranked, sc)
	}
	return truncate(reranked, topK), false, nil
}

// buildRerankPrompt 构造序号排序提示词
func buildRerankPrompt(query string, results []ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("问题：")
	sb.WriteString(query)
	sb.WriteString("\n\n请根据与问题的相关性，对下列文档片段从高到低排序。\n\n")
	for i, sc := range results {
		text := sc.Chunk.Text
		if runes := []rune(text); len(runes) > 200 {
			text = string(runes[:200])
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i, text))
	}
	sb.WriteString(fmt.Sprintf("输出格式：用英文逗号分隔的序号，例如 2,0,1。只输出 0 到 %d 之间的序号。", len(results)-1))
	return sb.String()
}

// parseRankOrder 解析模型输出的序号序列：非法或重复的序号被忽略，
// 未提及的序号按原始顺序追加，保证结果是 0..n-1 的完整排列。
func parseRankOrder(raw string, n int) []int {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsDigit(r)
	})

	order := make([]int, 0, n)
	seen := make(map[int]bool, n)
	for _, f := range fields {
		i, err := strconv.Atoi(f)
		if err != nil || i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

// ====== 词法重排序器 ======

// LexicalReranker 基于词面重合度的重排序器，
// 未配置 LLM 后端时的本地替代
type LexicalReranker struct {
	logger *zap.Logger
}

// NewLexicalReranker 创建词法重排序器
func NewLexicalReranker(logger *zap.Logger) *LexicalReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalReranker{logger: logger.With(zap.String("component", "lexical_reranker"))}
}

// Rerank 实现 Reranker。按 0.5*向量相似度 + 0.5*词面重合度 重排。
func (r *LexicalReranker) Rerank(_ context.Context, query string, results []ScoredChunk, topK int) ([]ScoredChunk, bool, error) {
	if len(results) <= 1 {
		return truncate(results, topK), false, nil
	}

	queryGrams := ngrams(query)
	reranked := make([]ScoredChunk, len(results))
	copy(reranked, results)
	for i := range reranked {
		overlap := gramOverlap(queryGrams, ngrams(reranked[i].Chunk.Text))
		reranked[i].RerankScore = 0.5*reranked[i].Similarity + 0.5*overlap
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	return truncate(reranked, topK), false, nil
}

// ngrams 提取词面特征：汉字取相邻二字组合，拉丁词取小写整词
func ngrams(text string) map[string]struct{} {
	grams := make(map[string]struct{})
	runes := []rune(text)

	var word []rune
	flush := func() {
		if len(word) > 0 {
			w := strings.ToLower(string(word))
			if !textproc.IsStopword(w) {
				grams[w] = struct{}{}
			}
			word = word[:0]
		}
	}

	for i, r := range runes {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			if i+1 < len(runes) && unicode.Is(unicode.Han, runes[i+1]) {
				grams[string([]rune{r, runes[i+1]})] = struct{}{}
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return grams
}

func gramOverlap(query, doc map[string]struct{}) float32 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for g := range query {
		if _, ok := doc[g]; ok {
			hits++
		}
	}
	return float32(hits) / float32(len(query))
}

func truncate(results []ScoredChunk, topK int) []ScoredChunk {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
