package system

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/embed"
	"github.com/baiyu-dev/ragkb/generator"
	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/qacache"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/textproc"
	"github.com/baiyu-dev/ragkb/types"
)

// fakeEmbedder 由文本内容确定性地生成向量
type fakeEmbedder struct{}

func (f *fakeEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, 8)
	for i := range v {
		v[i] = float32(sum[i]) + 1
	}
	return embed.Normalize(v)
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return f.vector(query), nil
}

func (f *fakeEmbedder) Dimension() int { return 8 }

// countingLLM 统计生成次数的后端桩
type countingLLM struct {
	calls atomic.Int64
	delay time.Duration
}

func (c *countingLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return "生成的答案。", nil
}

func newTestSystem(t *testing.T, backend llm.Client) *System {
	t.Helper()

	chunker, err := textproc.NewChunker(50, 10, zap.NewNop())
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	index := retrieval.NewIndex(zap.NewNop())
	cache := qacache.NewManager(context.Background(), nil, zap.NewNop())

	return New(Deps{
		Chunker:    chunker,
		Embedder:   embedder,
		Index:      index,
		Retriever:  retrieval.NewRetriever(embedder, index, -1, zap.NewNop()),
		Reranker:   retrieval.NewLexicalReranker(zap.NewNop()),
		Generator:  generator.NewGenerator(backend, generator.Config{}, zap.NewNop()),
		Cache:      cache,
		Logger:     zap.NewNop(),
		TopK:       5,
		RerankTopK: 3,
	})
}

func seedCorpus(t *testing.T, s *System) {
	t.Helper()
	_, err := s.AddDocument(context.Background(), "第一卷",
		"唐三是唐门弟子。唐三觉醒了昊天锤武魂。小舞陪伴唐三前往史莱克学院。")
	require.NoError(t, err)
}

func TestAnswerGeneratesAndCaches(t *testing.T) {
	backend := &countingLLM{}
	s := newTestSystem(t, backend)
	seedCorpus(t, s)

	req := Request{Query: "唐三的武魂是什么", UseCache: true}

	first, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.Answer)
	assert.NotEmpty(t, first.RetrievedChunks)
	generatedCalls := backend.calls.Load()

	second, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	// 命中缓存不再调用后端
	assert.Equal(t, generatedCalls, backend.calls.Load())
}

func TestAnswerInvalidInput(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})

	_, err := s.Answer(context.Background(), Request{Query: "   "})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestAnswerNoContext(t *testing.T) {
	backend := &countingLLM{}
	s := newTestSystem(t, backend)
	// 空语料

	result, err := s.Answer(context.Background(), Request{Query: "唐三是谁", UseCache: true})
	require.NoError(t, err)
	assert.Empty(t, result.RetrievedChunks)
	assert.NotEmpty(t, result.Answer)
	// 无上下文不调用生成后端
	assert.EqualValues(t, 0, backend.calls.Load())

	// 无命中结果同样进入缓存
	cached, err := s.Answer(context.Background(), Request{Query: "唐三是谁", UseCache: true})
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
}

func TestConcurrentIdenticalMissesSingleGeneration(t *testing.T) {
	// 生成耗时拉长，保证所有未命中都并入同一次飞行
	backend := &countingLLM{delay: 100 * time.Millisecond}
	s := newTestSystem(t, backend)
	seedCorpus(t, s)

	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Answer(context.Background(), Request{Query: "唐三的武魂是什么", UseCache: true})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// 相同指纹的并发未命中合并为一次生成
	assert.EqualValues(t, 1, backend.calls.Load())
}

func TestAnswerRecoversFromCorruptCacheEntry(t *testing.T) {
	backend := &countingLLM{}
	s := newTestSystem(t, backend)
	seedCorpus(t, s)

	req := Request{Query: "唐三的武魂是什么", UseCache: true}
	fp := qacache.Fingerprint(req.Query, 5, "", false)
	s.cache.Put(context.Background(), qacache.Entry{
		Fingerprint: fp,
		Query:       req.Query,
		Payload:     "{corrupt",
	})

	// 解不开的条目当作未命中重新生成
	first, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.EqualValues(t, 1, backend.calls.Load())

	// 重新生成的结果覆盖损坏条目，下次命中
	second, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.EqualValues(t, 1, backend.calls.Load())
}

func TestMutationInvalidatesCache(t *testing.T) {
	backend := &countingLLM{}
	s := newTestSystem(t, backend)
	seedCorpus(t, s)

	req := Request{Query: "唐三的武魂是什么", UseCache: true}
	_, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, s.CacheStats().Size)

	_, err = s.AddDocument(context.Background(), "第二卷", "唐三修炼玄天功。")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CacheStats().Size)

	result, err := s.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestRemoveDocument(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})
	doc, err := s.AddDocument(context.Background(), "卷", "唐三是唐门弟子。")
	require.NoError(t, err)
	require.Greater(t, s.IndexSize(), 0)

	require.NoError(t, s.RemoveDocument(context.Background(), doc.ID))
	assert.Equal(t, 0, s.IndexSize())
	assert.Empty(t, s.Documents())

	err = s.RemoveDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestAddDocumentRejectsEmpty(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})
	_, err := s.AddDocument(context.Background(), "空", "   ")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestClearCache(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})
	seedCorpus(t, s)

	_, err := s.Answer(context.Background(), Request{Query: "唐三", UseCache: true})
	require.NoError(t, err)
	require.Equal(t, 1, s.CacheStats().Size)

	require.NoError(t, s.ClearCache(context.Background()))
	assert.Equal(t, 0, s.CacheStats().Size)
}

func TestAnswerWithoutCacheSkipsCacheWrite(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})
	seedCorpus(t, s)

	_, err := s.Answer(context.Background(), Request{Query: "唐三", UseCache: false})
	require.NoError(t, err)
	assert.Equal(t, 0, s.CacheStats().Size)
}

func TestAnswerContainsRetrievedContent(t *testing.T) {
	s := newTestSystem(t, &countingLLM{})
	seedCorpus(t, s)

	result, err := s.Answer(context.Background(), Request{Query: "唐三的武魂是什么"})
	require.NoError(t, err)
	require.NotEmpty(t, result.RetrievedChunks)
	for _, sc := range result.RetrievedChunks {
		assert.Equal(t, "第一卷", sc.Title)
		assert.True(t, strings.Contains("唐三是唐门弟子。唐三觉醒了昊天锤武魂。小舞陪伴唐三前往史莱克学院。", sc.Content))
	}
}
