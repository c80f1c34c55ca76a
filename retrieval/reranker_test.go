package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/textproc"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	return s.reply, s.err
}

func scored(text string, sim float32) ScoredChunk {
	return ScoredChunk{
		Chunk:      textproc.Chunk{DocumentID: "doc", Text: text},
		Title:      "doc",
		Similarity: sim,
	}
}

func TestParseRankOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		n    int
		want []int
	}{
		{name: "clean order", raw: "2,0,1", n: 3, want: []int{2, 0, 1}},
		{name: "with noise", raw: "排序：2、0、1。", n: 3, want: []int{2, 0, 1}},
		{name: "out of range ignored", raw: "5,1,0", n: 3, want: []int{1, 0, 2}},
		{name: "duplicates ignored", raw: "1,1,0", n: 3, want: []int{1, 0, 2}},
		{name: "missing appended in order", raw: "2", n: 4, want: []int{2, 0, 1, 3}},
		{name: "garbage falls back to identity", raw: "无法排序", n: 3, want: []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRankOrder(tt.raw, tt.n))
		})
	}
}

func TestLLMRerankerReorders(t *testing.T) {
	r := NewLLMReranker(&stubLLM{reply: "2,0,1"}, zap.NewNop())
	in := []ScoredChunk{scored("甲", 0.9), scored("乙", 0.8), scored("丙", 0.7)}

	out, fallback, err := r.Rerank(context.Background(), "问题", in, 3)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, out, 3)
	assert.Equal(t, "丙", out[0].Chunk.Text)
	assert.Equal(t, "甲", out[1].Chunk.Text)
	assert.Equal(t, "乙", out[2].Chunk.Text)
}

func TestLLMRerankerTruncates(t *testing.T) {
	r := NewLLMReranker(&stubLLM{reply: "3,2,1,0"}, zap.NewNop())
	in := []ScoredChunk{scored("a", 0.9), scored("b", 0.8), scored("c", 0.7), scored("d", 0.6)}

	out, fallback, err := r.Rerank(context.Background(), "q", in, 2)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, out, 2)
	assert.Equal(t, "d", out[0].Chunk.Text)
	assert.Equal(t, "c", out[1].Chunk.Text)
}

func TestLLMRerankerFallbackOnError(t *testing.T) {
	r := NewLLMReranker(&stubLLM{err: errors.New("backend down")}, zap.NewNop())
	in := []ScoredChunk{scored("甲", 0.9), scored("乙", 0.8), scored("丙", 0.7)}

	out, fallback, err := r.Rerank(context.Background(), "问题", in, 2)
	require.NoError(t, err)
	assert.True(t, fallback)
	// 保持检索顺序并截断
	require.Len(t, out, 2)
	assert.Equal(t, "甲", out[0].Chunk.Text)
	assert.Equal(t, "乙", out[1].Chunk.Text)
}

func TestLLMRerankerNeverInventsChunks(t *testing.T) {
	r := NewLLMReranker(&stubLLM{reply: "9,8,7"}, zap.NewNop())
	in := []ScoredChunk{scored("甲", 0.9), scored("乙", 0.8)}

	out, _, err := r.Rerank(context.Background(), "问题", in, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	texts := map[string]bool{"甲": true, "乙": true}
	for _, sc := range out {
		assert.True(t, texts[sc.Chunk.Text])
	}
}

func TestLexicalReranker(t *testing.T) {
	r := NewLexicalReranker(zap.NewNop())
	in := []ScoredChunk{
		scored("今天天气很好", 0.5),
		scored("唐三使用了昊天锤", 0.5),
	}

	out, fallback, err := r.Rerank(context.Background(), "唐三的昊天锤", in, 2)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, out, 2)
	// 词面重合度高的排前
	assert.Equal(t, "唐三使用了昊天锤", out[0].Chunk.Text)
}

func TestLexicalRerankerSingleResult(t *testing.T) {
	r := NewLexicalReranker(zap.NewNop())
	in := []ScoredChunk{scored("唯一", 0.5)}

	out, fallback, err := r.Rerank(context.Background(), "q", in, 5)
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Len(t, out, 1)
}
