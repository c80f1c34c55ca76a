package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/textproc"
)

type stubLLM struct {
	reply    string
	err      error
	lastUser string
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.lastUser = req.User
	return s.reply, s.err
}

func chunk(title, text string, index int, sim float32) retrieval.ScoredChunk {
	return retrieval.ScoredChunk{
		Chunk:      textproc.Chunk{DocumentID: title, Index: index, Text: text},
		Title:      title,
		Similarity: sim,
	}
}

func TestGenerateAppendsCitations(t *testing.T) {
	stub := &stubLLM{reply: "唐三的武魂是昊天锤。"}
	g := NewGenerator(stub, Config{EnableCitation: true}, zap.NewNop())

	answer, err := g.Generate(context.Background(), "唐三的武魂是什么",
		"", []retrieval.ScoredChunk{
			chunk("第一卷", "唐三觉醒了昊天锤武魂。", 0, 0.9),
			chunk("第一卷", "昊天锤是昊天宗的镇宗武魂。", 3, 0.8),
			chunk("第二卷", "唐三修炼玄天功。", 1, 0.7),
		})
	require.NoError(t, err)
	assert.Contains(t, answer, "参考来源")
	// 来源去重，保留检索顺序
	assert.Equal(t, 1, strings.Count(answer, "- 第一卷"))
	assert.Equal(t, 1, strings.Count(answer, "- 第二卷"))
	assert.Less(t, strings.Index(answer, "- 第一卷"), strings.Index(answer, "- 第二卷"))
}

func TestGenerateSkipsCitationsWhenPresent(t *testing.T) {
	stub := &stubLLM{reply: "根据来源《第一卷》，武魂是昊天锤。"}
	g := NewGenerator(stub, Config{EnableCitation: true}, zap.NewNop())

	answer, err := g.Generate(context.Background(), "q", "",
		[]retrieval.ScoredChunk{chunk("第一卷", "内容", 0, 0.9)})
	require.NoError(t, err)
	assert.NotContains(t, answer, "参考来源")
}

func TestGenerateCitationDisabled(t *testing.T) {
	stub := &stubLLM{reply: "答案。"}
	g := NewGenerator(stub, Config{EnableCitation: false}, zap.NewNop())

	answer, err := g.Generate(context.Background(), "q", "",
		[]retrieval.ScoredChunk{chunk("卷", "内容", 0, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, "答案。", answer)
}

func TestGenerateBackendFailure(t *testing.T) {
	stub := &stubLLM{err: errors.New("connection refused")}
	g := NewGenerator(stub, Config{}, zap.NewNop())

	_, err := g.Generate(context.Background(), "q", "",
		[]retrieval.ScoredChunk{chunk("卷", "内容", 0, 0.9)})
	require.Error(t, err)
}

func TestGeneratePromptIncludesCustomInstruction(t *testing.T) {
	stub := &stubLLM{reply: "答案。"}
	g := NewGenerator(stub, Config{}, zap.NewNop())

	_, err := g.Generate(context.Background(), "问题", "用一句话回答",
		[]retrieval.ScoredChunk{chunk("卷", "内容", 0, 0.9)})
	require.NoError(t, err)
	assert.Contains(t, stub.lastUser, "附加要求：用一句话回答")
	assert.Contains(t, stub.lastUser, "【文档片段 1】")
	assert.Contains(t, stub.lastUser, "问题：问题")
}

func TestContextBudgetDropsTail(t *testing.T) {
	stub := &stubLLM{reply: "答案。"}
	g := NewGenerator(stub, Config{MaxContextTokens: 20}, zap.NewNop())

	long := strings.Repeat("很长的内容", 20)
	kept := g.fitContextBudget([]retrieval.ScoredChunk{
		chunk("A", long, 0, 0.9),
		chunk("B", long, 0, 0.8),
		chunk("C", long, 0, 0.7),
	})
	// 排名最高的片段即使超预算也保留
	require.NotEmpty(t, kept)
	assert.Equal(t, "A", kept[0].Title)
	assert.Less(t, len(kept), 3)
}

func TestFollowups(t *testing.T) {
	stub := &stubLLM{reply: "1. 昊天锤有什么能力？\n2、唐三还有别的武魂吗？\n第三个问题\n第四个问题"}
	g := NewGenerator(stub, Config{}, zap.NewNop())

	followups := g.Followups(context.Background(), "q", "a")
	require.Len(t, followups, 3)
	assert.Equal(t, "昊天锤有什么能力？", followups[0])
	assert.Equal(t, "唐三还有别的武魂吗？", followups[1])
}

func TestFollowupsFailureReturnsEmpty(t *testing.T) {
	stub := &stubLLM{err: errors.New("backend down")}
	g := NewGenerator(stub, Config{}, zap.NewNop())

	assert.Empty(t, g.Followups(context.Background(), "q", "a"))
}

func TestNoContextAnswer(t *testing.T) {
	g := NewGenerator(&stubLLM{}, Config{}, zap.NewNop())
	assert.NotEmpty(t, g.NoContextAnswer())
}
