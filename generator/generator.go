// Package generator 基于检索到的文档片段生成答案。
package generator

import (
	"context"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/llm"
	"github.com/baiyu-dev/ragkb/retrieval"
	"github.com/baiyu-dev/ragkb/types"
)

// Config 生成配置
type Config struct {
	MaxTokens        int
	Temperature      float32
	MaxContextTokens int
	EnableCitation   bool
}

// Generator 答案生成器
type Generator struct {
	client llm.Client
	cfg    Config
	enc    *tiktoken.Tiktoken
	logger *zap.Logger
}

// NewGenerator 创建生成器。tiktoken 编码表不可用时退化为字符数估算。
func NewGenerator(client llm.Client, cfg Config, logger *zap.Logger) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 3000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "generator"))

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character estimate", zap.Error(err))
		enc = nil
	}

	return &Generator{client: client, cfg: cfg, enc: enc, logger: logger}
}

// Generate 生成答案。chunks 为空时调用方应改用 NoContextAnswer。
// 后端失败返回 GENERATION_FAILED，绝不返回空答案。
func (g *Generator) Generate(ctx context.Context, query, customInstruction string, chunks []retrieval.ScoredChunk) (string, error) {
	kept := g.fitContextBudget(chunks)
	prompt := buildAnswerPrompt(query, customInstruction, kept)

	answer, err := g.client.Complete(ctx, llm.Request{
		System:      answerSystemPrompt,
		User:        prompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", types.NewError(types.ErrGenerationFailed, "answer generation failed").WithCause(err)
	}
	if answer == "" {
		return "", types.NewError(types.ErrGenerationFailed, "backend returned empty answer")
	}

	if g.cfg.EnableCitation {
		answer = addCitations(answer, kept)
	}
	return answer, nil
}

// NoContextAnswer 检索无命中时的固定回应
func (g *Generator) NoContextAnswer() string {
	return "抱歉，我在文档库中没有找到与这个问题相关的内容。请尝试换一种问法，或确认文档库是否包含相关资料。"
}

// Followups 用第二次调用生成最多 3 个追问。失败只告警，返回空列表。
func (g *Generator) Followups(ctx context.Context, query, answer string) []string {
	raw, err := g.client.Complete(ctx, llm.Request{
		System:      "你是一个问答助手。根据对话生成用户可能接着问的问题，每行一个，不加序号和解释。",
		User:        "问题：" + query + "\n\n回答：" + answer + "\n\n请给出最多 3 个自然的追问。",
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		g.logger.Warn("followup generation failed", zap.Error(err))
		return nil
	}

	var followups []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "0123456789.、-） )"))
		if line == "" {
			continue
		}
		followups = append(followups, line)
		if len(followups) == 3 {
			break
		}
	}
	return followups
}

// fitContextBudget 在 token 预算内保留片段，超出预算时从尾部丢弃。
// 排名最高的片段永远保留。
func (g *Generator) fitContextBudget(chunks []retrieval.ScoredChunk) []retrieval.ScoredChunk {
	if len(chunks) == 0 {
		return nil
	}

	total := 0
	kept := make([]retrieval.ScoredChunk, 0, len(chunks))
	for i, sc := range chunks {
		n := g.countTokens(sc.Chunk.Text)
		if i > 0 && total+n > g.cfg.MaxContextTokens {
			g.logger.Debug("context budget reached",
				zap.Int("kept", len(kept)),
				zap.Int("dropped", len(chunks)-len(kept)))
			break
		}
		total += n
		kept = append(kept, sc)
	}
	return kept
}

func (g *Generator) countTokens(text string) int {
	if g.enc != nil {
		return len(g.enc.Encode(text, nil, nil))
	}
	// 粗略估算：中文约 1 字 1 token
	return len([]rune(text))
}
