package generator

import (
	"fmt"
	"strings"

	"github.com/baiyu-dev/ragkb/retrieval"
)

const answerSystemPrompt = "你是一个严谨的文档问答助手。" +
	"只根据提供的文档片段回答问题，不要编造文档中没有的内容。" +
	"文档片段不足以回答时，明确说明无法回答。"

// buildAnswerPrompt 组装带编号片段的问答提示词
func buildAnswerPrompt(query, customInstruction string, chunks []retrieval.ScoredChunk) string {
	var sb strings.Builder

	sb.WriteString("以下是检索到的文档片段：\n\n")
	for i, sc := range chunks {
		sb.WriteString(fmt.Sprintf("【文档片段 %d】\n", i+1))
		sb.WriteString(fmt.Sprintf("来源：%s（第 %d 段）\n", sc.Title, sc.Chunk.Index+1))
		sb.WriteString(fmt.Sprintf("相关度：%.2f\n", sc.Similarity))
		sb.WriteString(sc.Chunk.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("问题：")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	if customInstruction != "" {
		sb.WriteString("附加要求：")
		sb.WriteString(customInstruction)
		sb.WriteString("\n\n")
	}

	sb.WriteString("回答要求：\n")
	sb.WriteString("1. 只依据上面的文档片段作答\n")
	sb.WriteString("2. 回答条理清晰，重点突出\n")
	sb.WriteString("3. 片段之间有冲突时指出冲突\n")
	return sb.String()
}

// addCitations 在答案末尾追加去重后的来源列表。
// 答案已自带来源说明时不重复追加。
func addCitations(answer string, chunks []retrieval.ScoredChunk) string {
	if len(chunks) == 0 {
		return answer
	}
	if strings.Contains(answer, "来源") || strings.Contains(answer, "参考") {
		return answer
	}

	seen := make(map[string]struct{}, len(chunks))
	var titles []string
	for _, sc := range chunks {
		if _, ok := seen[sc.Title]; ok {
			continue
		}
		seen[sc.Title] = struct{}{}
		titles = append(titles, sc.Title)
	}

	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString("\n\n参考来源：\n")
	for _, t := range titles {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
