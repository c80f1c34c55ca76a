package textproc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Chunk 文档块，始终是原文的连续切片
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Start      int    `json:"start"` // 起始字符偏移（rune）
	End        int    `json:"end"`   // 结束字符偏移（rune，开区间）
}

// Chunker 按句子边界切分文档
type Chunker struct {
	chunkSize int
	overlap   int
	logger    *zap.Logger
}

// NewChunker 创建分块器；overlap 必须小于 chunkSize
func NewChunker(chunkSize, overlap int, logger *zap.Logger) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", overlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger.With(zap.String("component", "chunker")),
	}, nil
}

// Split 将文档切分为块。块在句子边界处结束，相邻块重叠 overlap 个字符；
// 单句超过 chunkSize 时整句独立成块。空白文本返回空序列。
func (c *Chunker) Split(documentID, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	bounds := sentenceBounds(runes)

	var chunks []Chunk
	chunkStart := 0
	i := 0
	for i < len(bounds) {
		end := chunkStart
		for i < len(bounds) {
			sentEnd := bounds[i]
			if sentEnd-chunkStart <= c.chunkSize {
				end = sentEnd
				i++
				continue
			}
			if end == chunkStart {
				// 单句超长，整句成块
				end = sentEnd
				i++
			}
			break
		}

		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       string(runes[chunkStart:end]),
			Start:      chunkStart,
			End:        end,
		})

		if i >= len(bounds) {
			break
		}
		next := end - c.overlap
		if next < chunkStart {
			next = chunkStart
		}
		chunkStart = next
	}

	c.logger.Debug("document chunked",
		zap.String("document_id", documentID),
		zap.Int("chars", len(runes)),
		zap.Int("chunks", len(chunks)))
	return chunks
}

// SplitSentences 按句末标点切分文本，标点归属前句
func SplitSentences(text string) []string {
	runes := []rune(text)
	bounds := sentenceBounds(runes)
	sentences := make([]string, 0, len(bounds))
	start := 0
	for _, end := range bounds {
		s := string(runes[start:end])
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	return sentences
}

// sentenceBounds 返回每个句子的结束偏移。句末标点（含连续标点）归属前句，
// 因此句子序列是对原文的无缝划分。
func sentenceBounds(runes []rune) []int {
	var bounds []int
	n := len(runes)
	i := 0
	for i < n {
		for i < n && !isTerminator(runes[i]) {
			i++
		}
		for i < n && isTerminator(runes[i]) {
			i++
		}
		bounds = append(bounds, i)
	}
	return bounds
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';', '\n':
		return true
	}
	return false
}
