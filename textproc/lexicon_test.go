package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexiconDedupAndOrder(t *testing.T) {
	lex := NewLexicon([]string{"唐三", "昊天宗", "唐三", "  ", "唐门"})

	assert.Equal(t, 3, lex.Size())
	assert.True(t, lex.Contains("唐三"))
	assert.True(t, lex.Contains("昊天宗"))
	assert.False(t, lex.Contains("小舞"))
	// 长词在前，保证匹配时长词优先
	assert.Equal(t, "昊天宗", lex.Words()[0])
}

func TestIsValidWord(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"唐三", true},
		{"Tang", true},
		{"的", false},     // 单字
		{"这个", false},    // 停用词
		{"the", false},   // 英文停用词
		{"123", false},   // 纯数字
		{"……", false},    // 纯标点
		{"魂力", true},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidWord(tt.word))
		})
	}
}
