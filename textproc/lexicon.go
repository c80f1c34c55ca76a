package textproc

import (
	"sort"
	"strings"
	"unicode"
)

// Lexicon 领域自定义词典（人名、门派等专有名词）
type Lexicon struct {
	words []string
	set   map[string]struct{}
}

// NewLexicon 创建词典，去重并按长度降序排列（长词优先匹配）
func NewLexicon(words []string) *Lexicon {
	set := make(map[string]struct{}, len(words))
	uniq := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := set[w]; ok {
			continue
		}
		set[w] = struct{}{}
		uniq = append(uniq, w)
	}
	sort.Slice(uniq, func(i, j int) bool {
		li, lj := len([]rune(uniq[i])), len([]rune(uniq[j]))
		if li != lj {
			return li > lj
		}
		return uniq[i] < uniq[j]
	})
	return &Lexicon{words: uniq, set: set}
}

// Words 返回按长度降序的词表
func (l *Lexicon) Words() []string {
	return l.words
}

// Contains 判断词是否在词典中
func (l *Lexicon) Contains(word string) bool {
	_, ok := l.set[word]
	return ok
}

// Size 词典大小
func (l *Lexicon) Size() int {
	return len(l.words)
}

// stopwords 常见虚词，不参与词频统计
var stopwords = map[string]struct{}{
	"的": {}, "了": {}, "在": {}, "是": {}, "我": {}, "有": {}, "和": {},
	"就": {}, "不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {},
	"也": {}, "很": {}, "到": {}, "说": {}, "要": {}, "去": {}, "你": {},
	"会": {}, "着": {}, "没有": {}, "看": {}, "好": {}, "自己": {}, "这": {},
	"那": {}, "他": {}, "她": {}, "它": {}, "们": {}, "什么": {}, "但是": {},
	"因为": {}, "所以": {}, "如果": {}, "这个": {}, "那个": {}, "已经": {},
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "and": {}, "in": {},
	"is": {}, "it": {}, "that": {}, "for": {}, "on": {}, "with": {},
}

// IsStopword 判断是否为停用词
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

// IsValidWord 判断词是否适合参与统计：至少两个字符、非停用词、
// 且包含字母或汉字（纯数字和标点被排除）
func IsValidWord(word string) bool {
	runes := []rune(word)
	if len(runes) < 2 {
		return false
	}
	if IsStopword(word) {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
