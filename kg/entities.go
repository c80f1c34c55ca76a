package kg

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/baiyu-dev/ragkb/textproc"
)

// 常见中文姓氏，用于「姓 + 1~2 字名」候选识别
var surnames = map[rune]struct{}{
	'王': {}, '李': {}, '张': {}, '刘': {}, '陈': {}, '杨': {}, '赵': {},
	'黄': {}, '周': {}, '吴': {}, '徐': {}, '孙': {}, '胡': {}, '朱': {},
	'高': {}, '林': {}, '何': {}, '郭': {}, '马': {}, '罗': {}, '唐': {},
	'宋': {}, '韩': {}, '冯': {}, '董': {}, '萧': {}, '程': {}, '叶': {},
	'吕': {}, '魏': {}, '蒋': {}, '戴': {}, '秦': {}, '江': {}, '史': {},
}

// 组织、地点类实体的结尾字
var entitySuffixes = []string{
	"学院", "帝国", "王国", "大陆", "圣殿",
	"门", "宗", "派", "城", "国", "山", "殿", "阁", "谷", "岛", "族", "帮", "会", "堂",
}

var latinNameRe = regexp.MustCompile(`[A-Z][a-zA-Z]+(?: [A-Z][a-zA-Z]+)*`)

// Mention 实体在句中的一次出现
type Mention struct {
	Name  string
	Start int // 句内字符偏移
}

// Extractor 实体抽取器：词典精确匹配 + 启发式识别
type Extractor struct {
	lexicon *textproc.Lexicon
}

// NewExtractor 创建实体抽取器
func NewExtractor(lexicon *textproc.Lexicon) *Extractor {
	if lexicon == nil {
		lexicon = textproc.NewLexicon(nil)
	}
	return &Extractor{lexicon: lexicon}
}

// Extract 统计文本中每个实体的出现次数
func (e *Extractor) Extract(text string) map[string]int {
	freq := make(map[string]int)

	// 词典精确匹配
	for _, word := range e.lexicon.Words() {
		if n := strings.Count(text, word); n > 0 {
			freq[word] += n
		}
	}

	for _, sent := range textproc.SplitSentences(text) {
		for _, name := range e.heuristicCandidates(sent) {
			if _, inLexicon := freq[name]; inLexicon && e.lexicon.Contains(name) {
				continue // 词典已统计
			}
			freq[name]++
		}
	}
	return freq
}

// IsCustom 实体是否来自自定义词典
func (e *Extractor) IsCustom(name string) bool {
	return e.lexicon.Contains(name)
}

// Mentions 返回句中已知实体的出现位置，按位置升序。
// 词典实体优先于启发式实体，其次长名优先；重叠的后匹配者被跳过。
func (e *Extractor) Mentions(sentence string, known map[string]bool) []Mention {
	runes := []rune(sentence)
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := e.lexicon.Contains(names[i]), e.lexicon.Contains(names[j])
		if ci != cj {
			return ci
		}
		li, lj := len([]rune(names[i])), len([]rune(names[j]))
		if li != lj {
			return li > lj
		}
		return names[i] < names[j]
	})

	taken := make([]bool, len(runes))
	var mentions []Mention
	for _, name := range names {
		nameRunes := []rune(name)
		for i := 0; i+len(nameRunes) <= len(runes); i++ {
			if taken[i] || string(runes[i:i+len(nameRunes)]) != name {
				continue
			}
			overlap := false
			for j := i; j < i+len(nameRunes); j++ {
				if taken[j] {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}
			for j := i; j < i+len(nameRunes); j++ {
				taken[j] = true
			}
			mentions = append(mentions, Mention{Name: name, Start: i})
		}
	}

	sort.Slice(mentions, func(i, j int) bool { return mentions[i].Start < mentions[j].Start })
	return mentions
}

// heuristicCandidates 启发式识别候选实体：
// 姓氏开头的 2~3 字人名、特定结尾的组织地点名、拉丁文大写词组
func (e *Extractor) heuristicCandidates(sentence string) []string {
	var out []string
	runes := []rune(sentence)

	for i := 0; i < len(runes); i++ {
		if _, ok := surnames[runes[i]]; !ok {
			continue
		}
		// 姓 + 1~2 个汉字，名字结尾不能是虚词
		for n := 2; n >= 1; n-- {
			if i+n >= len(runes) {
				continue
			}
			ok := true
			for j := i + 1; j <= i+n; j++ {
				if !unicode.Is(unicode.Han, runes[j]) || isFunctionRune(runes[j]) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			name := string(runes[i : i+n+1])
			if textproc.IsValidWord(name) {
				out = append(out, name)
			}
			break
		}
	}

	for _, suffix := range entitySuffixes {
		sufRunes := []rune(suffix)
		for i := 0; i+len(sufRunes) <= len(runes); i++ {
			if string(runes[i:i+len(sufRunes)]) != suffix {
				continue
			}
			// 结尾字前最多取 3 个汉字作为名称主体
			start := i
			for start > 0 && i-start < 3 && unicode.Is(unicode.Han, runes[start-1]) &&
				!isSuffixRune(runes[start-1]) && !isFunctionRune(runes[start-1]) {
				start--
			}
			if start == i {
				continue
			}
			name := string(runes[start : i+len(sufRunes)])
			if textproc.IsValidWord(name) {
				out = append(out, name)
			}
		}
	}

	for _, m := range latinNameRe.FindAllString(sentence, -1) {
		if textproc.IsValidWord(m) {
			out = append(out, m)
		}
	}
	return out
}

// functionRunes 高频虚词，不应出现在人名内部
var functionRunes = map[rune]struct{}{
	'是': {}, '的': {}, '在': {}, '了': {}, '和': {}, '与': {}, '被': {},
	'把': {}, '对': {}, '向': {}, '从': {}, '也': {}, '都': {}, '就': {},
	'说': {}, '要': {}, '会': {}, '着': {}, '不': {}, '很': {}, '有': {},
	'于': {}, '而': {}, '之': {},
}

func isFunctionRune(r rune) bool {
	_, ok := functionRunes[r]
	return ok
}

func isSuffixRune(r rune) bool {
	for _, s := range entitySuffixes {
		runes := []rune(s)
		if len(runes) == 1 && runes[0] == r {
			return true
		}
	}
	return false
}
