// Package kg 从语料中抽取实体与关系，构建知识图谱。
package kg

import "strings"

// Category 关系类别
type Category string

const (
	CategoryIdentity    Category = "身份"
	CategoryAffiliation Category = "归属"
	CategoryLocation    Category = "位置"
	CategoryPossession  Category = "拥有"
	CategoryCapability  Category = "技能"
	CategoryTeaching    Category = "教导"
	CategoryCombat      Category = "战斗"
	CategorySocial      Category = "社交"
	CategoryEmotion     Category = "情感"
	CategoryCreation    Category = "创造"
)

// Pattern 关系触发词。两个相邻实体之间的文本命中触发词即产生
// 对应标签的有向关系。
type Pattern struct {
	Trigger  string
	Label    string
	Category Category
}

// Catalogue 触发词目录。多个触发词同时命中时取触发词最长者，
// 长度相同时取目录中靠前者，保证抽取结果确定。
var Catalogue = []Pattern{
	// 身份
	{Trigger: "成为", Label: "成为", Category: CategoryIdentity},
	{Trigger: "身为", Label: "身为", Category: CategoryIdentity},
	{Trigger: "自称", Label: "自称", Category: CategoryIdentity},
	{Trigger: "是", Label: "是", Category: CategoryIdentity},

	// 归属
	{Trigger: "属于", Label: "属于", Category: CategoryAffiliation},
	{Trigger: "隶属", Label: "隶属", Category: CategoryAffiliation},
	{Trigger: "加入", Label: "加入", Category: CategoryAffiliation},
	{Trigger: "出身", Label: "出身于", Category: CategoryAffiliation},
	{Trigger: "来自", Label: "来自", Category: CategoryAffiliation},
	{Trigger: "弟子", Label: "是弟子", Category: CategoryAffiliation},

	// 位置
	{Trigger: "位于", Label: "位于", Category: CategoryLocation},
	{Trigger: "前往", Label: "前往", Category: CategoryLocation},
	{Trigger: "到达", Label: "到达", Category: CategoryLocation},
	{Trigger: "抵达", Label: "抵达", Category: CategoryLocation},
	{Trigger: "离开", Label: "离开", Category: CategoryLocation},
	{Trigger: "住在", Label: "住在", Category: CategoryLocation},

	// 拥有
	{Trigger: "拥有", Label: "拥有", Category: CategoryPossession},
	{Trigger: "获得", Label: "获得", Category: CategoryPossession},
	{Trigger: "得到", Label: "得到", Category: CategoryPossession},
	{Trigger: "持有", Label: "持有", Category: CategoryPossession},
	{Trigger: "觉醒", Label: "觉醒", Category: CategoryPossession},

	// 技能
	{Trigger: "使用", Label: "使用", Category: CategoryCapability},
	{Trigger: "施展", Label: "施展", Category: CategoryCapability},
	{Trigger: "修炼", Label: "修炼", Category: CategoryCapability},
	{Trigger: "掌握", Label: "掌握", Category: CategoryCapability},
	{Trigger: "释放", Label: "释放", Category: CategoryCapability},

	// 教导
	{Trigger: "传授", Label: "传授", Category: CategoryTeaching},
	{Trigger: "教导", Label: "教导", Category: CategoryTeaching},
	{Trigger: "指点", Label: "指点", Category: CategoryTeaching},
	{Trigger: "收徒", Label: "收为弟子", Category: CategoryTeaching},
	{Trigger: "教", Label: "教", Category: CategoryTeaching},

	// 战斗
	{Trigger: "击败", Label: "击败", Category: CategoryCombat},
	{Trigger: "战胜", Label: "战胜", Category: CategoryCombat},
	{Trigger: "打败", Label: "打败", Category: CategoryCombat},
	{Trigger: "攻击", Label: "攻击", Category: CategoryCombat},
	{Trigger: "对战", Label: "对战", Category: CategoryCombat},
	{Trigger: "挑战", Label: "挑战", Category: CategoryCombat},
	{Trigger: "杀", Label: "杀死", Category: CategoryCombat},

	// 社交
	{Trigger: "帮助", Label: "帮助", Category: CategorySocial},
	{Trigger: "认识", Label: "认识", Category: CategorySocial},
	{Trigger: "结识", Label: "结识", Category: CategorySocial},
	{Trigger: "遇到", Label: "遇到", Category: CategorySocial},
	{Trigger: "跟随", Label: "跟随", Category: CategorySocial},
	{Trigger: "陪伴", Label: "陪伴", Category: CategorySocial},
	{Trigger: "救", Label: "救", Category: CategorySocial},
	{Trigger: "和", Label: "同行", Category: CategorySocial},
	{Trigger: "与", Label: "同行", Category: CategorySocial},

	// 情感
	{Trigger: "喜欢", Label: "喜欢", Category: CategoryEmotion},
	{Trigger: "讨厌", Label: "讨厌", Category: CategoryEmotion},
	{Trigger: "尊敬", Label: "尊敬", Category: CategoryEmotion},
	{Trigger: "信任", Label: "信任", Category: CategoryEmotion},
	{Trigger: "爱", Label: "爱", Category: CategoryEmotion},
	{Trigger: "恨", Label: "恨", Category: CategoryEmotion},

	// 创造
	{Trigger: "创建", Label: "创建", Category: CategoryCreation},
	{Trigger: "创立", Label: "创立", Category: CategoryCreation},
	{Trigger: "建立", Label: "建立", Category: CategoryCreation},
	{Trigger: "打造", Label: "打造", Category: CategoryCreation},
	{Trigger: "炼制", Label: "炼制", Category: CategoryCreation},
}

// membershipNouns 目标实体之后的成员身份名词。
// “A 是 B弟子”表达的是 A 对 B 的归属，而不是身份判断。
var membershipNouns = []string{"弟子", "门徒", "门人", "门生", "成员", "传人", "长老"}

// matchPattern 在两个相邻实体之间的文本上匹配触发词；
// following 是目标实体之后的句内文本。
// 单字触发词歧义大，只在间隔不超过 3 字时生效。
func matchPattern(between, following string) (Pattern, bool) {
	runes := []rune(between)
	var best Pattern
	found := false
	for _, p := range Catalogue {
		tl := len([]rune(p.Trigger))
		if tl == 1 && len(runes) > 3 {
			continue
		}
		if !strings.Contains(between, p.Trigger) {
			continue
		}
		if !found || tl > len([]rune(best.Trigger)) {
			best = p
			found = true
		}
	}
	if found && best.Trigger == "是" && followsMembershipNoun(following) {
		return Pattern{Trigger: "是", Label: "属于", Category: CategoryAffiliation}, true
	}
	return best, found
}

// followsMembershipNoun 目标实体之后 6 字以内出现成员身份名词
func followsMembershipNoun(following string) bool {
	runes := []rune(following)
	if len(runes) > 6 {
		runes = runes[:6]
	}
	window := string(runes)
	for _, n := range membershipNouns {
		if strings.Contains(window, n) {
			return true
		}
	}
	return false
}
