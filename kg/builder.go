package kg

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/textproc"
)

// Entity 图谱节点
type Entity struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
	IsCustom  bool   `json:"is_custom"`
	Tier      string `json:"tier"` // low / medium / high
}

// Relation 有向关系，按（源、目标、标签）合并，权重为出现次数
type Relation struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Weight   int      `json:"weight"`
	Contexts []string `json:"contexts,omitempty"`
}

// Edge 某实体的一条邻接边
type Edge struct {
	Other    string   `json:"other"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Weight   int      `json:"weight"`
}

// Graph 剪枝后的图谱导出视图
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
	Stats     Stats      `json:"stats"`
}

// Stats 图谱统计
type Stats struct {
	TotalEntities  int     `json:"total_entities"`
	CustomEntities int     `json:"custom_entities"`
	TotalRelations int     `json:"total_relations"`
	GraphNodes     int     `json:"graph_nodes"`
	GraphEdges     int     `json:"graph_edges"`
	RelationTypes  int     `json:"relation_types"`
	AvgDegree      float64 `json:"avg_degree"`
}

// Document 图谱构建输入
type Document struct {
	Title string
	Text  string
}

// Config 构建配置
type Config struct {
	MaxEntities   int
	MinEntityFreq int
	MaxContexts   int
}

type relationKey struct {
	source, target, label string
}

// Builder 知识图谱构建器。Build 全量扫描语料，结果对相同输入确定。
type Builder struct {
	extractor *Extractor
	cfg       Config
	logger    *zap.Logger

	mu    sync.RWMutex
	graph *Graph
}

// NewBuilder 创建构建器
func NewBuilder(lexicon *textproc.Lexicon, cfg Config, logger *zap.Logger) *Builder {
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = 50
	}
	if cfg.MinEntityFreq < 1 {
		cfg.MinEntityFreq = 1
	}
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		extractor: NewExtractor(lexicon),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "kg_builder")),
	}
}

// Build 两阶段构建图谱：先统计实体，再在句内抽取关系。
// topN 覆盖本次构建的实体上限，0 表示使用配置值。
// 文档之间响应取消；同一组文档的输出完全确定。
func (b *Builder) Build(ctx context.Context, docs []Document, topN int) (*Graph, error) {
	// 阶段一：实体频次
	freq := make(map[string]int)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for name, n := range b.extractor.Extract(doc.Text) {
			freq[name] += n
		}
	}

	known := make(map[string]bool, len(freq))
	for name := range freq {
		known[name] = true
	}

	// 阶段二：句内关系
	relations := make(map[relationKey]*Relation)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, sent := range textproc.SplitSentences(doc.Text) {
			b.extractSentenceRelations(sent, known, relations)
		}
	}

	graph := b.prune(freq, relations, topN)
	b.mu.Lock()
	b.graph = graph
	b.mu.Unlock()

	b.logger.Info("knowledge graph built",
		zap.Int("documents", len(docs)),
		zap.Int("entities", graph.Stats.TotalEntities),
		zap.Int("nodes", graph.Stats.GraphNodes),
		zap.Int("edges", graph.Stats.GraphEdges))
	return graph, nil
}

// Graph 返回最近一次构建的图谱；尚未构建时返回 nil
func (b *Builder) Graph() *Graph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph
}

// Neighbors 返回实体的出边与入边；实体不在图中时 found 为 false
func (b *Builder) Neighbors(name string) (outgoing, incoming []Edge, found bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.graph == nil {
		return nil, nil, false
	}

	for _, e := range b.graph.Entities {
		if e.Name == name {
			found = true
			break
		}
	}
	if !found {
		return nil, nil, false
	}

	for _, r := range b.graph.Relations {
		if r.Source == name {
			outgoing = append(outgoing, Edge{Other: r.Target, Label: r.Label, Category: r.Category, Weight: r.Weight})
		}
		if r.Target == name {
			incoming = append(incoming, Edge{Other: r.Source, Label: r.Label, Category: r.Category, Weight: r.Weight})
		}
	}
	return outgoing, incoming, true
}

// extractSentenceRelations 在含 2~5 个实体的句子中，对相邻实体对
// 的间隔文本匹配触发词，命中则累计关系权重
func (b *Builder) extractSentenceRelations(sentence string, known map[string]bool, relations map[relationKey]*Relation) {
	mentions := b.extractor.Mentions(sentence, known)
	if len(mentions) < 2 || len(mentions) > 5 {
		return
	}

	runes := []rune(sentence)
	for i := 0; i+1 < len(mentions); i++ {
		src, dst := mentions[i], mentions[i+1]
		betweenStart := src.Start + len([]rune(src.Name))
		if betweenStart > dst.Start {
			continue
		}
		between := string(runes[betweenStart:dst.Start])
		following := string(runes[dst.Start+len([]rune(dst.Name)):])

		p, ok := matchPattern(between, following)
		if !ok {
			continue
		}

		key := relationKey{source: src.Name, target: dst.Name, label: p.Label}
		r, exists := relations[key]
		if !exists {
			r = &Relation{Source: src.Name, Target: dst.Name, Label: p.Label, Category: p.Category}
			relations[key] = r
		}
		r.Weight++
		if len(r.Contexts) < b.cfg.MaxContexts {
			r.Contexts = append(r.Contexts, sentence)
		}
	}
}

// prune 频次降序（同频按名称升序）保留前 topN（缺省 MaxEntities）个、
// 频次不低于 MinEntityFreq 的实体；任一端被剪掉的关系一并丢弃
func (b *Builder) prune(freq map[string]int, relations map[relationKey]*Relation, topN int) *Graph {
	maxEntities := b.cfg.MaxEntities
	if topN > 0 {
		maxEntities = topN
	}
	all := make([]Entity, 0, len(freq))
	custom := 0
	for name, f := range freq {
		isCustom := b.extractor.IsCustom(name)
		if isCustom {
			custom++
		}
		all = append(all, Entity{Name: name, Frequency: f, IsCustom: isCustom})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Frequency != all[j].Frequency {
			return all[i].Frequency > all[j].Frequency
		}
		return all[i].Name < all[j].Name
	})

	kept := make([]Entity, 0, maxEntities)
	for _, e := range all {
		if len(kept) == maxEntities {
			break
		}
		if e.Frequency < b.cfg.MinEntityFreq {
			break // 已按频次降序，后面不会更高
		}
		kept = append(kept, e)
	}
	assignTiers(kept)

	keptSet := make(map[string]bool, len(kept))
	for _, e := range kept {
		keptSet[e.Name] = true
	}

	var rels []Relation
	labels := make(map[string]struct{})
	for _, r := range relations {
		if !keptSet[r.Source] || !keptSet[r.Target] {
			continue
		}
		rels = append(rels, *r)
		labels[r.Label] = struct{}{}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Weight != rels[j].Weight {
			return rels[i].Weight > rels[j].Weight
		}
		if rels[i].Source != rels[j].Source {
			return rels[i].Source < rels[j].Source
		}
		if rels[i].Target != rels[j].Target {
			return rels[i].Target < rels[j].Target
		}
		return rels[i].Label < rels[j].Label
	})

	stats := Stats{
		TotalEntities:  len(all),
		CustomEntities: custom,
		TotalRelations: len(relations),
		GraphNodes:     len(kept),
		GraphEdges:     len(rels),
		RelationTypes:  len(labels),
	}
	if len(kept) > 0 {
		stats.AvgDegree = 2 * float64(len(rels)) / float64(len(kept))
	}

	return &Graph{Entities: kept, Relations: rels, Stats: stats}
}

// assignTiers 按保留实体的频次分布划分高中低档：
// (f-min)/(max-min) 低于 1/3 为 low，低于 2/3 为 medium，其余为 high
func assignTiers(entities []Entity) {
	if len(entities) == 0 {
		return
	}
	min, max := entities[0].Frequency, entities[0].Frequency
	for _, e := range entities {
		if e.Frequency < min {
			min = e.Frequency
		}
		if e.Frequency > max {
			max = e.Frequency
		}
	}

	for i := range entities {
		if max == min {
			entities[i].Tier = "high"
			continue
		}
		ratio := float64(entities[i].Frequency-min) / float64(max-min)
		switch {
		case ratio < 1.0/3.0:
			entities[i].Tier = "low"
		case ratio < 2.0/3.0:
			entities[i].Tier = "medium"
		default:
			entities[i].Tier = "high"
		}
	}
}
