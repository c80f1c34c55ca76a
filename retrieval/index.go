// Package retrieval 实现内存向量索引、检索器与重排序器。
package retrieval

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/textproc"
)

// IndexedChunk 索引中的一条记录
type IndexedChunk struct {
	Chunk  textproc.Chunk
	Title  string
	Vector []float32
}

// ScoredChunk 检索结果
type ScoredChunk struct {
	Chunk       textproc.Chunk `json:"chunk"`
	Title       string         `json:"title"`
	Similarity  float32        `json:"similarity"`
	RerankScore float32        `json:"rerank_score"`
}

// Index 内存向量索引。所有向量维度一致且已归一化，
// 余弦相似度退化为点积。写操作互斥，读操作并发。
type Index struct {
	mu     sync.RWMutex
	chunks []IndexedChunk
	dim    int
	logger *zap.Logger
}

// NewIndex 创建空索引
func NewIndex(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{logger: logger.With(zap.String("component", "vector_index"))}
}

// Replace 整体替换索引内容
func (idx *Index) Replace(chunks []IndexedChunk) error {
	dim, err := checkDimensions(chunks, 0)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = chunks
	idx.dim = dim
	idx.logger.Info("index rebuilt", zap.Int("chunks", len(chunks)), zap.Int("dimension", dim))
	return nil
}

// Append 追加记录（新增文档时使用）
func (idx *Index) Append(chunks []IndexedChunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	dim, err := checkDimensions(chunks, idx.dim)
	if err != nil {
		return err
	}
	idx.chunks = append(idx.chunks, chunks...)
	idx.dim = dim
	return nil
}

// RemoveDocument 删除某文档的全部记录，返回删除数量
func (idx *Index) RemoveDocument(documentID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.chunks[:0]
	removed := 0
	for _, c := range idx.chunks {
		if c.Chunk.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	idx.chunks = kept
	return removed
}

// Size 索引中的记录数
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Dimension 索引的向量维度；空索引为 0
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Search 返回相似度不低于 threshold 的前 topK 条记录，按相似度降序，
// 同分保持插入顺序。空结果不是错误。
func (idx *Index) Search(queryVec []float32, topK int, threshold float32) ([]ScoredChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.chunks) == 0 {
		return nil, nil
	}
	if len(queryVec) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(queryVec), idx.dim)
	}

	results := make([]ScoredChunk, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		sim := dot(queryVec, c.Vector)
		if sim < threshold {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk:      c.Chunk,
			Title:      c.Title,
			Similarity: sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func checkDimensions(chunks []IndexedChunk, dim int) (int, error) {
	for i, c := range chunks {
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) != dim {
			return 0, fmt.Errorf("chunk %d has dimension %d, want %d", i, len(c.Vector), dim)
		}
	}
	return dim, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
