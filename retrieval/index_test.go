package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baiyu-dev/ragkb/textproc"
)

func indexed(docID string, idx int, text string, vec []float32) IndexedChunk {
	return IndexedChunk{
		Chunk:  textproc.Chunk{DocumentID: docID, Index: idx, Text: text},
		Title:  docID,
		Vector: vec,
	}
}

func TestIndexReplaceDimensionMismatch(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	err := idx.Replace([]IndexedChunk{
		indexed("a", 0, "x", []float32{1, 0}),
		indexed("a", 1, "y", []float32{1, 0, 0}),
	})
	assert.Error(t, err)
}

func TestIndexSearchOrdering(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{
		indexed("a", 0, "远", []float32{0, 1}),
		indexed("a", 1, "近", []float32{1, 0}),
		indexed("b", 0, "中", []float32{0.6, 0.8}),
	}))

	results, err := idx.Search([]float32{1, 0}, 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// 按相似度降序
	assert.Equal(t, "近", results[0].Chunk.Text)
	assert.Equal(t, "中", results[1].Chunk.Text)
	assert.Equal(t, "远", results[2].Chunk.Text)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestIndexSearchThresholdAndTopK(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{
		indexed("a", 0, "高", []float32{1, 0}),
		indexed("a", 1, "中", []float32{0.6, 0.8}),
		indexed("a", 2, "负", []float32{-1, 0}),
	}))

	results, err := idx.Search([]float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = idx.Search([]float32{1, 0}, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "高", results[0].Chunk.Text)
}

func TestIndexSearchEmpty(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	results, err := idx.Search([]float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	// 阈值滤空也不是错误
	require.NoError(t, idx.Replace([]IndexedChunk{indexed("a", 0, "x", []float32{0, 1})}))
	results, err = idx.Search([]float32{1, 0}, 5, 0.9)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchEqualSimilarityKeepsInsertionOrder(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{
		indexed("a", 0, "先", []float32{0.6, 0.8}),
		indexed("b", 0, "后", []float32{0.6, 0.8}),
		indexed("c", 0, "另", []float32{0, 1}),
	}))

	// 同分结果保持入库顺序
	results, err := idx.Search([]float32{1, 0}, 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "先", results[0].Chunk.Text)
	assert.Equal(t, "后", results[1].Chunk.Text)
	assert.Equal(t, results[0].Similarity, results[1].Similarity)
}

func TestIndexSelfSimilarityFirst(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{
		indexed("a", 0, "其他", []float32{0.6, 0.8}),
		indexed("a", 1, "自身", []float32{1, 0}),
	}))

	// 用某块自己的向量查询，该块必须排第一
	results, err := idx.Search([]float32{1, 0}, 10, -1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "自身", results[0].Chunk.Text)
}

func TestIndexRemoveDocument(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{
		indexed("a", 0, "x", []float32{1, 0}),
		indexed("b", 0, "y", []float32{0, 1}),
		indexed("a", 1, "z", []float32{0, 1}),
	}))

	removed := idx.RemoveDocument("a")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Size())

	assert.Equal(t, 0, idx.RemoveDocument("missing"))
}

func TestIndexAppendDimensionCheck(t *testing.T) {
	idx := NewIndex(zap.NewNop())
	require.NoError(t, idx.Replace([]IndexedChunk{indexed("a", 0, "x", []float32{1, 0})}))

	err := idx.Append([]IndexedChunk{indexed("b", 0, "y", []float32{1, 0, 0})})
	assert.Error(t, err)

	require.NoError(t, idx.Append([]IndexedChunk{indexed("b", 0, "y", []float32{0, 1})}))
	assert.Equal(t, 2, idx.Size())
}
