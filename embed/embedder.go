// Package embed 提供文档与查询的向量化能力。
package embed

import (
	"context"
	"math"
)

// Embedder 向量化接口。实现必须返回 L2 归一化后的向量，
// 且同一实例的所有向量维度一致。
type Embedder interface {
	// EmbedDocuments 批量向量化文档文本
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery 向量化查询文本（实现可附加查询指令前缀）
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	// Dimension 向量维度；在首次调用成功前为 0
	Dimension() int
}

// Normalize 对向量做 L2 归一化（原地修改并返回）。零向量原样返回。
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
