package qacache

import (
	"context"
	"time"
)

// Entry 一条缓存记录。Payload 是序列化后的完整问答结果，
// 缓存层不解释其内容。
type Entry struct {
	Fingerprint string    `gorm:"primaryKey;size:64" json:"fingerprint"`
	Query       string    `gorm:"type:text" json:"query"`
	Payload     string    `gorm:"type:text" json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (Entry) TableName() string {
	return "qa_cache"
}

// Store 持久化存储接口
type Store interface {
	// LoadAll 启动时加载全部记录
	LoadAll(ctx context.Context) ([]Entry, error)
	// Put 写入或覆盖一条记录
	Put(ctx context.Context, entry Entry) error
	// Clear 删除全部记录
	Clear(ctx context.Context) error
	// Close 释放底层资源
	Close() error
	// Location 返回存储位置描述（目录、文件或地址）
	Location() (dir, file string)
}
