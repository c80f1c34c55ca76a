package qacache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats 缓存统计
type Stats struct {
	Size int    `json:"size"`
	Dir  string `json:"dir"`
	File string `json:"file"`
}

// Manager 缓存管理器：内存映射保证读取延迟，写入同步落盘。
// 持久化不可读只降级为空缓存，不阻止启动。
type Manager struct {
	mu      sync.RWMutex
	entries map[string]Entry
	store   Store
	logger  *zap.Logger
}

// NewManager 创建管理器并从持久化存储预热内存
func NewManager(ctx context.Context, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "qa_cache"))

	entries := make(map[string]Entry)
	if store != nil {
		loaded, err := store.LoadAll(ctx)
		if err != nil {
			logger.Warn("cache store unreadable, starting with empty cache", zap.Error(err))
		} else {
			for _, e := range loaded {
				entries[e.Fingerprint] = e
			}
			logger.Info("cache warmed", zap.Int("entries", len(entries)))
		}
	}

	return &Manager{entries: entries, store: store, logger: logger}
}

// Get 按指纹查缓存
func (m *Manager) Get(fingerprint string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[fingerprint]
	return entry, ok
}

// Put 写入缓存。持久化失败降级为仅内存并告警。
func (m *Manager) Put(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Fingerprint] = entry
	if m.store != nil {
		if err := m.store.Put(ctx, entry); err != nil {
			m.logger.Warn("cache write-through failed", zap.Error(err))
		}
	}
}

// Clear 清空内存与持久化存储。对后续 Get 而言二者同时生效。
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]Entry)
	if m.store != nil {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("cache store clear failed", zap.Error(err))
			return err
		}
	}
	m.logger.Info("cache cleared")
	return nil
}

// Size 当前缓存条数
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats 缓存统计信息
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	size := len(m.entries)
	m.mu.RUnlock()

	var dir, file string
	if m.store != nil {
		dir, file = m.store.Location()
	}
	return Stats{Size: size, Dir: dir, File: file}
}

// Close 关闭持久化存储
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
