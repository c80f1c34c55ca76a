package qacache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFingerprint(t *testing.T) {
	base := Fingerprint("唐三的武魂是什么", 10, "", false)

	// 大小写与首尾空白不影响指纹
	assert.Equal(t, base, Fingerprint("  唐三的武魂是什么  ", 10, "", false))
	assert.Equal(t, Fingerprint("What IS it", 5, "", false), Fingerprint("what is it", 5, "", false))

	// 参数变化产生不同指纹
	assert.NotEqual(t, base, Fingerprint("唐三的武魂是什么", 5, "", false))
	assert.NotEqual(t, base, Fingerprint("唐三的武魂是什么", 10, "简短回答", false))
	assert.NotEqual(t, base, Fingerprint("唐三的武魂是什么", 10, "", true))
	assert.NotEqual(t, base, Fingerprint("小舞是谁", 10, "", false))

	assert.Len(t, base, 64)
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := NewSQLiteStore(t.TempDir(), "cache.db", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(context.Background(), store, zap.NewNop())
}

func TestManagerGetPut(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	fp := Fingerprint("问题", 10, "", false)
	_, ok := m.Get(fp)
	assert.False(t, ok)

	m.Put(ctx, Entry{Fingerprint: fp, Query: "问题", Payload: `{"answer":"回答"}`})

	entry, ok := m.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "问题", entry.Query)
	assert.Equal(t, `{"answer":"回答"}`, entry.Payload)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, 1, m.Size())
}

func TestManagerPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir, "cache.db", zap.NewNop())
	require.NoError(t, err)
	m := NewManager(ctx, store, zap.NewNop())
	fp := Fingerprint("问题", 10, "", false)
	m.Put(ctx, Entry{Fingerprint: fp, Query: "问题", Payload: "payload"})
	require.NoError(t, m.Close())

	// 重新打开后命中同一条记录
	store2, err := NewSQLiteStore(dir, "cache.db", zap.NewNop())
	require.NoError(t, err)
	m2 := NewManager(ctx, store2, zap.NewNop())
	defer m2.Close()

	entry, ok := m2.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "payload", entry.Payload)
}

func TestManagerClear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Put(ctx, Entry{Fingerprint: "a", Query: "q1", Payload: "p1"})
	m.Put(ctx, Entry{Fingerprint: "b", Query: "q2", Payload: "p2"})
	require.Equal(t, 2, m.Size())

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Size())
	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t)
	m.Put(context.Background(), Entry{Fingerprint: "a", Query: "q", Payload: "p"})

	stats := m.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.NotEmpty(t, stats.Dir)
	assert.Equal(t, "cache.db", stats.File)
}

func TestManagerWithoutStore(t *testing.T) {
	m := NewManager(context.Background(), nil, zap.NewNop())
	m.Put(context.Background(), Entry{Fingerprint: "a", Payload: "p"})

	entry, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "p", entry.Payload)
	require.NoError(t, m.Clear(context.Background()))
	require.NoError(t, m.Close())
}
