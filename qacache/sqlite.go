package qacache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore 基于单文件 sqlite 的持久化存储
type SQLiteStore struct {
	db     *gorm.DB
	dir    string
	file   string
	logger *zap.Logger
}

// NewSQLiteStore 打开（必要时创建）缓存数据库。
// 文件损坏打不开时删除重建一次；重建仍失败才返回错误。
func NewSQLiteStore(dir, file string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "cache_sqlite"))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, file)

	db, err := openSQLite(path)
	if err != nil {
		logger.Warn("cache database unreadable, recreating", zap.String("path", path), zap.Error(err))
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove corrupt cache db %s: %w", path, rmErr)
		}
		db, err = openSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("recreate cache db %s: %w", path, err)
		}
	}

	return &SQLiteStore{db: db, dir: dir, file: file, logger: logger}, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return db, nil
}

// LoadAll 实现 Store
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	return entries, nil
}

// Put 实现 Store
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Clear 实现 Store
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	return nil
}

// Close 实现 Store
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Location 实现 Store
func (s *SQLiteStore) Location() (string, string) {
	return s.dir, s.file
}
