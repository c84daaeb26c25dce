// Package sqlite implements a SQLite-based kvstore driver using GORM.
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
)

func init() {
	kvstore.Register("sqlite", func(cfg kvstore.DriverConfig) (kvstore.Store, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("path is required for sqlite driver")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data folder: %w", err)
		}
		return Open(cfg.Path)
	})
}

// entry is one stored value.
type entry struct {
	Namespace string `gorm:"primaryKey"`
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt int64
}

func (entry) TableName() string {
	return "kv_entries"
}

// Store implements kvstore.Store on a SQLite database.
type Store struct {
	db *gorm.DB
}

var _ kvstore.Store = (*Store)(nil)

// Open opens (or creates) the database at path and runs AutoMigrate.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(namespace, key string) (string, error) {
	var e entry
	result := s.db.First(&e, "namespace = ? AND name = ?", namespace, key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", kvstore.ErrNotFound
		}
		return "", result.Error
	}
	return e.Value, nil
}

func (s *Store) PutMany(namespace string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().Unix()
	entries := make([]entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, entry{Namespace: namespace, Name: k, Value: v, UpdatedAt: now})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entries).Error
	})
}

func (s *Store) Delete(namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Where("namespace = ? AND name IN ?", namespace, keys).Delete(&entry{}).Error
}

func (s *Store) DeleteNamespace(namespace string) error {
	return s.db.Where("namespace = ?", namespace).Delete(&entry{}).Error
}

func (s *Store) Namespaces() ([]string, error) {
	var names []string
	err := s.db.Model(&entry{}).Distinct().Pluck("namespace", &names).Error
	return names, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
