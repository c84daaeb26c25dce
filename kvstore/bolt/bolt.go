// Package bolt provides a BBolt-backed kvstore driver.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
	"go.etcd.io/bbolt"
)

func init() {
	kvstore.Register("bolt", func(cfg kvstore.DriverConfig) (kvstore.Store, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("path is required for bolt driver")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data folder: %w", err)
		}
		return NewFromFile(cfg.Path, &bbolt.Options{Timeout: time.Second})
	})
}

// Store implements kvstore.Store with one bucket per namespace.
type Store struct {
	db *bbolt.DB
}

var _ kvstore.Store = (*Store)(nil)

// New returns a Store backed by the given BBolt database.
func New(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewFromFile opens a BBolt database at the given path and returns a new Store.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(namespace, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return kvstore.ErrNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return kvstore.ErrNotFound
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) PutMany(namespace string, values map[string]string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		for k, v := range values {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Delete(namespace string, keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteNamespace(namespace string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(namespace)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(namespace))
	})
}

func (s *Store) Namespaces() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}
