package config

import "path/filepath"

type StorageConfig interface {
	GetStorageDriver() string
	GetStoragePath() string
}

type Storage struct {
	src source
}

var _ StorageConfig = Storage{}

// GetStorageDriver names the kvstore driver: bolt, sqlite or memory.
func (s Storage) GetStorageDriver() string {
	return s.src.get("STORAGE_DRIVER", "bolt")
}

func (s Storage) GetStoragePath() string {
	def := filepath.Join(s.src.get(folderEnvVar, "./data"), "sessions.db")
	return s.src.get("STORAGE_PATH", def)
}
