package storage

import (
	"encoding/json"
	"os"
)

// FileStore держит смещения в JSON-файле рядом с сервисом.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (map[string]int64, error) {
	processed := make(map[string]int64)
	if _, err := os.Stat(f.Path); os.IsNotExist(err) {
		return processed, nil
	}
	bs, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bs, &processed); err != nil {
		return nil, err
	}
	return processed, nil
}

// Save пишет через временный файл, чтобы не потерять карту на падении.
func (f *FileStore) Save(data map[string]int64) error {
	tmp := f.Path + ".tmp"
	bs, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
