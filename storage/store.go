// Package storage хранит смещения обработанных файлов между запусками
// режима слежения.
package storage

import (
	"fmt"

	"1CLockAnalyzer/config"
)

// ProcessedStore — карта "путь файла → смещение, до которого он прочитан".
type ProcessedStore interface {
	Load() (map[string]int64, error)
	Save(data map[string]int64) error
}

// New выбирает реализацию по конфигурации: "file" (по умолчанию) или "redis".
func New(cfg *config.Config) (ProcessedStore, error) {
	switch cfg.Watch.ProcessedStorage {
	case "", "file":
		return NewFileStore(cfg.Watch.ProcessedFile), nil
	case "redis":
		return NewRedisStore(&cfg.Redis, "1clockanalyzer:processed"), nil
	default:
		return nil, fmt.Errorf("неизвестный ProcessedStorage: %s", cfg.Watch.ProcessedStorage)
	}
}
