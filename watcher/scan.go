package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// scanInitialFiles запускает tail для существующих файлов каталогов.
// Файлы берутся в порядке модификации, чтобы исторические дочитались
// раньше текущего часа.
func (w *Watcher) scanInitialFiles() {
	type fileWithTime struct {
		path string
		mod  time.Time
	}

	for base, dir := range w.cfg.Dirs {
		var found []fileWithTime
		filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if w.matchesPattern(filepath.Base(path)) {
				found = append(found, fileWithTime{path: path, mod: info.ModTime()})
			}
			return nil
		})
		sort.Slice(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })

		w.cfg.Logger.Info("Каталог просканирован",
			zap.String("base", base), zap.String("dir", dir), zap.Int("files", len(found)))
		for _, f := range found {
			w.startTail(f.path)
		}
	}
}
