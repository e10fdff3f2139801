// Package watcher — режим непрерывного слежения: tail живых файлов
// техжурнала с докаткой новых файлов через fsnotify.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"1CLockAnalyzer/models"
	"1CLockAnalyzer/storage"
)

// Config — параметры watcher.
type Config struct {
	// Каталоги техжурнала: имя базы → путь.
	Dirs        map[string]string
	FilePattern string
	Logger      *zap.Logger
	Store       storage.ProcessedStore
}

type Watcher struct {
	cfg       Config
	batchCh   chan<- models.TechLogEvent
	files     map[string]*tail.Tail
	processed map[string]int64 // путь → смещение, до которого прочитано
	mu        sync.Mutex
	ctx       context.Context
}

func New(cfg Config, batchCh chan<- models.TechLogEvent) *Watcher {
	return &Watcher{
		cfg:       cfg,
		batchCh:   batchCh,
		files:     make(map[string]*tail.Tail),
		processed: make(map[string]int64),
	}
}

// Start запускает слежение и блокируется до отмены контекста.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx = ctx

	if w.cfg.Store != nil {
		processed, err := w.cfg.Store.Load()
		if err != nil {
			w.cfg.Logger.Error("Не удалось загрузить processed_files, начинаем с нуля", zap.Error(err))
		} else {
			w.processed = processed
		}
	}

	w.scanInitialFiles()

	dw, err := fsnotify.NewWatcher()
	if err != nil {
		w.cfg.Logger.Error("Не удалось создать fsnotify watcher", zap.Error(err))
	} else {
		defer dw.Close()
		for _, dir := range w.cfg.Dirs {
			w.addDirRecursive(dw, dir)
		}
		go w.handleDirEvents(dw)
	}

	<-ctx.Done()
	w.shutdown()
	w.cfg.Logger.Info("Watcher остановлен по сигналу shutdown")
}

// addDirRecursive подписывает fsnotify на каталог и все его подкаталоги.
func (w *Watcher) addDirRecursive(dw *fsnotify.Watcher, root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() {
			if werr := dw.Add(path); werr != nil {
				w.cfg.Logger.Warn("Не удалось подписаться на каталог",
					zap.String("dir", path), zap.Error(werr))
			}
		}
		return nil
	})
}

// handleDirEvents обрабатывает события fsnotify: новые файлы и каталоги
// (платформа создаёт подкаталог на каждый процесс), удаление файлов.
func (w *Watcher) handleDirEvents(dw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-dw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addDirRecursive(dw, ev.Name)
					continue
				}
			}
			if !w.matchesPattern(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				w.startTail(ev.Name)
			}
			if ev.Op&fsnotify.Remove != 0 {
				w.stopTail(ev.Name)
			}
		case err, ok := <-dw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("Ошибка fsnotify", zap.Error(err))
		}
	}
}

func (w *Watcher) matchesPattern(base string) bool {
	ok, _ := filepath.Match(w.cfg.FilePattern, base)
	return ok
}

// shutdown останавливает все tail и сохраняет смещения.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.files {
		t.Stop()
		delete(w.files, path)
	}
	w.saveProcessedLocked()
}

func (w *Watcher) saveProcessedLocked() {
	if w.cfg.Store == nil {
		return
	}
	if err := w.cfg.Store.Save(w.processed); err != nil {
		w.cfg.Logger.Error("Не удалось сохранить processed_files", zap.Error(err))
	}
}
