package watcher

import (
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"1CLockAnalyzer/ingest"
	"1CLockAnalyzer/parser"
)

// startTail запускает tail для файла, начиная с сохранённого смещения.
func (w *Watcher) startTail(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.files[path]; exists {
		return
	}
	loc := tail.SeekInfo{Offset: w.processed[path], Whence: io.SeekStart}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &loc,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		w.cfg.Logger.Error("Ошибка открытия tail", zap.String("file", path), zap.Error(err))
		return
	}
	w.files[path] = t
	w.cfg.Logger.Info("Запущен tail для файла", zap.String("file", path))
	go w.readTail(path, t)
}

// stopTail останавливает tail и сохраняет смещения.
func (w *Watcher) stopTail(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.files[path]; ok {
		t.Stop()
		delete(w.files, path)
		w.saveProcessedLocked()
	}
}

// readTail читает строки файла, разбирает их и двигает смещение.
// Каждая строка техжурнала блокировок — самостоятельная запись,
// склейки многострочных записей здесь нет.
func (w *Watcher) readTail(path string, t *tail.Tail) {
	date := ingest.FileDate(path)
	for {
		select {
		case <-w.ctx.Done():
			return
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			clean := strings.ReplaceAll(line.Text, "\x00", "")
			if clean != line.Text {
				w.cfg.Logger.Warn("Обнаружены нулевые байты в строке", zap.String("file", path))
			}
			if strings.TrimSpace(clean) == "" {
				continue
			}
			event, parsed := parser.ParseLine(clean)
			if !parsed {
				w.cfg.Logger.Warn("Строка не разобрана, пропускаем", zap.String("file", path))
				continue
			}
			if event.EventDate == nil && date != nil {
				event.EventDate = date
			}

			select {
			case <-w.ctx.Done():
				return
			case w.batchCh <- *event:
			}

			if off, err := t.Tell(); err == nil {
				w.mu.Lock()
				w.processed[path] = off
				w.mu.Unlock()
			}
		}
	}
}
