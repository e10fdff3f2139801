package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Scheduler раздаёт файлы каталога техжурнала пулу воркеров.
// Задачи независимы: единственное общее состояние — итоговый счётчик,
// и он складывается из результатов в одной горутине, а не из воркеров.
type Scheduler struct {
	ingestor *Ingestor
	workers  int
	lg       *zap.Logger
}

type fileResult struct {
	path  string
	count int
	err   error
}

func NewScheduler(ing *Ingestor, workers int, lg *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{ingestor: ing, workers: workers, lg: lg}
}

// findFiles рекурсивно собирает файлы каталога, чьё имя подходит под
// pattern или pattern+".gz".
func findFiles(root, pattern string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil // недоступный подкаталог не валит обход
		}
		base := filepath.Base(path)
		for _, p := range []string{pattern, pattern + ".gz"} {
			if ok, _ := filepath.Match(p, base); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ProcessDirectory обрабатывает все подходящие файлы каталога пулом воркеров
// и возвращает суммарное число вставленных записей. Ошибка одного файла
// логируется и не трогает соседние; записи, вставленные файлом до его
// ошибки, входят в итог. Отмена контекста останавливает раздачу ещё не
// начатых файлов, текущие файлы дорабатывают.
func (s *Scheduler) ProcessDirectory(ctx context.Context, root, pattern string) (int, error) {
	files, err := findFiles(root, pattern)
	if err != nil {
		return 0, err
	}
	s.lg.Info("Найдено файлов для обработки", zap.Int("count", len(files)))

	tasks := make(chan string)
	results := make(chan fileResult)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range tasks {
				count, err := s.ingestor.ParseFile(ctx, path)
				results <- fileResult{path: path, count: count, err: err}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case tasks <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	total := 0
	for r := range results {
		// частично вставленный префикс файла тоже входит в итог
		total += r.count
		if r.err != nil {
			s.lg.Error("Ошибка обработки файла",
				zap.String("file", r.path), zap.Int("inserted", r.count), zap.Error(r.err))
			continue
		}
		s.lg.Info("Прогресс", zap.Int("total", total))
	}

	s.lg.Info("Всего обработано записей", zap.Int("total", total))
	if err := ctx.Err(); err != nil {
		return total, err
	}
	return total, nil
}
