// Package ingest загружает файлы технологического журнала в ClickHouse:
// построчный разбор, батчевая вставка, пул воркеров по каталогу.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"1CLockAnalyzer/models"
	"1CLockAnalyzer/parser"
)

// EventSink — приёмник пачек событий. В продакшене это
// clickhouseclient.Client, в тестах — накопитель в памяти.
type EventSink interface {
	InsertEventBatch(ctx context.Context, events []models.TechLogEvent) error
}

// fileDateRe — 8-значный токен даты в имени файла техжурнала (ГГГГММДД).
var fileDateRe = regexp.MustCompile(`\d{8}`)

// Ingestor читает один файл техжурнала и пачками вставляет события в sink.
type Ingestor struct {
	sink      EventSink
	batchSize int
	lg        *zap.Logger
}

func NewIngestor(sink EventSink, batchSize int, lg *zap.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = 10000
	}
	return &Ingestor{sink: sink, batchSize: batchSize, lg: lg}
}

// FileDate достаёт календарную дату из имени файла, если она там есть.
func FileDate(path string) *time.Time {
	m := fileDateRe.FindString(filepath.Base(path))
	if m == "" {
		return nil
	}
	t, err := time.Parse("20060102", m)
	if err != nil {
		return nil
	}
	return &t
}

// ParseFile прогоняет файл через парсер и вставляет события пачками.
// Возвращает число успешно вставленных записей. Кривая строка пропускается
// и файл не прерывает; ошибка вставки — терминальная для файла: уже
// отправленные пачки остаются (at-least-once, всегда префикс файла),
// отката и повтора нет.
func (in *Ingestor) ParseFile(ctx context.Context, path string) (int, error) {
	in.lg.Info("Парсинг файла", zap.String("file", path))

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("открытие %s: %w", path, err)
	}
	defer f.Close()

	// .gz читается прозрачно, содержимое после распаковки идентично plain-файлу
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("распаковка %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	date := FileDate(path)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	batch := make([]models.TechLogEvent, 0, in.batchSize)
	total := 0
	lineNo := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.sink.InsertEventBatch(ctx, batch); err != nil {
			return fmt.Errorf("вставка пачки (%s, строка %d): %w", path, lineNo, err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		event, ok := parser.ParseLine(line)
		if !ok {
			in.lg.Warn("Строка не разобрана, пропускаем",
				zap.String("file", path), zap.Int("line", lineNo))
			continue
		}
		// Дата из имени файла, если строка своей даты не несёт
		if event.EventDate == nil && date != nil {
			event.EventDate = date
		}
		batch = append(batch, *event)
		if len(batch) >= in.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		// остаток пачки всё равно пытаемся дослать
		if ferr := flush(); ferr != nil {
			return total, ferr
		}
		return total, fmt.Errorf("чтение %s: %w", path, err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	in.lg.Info("Файл обработан", zap.String("file", path), zap.Int("records", total))
	return total, nil
}
