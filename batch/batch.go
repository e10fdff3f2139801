// Package batch копит события из канала и отправляет их в ClickHouse пачками.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/models"
)

// Inserter — приёмник пачек (clickhouseclient.Client).
type Inserter interface {
	InsertEventBatch(ctx context.Context, events []models.TechLogEvent) error
}

// Batcher отправляет пачку при достижении размера или по таймеру,
// что наступит раньше.
type Batcher struct {
	batchSize     int
	batchInterval time.Duration
	logger        *zap.Logger
	sink          Inserter
}

func NewBatcher(batchSize, batchIntervalSec int, logger *zap.Logger, sink Inserter) *Batcher {
	return &Batcher{
		batchSize:     batchSize,
		batchInterval: time.Duration(batchIntervalSec) * time.Second,
		logger:        logger,
		sink:          sink,
	}
}

// Run читает события из канала до отмены контекста.
// Ошибка вставки логируется, пачка при этом теряется — режим слежения
// не даёт гарантий сильнее at-least-once.
func (b *Batcher) Run(ctx context.Context, in <-chan models.TechLogEvent) {
	batch := make([]models.TechLogEvent, 0, b.batchSize)
	timer := time.NewTimer(b.batchInterval)
	defer timer.Stop()

	flush := func(reason string) {
		if len(batch) == 0 {
			return
		}
		b.logger.Info("Отправляем batch в ClickHouse",
			zap.Int("count", len(batch)), zap.String("reason", reason))
		// свой таймаут, чтобы финальная пачка ушла и после отмены ctx
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		err := b.sink.InsertEventBatch(insertCtx, batch)
		cancel()
		if err != nil {
			b.logger.Error("Ошибка при отправке batch в ClickHouse", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush("graceful shutdown")
			return
		case event := <-in:
			batch = append(batch, event)
			if len(batch) >= b.batchSize {
				flush("batch size reached")
				timer.Reset(b.batchInterval)
			}
		case <-timer.C:
			flush("interval")
			timer.Reset(b.batchInterval)
		}
	}
}
