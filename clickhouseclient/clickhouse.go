package clickhouseclient

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"1CLockAnalyzer/config"
	"1CLockAnalyzer/models"
)

// Client — подключение к ClickHouse для вставки событий техжурнала
// и агрегатных запросов анализа блокировок.
// Нативное соединение clickhouse-go держит пул и безопасно для
// конкурентных вставок из нескольких воркеров.
type Client struct {
	conn   clickhouse.Conn
	Table  string
	Logger *zap.Logger
}

// New создает клиента ClickHouse
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	return &Client{conn: conn, Table: cfg.Table, Logger: logger}, nil
}

// Ping проверяет доступность ClickHouse. Недоступность хранилища —
// фатальная ошибка для всего прогона, а не для отдельного файла.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// insertColumns — фиксированный порядок колонок таблицы техжурнала.
var insertColumns = "event_date, hour, minute, second, millisecond, " +
	"duration, wait_time, lock_time, transaction, connection, session, " +
	"user, computer, app_id, context, dbms, dbpid, func, raw_line"

// InsertEventBatch отправляет пачку событий одним INSERT.
// Вставка append-only, дедупликации нет: повторная загрузка файла
// даст дубли строк.
func (c *Client) InsertEventBatch(ctx context.Context, events []models.TechLogEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx,
		"INSERT INTO "+c.Table+" ("+insertColumns+")")
	if err != nil {
		c.Logger.Error("prepare batch", zap.Error(err))
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventDate,
			e.Hour,
			e.Minute,
			e.Second,
			e.Millisecond,
			e.Duration,
			e.WaitTime,
			e.LockTime,
			e.Transaction,
			e.Connection,
			e.Session,
			e.User,
			e.Computer,
			e.AppID,
			e.Context,
			e.DBMS,
			e.DBPID,
			e.Func,
			e.RawLine,
		)
		if err != nil {
			c.Logger.Error("append batch", zap.Error(err))
			return fmt.Errorf("append: %w", err)
		}
	}
	return batch.Send()
}

// LockStatsByDay возвращает статистику блокировок по дням за последние days
// дней, самые свежие первыми. Долгая блокировка — lock_time > 1 секунды
// (1 000 000 мкс), дедлок — подстрока "deadlock" в исходной строке.
func (c *Client) LockStatsByDay(ctx context.Context, days int) ([]models.DailyLockStat, error) {
	query := fmt.Sprintf(`
		SELECT
			toDate(event_date) AS date,
			avg(lock_time) AS avg_lock_time,
			max(lock_time) AS max_lock_time,
			countIf(lock_time > 1000000) AS long_locks_count,
			countIf(position(lower(raw_line), 'deadlock') > 0) AS deadlock_count,
			countIf(position(lower(raw_line), 'lock') > 0) AS lock_events
		FROM %s
		WHERE event_date >= today() - %d
		  AND lock_time > 0
		GROUP BY date
		ORDER BY date DESC`, c.Table, days)

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("запрос статистики по дням: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyLockStat
	for rows.Next() {
		var s models.DailyLockStat
		if err := rows.Scan(&s.Date, &s.AvgLockTime, &s.MaxLockTime,
			&s.LongLocksCount, &s.DeadlockCount, &s.LockEvents); err != nil {
			return nil, fmt.Errorf("чтение строки статистики: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// TopLockTables возвращает топ-10 таблиц по числу блокировок за сегодня.
// Имя таблицы достаётся из фрагмента table='...' внутри raw_line.
func (c *Client) TopLockTables(ctx context.Context) ([]models.TableLockStat, error) {
	query := fmt.Sprintf(`
		SELECT
			extract(raw_line, 'table=\'([^\']*)\'') AS table_name,
			count() AS lock_count,
			avg(lock_time) AS avg_lock_time,
			max(lock_time) AS max_lock_time
		FROM %s
		WHERE event_date = today()
		  AND lock_time > 0
		  AND table_name != ''
		GROUP BY table_name
		ORDER BY lock_count DESC
		LIMIT 10`, c.Table)

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("запрос топ-таблиц: %w", err)
	}
	defer rows.Close()

	var stats []models.TableLockStat
	for rows.Next() {
		var s models.TableLockStat
		if err := rows.Scan(&s.TableName, &s.LockCount, &s.AvgLockTime, &s.MaxLockTime); err != nil {
			return nil, fmt.Errorf("чтение строки топ-таблиц: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
