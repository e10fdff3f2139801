package forecast

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"1CLockAnalyzer/config"
)

// Store — история диска и сохранение прогнозов в PostgreSQL.
type Store struct {
	db *sql.DB
	lg *zap.Logger
}

func NewStore(cfg config.PostgresConfig, lg *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{db: db, lg: lg}, nil
}

// History отдаёт измерения занятого места за последние days дней.
func (s *Store) History(ctx context.Context, days int) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, used_gb
		FROM disk_usage
		WHERE date >= CURRENT_DATE - $1 * INTERVAL '1 day'
		ORDER BY date`, days)
	if err != nil {
		return nil, fmt.Errorf("чтение истории диска: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.Date, &sm.UsedGB); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	s.lg.Info("Загружена история диска", zap.Int("records", len(samples)))
	return samples, rows.Err()
}

// SaveForecast сохраняет прогноз (upsert по дате) и метрики качества модели.
func (s *Store) SaveForecast(ctx context.Context, date time.Time, currentGB float64,
	forecasts map[int]float64, m *Model, daysToLimit float64) error {

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disk_forecast
			(metric_date, disk_used_gb, forecast_7d_gb, forecast_14d_gb,
			 forecast_30d_gb, forecast_date, growth_rate_gb_per_day, days_to_limit)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7)
		ON CONFLICT (metric_date)
		DO UPDATE SET
			disk_used_gb = EXCLUDED.disk_used_gb,
			forecast_7d_gb = EXCLUDED.forecast_7d_gb,
			forecast_14d_gb = EXCLUDED.forecast_14d_gb,
			forecast_30d_gb = EXCLUDED.forecast_30d_gb,
			forecast_date = EXCLUDED.forecast_date,
			growth_rate_gb_per_day = EXCLUDED.growth_rate_gb_per_day,
			days_to_limit = EXCLUDED.days_to_limit`,
		date, currentGB, forecasts[7], forecasts[14], forecasts[30],
		m.GrowthRate, daysToLimit)
	if err != nil {
		return fmt.Errorf("сохранение прогноза: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_quality (train_date, model_type, mae, r2, growth_rate)
		VALUES (NOW(), 'linear_regression', $1, $2, $3)`,
		m.MAE, m.R2, m.GrowthRate)
	if err != nil {
		return fmt.Errorf("сохранение метрик модели: %w", err)
	}
	s.lg.Info("Прогноз сохранён в БД", zap.Time("date", date))
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
