package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/models"
)

// Source — история измерений и сохранение прогноза.
// В продакшене это *Store, в тестах — заглушка.
type Source interface {
	History(ctx context.Context, days int) ([]Sample, error)
	SaveForecast(ctx context.Context, date time.Time, currentGB float64,
		forecasts map[int]float64, m *Model, daysToLimit float64) error
}

// Notifier — канал предупреждений о диске.
type Notifier interface {
	SendAlert(ctx context.Context, message string, level models.RiskLevel) error
}

// Predictor — один прогон прогноза заполнения диска.
type Predictor struct {
	src         Source
	notifier    Notifier // nil — предупреждения только в лог
	historyDays int
	limitGB     float64
	lg          *zap.Logger
}

func NewPredictor(src Source, notifier Notifier, historyDays int, limitGB float64, lg *zap.Logger) *Predictor {
	return &Predictor{src: src, notifier: notifier, historyDays: historyDays, limitGB: limitGB, lg: lg}
}

// Run обучает модель на истории, строит прогнозы и сохраняет их.
// Отсутствие истории — фатальная ошибка прогона: прогнозировать нечего.
func (p *Predictor) Run(ctx context.Context) error {
	samples, err := p.src.History(ctx, p.historyDays)
	if err != nil {
		return fmt.Errorf("история диска: %w", err)
	}
	model, err := Train(samples)
	if err != nil {
		return err
	}
	p.lg.Info("Модель обучена",
		zap.Float64("mae_gb", model.MAE),
		zap.Float64("r2", model.R2),
		zap.Float64("growth_gb_per_day", model.GrowthRate))

	sort.Slice(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })
	last := samples[len(samples)-1]

	forecasts := make(map[int]float64, len(ForecastDays))
	for _, d := range ForecastDays {
		forecasts[d] = model.Forecast(d)
		p.lg.Info("Прогноз", zap.Int("days", d), zap.Float64("used_gb", forecasts[d]))
	}

	daysToLimit := model.DaysToLimit(last.UsedGB, p.limitGB)
	if !math.IsInf(daysToLimit, 1) {
		p.lg.Info("Дней до лимита", zap.Float64("days", daysToLimit))
	}

	for _, w := range CheckThresholds(forecasts, last.UsedGB, p.limitGB) {
		p.lg.Warn("Критический прогноз диска", zap.String("message", w.Message))
		if p.notifier != nil {
			if err := p.notifier.SendAlert(ctx, w.Message, models.RiskWarning); err != nil {
				p.lg.Error("Ошибка отправки предупреждения", zap.Error(err))
			}
		}
	}

	if err := p.src.SaveForecast(ctx, last.Date, last.UsedGB, forecasts, model, daysToLimit); err != nil {
		return err
	}
	return nil
}
