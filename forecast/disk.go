// Package forecast прогнозирует заполнение диска линейной регрессией
// по истории из БД мониторинга.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ForecastDays — горизонты прогноза в днях.
var ForecastDays = []int{7, 14, 30}

// Sample — одно измерение занятого места.
type Sample struct {
	Date   time.Time
	UsedGB float64
}

// Model — обученная линейная модель роста диска.
type Model struct {
	Intercept  float64 // ГБ в нулевой день выборки
	GrowthRate float64 // ГБ/день
	MAE        float64
	R2         float64
	lastDay    float64 // номер последнего дня выборки
}

// Train обучает регрессию на истории. Последние 20% точек
// откладываются на проверку качества (MAE, R²).
func Train(samples []Sample) (*Model, error) {
	if len(samples) < 5 {
		return nil, errors.New("недостаточно истории для обучения модели")
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	start := sorted[0].Date
	x := make([]float64, len(sorted))
	y := make([]float64, len(sorted))
	for i, s := range sorted {
		x[i] = s.Date.Sub(start).Hours() / 24
		y[i] = s.UsedGB
	}

	split := int(float64(len(x)) * 0.8)
	alpha, beta := stat.LinearRegression(x[:split], y[:split], nil, false)

	var mae float64
	for i := split; i < len(x); i++ {
		mae += math.Abs(y[i] - (alpha + beta*x[i]))
	}
	mae /= float64(len(x) - split)

	return &Model{
		Intercept:  alpha,
		GrowthRate: beta,
		MAE:        mae,
		R2:         stat.RSquared(x[split:], y[split:], nil, alpha, beta),
		lastDay:    x[len(x)-1],
	}, nil
}

// Forecast — прогноз занятого места через daysAhead дней.
func (m *Model) Forecast(daysAhead int) float64 {
	return m.Intercept + m.GrowthRate*(m.lastDay+float64(daysAhead))
}

// DaysToLimit — дней до достижения лимита; +Inf, если диск не растёт.
func (m *Model) DaysToLimit(currentGB, limitGB float64) float64 {
	if m.GrowthRate <= 0 {
		return math.Inf(1)
	}
	days := (limitGB - currentGB) / m.GrowthRate
	if days < 0 {
		return 0
	}
	return days
}

// Warning — прогноз или текущий уровень пересёк порог.
type Warning struct {
	Days    int // 0 — предупреждение о текущем уровне
	ValueGB float64
	Message string
}

// CheckThresholds сверяет прогнозы и текущий уровень с лимитом диска.
func CheckThresholds(forecasts map[int]float64, currentGB, limitGB float64) []Warning {
	var warnings []Warning
	days := make([]int, 0, len(forecasts))
	for d := range forecasts {
		days = append(days, d)
	}
	sort.Ints(days)
	for _, d := range days {
		if v := forecasts[d]; v > limitGB {
			warnings = append(warnings, Warning{
				Days:    d,
				ValueGB: v,
				Message: fmt.Sprintf("Через %d дней диск превысит %.0f ГБ", d, limitGB),
			})
		}
	}
	if currentGB > limitGB*0.9 {
		warnings = append(warnings, Warning{
			ValueGB: currentGB,
			Message: fmt.Sprintf("Текущее заполнение %.1f ГБ (>90%% лимита)", currentGB),
		})
	}
	return warnings
}
