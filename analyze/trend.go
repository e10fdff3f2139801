// Package analyze оценивает риск эскалации блокировок и дедлоков
// по дневной статистике техжурнала.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"1CLockAnalyzer/models"
)

// Пороги политики. Фиксированные константы, не обучаются.
const (
	trendCritical = 100 // процент роста за период
	trendHigh     = 50
	trendWarning  = 30
	trendInfo     = 10
	longLocksNote = 10 // с какого числа долгих блокировок дополнять сообщение
)

// CalculateTrend считает тренд роста блокировок и классифицирует риск.
// Окно делится пополам: ранняя половина — базовый уровень, поздняя — текущий.
// Условия проверяются строго по приоритету, первым совпавшее побеждает;
// дедлоки за последний день перекрывают любой тренд.
func CalculateTrend(stats []models.DailyLockStat) models.RiskAssessment {
	if len(stats) < 3 {
		return models.RiskAssessment{
			RiskLevel: models.RiskUnknown,
			Message:   "Недостаточно данных",
		}
	}

	sorted := make([]models.DailyLockStat, len(stats))
	copy(sorted, stats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	mid := len(sorted) / 2
	baseAvg := meanLockTime(sorted[:mid])
	currentAvg := meanLockTime(sorted[mid:])

	var trend float64
	if baseAvg != 0 {
		trend = (currentAvg - baseAvg) / baseAvg * 100
	}

	latest := sorted[len(sorted)-1]

	var level models.RiskLevel
	var message string
	switch {
	case latest.DeadlockCount > 0:
		level = models.RiskCritical
		message = "⚠️ Обнаружены deadlock'и за последний день!"
	case trend > trendCritical:
		level = models.RiskCritical
		message = "🚨 Рост блокировок > 100% за период!"
	case trend > trendHigh:
		level = models.RiskHigh
		message = "⚠️ Рост блокировок > 50% за период"
	case trend > trendWarning:
		level = models.RiskWarning
		message = "⚡ Рост блокировок > 30% за период"
	case trend > trendInfo:
		level = models.RiskInfo
		message = "📈 Небольшой рост блокировок"
	default:
		level = models.RiskNormal
		message = "✅ Блокировки в норме"
	}

	if latest.LongLocksCount > longLocksNote {
		message += fmt.Sprintf(" Долгих блокировок сегодня: %d", latest.LongLocksCount)
	}

	return models.RiskAssessment{
		TrendPercent:   math.Round(trend*10) / 10,
		BaseAvg:        math.Round(baseAvg),
		CurrentAvg:     math.Round(currentAvg),
		RiskLevel:      level,
		Message:        message,
		DeadlocksToday: latest.DeadlockCount,
		LongLocksToday: latest.LongLocksCount,
	}
}

func meanLockTime(stats []models.DailyLockStat) float64 {
	if len(stats) == 0 {
		return 0
	}
	var sum float64
	for _, s := range stats {
		sum += s.AvgLockTime
	}
	return sum / float64(len(stats))
}
