package analyze

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"1CLockAnalyzer/models"
)

// ErrNoData — в хранилище нет статистики за окно анализа.
// Единственная ошибка анализа, которую стоит показывать оператору.
var ErrNoData = errors.New("нет данных для анализа блокировок")

// StatsSource — агрегатные запросы хранилища. В продакшене это
// clickhouseclient.Client.
type StatsSource interface {
	LockStatsByDay(ctx context.Context, days int) ([]models.DailyLockStat, error)
	TopLockTables(ctx context.Context) ([]models.TableLockStat, error)
}

// AlertSink решает, куда эскалировать оценку риска (Telegram, ITSM).
// Ядро анализа про каналы доставки ничего не знает.
type AlertSink interface {
	Dispatch(ctx context.Context, a models.RiskAssessment, top []models.TableLockStat)
}

// Analyzer — один часовой прогон анализа: статистика из хранилища,
// тренд, передача оценки диспетчеру.
type Analyzer struct {
	src        StatsSource
	dispatcher AlertSink // nil — только лог, без эскалации
	days       int
	lg         *zap.Logger
}

func NewAnalyzer(src StatsSource, dispatcher AlertSink, days int, lg *zap.Logger) *Analyzer {
	if days <= 0 {
		days = 7
	}
	return &Analyzer{src: src, dispatcher: dispatcher, days: days, lg: lg}
}

// lockStats возвращает дневную статистику; ошибка запроса не поднимается
// выше, а превращается в пустой результат — анализатор трактует его как
// нехватку данных, не как сбой.
func (a *Analyzer) lockStats(ctx context.Context) []models.DailyLockStat {
	stats, err := a.src.LockStatsByDay(ctx, a.days)
	if err != nil {
		a.lg.Error("Ошибка запроса статистики к ClickHouse", zap.Error(err))
		return nil
	}
	a.lg.Info("Получены данные", zap.Int("days", len(stats)))
	return stats
}

func (a *Analyzer) topTables(ctx context.Context) []models.TableLockStat {
	top, err := a.src.TopLockTables(ctx)
	if err != nil {
		a.lg.Error("Ошибка запроса топ-таблиц", zap.Error(err))
		return nil
	}
	return top
}

// Run выполняет один прогон анализа и возвращает оценку риска.
// При полном отсутствии данных возвращает ErrNoData.
func (a *Analyzer) Run(ctx context.Context) (models.RiskAssessment, error) {
	a.lg.Info("Запуск анализа блокировок", zap.Int("days", a.days))

	stats := a.lockStats(ctx)
	if len(stats) == 0 {
		a.lg.Warn("Нет данных для анализа")
		return models.RiskAssessment{RiskLevel: models.RiskUnknown, Message: "Недостаточно данных"}, ErrNoData
	}

	top := a.topTables(ctx)
	assessment := CalculateTrend(stats)

	a.lg.Info("Результаты анализа",
		zap.Float64("trend_percent", assessment.TrendPercent),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.String("message", assessment.Message))
	for _, t := range top {
		a.lg.Info("Топ таблица по блокировкам",
			zap.String("table", t.TableName), zap.Uint64("locks", t.LockCount))
	}

	if a.dispatcher != nil {
		a.dispatcher.Dispatch(ctx, assessment, top)
	}

	a.lg.Info("Анализ завершён")
	return assessment, nil
}
