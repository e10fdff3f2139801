package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/itsm"
	"1CLockAnalyzer/models"
)

// Notifier — канал мгновенных уведомлений (Telegram).
type Notifier interface {
	SendAlert(ctx context.Context, message string, level models.RiskLevel) error
}

// Dispatcher выбирает действие по оценке риска:
// всё, что не normal, — уведомление; critical и high — ещё и тикет.
type Dispatcher struct {
	notifier Notifier    // nil — уведомления выключены
	tickets  itsm.Client // nil — тикеты выключены
	lg       *zap.Logger
}

func NewDispatcher(notifier Notifier, tickets itsm.Client, lg *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, tickets: tickets, lg: lg}
}

// Dispatch разруливает одну оценку риска по каналам.
// Ошибки доставки только логируются: сам анализ уже завершён.
func (d *Dispatcher) Dispatch(ctx context.Context, a models.RiskAssessment, top []models.TableLockStat) {
	if a.RiskLevel != models.RiskNormal && d.notifier != nil {
		if err := d.notifier.SendAlert(ctx, a.Message, a.RiskLevel); err != nil {
			d.lg.Error("Ошибка отправки алерта", zap.Error(err))
		}
	}

	if (a.RiskLevel == models.RiskCritical || a.RiskLevel == models.RiskHigh) && d.tickets != nil {
		issue := buildIssue(a, top)
		id, err := d.tickets.CreateIssue(ctx, issue)
		if err != nil {
			d.lg.Error("Ошибка создания задачи", zap.String("itsm", d.tickets.Name()), zap.Error(err))
		} else {
			d.lg.Info("Создана задача", zap.String("itsm", d.tickets.Name()), zap.String("id", id))
		}
	}

	if a.DeadlocksToday > 0 && d.notifier != nil {
		msg := fmt.Sprintf("🚨 Обнаружены deadlock'и! Количество: %d", a.DeadlocksToday)
		if err := d.notifier.SendAlert(ctx, msg, models.RiskCritical); err != nil {
			d.lg.Error("Ошибка отправки алерта о дедлоках", zap.Error(err))
		}
	}
}

// mapRiskPriority переводит уровень риска в приоритет тикета.
func mapRiskPriority(level models.RiskLevel) string {
	switch level {
	case models.RiskCritical:
		return "Highest"
	case models.RiskHigh:
		return "High"
	default:
		return "Medium"
	}
}

// buildIssue собирает тикет с метриками недели и топ-5 таблиц.
func buildIssue(a models.RiskAssessment, top []models.TableLockStat) itsm.Issue {
	var summary string
	if a.DeadlocksToday > 0 {
		summary = "[КРИТИЧНО] Обнаружены deadlock'и в базе 1С"
	} else {
		summary = fmt.Sprintf("[Превентивно] Рост блокировок %.1f%% за неделю", a.TrendPercent)
	}

	var b strings.Builder
	b.WriteString("Автоматически создано системой анализа блокировок 1С\n\n")
	fmt.Fprintf(&b, "Проблема: %s\n\n", a.Message)
	b.WriteString("Метрики за неделю:\n")
	fmt.Fprintf(&b, "- Среднее время блокировки (текущее): %.0f мкс\n", a.CurrentAvg)
	fmt.Fprintf(&b, "- Среднее время блокировки (базовое): %.0f мкс\n", a.BaseAvg)
	fmt.Fprintf(&b, "- Рост: %.1f%%\n", a.TrendPercent)
	fmt.Fprintf(&b, "- Deadlock'и сегодня: %d\n", a.DeadlocksToday)
	fmt.Fprintf(&b, "- Долгих блокировок (>1с): %d\n", a.LongLocksToday)

	if len(top) > 0 {
		b.WriteString("\nТоп таблиц по блокировкам сегодня:\n")
		for i, t := range top {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %d блокировок, среднее %.0f мкс\n",
				t.TableName, t.LockCount, t.AvgLockTime)
		}
	}

	b.WriteString("\nРекомендации:\n")
	b.WriteString("1. Проверить запросы к таблицам выше\n")
	b.WriteString("2. Оптимизировать индексы\n")
	b.WriteString("3. Проанализировать длительные транзакции\n")
	fmt.Fprintf(&b, "\nСоздано: %s\n", time.Now().Format("2006-01-02 15:04"))

	return itsm.Issue{
		Summary:     summary,
		Description: b.String(),
		Priority:    mapRiskPriority(a.RiskLevel),
		IssueType:   "Task",
	}
}
