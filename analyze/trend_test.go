package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/models"
)

func day(offset int) time.Time {
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

// window строит окно из avgLockTime по дням, по возрастанию даты.
func window(avgs ...float64) []models.DailyLockStat {
	stats := make([]models.DailyLockStat, len(avgs))
	for i, v := range avgs {
		stats[i] = models.DailyLockStat{Date: day(i), AvgLockTime: v}
	}
	return stats
}

func TestCalculateTrendInsufficientData(t *testing.T) {
	for _, stats := range [][]models.DailyLockStat{nil, window(100), window(100, 200)} {
		a := CalculateTrend(stats)
		if a.RiskLevel != models.RiskUnknown {
			t.Errorf("risk = %s, ожидался unknown", a.RiskLevel)
		}
		if a.TrendPercent != 0 {
			t.Errorf("trend = %v, ожидался 0", a.TrendPercent)
		}
		if a.Message != "Недостаточно данных" {
			t.Errorf("message = %q", a.Message)
		}
	}
}

// Рост 120% без дедлоков — critical, сообщение про >100%.
func TestCalculateTrendCriticalGrowth(t *testing.T) {
	// семидневное окно: база 100, текущий уровень 220
	a := CalculateTrend(window(100, 100, 100, 220, 220, 220, 220))
	if a.RiskLevel != models.RiskCritical {
		t.Errorf("risk = %s, ожидался critical", a.RiskLevel)
	}
	if !strings.Contains(a.Message, "100%") {
		t.Errorf("сообщение должно упоминать 100%%: %q", a.Message)
	}
	if a.TrendPercent != 120 {
		t.Errorf("trend = %v, ожидалось 120", a.TrendPercent)
	}
	if a.BaseAvg != 100 || a.CurrentAvg != 220 {
		t.Errorf("base = %v, current = %v", a.BaseAvg, a.CurrentAvg)
	}
}

// Уровень риска не убывает с ростом тренда при нулевых дедлоках.
func TestCalculateTrendMonotonicThresholds(t *testing.T) {
	cases := []struct {
		current float64 // текущий уровень при базе 100
		want    models.RiskLevel
	}{
		{100, models.RiskNormal},
		{110, models.RiskNormal}, // ровно 10% — ещё норма
		{111, models.RiskInfo},
		{131, models.RiskWarning},
		{151, models.RiskHigh},
		{201, models.RiskCritical},
	}
	order := map[models.RiskLevel]int{
		models.RiskNormal: 0, models.RiskInfo: 1, models.RiskWarning: 2,
		models.RiskHigh: 3, models.RiskCritical: 4,
	}
	prev := -1
	for _, tc := range cases {
		a := CalculateTrend(window(100, 100, 100, tc.current, tc.current, tc.current))
		if a.RiskLevel != tc.want {
			t.Errorf("current %.0f: risk = %s, ожидался %s", tc.current, a.RiskLevel, tc.want)
		}
		if order[a.RiskLevel] < prev {
			t.Errorf("current %.0f: уровень риска убыл", tc.current)
		}
		prev = order[a.RiskLevel]
	}
}

// Дедлоки за последний день дают critical при любом тренде.
func TestCalculateTrendDeadlockOverride(t *testing.T) {
	stats := window(100, 100, 100, 100, 100, 100) // тренд 0
	stats[len(stats)-1].DeadlockCount = 3
	a := CalculateTrend(stats)
	if a.RiskLevel != models.RiskCritical {
		t.Errorf("risk = %s, ожидался critical", a.RiskLevel)
	}
	if !strings.Contains(strings.ToLower(a.Message), "deadlock") {
		t.Errorf("сообщение должно упоминать deadlock: %q", a.Message)
	}
	if a.DeadlocksToday != 3 {
		t.Errorf("DeadlocksToday = %d", a.DeadlocksToday)
	}
}

// Долгие блокировки дополняют сообщение независимо от уровня риска.
func TestCalculateTrendLongLocksNote(t *testing.T) {
	stats := window(100, 100, 100, 100, 100, 100)
	stats[len(stats)-1].LongLocksCount = 42
	a := CalculateTrend(stats)
	if a.RiskLevel != models.RiskNormal {
		t.Errorf("risk = %s, ожидался normal", a.RiskLevel)
	}
	if !strings.Contains(a.Message, "42") {
		t.Errorf("сообщение должно содержать счётчик долгих блокировок: %q", a.Message)
	}
	if a.LongLocksToday != 42 {
		t.Errorf("LongLocksToday = %d", a.LongLocksToday)
	}
}

// Порядок входа не важен: запрос отдаёт дни по убыванию, анализ сортирует сам.
func TestCalculateTrendSortsByDate(t *testing.T) {
	asc := window(100, 110, 120, 200, 210, 220)
	desc := make([]models.DailyLockStat, len(asc))
	for i, s := range asc {
		desc[len(asc)-1-i] = s
	}
	if CalculateTrend(asc) != CalculateTrend(desc) {
		t.Error("результат не должен зависеть от порядка входных дней")
	}
}

func TestCalculateTrendZeroBase(t *testing.T) {
	a := CalculateTrend(window(0, 0, 0, 500, 500, 500))
	if a.TrendPercent != 0 {
		t.Errorf("при нулевой базе trend = %v, ожидался 0", a.TrendPercent)
	}
	if a.RiskLevel != models.RiskNormal {
		t.Errorf("risk = %s", a.RiskLevel)
	}
}

// --- Analyzer ---

type fakeSource struct {
	stats    []models.DailyLockStat
	top      []models.TableLockStat
	statsErr error
	topErr   error
}

func (f *fakeSource) LockStatsByDay(ctx context.Context, days int) ([]models.DailyLockStat, error) {
	return f.stats, f.statsErr
}

func (f *fakeSource) TopLockTables(ctx context.Context) ([]models.TableLockStat, error) {
	return f.top, f.topErr
}

type fakeSink struct {
	called     bool
	assessment models.RiskAssessment
	top        []models.TableLockStat
}

func (f *fakeSink) Dispatch(ctx context.Context, a models.RiskAssessment, top []models.TableLockStat) {
	f.called = true
	f.assessment = a
	f.top = top
}

func TestAnalyzerRunDispatches(t *testing.T) {
	src := &fakeSource{
		stats: window(100, 100, 100, 250, 250, 250),
		top:   []models.TableLockStat{{TableName: "_Reference45", LockCount: 19}},
	}
	sink := &fakeSink{}
	a, err := NewAnalyzer(src, sink, 7, zap.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.RiskLevel != models.RiskCritical {
		t.Errorf("risk = %s", a.RiskLevel)
	}
	if !sink.called {
		t.Fatal("диспетчер должен быть вызван")
	}
	if len(sink.top) != 1 || sink.top[0].TableName != "_Reference45" {
		t.Errorf("топ-таблицы не переданы: %+v", sink.top)
	}
}

// Ошибка запроса подменяется пустым результатом: unknown и ErrNoData,
// никакой эскалации.
func TestAnalyzerRunQueryErrorMeansNoData(t *testing.T) {
	src := &fakeSource{statsErr: errors.New("соединение разорвано")}
	sink := &fakeSink{}
	a, err := NewAnalyzer(src, sink, 7, zap.NewNop()).Run(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("ожидался ErrNoData, получено %v", err)
	}
	if a.RiskLevel != models.RiskUnknown {
		t.Errorf("risk = %s", a.RiskLevel)
	}
	if sink.called {
		t.Error("без данных эскалации быть не должно")
	}
}
