package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
)

func linearSamples(n int, start, slope float64) []Sample {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{Date: base.AddDate(0, 0, i), UsedGB: start + slope*float64(i)}
	}
	return samples
}

func TestTrainRecoversLinearGrowth(t *testing.T) {
	// ровно линейные данные: 100 ГБ + 2 ГБ/день
	m, err := Train(linearSamples(30, 100, 2))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.GrowthRate-2) > 1e-9 {
		t.Errorf("GrowthRate = %v, ожидалось 2", m.GrowthRate)
	}
	if math.Abs(m.Intercept-100) > 1e-9 {
		t.Errorf("Intercept = %v, ожидалось 100", m.Intercept)
	}
	if m.MAE > 1e-9 {
		t.Errorf("MAE = %v, на точных данных должна быть ~0", m.MAE)
	}
	// прогноз через 10 дней от последнего (29-го) дня
	want := 100 + 2*39.0
	if got := m.Forecast(10); math.Abs(got-want) > 1e-9 {
		t.Errorf("Forecast(10) = %v, ожидалось %v", got, want)
	}
}

func TestTrainTooFewSamples(t *testing.T) {
	if _, err := Train(linearSamples(4, 100, 1)); err == nil {
		t.Fatal("на четырёх точках модель обучаться не должна")
	}
}

func TestDaysToLimit(t *testing.T) {
	m := &Model{GrowthRate: 2}
	if got := m.DaysToLimit(150, 200); math.Abs(got-25) > 1e-9 {
		t.Errorf("DaysToLimit = %v, ожидалось 25", got)
	}
	if got := m.DaysToLimit(250, 200); got != 0 {
		t.Errorf("за лимитом DaysToLimit = %v, ожидался 0", got)
	}
	shrinking := &Model{GrowthRate: -1}
	if got := shrinking.DaysToLimit(150, 200); !math.IsInf(got, 1) {
		t.Errorf("при уменьшении диска ожидался +Inf, получено %v", got)
	}
}

func TestCheckThresholds(t *testing.T) {
	forecasts := map[int]float64{7: 180, 14: 195, 30: 230}
	warnings := CheckThresholds(forecasts, 150, 200)
	if len(warnings) != 1 {
		t.Fatalf("предупреждений: %d, ожидалось 1: %+v", len(warnings), warnings)
	}
	if warnings[0].Days != 30 {
		t.Errorf("Days = %d", warnings[0].Days)
	}

	// текущий уровень выше 90% лимита
	warnings = CheckThresholds(map[int]float64{}, 185, 200)
	if len(warnings) != 1 || warnings[0].Days != 0 {
		t.Fatalf("ожидалось предупреждение о текущем уровне: %+v", warnings)
	}
}

// --- Predictor ---

type fakeSource struct {
	samples  []Sample
	saved    bool
	current  float64
	limitHit float64
}

func (f *fakeSource) History(ctx context.Context, days int) ([]Sample, error) {
	return f.samples, nil
}

func (f *fakeSource) SaveForecast(ctx context.Context, date time.Time, currentGB float64,
	forecasts map[int]float64, m *Model, daysToLimit float64) error {
	f.saved = true
	f.current = currentGB
	f.limitHit = daysToLimit
	return nil
}

func TestPredictorRun(t *testing.T) {
	src := &fakeSource{samples: linearSamples(30, 100, 2)}
	p := NewPredictor(src, nil, 60, 200, zap.NewNop())
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !src.saved {
		t.Fatal("прогноз должен сохраняться")
	}
	if src.current != 158 { // 100 + 2*29
		t.Errorf("current = %v", src.current)
	}
	// (200-158)/2 = 21 день до лимита
	if math.Abs(src.limitHit-21) > 1e-9 {
		t.Errorf("daysToLimit = %v", src.limitHit)
	}
}
