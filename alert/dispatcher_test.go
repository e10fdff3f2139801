package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"1CLockAnalyzer/config"
	"1CLockAnalyzer/itsm"
	"1CLockAnalyzer/models"
)

type fakeNotifier struct {
	messages []string
	levels   []models.RiskLevel
}

func (f *fakeNotifier) SendAlert(ctx context.Context, message string, level models.RiskLevel) error {
	f.messages = append(f.messages, message)
	f.levels = append(f.levels, level)
	return nil
}

type fakeTickets struct {
	issues []itsm.Issue
}

func (f *fakeTickets) Name() string { return "fake" }

func (f *fakeTickets) CreateIssue(ctx context.Context, issue itsm.Issue) (string, error) {
	f.issues = append(f.issues, issue)
	return "FAKE-1", nil
}

func (f *fakeTickets) AddComment(ctx context.Context, issueID, comment string) error { return nil }

func TestDispatchNormalIsSilent(t *testing.T) {
	n := &fakeNotifier{}
	tk := &fakeTickets{}
	NewDispatcher(n, tk, zap.NewNop()).Dispatch(context.Background(),
		models.RiskAssessment{RiskLevel: models.RiskNormal, Message: "✅ Блокировки в норме"}, nil)
	if len(n.messages) != 0 {
		t.Errorf("при normal уведомлений быть не должно: %v", n.messages)
	}
	if len(tk.issues) != 0 {
		t.Errorf("при normal тикетов быть не должно")
	}
}

func TestDispatchWarningNotifiesWithoutTicket(t *testing.T) {
	n := &fakeNotifier{}
	tk := &fakeTickets{}
	NewDispatcher(n, tk, zap.NewNop()).Dispatch(context.Background(),
		models.RiskAssessment{RiskLevel: models.RiskWarning, Message: "⚡ Рост блокировок > 30% за период"}, nil)
	if len(n.messages) != 1 {
		t.Fatalf("ожидалось одно уведомление, получено %d", len(n.messages))
	}
	if len(tk.issues) != 0 {
		t.Error("warning не должен создавать тикет")
	}
}

func TestDispatchHighCreatesTicket(t *testing.T) {
	n := &fakeNotifier{}
	tk := &fakeTickets{}
	top := []models.TableLockStat{
		{TableName: "_Reference45", LockCount: 120, AvgLockTime: 55000},
		{TableName: "_Document112", LockCount: 80, AvgLockTime: 43000},
	}
	a := models.RiskAssessment{
		RiskLevel: models.RiskHigh, Message: "⚠️ Рост блокировок > 50% за период",
		TrendPercent: 63.5, BaseAvg: 100, CurrentAvg: 164, LongLocksToday: 4,
	}
	NewDispatcher(n, tk, zap.NewNop()).Dispatch(context.Background(), a, top)
	if len(tk.issues) != 1 {
		t.Fatalf("ожидался один тикет, получено %d", len(tk.issues))
	}
	issue := tk.issues[0]
	if issue.Priority != "High" {
		t.Errorf("priority = %q", issue.Priority)
	}
	if !strings.Contains(issue.Summary, "63.5%") {
		t.Errorf("summary = %q", issue.Summary)
	}
	if !strings.Contains(issue.Description, "_Reference45") {
		t.Error("описание должно содержать топ-таблицы")
	}
}

// Дедлоки: тикет с приоритетом Highest и дополнительное critical-уведомление.
func TestDispatchDeadlocks(t *testing.T) {
	n := &fakeNotifier{}
	tk := &fakeTickets{}
	a := models.RiskAssessment{
		RiskLevel: models.RiskCritical, Message: "⚠️ Обнаружены deadlock'и за последний день!",
		DeadlocksToday: 2,
	}
	NewDispatcher(n, tk, zap.NewNop()).Dispatch(context.Background(), a, nil)
	if len(n.messages) != 2 {
		t.Fatalf("ожидалось два уведомления, получено %d", len(n.messages))
	}
	if n.levels[1] != models.RiskCritical || !strings.Contains(n.messages[1], "2") {
		t.Errorf("второе уведомление: %q (%s)", n.messages[1], n.levels[1])
	}
	if len(tk.issues) != 1 {
		t.Fatalf("ожидался один тикет, получено %d", len(tk.issues))
	}
	if tk.issues[0].Priority != "Highest" {
		t.Errorf("priority = %q", tk.issues[0].Priority)
	}
	if !strings.Contains(tk.issues[0].Summary, "КРИТИЧНО") {
		t.Errorf("summary = %q", tk.issues[0].Summary)
	}
}

// Ненастроенные каналы (nil) не приводят к панике.
func TestDispatchNilChannels(t *testing.T) {
	NewDispatcher(nil, nil, zap.NewNop()).Dispatch(context.Background(),
		models.RiskAssessment{RiskLevel: models.RiskCritical, DeadlocksToday: 1}, nil)
}

func TestTelegramSendAlert(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			t.Errorf("путь = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{Token: "x", ChatID: "-100"}, zap.NewNop())
	tg.api = srv.URL // вместо api.telegram.org

	err := tg.SendAlert(context.Background(), "🚨 Рост блокировок > 100% за период!", models.RiskCritical)
	if err != nil {
		t.Fatal(err)
	}
	if got["chat_id"] != "-100" {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "🚨") || !strings.Contains(text, "Анализ блокировок") {
		t.Errorf("text = %q", text)
	}
}

func TestTelegramUnconfigured(t *testing.T) {
	if tg := NewTelegram(config.TelegramConfig{}, zap.NewNop()); tg != nil {
		t.Error("без токена клиент должен быть nil")
	}
}
