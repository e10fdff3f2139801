// Package webhook принимает алерты Prometheus Alertmanager
// и заводит по ним задачи в тикет-системе.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"1CLockAnalyzer/itsm"
)

// Alert — один алерт в нотации Alertmanager.
type Alert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// Payload — тело вебхука Alertmanager.
type Payload struct {
	Alerts []Alert `json:"alerts"`
}

// Server — HTTP-приёмник вебхуков.
type Server struct {
	tickets itsm.Client // nil — задачи не создаются
	lg      *zap.Logger
}

func NewServer(tickets itsm.Client, lg *zap.Logger) *Server {
	return &Server{tickets: tickets, lg: lg}
}

// Router собирает маршруты приёмника.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/test", s.handleTest).Methods(http.MethodPost)
	return r
}

// ListenAndServe запускает приёмник и гасит его по отмене контекста.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.lg.Info("Запуск вебхук-обработчика", zap.Int("port", port))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.tickets == nil {
		s.lg.Warn("ITSM клиент не настроен, пропускаем")
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "no ITSM client"})
		return
	}

	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.lg.Error("Ошибка разбора вебхука", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.lg.Info("Получен вебхук", zap.Int("alerts", len(payload.Alerts)))

	for _, alert := range payload.Alerts {
		switch alert.Status {
		case "firing":
			s.createIssue(r.Context(), alert)
		case "resolved":
			s.lg.Info("Алерт resolved", zap.String("alertname", alert.Labels["alertname"]))
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createIssue(ctx context.Context, alert Alert) {
	summary := alert.Annotations["summary"]
	if summary == "" {
		summary = alert.Labels["alertname"]
	}
	if summary == "" {
		summary = "Unknown Alert"
	}
	severity := alert.Labels["severity"]
	if severity == "" {
		severity = "warning"
	}

	id, err := s.tickets.CreateIssue(ctx, itsm.Issue{
		Summary:     fmt.Sprintf("[%s] %s", strings.ToUpper(severity), summary),
		Description: formatDescription(alert),
		Priority:    itsm.MapSeverity(severity),
	})
	if err != nil {
		s.lg.Error("Ошибка создания задачи", zap.Error(err))
		return
	}
	s.lg.Info("Задача создана", zap.String("id", id))

	comment := fmt.Sprintf("Алерт получен в %s\nДетали: %s",
		time.Now().Format("2006-01-02 15:04:05"), alert.Labels["instance"])
	if err := s.tickets.AddComment(ctx, id, comment); err != nil {
		s.lg.Error("Ошибка добавления комментария", zap.String("id", id), zap.Error(err))
	}
}

// formatDescription собирает описание задачи из меток и аннотаций алерта.
func formatDescription(alert Alert) string {
	var b strings.Builder
	b.WriteString("Автоматически создано системой мониторинга 1С\n\n")
	fmt.Fprintf(&b, "Алерт: %s\n", alert.Labels["alertname"])
	fmt.Fprintf(&b, "Статус: %s\n", alert.Status)
	fmt.Fprintf(&b, "Важность: %s\n", alert.Labels["severity"])
	fmt.Fprintf(&b, "Источник: %s\n", alert.Labels["instance"])
	fmt.Fprintf(&b, "Время: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	if desc := alert.Annotations["description"]; desc != "" {
		fmt.Fprintf(&b, "\nОписание:\n%s\n", desc)
	}

	var extra []string
	for k, v := range alert.Labels {
		switch k {
		case "alertname", "severity", "instance", "job":
			continue
		}
		extra = append(extra, fmt.Sprintf("- %s: %s", k, v))
	}
	if len(extra) > 0 {
		b.WriteString("\nМетрики:\n")
		b.WriteString(strings.Join(extra, "\n"))
		b.WriteString("\n")
	}

	if sum := alert.Annotations["summary"]; sum != "" {
		fmt.Fprintf(&b, "\nСводка: %s\n", sum)
	}
	if rb := alert.Annotations["runbook_url"]; rb != "" {
		fmt.Fprintf(&b, "\nRunbook: %s\n", rb)
	}
	return b.String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	itsmType := "none"
	if s.tickets != nil {
		itsmType = s.tickets.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"itsm_configured": s.tickets != nil,
		"itsm_type":       itsmType,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	_ = json.NewDecoder(r.Body).Decode(&data)
	s.lg.Info("Тестовый запрос", zap.Any("data", data))

	if s.tickets == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_itsm_client"})
		return
	}
	id, err := s.tickets.CreateIssue(r.Context(), itsm.Issue{
		Summary:     "[ТЕСТ] Проверка интеграции",
		Description: "Тестовое сообщение от вебхук-обработчика",
		Priority:    "Medium",
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "test_ok", "issue_id": id})
}
