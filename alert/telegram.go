// Package alert доставляет оценку риска операторам: Telegram и тикет-система.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/config"
	"1CLockAnalyzer/models"
)

// riskEmoji — пиктограмма уровня риска в сообщении.
var riskEmoji = map[models.RiskLevel]string{
	models.RiskCritical: "🚨",
	models.RiskHigh:     "⚠️",
	models.RiskWarning:  "⚡",
	models.RiskInfo:     "📊",
	models.RiskNormal:   "✅",
	models.RiskUnknown:  "❓",
}

// Telegram отправляет алерты через Bot API.
type Telegram struct {
	chatID string
	api    string // https://api.telegram.org/bot<token>
	http   *http.Client
	lg     *zap.Logger
}

// NewTelegram возвращает nil, если токен или чат не заданы —
// тогда отправка молча пропускается диспетчером.
func NewTelegram(cfg config.TelegramConfig, lg *zap.Logger) *Telegram {
	if cfg.Token == "" || cfg.ChatID == "" {
		lg.Warn("Telegram не настроен, отправка алертов отключена")
		return nil
	}
	return &Telegram{
		chatID: cfg.ChatID,
		api:    "https://api.telegram.org/bot" + cfg.Token,
		http:   &http.Client{Timeout: 10 * time.Second},
		lg:     lg,
	}
}

// SendAlert отправляет форматированное сообщение об уровне риска.
func (t *Telegram) SendAlert(ctx context.Context, message string, level models.RiskLevel) error {
	emoji, ok := riskEmoji[level]
	if !ok {
		emoji = "📢"
	}
	text := fmt.Sprintf("%s **Анализ блокировок**\n\n%s\n\n🕐 %s",
		emoji, message, time.Now().Format("2006-01-02 15:04"))

	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.api+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("отправка в Telegram: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("разбор ответа Telegram: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("Telegram API вернул ошибку, статус %d", resp.StatusCode)
	}
	t.lg.Info("Алерт отправлен в Telegram", zap.String("chat", t.chatID))
	return nil
}
