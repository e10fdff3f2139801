package itsm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"1CLockAnalyzer/config"
)

// New создаёт клиента тикет-системы по типу из конфигурации.
// "none" или пустой тип — интеграция выключена, возвращается nil без ошибки.
func New(cfg config.ITSMConfig, lg *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		lg.Warn("ITSM не настроен, интеграция отключена")
		return nil, nil
	case "jira":
		return NewJira(cfg.Jira, lg.Named("jira"))
	case "redmine":
		return NewRedmine(cfg.Redmine, lg.Named("redmine"))
	default:
		return nil, fmt.Errorf("неподдерживаемый тип ITSM: %s", cfg.Type)
	}
}
