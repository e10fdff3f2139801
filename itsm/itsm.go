// Package itsm — создание задач во внешних тикет-системах.
// Один интерфейс, по реализации на бэкенд, выбор фабрикой из конфигурации.
package itsm

import "context"

// Issue — задача в терминах, общих для всех бэкендов.
type Issue struct {
	Summary     string
	Description string
	Priority    string // Highest/High/Medium/Low/Lowest
	Assignee    string
	DueDate     string // YYYY-MM-DD
	IssueType   string // Task/Bug/...
}

// Client — минимальный контракт тикет-системы: создать задачу
// и прокомментировать её. Никакой бэкенд-специфики наружу.
type Client interface {
	Name() string
	CreateIssue(ctx context.Context, issue Issue) (string, error)
	AddComment(ctx context.Context, issueID, comment string) error
}

// MapSeverity переводит severity из мониторинга в приоритет тикета.
func MapSeverity(severity string) string {
	switch severity {
	case "critical":
		return "Highest"
	case "warning":
		return "High"
	case "info":
		return "Medium"
	default:
		return "Medium"
	}
}
