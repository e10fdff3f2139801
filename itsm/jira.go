package itsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"1CLockAnalyzer/config"
)

// jiraPriorityID — маппинг приоритетов на идентификаторы Jira.
var jiraPriorityID = map[string]string{
	"Highest": "1",
	"High":    "2",
	"Medium":  "3",
	"Low":     "4",
	"Lowest":  "5",
}

// JiraClient — клиент Jira REST API v3.
// https://developer.atlassian.com/cloud/jira/platform/rest/v3/
type JiraClient struct {
	cfg  config.JiraConfig
	http *http.Client
	lg   *zap.Logger
}

func NewJira(cfg config.JiraConfig, lg *zap.Logger) (*JiraClient, error) {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if cfg.Username == "" {
		missing = append(missing, "JIRA_USERNAME")
	}
	if cfg.APIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("отсутствуют обязательные параметры Jira: %s", strings.Join(missing, ", "))
	}
	if cfg.ProjectKey == "" {
		cfg.ProjectKey = "IT"
	}
	lg.Info("Jira клиент инициализирован",
		zap.String("url", cfg.URL), zap.String("project", cfg.ProjectKey))
	return &JiraClient{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}, lg: lg}, nil
}

func (c *JiraClient) Name() string { return "jira" }

// adfDocument заворачивает текст в Atlassian Document Format.
func adfDocument(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []map[string]any{
			{
				"type": "paragraph",
				"content": []map[string]any{
					{"type": "text", "text": text},
				},
			},
		},
	}
}

func (c *JiraClient) CreateIssue(ctx context.Context, issue Issue) (string, error) {
	issueType := issue.IssueType
	if issueType == "" {
		issueType = "Task"
	}
	fields := map[string]any{
		"project":     map[string]string{"key": c.cfg.ProjectKey},
		"summary":     issue.Summary,
		"description": adfDocument(issue.Description),
		"issuetype":   map[string]string{"name": issueType},
	}
	if id, ok := jiraPriorityID[issue.Priority]; ok {
		fields["priority"] = map[string]string{"id": id}
	}
	if issue.Assignee != "" {
		fields["assignee"] = map[string]string{"name": issue.Assignee}
	}
	if issue.DueDate != "" {
		fields["duedate"] = issue.DueDate
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := c.post(ctx, c.cfg.URL+"/rest/api/3/issue", map[string]any{"fields": fields}, &result); err != nil {
		return "", err
	}
	c.lg.Info("Задача создана в Jira", zap.String("key", result.Key))
	return result.Key, nil
}

func (c *JiraClient) AddComment(ctx context.Context, issueID, comment string) error {
	url := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.cfg.URL, issueID)
	return c.post(ctx, url, map[string]any{"body": adfDocument(comment)}, nil)
}

func (c *JiraClient) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("сериализация запроса: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к Jira: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Jira ответила %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("разбор ответа Jira: %w", err)
		}
	}
	return nil
}
