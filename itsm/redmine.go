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

// redminePriorityID — шкала Redmine обратная по отношению к Jira.
var redminePriorityID = map[string]int{
	"Highest": 5,
	"High":    4,
	"Medium":  3,
	"Low":     2,
	"Lowest":  1,
}

// RedmineClient — клиент Redmine REST API.
// https://www.redmine.org/projects/redmine/wiki/Rest_api
type RedmineClient struct {
	cfg  config.RedmineConfig
	http *http.Client
	lg   *zap.Logger
}

func NewRedmine(cfg config.RedmineConfig, lg *zap.Logger) (*RedmineClient, error) {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "REDMINE_URL")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "REDMINE_API_KEY")
	}
	if cfg.ProjectID == "" {
		missing = append(missing, "REDMINE_PROJECT_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("отсутствуют обязательные параметры Redmine: %s", strings.Join(missing, ", "))
	}
	lg.Info("Redmine клиент инициализирован",
		zap.String("url", cfg.URL), zap.String("project", cfg.ProjectID))
	return &RedmineClient{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}, lg: lg}, nil
}

func (c *RedmineClient) Name() string { return "redmine" }

func (c *RedmineClient) CreateIssue(ctx context.Context, issue Issue) (string, error) {
	priority, ok := redminePriorityID[issue.Priority]
	if !ok {
		priority = redminePriorityID["Medium"]
	}
	fields := map[string]any{
		"project_id":  c.cfg.ProjectID,
		"subject":     issue.Summary,
		"description": issue.Description,
		"priority_id": priority,
	}
	if issue.DueDate != "" {
		fields["due_date"] = issue.DueDate
	}

	var result struct {
		Issue struct {
			ID int `json:"id"`
		} `json:"issue"`
	}
	err := c.do(ctx, http.MethodPost, c.cfg.URL+"/issues.json", map[string]any{"issue": fields}, &result)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("%d", result.Issue.ID)
	c.lg.Info("Задача создана в Redmine", zap.String("id", id))
	return id, nil
}

func (c *RedmineClient) AddComment(ctx context.Context, issueID, comment string) error {
	url := fmt.Sprintf("%s/issues/%s.json", c.cfg.URL, issueID)
	payload := map[string]any{"issue": map[string]string{"notes": comment}}
	return c.do(ctx, http.MethodPut, url, payload, nil)
}

func (c *RedmineClient) do(ctx context.Context, method, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("сериализация запроса: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Redmine-API-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к Redmine: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Redmine ответила %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("разбор ответа Redmine: %w", err)
		}
	}
	return nil
}
