package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"1CLockAnalyzer/itsm"
)

type fakeTickets struct {
	issues   []itsm.Issue
	comments []string
}

func (f *fakeTickets) Name() string { return "fake" }

func (f *fakeTickets) CreateIssue(ctx context.Context, issue itsm.Issue) (string, error) {
	f.issues = append(f.issues, issue)
	return "FAKE-9", nil
}

func (f *fakeTickets) AddComment(ctx context.Context, issueID, comment string) error {
	f.comments = append(f.comments, comment)
	return nil
}

func firingPayload() string {
	return `{
		"alerts": [
			{
				"status": "firing",
				"labels": {"alertname": "DiskFull", "severity": "critical", "instance": "srv01:9100"},
				"annotations": {"summary": "Диск почти заполнен", "description": "осталось 5%"}
			},
			{
				"status": "resolved",
				"labels": {"alertname": "HighLoad"}
			}
		]
	}`
}

func TestWebhookFiringCreatesIssue(t *testing.T) {
	tk := &fakeTickets{}
	srv := httptest.NewServer(NewServer(tk, zap.NewNop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(firingPayload()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d", resp.StatusCode)
	}
	// resolved-алерт задачу не создаёт
	if len(tk.issues) != 1 {
		t.Fatalf("создано задач: %d, ожидалась 1", len(tk.issues))
	}
	issue := tk.issues[0]
	if !strings.HasPrefix(issue.Summary, "[CRITICAL]") {
		t.Errorf("summary = %q", issue.Summary)
	}
	if issue.Priority != "Highest" {
		t.Errorf("priority = %q", issue.Priority)
	}
	if !strings.Contains(issue.Description, "srv01:9100") {
		t.Error("описание должно содержать instance")
	}
	if len(tk.comments) != 1 {
		t.Errorf("комментариев: %d", len(tk.comments))
	}
}

func TestWebhookWithoutITSMIsSkipped(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil, zap.NewNop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(firingPayload()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "skipped" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestWebhookBadJSON(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeTickets{}, zap.NewNop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{кривой json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("статус %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeTickets{}, zap.NewNop()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["itsm_configured"] != true || body["itsm_type"] != "fake" {
		t.Errorf("itsm: %v / %v", body["itsm_configured"], body["itsm_type"])
	}
}

func TestTestEndpoint(t *testing.T) {
	tk := &fakeTickets{}
	srv := httptest.NewServer(NewServer(tk, zap.NewNop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/test", "application/json", strings.NewReader(`{"ping":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "test_ok" || body["issue_id"] != "FAKE-9" {
		t.Errorf("body = %v", body)
	}
	if len(tk.issues) != 1 {
		t.Errorf("создано задач: %d", len(tk.issues))
	}
}
