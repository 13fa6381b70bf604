package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opshub/internal/events"
	"opshub/internal/httpx"
	"opshub/internal/models"
	"opshub/internal/services/n8n"
	"opshub/internal/store"
	"opshub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_RecordsBumpsAndClears(t *testing.T) {
	issues := store.NewIssues(testutil.NewDB(t))
	recorder := &events.Recorder{}
	reporter := NewReporter(issues, recorder, "", httpx.Options{}, nil)
	reporter.now = func() time.Time { return now }
	ctx := context.Background()

	wfA := workflow("a", "n8n-nodes-base.webhook", true, nil)
	wfB := workflow("b", "n8n-nodes-base.webhook", true, nil)
	authA := Finding{WorkflowID: "a", WorkflowName: "WF a", Code: CodeAuthFailure, Severity: models.IssueSeverityHigh, Explanation: "401"}
	rateB := Finding{WorkflowID: "b", WorkflowName: "WF b", Code: CodeErrorRate, Severity: models.IssueSeverityMedium, Explanation: "3 of 5"}

	first, err := reporter.Report(ctx, &Scan{Checked: []n8n.Workflow{wfA, wfB}, Findings: []Finding{authA, rateB}}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Empty(t, first.Cleared)

	second, err := reporter.Report(ctx, &Scan{Checked: []n8n.Workflow{wfA, wfB}, Findings: []Finding{authA}}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Bumped)
	require.Len(t, second.Cleared, 1)
	assert.Equal(t, CodeErrorRate, second.Cleared[0].Code)

	openOnly := true
	list, total, err := issues.List(ctx, store.IssueFilter{Open: &openOnly})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, 2, list[0].Occurrences)

	assert.Equal(t, []string{events.TypeResolverReport, events.TypeResolverReport}, recorder.Types())
}

func TestReporter_AutoFixedAndSkippedWorkflows(t *testing.T) {
	issues := store.NewIssues(testutil.NewDB(t))
	reporter := NewReporter(issues, nil, "", httpx.Options{}, nil)
	reporter.now = func() time.Time { return now }
	ctx := context.Background()

	wfA := workflow("a", "n8n-nodes-base.webhook", false, nil, "critical")
	wfB := workflow("b", "n8n-nodes-base.webhook", true, nil)
	inactive := Finding{WorkflowID: "a", WorkflowName: "WF a", Code: CodeInactiveCritical, Severity: models.IssueSeverityCritical, Fix: Fix{Kind: FixActivate}}
	streak := Finding{WorkflowID: "b", WorkflowName: "WF b", Code: CodeWebhookFailing, Severity: models.IssueSeverityHigh}

	_, err := reporter.Report(ctx, &Scan{Checked: []n8n.Workflow{wfB}, Findings: []Finding{streak}}, nil, true)
	require.NoError(t, err)

	scan := &Scan{
		Checked:  []n8n.Workflow{wfA, wfB},
		Findings: []Finding{inactive},
		Errors:   map[string]error{"b": errors.New("timeout")},
	}
	actions := []Action{{Finding: inactive, Description: "activate workflow", Applied: true}}
	report, err := reporter.Report(ctx, scan, actions, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoFixed)
	assert.Empty(t, report.Cleared, "b could not be checked, its issue stays open")

	closedOnly := false
	list, _, err := issues.List(ctx, store.IssueFilter{Open: &closedOnly})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ResolutionAutoFixed, list[0].Resolution)
}

func TestReporter_PostsToSlack(t *testing.T) {
	var text string
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		text = body["text"]
		w.Write([]byte("ok"))
	}))
	defer slack.Close()

	reporter := NewReporter(store.NewIssues(testutil.NewDB(t)), nil, slack.URL+"/services/T/B/X", httpx.Options{}, nil)
	reporter.now = func() time.Time { return now }

	wf := workflow("a", "n8n-nodes-base.webhook", true, nil)
	finding := Finding{WorkflowID: "a", WorkflowName: "Order webhook", Code: CodeTransientFailure, Severity: models.IssueSeverityLow,
		Explanation: "timeout", SuggestedFix: "Retry the execution.", Fix: Fix{Kind: FixRetry}}
	actions := []Action{{Finding: finding, Description: "retry execution e1"}}

	_, err := reporter.Report(context.Background(), &Scan{Checked: []n8n.Workflow{wf}, Findings: []Finding{finding}}, actions, true)
	require.NoError(t, err)

	assert.Contains(t, text, "*n8n issue report*")
	assert.Contains(t, text, "dry run")
	assert.Contains(t, text, "Order webhook `transient_failure`: timeout")
	assert.Contains(t, text, "would retry execution e1")
}

func TestReport_MarkdownAllClear(t *testing.T) {
	md := (&Report{RunAt: now, Checked: 4}).Markdown()
	assert.Contains(t, md, "Checked 4 workflows: 0 findings")
	assert.Contains(t, md, "All clear.")
}
