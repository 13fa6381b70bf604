package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"opshub/internal/events"
	"opshub/internal/httpx"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/store"
)

// Report summarises one resolver run.
type Report struct {
	RunAt     time.Time
	DryRun    bool
	Checked   int
	Findings  []Finding
	Actions   []Action
	Created   int
	Bumped    int
	AutoFixed int
	FixErrors int
	Cleared   []models.Issue
	Skipped   map[string]error
}

// Reporter persists findings as issues and tells people about them.
type Reporter struct {
	issues    *store.Issues
	publisher events.Publisher
	slack     *httpx.Client
	logger    *logger.Logger
	now       func() time.Time
}

// NewReporter posts to slackWebhook when it is set.
func NewReporter(issues *store.Issues, publisher events.Publisher, slackWebhook string, opts httpx.Options, log *logger.Logger) *Reporter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.Discard()
	}
	r := &Reporter{issues: issues, publisher: publisher, logger: log, now: time.Now}
	if slackWebhook != "" {
		r.slack = httpx.New("slack", slackWebhook, opts)
	}
	return r
}

// Report records every finding, resolves the ones fixed this run, closes
// open issues of checked workflows that no longer show up, then notifies.
func (r *Reporter) Report(ctx context.Context, scan *Scan, actions []Action, dryRun bool) (*Report, error) {
	now := r.now().UTC()
	report := &Report{
		RunAt:    now,
		DryRun:   dryRun,
		Checked:  len(scan.Checked),
		Findings: scan.Findings,
		Actions:  actions,
		Skipped:  scan.Errors,
	}

	fixed := make(map[string]bool)
	for _, a := range actions {
		key := store.IssueKey(a.Finding.WorkflowID, a.Finding.Code)
		switch {
		case a.Applied:
			fixed[key] = true
		case a.Err != nil:
			report.FixErrors++
		}
	}

	seen := make(map[string]bool)
	for _, f := range scan.Findings {
		key := store.IssueKey(f.WorkflowID, f.Code)
		seen[key] = true

		issue, created, err := r.issues.Record(ctx, f.Issue(), now)
		if err != nil {
			return nil, fmt.Errorf("record %s on %s: %w", f.Code, f.WorkflowName, err)
		}
		if created {
			report.Created++
		} else {
			report.Bumped++
		}
		if fixed[key] {
			if _, err := r.issues.Resolve(ctx, issue.ID, models.ResolutionAutoFixed, now); err != nil {
				return nil, fmt.Errorf("resolve issue %s: %w", issue.ID, err)
			}
			report.AutoFixed++
		}
	}

	// Workflows whose executions failed to load were not fully checked.
	var checked []string
	for _, id := range scan.CheckedIDs() {
		if _, skipped := scan.Errors[id]; !skipped {
			checked = append(checked, id)
		}
	}
	cleared, err := r.issues.CloseCleared(ctx, checked, seen, now)
	if err != nil {
		return nil, fmt.Errorf("close cleared issues: %w", err)
	}
	report.Cleared = cleared

	r.notify(ctx, report)
	return report, nil
}

func (r *Reporter) notify(ctx context.Context, report *Report) {
	if r.slack != nil {
		payload := map[string]string{"text": report.Markdown()}
		if _, err := r.slack.Post(ctx, "", payload, nil); err != nil {
			r.logger.Error("Failed to post resolver report to Slack: %v", err)
		}
	}

	event := events.Event{
		Type:      events.TypeResolverReport,
		Timestamp: report.RunAt,
		Data: map[string]interface{}{
			"checked":    report.Checked,
			"findings":   len(report.Findings),
			"created":    report.Created,
			"auto_fixed": report.AutoFixed,
			"cleared":    len(report.Cleared),
			"dry_run":    report.DryRun,
		},
	}
	if err := r.publisher.Publish(ctx, "n8n-resolver", event); err != nil {
		r.logger.Warn("Failed to publish %s: %v", event, err)
	}
}

// Markdown renders the report for Slack and the terminal.
func (rep *Report) Markdown() string {
	var b strings.Builder

	mode := "applied"
	if rep.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "*n8n issue report* %s (%s)\n", rep.RunAt.Format("2006-01-02 15:04 MST"), mode)
	fmt.Fprintf(&b, "Checked %d workflows: %d findings, %d new, %d auto-fixed, %d cleared",
		rep.Checked, len(rep.Findings), rep.Created, rep.AutoFixed, len(rep.Cleared))
	if rep.FixErrors > 0 {
		fmt.Fprintf(&b, ", %d fixes failed", rep.FixErrors)
	}
	b.WriteString("\n")

	if len(rep.Findings) == 0 {
		b.WriteString("\nAll clear.\n")
	}

	findings := append([]Finding(nil), rep.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	actions := make(map[string]Action)
	for _, a := range rep.Actions {
		actions[store.IssueKey(a.Finding.WorkflowID, a.Finding.Code)] = a
	}

	var current models.IssueSeverity
	for _, f := range findings {
		if f.Severity != current {
			current = f.Severity
			fmt.Fprintf(&b, "\n*%s*\n", f.Severity)
		}
		fmt.Fprintf(&b, "• %s `%s`: %s\n", f.WorkflowName, f.Code, f.Explanation)
		a, ok := actions[store.IssueKey(f.WorkflowID, f.Code)]
		switch {
		case !ok:
			if f.SuggestedFix != "" {
				fmt.Fprintf(&b, "  fix: %s\n", f.SuggestedFix)
			}
		case a.Applied:
			fmt.Fprintf(&b, "  fixed: %s\n", a.Description)
		case a.Err != nil:
			fmt.Fprintf(&b, "  fix failed (%s): %v\n", a.Description, a.Err)
		default:
			fmt.Fprintf(&b, "  would %s\n", a.Description)
		}
	}

	if len(rep.Cleared) > 0 {
		b.WriteString("\n*Cleared*\n")
		for _, issue := range rep.Cleared {
			fmt.Fprintf(&b, "• %s `%s`\n", issue.WorkflowName, issue.Code)
		}
	}
	if len(rep.Skipped) > 0 {
		ids := make([]string, 0, len(rep.Skipped))
		for id := range rep.Skipped {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString("\n*Not checked*\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "• %s: %v\n", id, rep.Skipped[id])
		}
	}
	return b.String()
}
