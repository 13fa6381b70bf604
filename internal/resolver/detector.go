package resolver

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/services/n8n"
)

// Finding codes.
const (
	CodeConsecutiveFailures  = "consecutive_failures"
	CodeErrorRate            = "error_rate"
	CodeWebhookFailing       = "webhook_failing"
	CodeStaleSchedule        = "stale_schedule"
	CodeAuthFailure          = "auth_failure"
	CodeTransientFailure     = "transient_failure"
	CodeInactiveCritical     = "inactive_critical"
	CodeMissingErrorWorkflow = "missing_error_workflow"
	CodeErrorDataNotSaved    = "error_data_not_saved"
	CodeTimezoneMismatch     = "timezone_mismatch"
)

// API is the part of the n8n client the resolver uses.
type API interface {
	AllWorkflows(ctx context.Context) ([]n8n.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*n8n.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *n8n.Workflow) (*n8n.Workflow, error)
	ActivateWorkflow(ctx context.Context, id string) error
	ListExecutions(ctx context.Context, workflowID, status string, limit int) ([]n8n.Execution, error)
	GetExecution(ctx context.Context, id string, includeData bool) (*n8n.Execution, error)
	RetryExecution(ctx context.Context, id string) (*n8n.Execution, error)
}

type FixKind string

const (
	FixNone          FixKind = ""
	FixPatchSettings FixKind = "patch_settings"
	FixActivate      FixKind = "activate"
	FixRetry         FixKind = "retry"
)

// Fix is what the resolver can do about a finding on its own.
type Fix struct {
	Kind     FixKind
	Settings map[string]interface{}
}

type Finding struct {
	WorkflowID   string
	WorkflowName string
	Code         string
	Severity     models.IssueSeverity
	Explanation  string
	SuggestedFix string
	ExecutionID  string
	Fix          Fix
}

func (f Finding) AutoFixable() bool {
	return f.Fix.Kind != FixNone
}

// Issue converts the finding into the row the reporter stores.
func (f Finding) Issue() models.Issue {
	issue := models.Issue{
		WorkflowID:   f.WorkflowID,
		WorkflowName: f.WorkflowName,
		Code:         f.Code,
		Severity:     f.Severity,
		Explanation:  f.Explanation,
		AutoFixable:  f.AutoFixable(),
		ExecutionID:  f.ExecutionID,
	}
	if f.SuggestedFix != "" {
		fix := f.SuggestedFix
		issue.SuggestedFix = &fix
	}
	return issue
}

// Scan is the outcome of one detector pass.
type Scan struct {
	Checked  []n8n.Workflow
	Findings []Finding
	// Errors holds workflows whose executions could not be fully loaded.
	// Their findings so far are kept, but none of their issues are cleared.
	Errors map[string]error
}

// CheckedIDs lists the workflows the scan looked at.
func (s *Scan) CheckedIDs() []string {
	ids := make([]string, len(s.Checked))
	for i := range s.Checked {
		ids[i] = s.Checked[i].ID
	}
	return ids
}

type Detector struct {
	api    API
	rules  Rules
	logger *logger.Logger
	now    func() time.Time
}

func NewDetector(api API, rules Rules, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.Discard()
	}
	return &Detector{api: api, rules: rules.withDefaults(), logger: log, now: time.Now}
}

// Detect checks every active workflow, every watched one and every inactive
// workflow carrying the critical tag.
func (d *Detector) Detect(ctx context.Context) (*Scan, error) {
	workflows, err := d.api.AllWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	scan := &Scan{Errors: make(map[string]error)}
	now := d.now().UTC()
	for i := range workflows {
		wf := &workflows[i]
		if d.rules.ignored(wf.ID) {
			continue
		}
		if !wf.Active && !d.rules.watched(wf.ID) && !wf.HasTag(d.rules.CriticalTag) {
			continue
		}
		scan.Checked = append(scan.Checked, *wf)
		scan.Findings = append(scan.Findings, d.checkConfig(wf)...)

		if !wf.Active {
			continue
		}
		findings, err := d.checkExecutions(ctx, wf, now)
		scan.Findings = append(scan.Findings, findings...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("Executions of %s unavailable: %v", wf.Name, err)
			scan.Errors[wf.ID] = err
		}
	}

	d.logger.Info("Checked %d of %d workflows, %d findings", len(scan.Checked), len(workflows), len(scan.Findings))
	return scan, nil
}

func (d *Detector) checkConfig(wf *n8n.Workflow) []Finding {
	var out []Finding

	if !wf.Active && wf.HasTag(d.rules.CriticalTag) {
		out = append(out, d.finding(wf, CodeInactiveCritical, models.IssueSeverityCritical,
			fmt.Sprintf("Workflow is tagged %q but inactive.", d.rules.CriticalTag),
			"Activate the workflow.",
			Fix{Kind: FixActivate}))
	}

	if d.rules.ErrorWorkflowID != "" && !wf.IsErrorHandler() && wf.Setting("errorWorkflow") == "" {
		out = append(out, d.finding(wf, CodeMissingErrorWorkflow, models.IssueSeverityLow,
			"No error workflow is set, failures go unnoticed.",
			"Set settings.errorWorkflow to "+d.rules.ErrorWorkflowID+".",
			Fix{Kind: FixPatchSettings, Settings: map[string]interface{}{"errorWorkflow": d.rules.ErrorWorkflowID}}))
	}

	if wf.Setting("saveDataErrorExecution") == "none" {
		out = append(out, d.finding(wf, CodeErrorDataNotSaved, models.IssueSeverityLow,
			"Failed executions are not saved, so errors cannot be diagnosed.",
			"Set settings.saveDataErrorExecution to all.",
			Fix{Kind: FixPatchSettings, Settings: map[string]interface{}{"saveDataErrorExecution": "all"}}))
	}

	if wf.Trigger() == n8n.TriggerSchedule {
		if tz := wf.Setting("timezone"); tz != d.rules.Timezone {
			current := tz
			if current == "" {
				current = "the instance default"
			}
			out = append(out, d.finding(wf, CodeTimezoneMismatch, models.IssueSeverityLow,
				fmt.Sprintf("Scheduled workflow runs in %s, expected %s.", current, d.rules.Timezone),
				"Set settings.timezone to "+d.rules.Timezone+".",
				Fix{Kind: FixPatchSettings, Settings: map[string]interface{}{"timezone": d.rules.Timezone}}))
		}
	}
	return out
}

func (d *Detector) checkExecutions(ctx context.Context, wf *n8n.Workflow, now time.Time) ([]Finding, error) {
	all, err := d.api.ListExecutions(ctx, wf.ID, "", d.rules.ExecutionLimit)
	if err != nil {
		return nil, err
	}
	execs := finished(all)

	var out []Finding
	streakFlagged := false

	if wf.Trigger() == n8n.TriggerWebhook {
		if n := d.rules.WebhookFailures; failingStreak(execs, n) {
			streakFlagged = true
			out = append(out, d.finding(wf, CodeWebhookFailing, models.IssueSeverityHigh,
				fmt.Sprintf("The last %d webhook calls errored, so callers got a non-2xx response.", n),
				"Check the failing node and replay the calls once fixed.",
				Fix{}).withExecution(execs[0].ID))
		}
	} else if n := d.rules.ConsecutiveFailures; failingStreak(execs, n) {
		streakFlagged = true
		out = append(out, d.finding(wf, CodeConsecutiveFailures, models.IssueSeverityHigh,
			fmt.Sprintf("The last %d executions all failed.", n),
			"Open the latest execution and fix the failing node.",
			Fix{}).withExecution(execs[0].ID))
	}

	if !streakFlagged {
		total, failed := window(execs, now.Add(-d.rules.Lookback))
		if total >= d.rules.ErrorRateMinRuns && float64(failed)/float64(total) >= d.rules.ErrorRate {
			out = append(out, d.finding(wf, CodeErrorRate, models.IssueSeverityMedium,
				fmt.Sprintf("%d of %d executions in the last %s failed.", failed, total, d.rules.Lookback),
				"Look for an intermittent upstream problem.",
				Fix{}))
		}
	}

	if wf.Trigger() == n8n.TriggerSchedule {
		if f, ok := d.checkStale(wf, execs, now); ok {
			out = append(out, f)
		}
	}

	if len(execs) > 0 && execs[0].Failed() && !execs[0].Retried() {
		// Streak, rate and staleness findings stand even when the error
		// detail is gone, e.g. pruned by n8n.
		f, err := d.classifyLatest(ctx, wf, execs[0].ID)
		if err != nil {
			return out, err
		}
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (d *Detector) checkStale(wf *n8n.Workflow, execs []n8n.Execution, now time.Time) (Finding, bool) {
	cutoff := now.Add(-d.rules.StaleAfter)
	var lastSuccess time.Time
	for _, e := range execs {
		if e.Status == n8n.StatusSuccess && e.StartedAt.After(lastSuccess) {
			lastSuccess = e.StartedAt
		}
	}
	if lastSuccess.After(cutoff) {
		return Finding{}, false
	}
	// Freshly created or edited workflows get one window to run.
	if lastSuccess.IsZero() && wf.UpdatedAt.After(cutoff) {
		return Finding{}, false
	}

	explanation := fmt.Sprintf("Scheduled workflow has not succeeded in %s.", d.rules.StaleAfter)
	if !lastSuccess.IsZero() {
		explanation = fmt.Sprintf("Scheduled workflow last succeeded %s ago.", now.Sub(lastSuccess).Round(time.Minute))
	}
	return d.finding(wf, CodeStaleSchedule, models.IssueSeverityMedium, explanation,
		"Check the schedule trigger and recent executions.", Fix{}), true
}

var (
	authPattern      = regexp.MustCompile(`(?i)\b(401|403)\b|unauthori[sz]ed|forbidden|invalid[ _]grant|invalid credentials|authentication|access token|token (has )?expired`)
	transientPattern = regexp.MustCompile(`(?i)\b(429|500|502|503|504)\b|timed? ?out|timeout|too many requests|rate limit|econnreset|econnrefused|etimedout|socket hang up|service unavailable|bad gateway`)
)

// classifyLatest loads the error of the newest failed execution and flags
// credential problems and transient upstream failures.
func (d *Detector) classifyLatest(ctx context.Context, wf *n8n.Workflow, executionID string) (*Finding, error) {
	exec, err := d.api.GetExecution(ctx, executionID, true)
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}
	msg := exec.ErrorMessage()
	if msg == "" {
		return nil, nil
	}
	where := ""
	if node := exec.FailedNode(); node != "" {
		where = " in node " + node
	}

	switch {
	case authPattern.MatchString(msg):
		f := d.finding(wf, CodeAuthFailure, models.IssueSeverityHigh,
			fmt.Sprintf("Latest execution failed on credentials%s: %s", where, msg),
			"Reconnect the credential used by the failing node.",
			Fix{}).withExecution(executionID)
		return &f, nil
	case transientPattern.MatchString(msg):
		fix := Fix{}
		if d.rules.retryTransient() {
			fix.Kind = FixRetry
		}
		f := d.finding(wf, CodeTransientFailure, models.IssueSeverityLow,
			fmt.Sprintf("Latest execution hit a transient error%s: %s", where, msg),
			"Retry the execution.",
			fix).withExecution(executionID)
		return &f, nil
	}
	return nil, nil
}

func (d *Detector) finding(wf *n8n.Workflow, code string, severity models.IssueSeverity, explanation, suggestion string, fix Fix) Finding {
	return Finding{
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Code:         code,
		Severity:     severity,
		Explanation:  explanation,
		SuggestedFix: suggestion,
		Fix:          fix,
	}
}

func (f Finding) withExecution(id string) Finding {
	f.ExecutionID = id
	return f
}

// finished drops executions that are still running or waiting.
func finished(execs []n8n.Execution) []n8n.Execution {
	out := make([]n8n.Execution, 0, len(execs))
	for _, e := range execs {
		if e.Status == n8n.StatusRunning || e.Status == n8n.StatusWaiting {
			continue
		}
		out = append(out, e)
	}
	return out
}

// failingStreak reports whether the newest n executions all failed without
// a successful retry.
func failingStreak(execs []n8n.Execution, n int) bool {
	if n <= 0 || len(execs) < n {
		return false
	}
	for _, e := range execs[:n] {
		if !e.Failed() || e.Retried() {
			return false
		}
	}
	return true
}

func window(execs []n8n.Execution, from time.Time) (total, failed int) {
	for _, e := range execs {
		if e.StartedAt.Before(from) || e.Status == n8n.StatusCanceled {
			continue
		}
		total++
		if e.Failed() {
			failed++
		}
	}
	return total, failed
}
