package jobs

import (
	"context"
	"errors"

	"opshub/internal/models"
	"opshub/internal/resolver"
	"opshub/internal/services/n8n"
	"opshub/internal/store"
)

// ReportHook receives the resolver report of an n8n.resolve run.
type ReportHook func(report *resolver.Report)

// newN8NResolve checks the instance of the integration. Findings are stored
// as issues rather than through the sink. Fixes are applied only when
// Deps.Apply is set; integration config "apply": false keeps one instance
// in dry run regardless.
func newN8NResolve(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	instanceURL, err := setting(integration, "base_url")
	if err != nil {
		return nil, err
	}
	apiKey, err := integration.Credential("api_key")
	if err != nil {
		return nil, err
	}
	if deps.Issues == nil {
		return nil, errors.New("n8n.resolve needs the issues repository")
	}

	client := n8n.NewClient(instanceURL, apiKey, deps.HTTP)
	rules := deps.Rules
	if rules.ExecutionLimit == 0 {
		rules = resolver.DefaultRules()
	}
	if tz := integration.Setting("timezone", ""); tz != "" {
		rules.Timezone = tz
	}
	if id := integration.Setting("error_workflow_id", ""); id != "" {
		rules.ErrorWorkflowID = id
	}
	apply := deps.Apply && integration.Config["apply"] != false

	reporter := resolver.NewReporter(deps.Issues, deps.Publisher, deps.SlackWebhook, deps.HTTP, deps.log())
	service := resolver.NewService(client, rules, apply, reporter, deps.log())

	return JobFunc(func(ctx context.Context, _ store.Sink) (Result, error) {
		report, err := service.Run(ctx)
		if err != nil {
			return Result{}, err
		}
		if deps.OnReport != nil {
			deps.OnReport(report)
		}
		return Result{
			Fetched:  report.Checked,
			Upserted: report.Created + report.Bumped,
			Failed:   report.FixErrors + len(report.Skipped),
		}, nil
	}), nil
}
