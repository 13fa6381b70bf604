package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"opshub/internal/logger"
)

// Action is what happened, or would happen in a dry run, to one finding.
type Action struct {
	Finding     Finding
	Description string
	Applied     bool
	Err         error
}

// Resolver fixes what can be fixed without a human. Without apply it only
// describes the fixes.
type Resolver struct {
	api    API
	apply  bool
	logger *logger.Logger
}

func NewResolver(api API, apply bool, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{api: api, apply: apply, logger: log}
}

func (r *Resolver) Apply() bool {
	return r.apply
}

// Resolve acts on every fixable finding. Settings patches for the same
// workflow are merged into a single update.
func (r *Resolver) Resolve(ctx context.Context, findings []Finding) []Action {
	var actions []Action
	patches := make(map[string][]Finding)
	var order []string

	for _, f := range findings {
		switch f.Fix.Kind {
		case FixPatchSettings:
			if _, ok := patches[f.WorkflowID]; !ok {
				order = append(order, f.WorkflowID)
			}
			patches[f.WorkflowID] = append(patches[f.WorkflowID], f)
		case FixActivate:
			actions = append(actions, r.do(f, "activate workflow", func() error {
				return r.api.ActivateWorkflow(ctx, f.WorkflowID)
			}))
		case FixRetry:
			actions = append(actions, r.do(f, "retry execution "+f.ExecutionID, func() error {
				_, err := r.api.RetryExecution(ctx, f.ExecutionID)
				return err
			}))
		}
	}

	for _, id := range order {
		actions = append(actions, r.patch(ctx, patches[id])...)
	}
	return actions
}

func (r *Resolver) patch(ctx context.Context, group []Finding) []Action {
	settings := make(map[string]interface{})
	for _, f := range group {
		for k, v := range f.Fix.Settings {
			settings[k] = v
		}
	}
	description := "set " + describeSettings(settings)

	var err error
	if r.apply {
		err = r.patchWorkflow(ctx, group[0].WorkflowID, settings)
	}

	actions := make([]Action, len(group))
	for i, f := range group {
		actions[i] = r.record(f, description, err)
	}
	return actions
}

// patchWorkflow reloads the workflow so the update carries its current nodes.
func (r *Resolver) patchWorkflow(ctx context.Context, id string, settings map[string]interface{}) error {
	wf, err := r.api.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if wf.Settings == nil {
		wf.Settings = make(map[string]interface{})
	}
	for k, v := range settings {
		wf.Settings[k] = v
	}
	_, err = r.api.UpdateWorkflow(ctx, wf)
	return err
}

func (r *Resolver) do(f Finding, description string, fn func() error) Action {
	var err error
	if r.apply {
		err = fn()
	}
	return r.record(f, description, err)
}

func (r *Resolver) record(f Finding, description string, err error) Action {
	action := Action{Finding: f, Description: description, Applied: r.apply && err == nil, Err: err}
	switch {
	case !r.apply:
		r.logger.Info("[dry run] %s: would %s", f.WorkflowName, description)
	case err != nil:
		r.logger.Error("%s: %s failed: %v", f.WorkflowName, description, err)
	default:
		r.logger.Info("%s: %s", f.WorkflowName, description)
	}
	return action
}

func describeSettings(settings map[string]interface{}) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, settings[k])
	}
	return strings.Join(parts, ", ")
}
