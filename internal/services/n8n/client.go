package n8n

import (
	"context"
	"net/url"
	"strconv"

	"opshub/internal/httpx"
)

type Client struct {
	http *httpx.Client
}

// NewClient talks to the public REST API of one n8n instance.
func NewClient(instanceURL, apiKey string, opts httpx.Options) *Client {
	c := httpx.New("n8n", instanceURL+"/api/v1", opts.With(10, 5))
	c.SetHeader("X-N8N-API-KEY", apiKey)
	return &Client{http: c}
}

type WorkflowsPage struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor"`
}

type ExecutionsPage struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor"`
}

// ListWorkflows fetches one page of workflows. active filters when non-nil.
func (c *Client) ListWorkflows(ctx context.Context, cursor string, active *bool) (*WorkflowsPage, error) {
	params := url.Values{}
	params.Set("limit", "100")
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if active != nil {
		params.Set("active", strconv.FormatBool(*active))
	}

	var page WorkflowsPage
	if _, err := c.http.Get(ctx, "/workflows", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllWorkflows walks every page of ListWorkflows.
func (c *Client) AllWorkflows(ctx context.Context) ([]Workflow, error) {
	var out []Workflow
	cursor := ""
	for {
		page, err := c.ListWorkflows(ctx, cursor, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	if _, err := c.http.Get(ctx, "/workflows/"+url.PathEscape(id), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// allowedSettings are the settings keys the public API accepts on update;
// anything else makes the PUT fail validation.
var allowedSettings = map[string]bool{
	"saveExecutionProgress":    true,
	"saveManualExecutions":     true,
	"saveDataErrorExecution":   true,
	"saveDataSuccessExecution": true,
	"executionTimeout":         true,
	"errorWorkflow":            true,
	"timezone":                 true,
	"executionOrder":           true,
	"callerPolicy":             true,
	"callerIds":                true,
}

type workflowUpdate struct {
	Name        string                 `json:"name"`
	Nodes       []Node                 `json:"nodes"`
	Connections map[string]interface{} `json:"connections"`
	Settings    map[string]interface{} `json:"settings"`
	StaticData  interface{}            `json:"staticData,omitempty"`
}

// UpdateWorkflow PUTs the editable parts of wf back and returns the stored copy.
func (c *Client) UpdateWorkflow(ctx context.Context, wf *Workflow) (*Workflow, error) {
	settings := make(map[string]interface{})
	for k, v := range wf.Settings {
		if allowedSettings[k] {
			settings[k] = v
		}
	}
	body := workflowUpdate{
		Name:        wf.Name,
		Nodes:       wf.Nodes,
		Connections: wf.Connections,
		Settings:    settings,
		StaticData:  wf.StaticData,
	}

	var updated Workflow
	if _, err := c.http.Put(ctx, "/workflows/"+url.PathEscape(wf.ID), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) ActivateWorkflow(ctx context.Context, id string) error {
	_, err := c.http.Post(ctx, "/workflows/"+url.PathEscape(id)+"/activate", nil, nil)
	return err
}

// ListExecutions returns the most recent executions of a workflow, newest
// first. status may be empty.
func (c *Client) ListExecutions(ctx context.Context, workflowID, status string, limit int) ([]Execution, error) {
	if limit <= 0 || limit > 250 {
		limit = 100
	}
	params := url.Values{}
	params.Set("workflowId", workflowID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("includeData", "false")
	if status != "" {
		params.Set("status", status)
	}

	var page ExecutionsPage
	if _, err := c.http.Get(ctx, "/executions", params, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *Client) GetExecution(ctx context.Context, id string, includeData bool) (*Execution, error) {
	params := url.Values{"includeData": {strconv.FormatBool(includeData)}}
	var exec Execution
	if _, err := c.http.Get(ctx, "/executions/"+url.PathEscape(id), params, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// RetryExecution reruns a failed execution with the currently saved workflow.
func (c *Client) RetryExecution(ctx context.Context, id string) (*Execution, error) {
	var exec Execution
	body := map[string]bool{"loadWorkflow": true}
	if _, err := c.http.Post(ctx, "/executions/"+url.PathEscape(id)+"/retry", body, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}
