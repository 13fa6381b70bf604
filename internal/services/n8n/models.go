package n8n

import (
	"strings"
	"time"
)

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Node struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion float64                `json:"typeVersion"`
	Position    []float64              `json:"position"`
	Parameters  map[string]interface{} `json:"parameters"`
	Credentials map[string]interface{} `json:"credentials,omitempty"`
	Disabled    bool                   `json:"disabled,omitempty"`
	WebhookID   string                 `json:"webhookId,omitempty"`
}

type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Active      bool                   `json:"active"`
	Nodes       []Node                 `json:"nodes"`
	Connections map[string]interface{} `json:"connections"`
	Settings    map[string]interface{} `json:"settings"`
	StaticData  interface{}            `json:"staticData,omitempty"`
	Tags        []Tag                  `json:"tags,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

type TriggerKind string

const (
	TriggerWebhook  TriggerKind = "webhook"
	TriggerSchedule TriggerKind = "schedule"
	TriggerManual   TriggerKind = "manual"
	TriggerOther    TriggerKind = "other"
)

// Trigger classifies the workflow by its first enabled trigger node.
func (w *Workflow) Trigger() TriggerKind {
	kind := TriggerManual
	for _, node := range w.Nodes {
		if node.Disabled {
			continue
		}
		t := strings.ToLower(node.Type)
		switch {
		case strings.HasSuffix(t, ".webhook"), strings.HasSuffix(t, ".formtrigger"):
			return TriggerWebhook
		case strings.HasSuffix(t, ".scheduletrigger"), strings.HasSuffix(t, ".cron"), strings.HasSuffix(t, ".interval"):
			return TriggerSchedule
		case strings.HasSuffix(t, "trigger") && !strings.HasSuffix(t, ".manualtrigger") && !strings.HasSuffix(t, ".errortrigger"):
			kind = TriggerOther
		}
	}
	return kind
}

// IsErrorHandler reports whether the workflow starts from an Error Trigger.
func (w *Workflow) IsErrorHandler() bool {
	for _, node := range w.Nodes {
		if strings.HasSuffix(strings.ToLower(node.Type), ".errortrigger") {
			return true
		}
	}
	return false
}

func (w *Workflow) HasTag(name string) bool {
	for _, tag := range w.Tags {
		if strings.EqualFold(tag.Name, name) {
			return true
		}
	}
	return false
}

// Setting returns a workflow setting as a string, empty when unset.
func (w *Workflow) Setting(key string) string {
	if w.Settings == nil {
		return ""
	}
	if v, ok := w.Settings[key].(string); ok {
		return v
	}
	return ""
}

const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCrashed  = "crashed"
	StatusWaiting  = "waiting"
	StatusRunning  = "running"
	StatusCanceled = "canceled"
)

type Execution struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflowId"`
	Finished       bool           `json:"finished"`
	Mode           string         `json:"mode"`
	Status         string         `json:"status"`
	RetryOf        *string        `json:"retryOf"`
	RetrySuccessID *string        `json:"retrySuccessId"`
	StartedAt      time.Time      `json:"startedAt"`
	StoppedAt      *time.Time     `json:"stoppedAt"`
	Data           *ExecutionData `json:"data,omitempty"`
}

type ExecutionData struct {
	ResultData struct {
		Error *struct {
			Message     string `json:"message"`
			Description string `json:"description"`
			HTTPCode    string `json:"httpCode"`
			Node        *struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"error"`
		LastNodeExecuted string `json:"lastNodeExecuted"`
	} `json:"resultData"`
}

// Failed reports whether the execution ended in error.
func (e *Execution) Failed() bool {
	return e.Status == StatusError || e.Status == StatusCrashed
}

// Retried reports whether a later retry of this execution succeeded.
func (e *Execution) Retried() bool {
	return e.RetrySuccessID != nil && *e.RetrySuccessID != ""
}

// ErrorMessage is the error text when the execution was loaded with data.
func (e *Execution) ErrorMessage() string {
	if e.Data == nil || e.Data.ResultData.Error == nil {
		return ""
	}
	err := e.Data.ResultData.Error
	msg := err.Message
	if err.HTTPCode != "" && !strings.Contains(msg, err.HTTPCode) {
		msg = err.HTTPCode + " " + msg
	}
	if err.Description != "" {
		msg += ": " + err.Description
	}
	return msg
}

// FailedNode names the node the error came from, if known.
func (e *Execution) FailedNode() string {
	if e.Data == nil {
		return ""
	}
	if err := e.Data.ResultData.Error; err != nil && err.Node != nil {
		return err.Node.Name
	}
	return e.Data.ResultData.LastNodeExecuted
}
