package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules are the thresholds the detector applies. Zero values in a rules
// file fall back to the defaults.
type Rules struct {
	ExecutionLimit      int           `yaml:"execution_limit"`
	ConsecutiveFailures int           `yaml:"consecutive_failures"`
	WebhookFailures     int           `yaml:"webhook_failures"`
	ErrorRate           float64       `yaml:"error_rate"`
	ErrorRateMinRuns    int           `yaml:"error_rate_min_runs"`
	Lookback            time.Duration `yaml:"lookback"`
	StaleAfter          time.Duration `yaml:"stale_after"`
	Timezone            string        `yaml:"timezone"`
	ErrorWorkflowID     string        `yaml:"error_workflow_id"`
	CriticalTag         string        `yaml:"critical_tag"`
	RetryTransient      *bool         `yaml:"retry_transient"`
	Watch               []string      `yaml:"watch"`
	Ignore              []string      `yaml:"ignore"`
}

func DefaultRules() Rules {
	retry := true
	return Rules{
		ExecutionLimit:      20,
		ConsecutiveFailures: 3,
		WebhookFailures:     2,
		ErrorRate:           0.5,
		ErrorRateMinRuns:    4,
		Lookback:            24 * time.Hour,
		StaleAfter:          48 * time.Hour,
		Timezone:            "Australia/Melbourne",
		CriticalTag:         "critical",
		RetryTransient:      &retry,
	}
}

// LoadRules reads a YAML rules file. A missing file yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultRules(), nil
	}
	if err != nil {
		return Rules{}, fmt.Errorf("read resolver rules: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse resolver rules: %w", err)
	}
	return rules.withDefaults(), nil
}

func (r Rules) withDefaults() Rules {
	def := DefaultRules()
	if r.ExecutionLimit <= 0 {
		r.ExecutionLimit = def.ExecutionLimit
	}
	if r.ConsecutiveFailures <= 0 {
		r.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if r.WebhookFailures <= 0 {
		r.WebhookFailures = def.WebhookFailures
	}
	if r.ErrorRate <= 0 || r.ErrorRate > 1 {
		r.ErrorRate = def.ErrorRate
	}
	if r.ErrorRateMinRuns <= 0 {
		r.ErrorRateMinRuns = def.ErrorRateMinRuns
	}
	if r.Lookback <= 0 {
		r.Lookback = def.Lookback
	}
	if r.StaleAfter <= 0 {
		r.StaleAfter = def.StaleAfter
	}
	if r.Timezone == "" {
		r.Timezone = def.Timezone
	}
	if r.CriticalTag == "" {
		r.CriticalTag = def.CriticalTag
	}
	if r.RetryTransient == nil {
		r.RetryTransient = def.RetryTransient
	}
	return r
}

func (r Rules) retryTransient() bool {
	return r.RetryTransient == nil || *r.RetryTransient
}

func (r Rules) watched(id string) bool {
	return contains(r.Watch, id)
}

func (r Rules) ignored(id string) bool {
	return contains(r.Ignore, id)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
