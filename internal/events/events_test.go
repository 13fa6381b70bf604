package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	raw, err := json.Marshal(Event{Type: TypeJobRequested, JobKind: "xero.invoices", TargetID: "int-1", Timestamp: time.Now()})
	require.NoError(t, err)

	event, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "xero.invoices", event.JobKind)
	assert.Equal(t, "job.requested:xero.invoices", event.String())

	_, err = Decode([]byte(`{"job_kind":"x"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), "k", Event{Type: TypeJobCompleted}))
	require.NoError(t, r.Publish(context.Background(), "k", Event{Type: TypeResolverReport}))
	assert.Equal(t, []string{TypeJobCompleted, TypeResolverReport}, r.Types())
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "k", Event{}))
}
