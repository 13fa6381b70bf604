package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"opshub/internal/models"
	"opshub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrations_LifecycleAndListActive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewIntegrations(db)
	ctx := context.Background()

	active := &models.Integration{BusinessCode: models.BusinessTeelixir, Provider: models.ProviderShopify, Name: "Teelixir Shopify", Status: models.IntegrationStatusActive}
	inactive := &models.Integration{BusinessCode: models.BusinessElevate, Provider: models.ProviderShopify, Name: "Elevate Shopify", Status: models.IntegrationStatusInactive}
	other := &models.Integration{BusinessCode: models.BusinessTeelixir, Provider: models.ProviderKlaviyo, Name: "Teelixir Klaviyo", Status: models.IntegrationStatusActive}
	for _, i := range []*models.Integration{active, inactive, other} {
		require.NoError(t, repo.Create(ctx, i))
	}
	require.NotEmpty(t, active.ID)

	list, err := repo.ListActive(ctx, models.ProviderShopify)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	now := time.Now().UTC()
	require.NoError(t, repo.RecordSync(ctx, active.ID, now, errors.New("401 unauthorized")))
	got, err := repo.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntegrationStatusError, got.Status)
	assert.Equal(t, "401 unauthorized", got.LastError)
	require.NotNil(t, got.LastSyncAt)

	// errored integrations stay in rotation
	list, err = repo.ListActive(ctx, models.ProviderShopify)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.RecordSync(ctx, active.ID, now, nil))
	got, _ = repo.Get(ctx, active.ID)
	assert.Equal(t, models.IntegrationStatusActive, got.Status)
	assert.Empty(t, got.LastError)

	require.NoError(t, repo.SetCredential(ctx, active.ID, "refresh_token", "rotated"))
	got, _ = repo.Get(ctx, active.ID)
	token, err := got.Credential("refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)

	teelixir, err := repo.List(ctx, models.BusinessTeelixir)
	require.NoError(t, err)
	assert.Len(t, teelixir, 2)

	require.NoError(t, repo.Delete(ctx, other.ID))
	_, err = repo.Get(ctx, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, other.ID), ErrNotFound)
}

func TestSyncRuns_StartFinishLatest(t *testing.T) {
	db := testutil.NewDB(t)
	runs := NewSyncRuns(db)
	ctx := context.Background()
	integration := &models.Integration{ID: "int-1", BusinessCode: models.BusinessBuyOrganicsOnline}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, err := runs.Start(ctx, "bigcommerce.products", integration, models.TriggerSchedule, base)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunRunning, first.Status)
	assert.Equal(t, models.BusinessBuyOrganicsOnline, first.BusinessCode)

	finished := base.Add(time.Minute)
	first.Status = models.SyncRunSucceeded
	first.FinishedAt = &finished
	first.Upserted = 12
	require.NoError(t, runs.Finish(ctx, first))

	second, err := runs.Start(ctx, "bigcommerce.products", integration, models.TriggerManual, base.Add(time.Hour))
	require.NoError(t, err)

	got, err := runs.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Upserted)
	assert.Equal(t, time.Minute, got.Duration())

	latest, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, second.ID, latest[0].ID)

	list, total, err := runs.List(ctx, SyncRunFilter{Status: models.SyncRunSucceeded})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = runs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssues_RecordBumpsOpenIssue(t *testing.T) {
	db := testutil.NewDB(t)
	issues := NewIssues(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	finding := models.Issue{WorkflowID: "wf1", WorkflowName: "Orders to Xero", Code: "consecutive_failures", Severity: models.IssueSeverityHigh, Explanation: "3 failed runs"}
	first, created, err := issues.Record(ctx, finding, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Occurrences)

	finding.Explanation = "5 failed runs"
	second, created, err := issues.Record(ctx, finding, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Occurrences)
	assert.Equal(t, "5 failed runs", second.Explanation)
	assert.True(t, second.FirstSeenAt.Equal(now))

	// once resolved, the next sighting opens a fresh issue
	_, err = issues.Resolve(ctx, first.ID, models.ResolutionManual, now)
	require.NoError(t, err)
	third, created, err := issues.Record(ctx, finding, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestIssues_CloseClearedOnlyTouchesCheckedWorkflows(t *testing.T) {
	db := testutil.NewDB(t)
	issues := NewIssues(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, f := range []models.Issue{
		{WorkflowID: "wf1", Code: "error_rate", Severity: models.IssueSeverityMedium, Explanation: "x"},
		{WorkflowID: "wf1", Code: "auth_failure", Severity: models.IssueSeverityHigh, Explanation: "x"},
		{WorkflowID: "wf2", Code: "error_rate", Severity: models.IssueSeverityMedium, Explanation: "x"},
	} {
		_, _, err := issues.Record(ctx, f, now)
		require.NoError(t, err)
	}

	seen := map[string]bool{IssueKey("wf1", "auth_failure"): true}
	closed, err := issues.CloseCleared(ctx, []string{"wf1"}, seen, now)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "error_rate", closed[0].Code)
	assert.Equal(t, models.ResolutionCleared, closed[0].Resolution)

	open := true
	list, total, err := issues.List(ctx, IssueFilter{Open: &open})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, models.IssueSeverityHigh, list[0].Severity)
}
