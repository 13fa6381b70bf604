package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"opshub/internal/models"
	"opshub/internal/resolver"
	"opshub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_FollowsCursorUntilEmpty(t *testing.T) {
	pages := map[string]struct {
		items []int
		next  string
	}{
		"":  {[]int{1, 2}, "b"},
		"b": {nil, "c"},
		"c": {[]int{3}, ""},
	}
	var got []int
	err := drain(context.Background(), "", func(_ context.Context, cursor string) ([]int, string, error) {
		p := pages[cursor]
		return p.items, p.next, nil
	}, func(items []int) error {
		got = append(got, items...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDrain_StopsOnRepeatedCursorAndErrors(t *testing.T) {
	calls := 0
	err := drain(context.Background(), 1, func(_ context.Context, page int) ([]int, int, error) {
		calls++
		return []int{page}, 1, nil
	}, func([]int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	err = drain(context.Background(), "", func(context.Context, string) ([]int, string, error) {
		return []int{1}, "next", nil
	}, func([]int) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	kinds := make([]string, 0)
	for _, def := range r.List() {
		kinds = append(kinds, def.Kind)
		assert.NotNil(t, def.Factory, def.Kind)
	}
	assert.Len(t, kinds, 13)
	assert.IsIncreasing(t, kinds)

	def, err := r.Get(KindXeroInvoices)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderXero, def.Provider)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSmartLeadLeads_PagesEveryCampaign(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sl-key", r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/campaigns":
			w.Write([]byte(`[{"id":7,"name":"Stockists"},{"id":8,"name":"Cafes"}]`))
		case "/campaigns/7/leads":
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			fmt.Fprintf(w, `{"total_leads":"3","offset":%d,"limit":2,"data":[{"campaign_lead_map_id":%d,"status":"INPROGRESS","lead":{"id":%d,"email":"Lead%d@Shop.com"}}]}`,
				offset, offset+100, offset+1, offset+1)
		case "/campaigns/8/leads":
			w.Write([]byte(`{"total_leads":0,"data":[]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	integration := h.integration(t, models.ProviderSmartLead,
		map[string]interface{}{"base_url": server.URL}, map[string]interface{}{"api_key": "sl-key"})

	run, err := h.runner.RunIntegration(context.Background(), KindSmartLeadLeads, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 3, run.Upserted)

	var contacts []models.Contact
	require.NoError(t, h.db.Order("external_id").Find(&contacts).Error)
	require.Len(t, contacts, 3)
	assert.Equal(t, "7:1", contacts[0].ExternalID)
	assert.Equal(t, "lead1@shop.com", contacts[0].Email)
}

func TestXeroInvoices_StoresRotatedRefreshToken(t *testing.T) {
	h := newHarness(t)
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":1800,"refresh_token":"refresh-2"}`))
	}))
	defer tokens.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "tenant-1", r.Header.Get("xero-tenant-id"))
		w.Write([]byte(`{"Invoices":[{"InvoiceID":"inv-1","InvoiceNumber":"INV-1","Type":"ACCREC","Status":"AUTHORISED",
			"Total":110,"AmountDue":110,"CurrencyCode":"AUD","DateString":"2026-02-01T00:00:00","DueDateString":"2026-02-15T00:00:00"}]}`))
	}))
	defer api.Close()

	integration := h.integration(t, models.ProviderXero,
		map[string]interface{}{"tenant_id": "tenant-1", "base_url": api.URL, "token_url": tokens.URL},
		map[string]interface{}{"client_id": "id", "client_secret": "secret", "refresh_token": "refresh-1"})

	run, err := h.runner.RunIntegration(context.Background(), KindXeroInvoices, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunSucceeded, run.Status)
	assert.Equal(t, 1, run.Upserted)

	stored, err := h.integrations.Get(context.Background(), integration.ID)
	require.NoError(t, err)
	token, err := stored.Credential("refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", token)
}

func TestN8NResolve_RecordsIssues(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "n8n-key", r.Header.Get("X-N8N-API-KEY"))
		switch r.URL.Path {
		case "/api/v1/workflows":
			w.Write([]byte(`{"data":[{"id":"wf1","name":"Order webhook","active":true,
				"nodes":[{"name":"Webhook","type":"n8n-nodes-base.webhook"}],"settings":{}}]}`))
		case "/api/v1/executions":
			assert.Equal(t, "wf1", r.URL.Query().Get("workflowId"))
			w.Write([]byte(`{"data":[
				{"id":"e3","workflowId":"wf1","status":"error","startedAt":"2026-03-02T08:00:00Z"},
				{"id":"e2","workflowId":"wf1","status":"error","startedAt":"2026-03-02T07:00:00Z"},
				{"id":"e1","workflowId":"wf1","status":"success","startedAt":"2026-03-02T06:00:00Z"}]}`))
		case "/api/v1/executions/e3":
			w.Write([]byte(`{"id":"e3","status":"error","data":{"resultData":{"error":{"message":"Cannot read properties of undefined"}}}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	integration := h.integration(t, models.ProviderN8N,
		map[string]interface{}{"base_url": server.URL}, map[string]interface{}{"api_key": "n8n-key"})

	var report *resolver.Report
	h.runner.deps.OnReport = func(r *resolver.Report) { report = r }

	run, err := h.runner.RunIntegration(context.Background(), KindN8NResolve, integration.ID, models.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Fetched)
	require.NotNil(t, report)
	assert.True(t, report.DryRun)

	issues, total, err := store.NewIssues(h.db).List(context.Background(), store.IssueFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, resolver.CodeWebhookFailing, issues[0].Code)
	assert.Equal(t, "e3", issues[0].ExecutionID)
}

func inactiveCriticalServer(t *testing.T, activations *int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/workflows":
			w.Write([]byte(`{"data":[{"id":"wf1","name":"Stock alerts","active":false,
				"nodes":[{"name":"Webhook","type":"n8n-nodes-base.webhook"}],"settings":{},
				"tags":[{"id":"t1","name":"critical"}]}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/workflows/wf1/activate":
			*activations++
			w.Write([]byte(`{"id":"wf1","active":true}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestN8NResolve_DryRunIgnoresIntegrationApply(t *testing.T) {
	h := newHarness(t)
	activations := 0
	server := inactiveCriticalServer(t, &activations)

	integration := h.integration(t, models.ProviderN8N,
		map[string]interface{}{"base_url": server.URL, "apply": true}, map[string]interface{}{"api_key": "n8n-key"})

	var report *resolver.Report
	h.runner.deps.OnReport = func(r *resolver.Report) { report = r }

	_, err := h.runner.RunIntegration(context.Background(), KindN8NResolve, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.DryRun)
	assert.Zero(t, activations)
	assert.Zero(t, report.AutoFixed)
}

func TestN8NResolve_ApplyActivatesUnlessIntegrationOptsOut(t *testing.T) {
	h := newHarness(t)
	h.runner.deps.Apply = true
	activations := 0
	server := inactiveCriticalServer(t, &activations)

	integration := h.integration(t, models.ProviderN8N,
		map[string]interface{}{"base_url": server.URL}, map[string]interface{}{"api_key": "n8n-key"})
	_, err := h.runner.RunIntegration(context.Background(), KindN8NResolve, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, activations)

	optOut := h.integration(t, models.ProviderN8N,
		map[string]interface{}{"base_url": server.URL, "apply": false}, map[string]interface{}{"api_key": "n8n-key"})
	_, err = h.runner.RunIntegration(context.Background(), KindN8NResolve, optOut.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, activations)
}

func TestKlaviyoCampaigns_StatsOutageKeepsStoredCounts(t *testing.T) {
	h := newHarness(t)
	statsDown := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campaigns/":
			w.Write([]byte(`{"data":[{"id":"c1","attributes":{"name":"Winter Sale","status":"Sent"}}],"links":{"next":null}}`))
		case "/campaign-values-reports/":
			if statsDown {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errors":[{"detail":"bad metric"}]}`))
				return
			}
			w.Write([]byte(`{"data":{"attributes":{"results":[
				{"groupings":{"campaign_id":"c1"},"statistics":{"recipients":100,"opens_unique":40}}]}}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	integration := h.integration(t, models.ProviderKlaviyo,
		map[string]interface{}{"base_url": server.URL, "conversion_metric_id": "M1"}, map[string]interface{}{"api_key": "pk"})

	run, err := h.runner.RunIntegration(context.Background(), KindKlaviyoCampaigns, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunSucceeded, run.Status)

	statsDown = true
	run, err = h.runner.RunIntegration(context.Background(), KindKlaviyoCampaigns, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunPartial, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 0, run.Upserted)

	var campaign models.Campaign
	require.NoError(t, h.db.Where("external_id = ?", "c1").First(&campaign).Error)
	assert.Equal(t, 100, campaign.Sent)
	assert.Equal(t, 40, campaign.Opens)
}

func TestSmartLeadCampaigns_AnalyticsOutageKeepsStoredCounts(t *testing.T) {
	h := newHarness(t)
	analyticsDown := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campaigns":
			w.Write([]byte(`[{"id":7,"name":"Stockists","status":"ACTIVE"},{"id":8,"name":"Cafes","status":"ACTIVE"}]`))
		case "/campaigns/7/analytics":
			if analyticsDown {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"id":7,"sent_count":"120","reply_count":"9"}`))
		case "/campaigns/8/analytics":
			w.Write([]byte(`{"id":8,"sent_count":"30","reply_count":"1"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	integration := h.integration(t, models.ProviderSmartLead,
		map[string]interface{}{"base_url": server.URL}, map[string]interface{}{"api_key": "sl-key"})

	run, err := h.runner.RunIntegration(context.Background(), KindSmartLeadCampaigns, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Upserted)

	analyticsDown = true
	run, err = h.runner.RunIntegration(context.Background(), KindSmartLeadCampaigns, integration.ID, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunPartial, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Upserted)

	var campaign models.Campaign
	require.NoError(t, h.db.Where("external_id = ?", "7").First(&campaign).Error)
	assert.Equal(t, 120, campaign.Sent)
	assert.Equal(t, 9, campaign.Replies)
}
