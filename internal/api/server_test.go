package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"opshub/internal/config"
	"opshub/internal/events"
	"opshub/internal/jobs"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/reports"
	"opshub/internal/services/shopify"
	"opshub/internal/store"
	"opshub/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, kind string, trigger models.Trigger) ([]*models.SyncRun, error) {
	f.record(kind + "/" + string(trigger))
	return nil, nil
}

func (f *fakeRunner) RunIntegration(_ context.Context, kind, id string, trigger models.Trigger) (*models.SyncRun, error) {
	f.record(kind + "@" + id + "/" + string(trigger))
	return &models.SyncRun{}, nil
}

func (f *fakeRunner) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

type harness struct {
	db       *gorm.DB
	server   *Server
	runner   *fakeRunner
	requests *events.Recorder
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{Env: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}}
	if mutate != nil {
		mutate(cfg)
	}
	db := testutil.NewDB(t)
	h := &harness{db: db, runner: &fakeRunner{}, requests: &events.Recorder{}}
	h.server = New(cfg, logger.Discard(), Deps{
		DB:           db,
		Sink:         store.NewGormSink(db),
		Integrations: store.NewIntegrations(db),
		Runs:         store.NewSyncRuns(db),
		Issues:       store.NewIssues(db),
		Registry:     jobs.DefaultRegistry(),
		Runner:       h.runner,
		Requests:     h.requests,
		Exporter:     reports.New(db, logger.Discard()),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestProducts_ListFiltersAndPaginates(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now().UTC()
	products := []models.Product{
		{SyncedRecord: models.NewSyncedRecord("teelixir", "shopify", "1", now), SKU: "LM-50", Title: "Lions Mane", Price: decimal.NewFromInt(50)},
		{SyncedRecord: models.NewSyncedRecord("teelixir", "shopify", "2", now), SKU: "CH-50", Title: "Chaga", Price: decimal.NewFromInt(40)},
		{SyncedRecord: models.NewSyncedRecord("boo", "bigcommerce", "3", now), SKU: "OAT", Title: "Oats", Price: decimal.NewFromInt(5)},
	}
	require.NoError(t, h.db.Create(&products).Error)

	body := decode(t, h.do(t, http.MethodGet, "/api/v1/products?business=teelixir&limit=1", nil))
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(2), body["pagination"].(map[string]interface{})["total"])
	assert.Equal(t, "Chaga", body["data"].([]interface{})[0].(map[string]interface{})["title"])

	body = decode(t, h.do(t, http.MethodGet, "/api/v1/products?search=lions", nil))
	require.Len(t, body["data"], 1)

	w := h.do(t, http.MethodGet, "/api/v1/products/"+products[2].ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBusinesses(t *testing.T) {
	h := newHarness(t, nil)
	body := decode(t, h.do(t, http.MethodGet, "/api/v1/businesses", nil))
	assert.Len(t, body["data"], len(models.DefaultBusinesses()))
}

func TestIntegrations_CRUDKeepsSecretsPrivate(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"business_code": "teelixir",
		"provider":      "shopify",
		"name":          "Teelixir Shopify",
		"config":        map[string]interface{}{"shop_domain": "teelixir.myshopify.com"},
		"credentials":   map[string]interface{}{"access_token": "shpat_1", "webhook_secret": "shh"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "shpat_1")
	id := decode(t, w)["data"].(map[string]interface{})["id"].(string)

	w = h.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{"business_code": "teelixir", "provider": "myob", "name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/v1/integrations/"+id, map[string]interface{}{
		"name":        "Renamed",
		"credentials": map[string]interface{}{"access_token": "shpat_2"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := store.NewIntegrations(h.db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	token, _ := got.Credential("access_token")
	secret, _ := got.Credential("webhook_secret")
	assert.Equal(t, "shpat_2", token)
	assert.Equal(t, "shh", secret)

	body := decode(t, h.do(t, http.MethodGet, "/api/v1/integrations?business=teelixir", nil))
	assert.Len(t, body["data"], 1)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/v1/integrations/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/integrations/"+id, nil).Code)
}

func TestIntegrations_SyncRunsProviderKindsInBackground(t *testing.T) {
	h := newHarness(t, nil)
	integration := &models.Integration{BusinessCode: "teelixir", Provider: models.ProviderShopify, Name: "Shop"}
	require.NoError(t, store.NewIntegrations(h.db).Create(context.Background(), integration))

	w := h.do(t, http.MethodPost, "/api/v1/integrations/"+integration.ID+"/sync", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	h.server.Dispatcher().Wait()

	assert.ElementsMatch(t, []string{
		"shopify.orders@" + integration.ID + "/api",
		"shopify.products@" + integration.ID + "/api",
	}, h.runner.calls)

	w = h.do(t, http.MethodPost, "/api/v1/integrations/"+integration.ID+"/sync?kind=xero.invoices", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs_RunQueuesWhenKafkaConfigured(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.KafkaBrokers = "localhost:9092" })

	w := h.do(t, http.MethodPost, "/api/v1/jobs/xero.invoices/run?integration=x1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"kind":"xero.invoices","status":"queued"}`, w.Body.String())

	require.Len(t, h.requests.Events, 1)
	event := h.requests.Events[0]
	assert.Equal(t, events.TypeJobRequested, event.Type)
	assert.Equal(t, "xero.invoices", event.JobKind)
	assert.Equal(t, "x1", event.TargetID)
	assert.Empty(t, h.runner.calls)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/v1/jobs/nope/run", nil).Code)

	body := decode(t, h.do(t, http.MethodGet, "/api/v1/jobs", nil))
	assert.Len(t, body["data"], len(jobs.DefaultRegistry().List()))
}

func TestJobs_RunStartsInProcessWithoutKafka(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(t, http.MethodPost, "/api/v1/jobs/n8n.resolve/run", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.server.Dispatcher().Wait()
	assert.Equal(t, []string{"n8n.resolve/api"}, h.runner.calls)
	assert.Empty(t, h.requests.Events)
}

func TestIssues_ListAndResolve(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now().UTC()
	issue := &models.Issue{WorkflowID: "w1", WorkflowName: "Orders", Code: "webhook_failing", Severity: models.IssueSeverityHigh, Explanation: "3 failed", FirstSeenAt: now, LastSeenAt: now}
	require.NoError(t, h.db.Create(issue).Error)

	body := decode(t, h.do(t, http.MethodGet, "/api/v1/issues?resolved=false", nil))
	assert.Len(t, body["data"], 1)

	w := h.do(t, http.MethodPost, "/api/v1/issues/"+issue.ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["is_resolved"])
	assert.Equal(t, models.ResolutionManual, data["resolution"])

	body = decode(t, h.do(t, http.MethodGet, "/api/v1/issues?resolved=false", nil))
	assert.Empty(t, body["data"])
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/v1/issues/nope/resolve", nil).Code)
}

func TestReports_Download(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now().UTC()
	require.NoError(t, h.db.Create(&models.SyncRun{JobKind: "shopify.orders", BusinessCode: "teelixir", Status: models.SyncRunFailed, StartedAt: now, Error: "401"}).Error)

	w := h.do(t, http.MethodGet, "/api/v1/reports/sync-runs", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sync-runs-")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "shopify.orders")

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/reports/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/reports/sync-runs?format=pdf", nil).Code)

	body := decode(t, h.do(t, http.MethodGet, "/api/v1/reports", nil))
	assert.Len(t, body["data"], 6)
}

func TestShopifyWebhook(t *testing.T) {
	h := newHarness(t, nil)
	integration := &models.Integration{
		BusinessCode: "teelixir",
		Provider:     models.ProviderShopify,
		Name:         "Shop",
		Credentials:  map[string]interface{}{"webhook_secret": "shh"},
	}
	require.NoError(t, store.NewIntegrations(h.db).Create(context.Background(), integration))

	payload := []byte(`{"id":42,"title":"Lions Mane","handle":"lions-mane","variants":[{"id":1,"position":1,"price":"49.95","sku":"LM-50","inventory_quantity":4,"inventory_management":"shopify"}]}`)
	path := "/webhooks/shopify/" + integration.ID

	w := h.do(t, http.MethodPost, path, payload, shopify.HeaderTopic, shopify.TopicProductsUpdate, shopify.HeaderHMAC, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sig := shopify.SignWebhook(payload, "shh")
	w = h.do(t, http.MethodPost, path, payload, shopify.HeaderTopic, shopify.TopicProductsUpdate, shopify.HeaderHMAC, sig)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var product models.Product
	require.NoError(t, h.db.First(&product, "external_id = ?", "42").Error)
	assert.Equal(t, "LM-50", product.SKU)
	assert.Equal(t, "teelixir", product.BusinessCode)

	// redelivery updates in place
	w = h.do(t, http.MethodPost, path, payload, shopify.HeaderTopic, shopify.TopicProductsUpdate, shopify.HeaderHMAC, sig)
	require.Equal(t, http.StatusOK, w.Code)
	var count int64
	h.db.Model(&models.Product{}).Count(&count)
	assert.Equal(t, int64(1), count)

	other := []byte(`{}`)
	w = h.do(t, http.MethodPost, path, other, shopify.HeaderTopic, "app/uninstalled", shopify.HeaderHMAC, shopify.SignWebhook(other, "shh"))
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingSink struct{}

func (failingSink) Upsert(context.Context, string, []string, interface{}) (int, error) {
	return 0, errors.New("connection refused")
}

func TestShopifyWebhook_StatusByFailure(t *testing.T) {
	h := newHarness(t, nil)
	integration := &models.Integration{
		BusinessCode: "teelixir",
		Provider:     models.ProviderShopify,
		Name:         "Shop",
		Credentials:  map[string]interface{}{"webhook_secret": "shh"},
	}
	require.NoError(t, store.NewIntegrations(h.db).Create(context.Background(), integration))
	path := "/webhooks/shopify/" + integration.ID

	garbage := []byte(`{"id":"not a number"`)
	w := h.do(t, http.MethodPost, path, garbage, shopify.HeaderTopic, shopify.TopicProductsUpdate, shopify.HeaderHMAC, shopify.SignWebhook(garbage, "shh"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	h.server = New(&config.Config{Env: "test"}, logger.Discard(), Deps{
		DB:           h.db,
		Sink:         failingSink{},
		Integrations: store.NewIntegrations(h.db),
		Runs:         store.NewSyncRuns(h.db),
		Issues:       store.NewIssues(h.db),
		Registry:     jobs.DefaultRegistry(),
		Runner:       h.runner,
		Requests:     h.requests,
		Exporter:     reports.New(h.db, logger.Discard()),
	})
	payload := []byte(`{"id":42,"title":"Lions Mane","handle":"lions-mane","variants":[{"id":1,"position":1,"price":"49.95","sku":"LM-50"}]}`)
	w = h.do(t, http.MethodPost, path, payload, shopify.HeaderTopic, shopify.TopicProductsUpdate, shopify.HeaderHMAC, shopify.SignWebhook(payload, "shh"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestDashboard(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now().UTC()
	require.NoError(t, h.db.Create(&models.Product{SyncedRecord: models.NewSyncedRecord("teelixir", "shopify", "1", now), Title: "A"}).Error)
	require.NoError(t, h.db.Create(&models.Issue{WorkflowID: "w", Code: "c", Severity: models.IssueSeverityCritical, Explanation: "x", FirstSeenAt: now, LastSeenAt: now}).Error)

	w := h.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["counts"].(map[string]interface{})["products"])
	assert.Equal(t, float64(1), data["products_not_ready"])
	assert.Equal(t, float64(1), data["open_issues"].(map[string]interface{})["CRITICAL"])
}

func TestAuthGuardsAPIButNotHealth(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.JWTSecret = "s3cret" })

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/v1/businesses", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", nil).Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	w := h.do(t, http.MethodGet, "/api/v1/businesses", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}
