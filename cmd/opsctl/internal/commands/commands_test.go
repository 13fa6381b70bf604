package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opshub/internal/database"
	"opshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	url := "sqlite://" + filepath.Join(dir, "ops.db")
	t.Setenv("DATABASE_URL", url)
	t.Setenv("STORE_BACKEND", "gorm")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("RESOLVER_RULES_FILE", filepath.Join(dir, "missing.yaml"))
	t.Setenv("LOG_LEVEL", "error")
	return url
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestJobsList(t *testing.T) {
	out, err := execute(t, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "shopify.products")
	assert.Contains(t, out, "n8n.resolve")
}

func TestIntegrationsList(t *testing.T) {
	url := setupEnv(t)

	db, err := database.New(url, "silent")
	require.NoError(t, err)
	require.NoError(t, db.DB.Create(&models.Integration{
		BusinessCode: models.BusinessTeelixir,
		Provider:     models.ProviderShopify,
		Name:         "Teelixir Shopify",
		Status:       models.IntegrationStatusActive,
		Config:       datatypes.JSONMap{"shop_domain": "teelixir.myshopify.com"},
	}).Error)
	require.NoError(t, db.Close())

	out, err := execute(t, "integrations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Teelixir Shopify")
	assert.Contains(t, out, "never")

	out, err = execute(t, "integrations", "list", "--business", "elevate")
	require.NoError(t, err)
	assert.NotContains(t, out, "Teelixir Shopify")
}

func TestInspectShopifyProduct(t *testing.T) {
	url := setupEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/products/42.json"), r.URL.Path)
		w.Write([]byte(`{"product":{"id":42,"title":"Chaga Mushroom","vendor":"Teelixir","handle":"chaga","status":"active",
			"variants":[{"id":421,"price":"29.95","sku":"CH-100","position":1,"inventory_quantity":5,"barcode":"9344949000181"}],
			"images":[{"id":1,"src":"https://cdn.example/chaga.jpg"}]}}`))
	}))
	defer server.Close()

	db, err := database.New(url, "silent")
	require.NoError(t, err)
	require.NoError(t, db.DB.Create(&models.Integration{
		BusinessCode: models.BusinessTeelixir,
		Provider:     models.ProviderShopify,
		Name:         "Teelixir Shopify",
		Status:       models.IntegrationStatusActive,
		Config:       datatypes.JSONMap{"shop_domain": server.URL},
		Credentials:  datatypes.JSONMap{"access_token": "shpat_test"},
	}).Error)
	require.NoError(t, db.Close())

	out, err := execute(t, "inspect", "shopify-product", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Chaga Mushroom")
	assert.Contains(t, out, "CH-100")
	assert.Contains(t, out, `"feed_ready"`)

	_, err = execute(t, "inspect", "shopify-product", "abc")
	require.Error(t, err)
}

func TestReportToFile(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "products.csv")

	_, err := execute(t, "report", "products", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "Business,Source,SKU,Title"), header)
}

func TestReportList(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "report", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "low-margin")
	assert.Contains(t, out, "overdue-invoices")
}

func TestReportRejectsUnknownName(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "report", "nope")
	require.Error(t, err)
}

func TestReportRejectsBadThreshold(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "report", "low-margin", "--threshold", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--threshold")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
