package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opshub/internal/models"
	"opshub/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(business, externalID, title string, price string) models.Product {
	return models.Product{
		SyncedRecord: models.NewSyncedRecord(business, "shopify", externalID, time.Now()),
		Title:        title,
		Price:        decimal.RequireFromString(price),
	}
}

func TestGormSink_UpsertIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	sink := NewGormSink(db)
	ctx := context.Background()

	rows := []models.Product{
		product(models.BusinessTeelixir, "1", "Chaga", "39.95"),
		product(models.BusinessTeelixir, "2", "Reishi", "44.00"),
	}
	n, err := sink.Upsert(ctx, "products", models.SourceRefColumns, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var first models.Product
	require.NoError(t, db.First(&first, "external_id = ?", "1").Error)

	again := []models.Product{product(models.BusinessTeelixir, "1", "Chaga Mushroom", "42.50")}
	_, err = sink.Upsert(ctx, "products", models.SourceRefColumns, again)
	require.NoError(t, err)

	var count int64
	db.Model(&models.Product{}).Count(&count)
	assert.EqualValues(t, 2, count)

	var updated models.Product
	require.NoError(t, db.First(&updated, "external_id = ?", "1").Error)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "Chaga Mushroom", updated.Title)
	assert.True(t, decimal.RequireFromString("42.50").Equal(updated.Price))
}

func TestGormSink_SameExternalIDDifferentBusiness(t *testing.T) {
	db := testutil.NewDB(t)
	sink := NewGormSink(db)

	rows := []models.Product{
		product(models.BusinessTeelixir, "1", "Chaga", "39.95"),
		product(models.BusinessBuyOrganicsOnline, "1", "Chaga", "41.95"),
	}
	_, err := sink.Upsert(context.Background(), "products", models.SourceRefColumns, rows)
	require.NoError(t, err)

	var count int64
	db.Model(&models.Product{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestGormSink_EmptyAndInvalid(t *testing.T) {
	sink := NewGormSink(testutil.NewDB(t))

	n, err := sink.Upsert(context.Background(), "products", models.SourceRefColumns, []models.Product{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = sink.Upsert(context.Background(), "products", models.SourceRefColumns, models.Product{})
	assert.Error(t, err)
}

func TestSupabaseSink_StripsDatabaseOwnedKeys(t *testing.T) {
	var gotPath, gotConflict string
	var body []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConflict = r.URL.Query().Get("on_conflict")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sink, err := NewSupabaseSink(server.URL, "service-key")
	require.NoError(t, err)

	rows := []models.Product{product(models.BusinessTeelixir, "1", "Chaga", "39.95")}
	rows[0].ID = "8d7f0d9c-0000-0000-0000-000000000000"

	n, err := sink.Upsert(context.Background(), "products", models.SourceRefColumns, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "/rest/v1/products", gotPath)
	assert.Equal(t, "business_code,source,external_id", gotConflict)
	require.Len(t, body, 1)
	assert.NotContains(t, body[0], "id")
	assert.NotContains(t, body[0], "created_at")
	assert.Equal(t, "Chaga", body[0]["title"])
}
