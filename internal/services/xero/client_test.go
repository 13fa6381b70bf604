package xero

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opshub/internal/httpx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListInvoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Invoices", r.URL.Path)
		assert.Equal(t, "tenant-1", r.Header.Get("xero-tenant-id"))
		assert.Equal(t, "UpdatedDateUTC>=DateTime(2026,02,01,09,30,00)", r.URL.Query().Get("where"))
		w.Write([]byte(`{"Invoices":[{"InvoiceID":"inv-1","InvoiceNumber":"INV-0042","Type":"ACCREC","Status":"AUTHORISED",
			"Total":1100.00,"AmountDue":550.5,"CurrencyCode":"AUD","DateString":"2026-02-01T00:00:00","DueDateString":"2026-02-15T00:00:00",
			"UpdatedDateUTC":"/Date(1769938200000+0000)/","Contact":{"Name":"Wholefoods Co"}}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "tenant-1", server.Client(), httpx.Options{})
	invoices, err := c.ListInvoices(context.Background(), 1, time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	row := invoices[0].ToModel("elevate", time.Now())
	assert.Equal(t, "INV-0042", row.Number)
	assert.Equal(t, "Wholefoods Co", row.ContactName)
	assert.Equal(t, "550.5", row.AmountDue.String())
	require.NotNil(t, row.DueDate)
	assert.True(t, row.Overdue(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("/Date(1769938200000+0000)/")
	require.True(t, ok)
	assert.Equal(t, int64(1769938200), got.Unix())

	got, ok = ParseDate("2026-02-15T00:00:00")
	require.True(t, ok)
	assert.Equal(t, 15, got.Day())

	_, ok = ParseDate("garbage")
	assert.False(t, ok)
}
