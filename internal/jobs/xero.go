package jobs

import (
	"context"

	"opshub/internal/httpx"
	"opshub/internal/models"
	"opshub/internal/services/xero"
	"opshub/internal/store"
)

// Xero rotates the refresh token on every use; the oauth wrapper stores it.
func newXeroInvoices(ctx context.Context, integration *models.Integration, deps Deps) (Job, error) {
	tenantID, err := setting(integration, "tenant_id")
	if err != nil {
		return nil, err
	}
	httpClient, wrap, err := oauthClient(ctx, integration, deps, httpx.XeroEndpoint, "offline_access", "accounting.transactions.read")
	if err != nil {
		return nil, err
	}
	client := xero.NewClient(integration.Setting("base_url", ""), tenantID, httpClient, deps.HTTP)
	modifiedSince := since(integration, deps.now(), 90)

	return wrap(JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, page int) ([]xero.Invoice, int, error) {
			invoices, err := client.ListInvoices(ctx, page, modifiedSince)
			if err != nil {
				return nil, 0, err
			}
			if len(invoices) < xero.PageSize {
				return invoices, 0, nil
			}
			return invoices, page + 1, nil
		}
		err := drain(ctx, 1, fetch, func(invoices []xero.Invoice) error {
			res.Fetched += len(invoices)
			rows := make([]models.Invoice, len(invoices))
			for i := range invoices {
				rows[i] = invoices[i].ToModel(integration.BusinessCode, now)
			}
			return upsert(ctx, sink, "invoices", rows, &res)
		})
		return res, err
	})), nil
}
