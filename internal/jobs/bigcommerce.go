package jobs

import (
	"context"
	"time"

	"opshub/internal/models"
	"opshub/internal/services/bigcommerce"
	"opshub/internal/store"
	"opshub/internal/validation"
)

type bigCommerceJob struct {
	client      *bigcommerce.Client
	integration *models.Integration
	validator   *validation.Validator
	since       time.Time
	pageSize    int
	deps        Deps
}

func newBigCommerceJob(integration *models.Integration, deps Deps) (*bigCommerceJob, error) {
	storeHash, err := setting(integration, "store_hash")
	if err != nil {
		return nil, err
	}
	token, err := integration.Credential("access_token")
	if err != nil {
		return nil, err
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.New(deps.log())
	}
	return &bigCommerceJob{
		client:      bigcommerce.NewClient(integration.Setting("base_url", ""), storeHash, token, deps.HTTP),
		integration: integration,
		validator:   validator,
		since:       since(integration, deps.now(), 30),
		pageSize:    min(integration.SettingInt("page_size", 250), 250),
		deps:        deps,
	}, nil
}

func newBigCommerceProducts(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	j, err := newBigCommerceJob(integration, deps)
	if err != nil {
		return nil, err
	}
	return JobFunc(j.syncProducts), nil
}

func newBigCommerceOrders(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	j, err := newBigCommerceJob(integration, deps)
	if err != nil {
		return nil, err
	}
	return JobFunc(j.syncOrders), nil
}

func (j *bigCommerceJob) syncProducts(ctx context.Context, sink store.Sink) (Result, error) {
	var res Result
	brands, err := j.client.ListBrands(ctx)
	if err != nil {
		return res, err
	}
	transformer := bigcommerce.NewTransformer(
		j.integration.BusinessCode,
		j.integration.Setting("currency", "AUD"),
		j.integration.Setting("store_url", ""),
		brands,
	)
	now := j.deps.now()

	fetch := func(ctx context.Context, page int) ([]bigcommerce.Product, int, error) {
		resp, err := j.client.ListProducts(ctx, page, j.pageSize)
		if err != nil {
			return nil, 0, err
		}
		if !resp.HasMore() {
			return resp.Data, 0, nil
		}
		return resp.Data, page + 1, nil
	}
	err = drain(ctx, 1, fetch, func(products []bigcommerce.Product) error {
		res.Fetched += len(products)
		rows := make([]models.Product, len(products))
		for i := range products {
			rows[i] = transformer.TransformProduct(&products[i], now)
			j.validator.Apply(&rows[i])
		}
		return upsert(ctx, sink, "products", rows, &res)
	})
	return res, err
}

func (j *bigCommerceJob) syncOrders(ctx context.Context, sink store.Sink) (Result, error) {
	var res Result
	transformer := bigcommerce.NewTransformer(j.integration.BusinessCode, j.integration.Setting("currency", "AUD"), "", nil)
	now := j.deps.now()

	fetch := func(ctx context.Context, page int) ([]bigcommerce.Order, int, error) {
		orders, err := j.client.ListOrders(ctx, page, j.pageSize, j.since)
		if err != nil {
			return nil, 0, err
		}
		if len(orders) < j.pageSize {
			return orders, 0, nil
		}
		return orders, page + 1, nil
	}
	err := drain(ctx, 1, fetch, func(orders []bigcommerce.Order) error {
		res.Fetched += len(orders)
		rows := make([]models.Order, len(orders))
		for i := range orders {
			rows[i] = transformer.TransformOrder(&orders[i], now)
		}
		return upsert(ctx, sink, "orders", rows, &res)
	})
	return res, err
}
