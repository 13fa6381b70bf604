package jobs

import (
	"context"
	"time"

	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/services/shopify"
	"opshub/internal/store"
	"opshub/internal/validation"
)

func newShopifyClient(integration *models.Integration, deps Deps) (*shopify.Client, *shopify.Transformer, error) {
	domain, err := setting(integration, "shop_domain")
	if err != nil {
		return nil, nil, err
	}
	token, err := integration.Credential("access_token")
	if err != nil {
		return nil, nil, err
	}
	client := shopify.NewClient(domain, token, integration.Setting("api_version", ""), deps.HTTP)
	transformer := shopify.NewTransformer(
		integration.BusinessCode,
		integration.Setting("currency", "AUD"),
		integration.Setting("store_url", ""),
	)
	return client, transformer, nil
}

type shopifyProducts struct {
	client      *shopify.Client
	transformer *shopify.Transformer
	validator   *validation.Validator
	pageSize    int
	deps        Deps
	logger      *logger.Logger
}

func newShopifyProducts(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	client, transformer, err := newShopifyClient(integration, deps)
	if err != nil {
		return nil, err
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.New(deps.log())
	}
	return &shopifyProducts{
		client:      client,
		transformer: transformer,
		validator:   validator,
		pageSize:    integration.SettingInt("page_size", 250),
		deps:        deps,
		logger:      deps.log(),
	}, nil
}

func (j *shopifyProducts) Run(ctx context.Context, sink store.Sink) (Result, error) {
	var res Result
	now := j.deps.now()

	fetch := func(ctx context.Context, pageInfo string) ([]shopify.Product, string, error) {
		page, err := j.client.ListProducts(ctx, pageInfo, j.pageSize)
		if err != nil {
			return nil, "", err
		}
		return page.Products, page.NextPage, nil
	}
	err := drain(ctx, "", fetch, func(products []shopify.Product) error {
		res.Fetched += len(products)
		rows := make([]models.Product, 0, len(products))
		for i := range products {
			row, err := j.transformer.TransformProduct(&products[i], now)
			if err != nil {
				res.Failed++
				j.logger.Warn("Skipping product: %v", err)
				continue
			}
			j.validator.Apply(&row)
			rows = append(rows, row)
		}
		return upsert(ctx, sink, "products", rows, &res)
	})
	return res, err
}

type shopifyOrders struct {
	client      *shopify.Client
	transformer *shopify.Transformer
	since       time.Time
	pageSize    int
	deps        Deps
	logger      *logger.Logger
}

func newShopifyOrders(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	client, transformer, err := newShopifyClient(integration, deps)
	if err != nil {
		return nil, err
	}
	return &shopifyOrders{
		client:      client,
		transformer: transformer,
		since:       since(integration, deps.now(), 30),
		pageSize:    integration.SettingInt("page_size", 250),
		deps:        deps,
		logger:      deps.log(),
	}, nil
}

func (j *shopifyOrders) Run(ctx context.Context, sink store.Sink) (Result, error) {
	var res Result
	now := j.deps.now()

	fetch := func(ctx context.Context, pageInfo string) ([]shopify.Order, string, error) {
		page, err := j.client.ListOrders(ctx, pageInfo, j.since, j.pageSize)
		if err != nil {
			return nil, "", err
		}
		return page.Orders, page.NextPage, nil
	}
	err := drain(ctx, "", fetch, func(orders []shopify.Order) error {
		res.Fetched += len(orders)
		rows := make([]models.Order, 0, len(orders))
		for i := range orders {
			row, err := j.transformer.TransformOrder(&orders[i], now)
			if err != nil {
				res.Failed++
				j.logger.Warn("Skipping order: %v", err)
				continue
			}
			rows = append(rows, row)
		}
		return upsert(ctx, sink, "orders", rows, &res)
	})
	return res, err
}
