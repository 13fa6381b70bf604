package jobs

import (
	"context"
	"fmt"
	"strings"

	"opshub/internal/httpx"
	"opshub/internal/models"
	"opshub/internal/services/gmail"
	"opshub/internal/services/merchant"
	"opshub/internal/store"
)

func newGmailMessages(ctx context.Context, integration *models.Integration, deps Deps) (Job, error) {
	httpClient, wrap, err := oauthClient(ctx, integration, deps, httpx.GoogleEndpoint, gmail.ScopeReadonly)
	if err != nil {
		return nil, err
	}
	user := integration.Setting("user", "me")
	client := gmail.NewClient(integration.Setting("base_url", ""), user, httpClient, deps.HTTP)
	mailbox := integration.Setting("mailbox", user)

	query := strings.TrimSpace(integration.Setting("query", "-in:chats"))
	query = fmt.Sprintf("%s after:%d", query, since(integration, deps.now(), 2).Unix())
	pageSize := integration.SettingInt("page_size", 100)
	log := deps.log()

	return wrap(JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, pageToken string) ([]gmail.MessageRef, string, error) {
			page, err := client.ListMessages(ctx, query, pageToken, pageSize)
			if err != nil {
				return nil, "", err
			}
			return page.Messages, page.NextPageToken, nil
		}
		err := drain(ctx, "", fetch, func(refs []gmail.MessageRef) error {
			res.Fetched += len(refs)
			rows := make([]models.EmailMessage, 0, len(refs))
			for _, ref := range refs {
				msg, err := client.GetMessage(ctx, ref.ID)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					res.Failed++
					log.Warn("Skipping message %s: %v", ref.ID, err)
					continue
				}
				rows = append(rows, msg.ToModel(integration.BusinessCode, mailbox, now))
			}
			return upsert(ctx, sink, "email_messages", rows, &res)
		})
		return res, err
	})), nil
}

func newMerchantStatuses(ctx context.Context, integration *models.Integration, deps Deps) (Job, error) {
	merchantID, err := setting(integration, "merchant_id")
	if err != nil {
		return nil, err
	}
	httpClient, wrap, err := oauthClient(ctx, integration, deps, httpx.GoogleEndpoint, merchant.ScopeContent)
	if err != nil {
		return nil, err
	}
	client := merchant.NewClient(integration.Setting("base_url", ""), merchantID, httpClient, deps.HTTP)

	return wrap(JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, pageToken string) ([]merchant.ProductStatus, string, error) {
			page, err := client.ListProductStatuses(ctx, pageToken)
			if err != nil {
				return nil, "", err
			}
			return page.Resources, page.NextPageToken, nil
		}
		err := drain(ctx, "", fetch, func(statuses []merchant.ProductStatus) error {
			res.Fetched += len(statuses)
			rows := make([]models.MerchantProductStatus, len(statuses))
			for i := range statuses {
				rows[i] = statuses[i].ToModel(integration.BusinessCode, now)
			}
			return upsert(ctx, sink, "merchant_product_statuses", rows, &res)
		})
		return res, err
	})), nil
}
