package jobs

import (
	"context"

	"opshub/internal/models"
	"opshub/internal/services/hubspot"
	"opshub/internal/store"
)

func newHubSpotContacts(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	token, err := integration.Credential("access_token")
	if err != nil {
		return nil, err
	}
	client := hubspot.NewClient(integration.Setting("base_url", ""), token, deps.HTTP)
	pageSize := integration.SettingInt("page_size", 100)

	return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, after string) ([]hubspot.Contact, string, error) {
			page, err := client.ListContacts(ctx, after, pageSize)
			if err != nil {
				return nil, "", err
			}
			return page.Results, page.NextAfter(), nil
		}
		err := drain(ctx, "", fetch, func(contacts []hubspot.Contact) error {
			res.Fetched += len(contacts)
			rows := make([]models.Contact, 0, len(contacts))
			for i := range contacts {
				if contacts[i].Archived {
					continue
				}
				rows = append(rows, contacts[i].ToModel(integration.BusinessCode, now))
			}
			return upsert(ctx, sink, "contacts", rows, &res)
		})
		return res, err
	}), nil
}
