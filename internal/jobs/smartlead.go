package jobs

import (
	"context"

	"opshub/internal/models"
	"opshub/internal/services/smartlead"
	"opshub/internal/store"
)

func newSmartLeadClient(integration *models.Integration, deps Deps) (*smartlead.Client, error) {
	apiKey, err := integration.Credential("api_key")
	if err != nil {
		return nil, err
	}
	return smartlead.NewClient(integration.Setting("base_url", ""), apiKey, deps.HTTP), nil
}

func newSmartLeadCampaigns(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	client, err := newSmartLeadClient(integration, deps)
	if err != nil {
		return nil, err
	}
	log := deps.log()

	return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		campaigns, err := client.ListCampaigns(ctx)
		if err != nil {
			return res, err
		}
		res.Fetched = len(campaigns)
		now := deps.now()

		rows := make([]models.Campaign, 0, len(campaigns))
		for i := range campaigns {
			analytics, err := client.CampaignAnalytics(ctx, campaigns[i].ID)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed++
				log.Warn("Skipping campaign %d, analytics unavailable: %v", campaigns[i].ID, err)
				continue
			}
			rows = append(rows, campaigns[i].ToModel(integration.BusinessCode, analytics, now))
		}
		err = upsert(ctx, sink, "campaigns", rows, &res)
		return res, err
	}), nil
}

func newSmartLeadLeads(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	client, err := newSmartLeadClient(integration, deps)
	if err != nil {
		return nil, err
	}
	pageSize := integration.SettingInt("page_size", 100)

	return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		campaigns, err := client.ListCampaigns(ctx)
		if err != nil {
			return res, err
		}
		now := deps.now()

		for _, campaign := range campaigns {
			campaignID := campaign.ID
			fetch := func(ctx context.Context, offset int) ([]smartlead.Lead, int, error) {
				page, err := client.ListLeads(ctx, campaignID, offset, pageSize)
				if err != nil {
					return nil, 0, err
				}
				next := offset + len(page.Data)
				if len(page.Data) == 0 || next >= int(page.TotalLeads) {
					next = 0
				}
				return page.Data, next, nil
			}
			err := drain(ctx, 0, fetch, func(leads []smartlead.Lead) error {
				res.Fetched += len(leads)
				rows := make([]models.Contact, len(leads))
				for i := range leads {
					rows[i] = leads[i].ToModel(integration.BusinessCode, campaignID, now)
				}
				return upsert(ctx, sink, "contacts", rows, &res)
			})
			if err != nil {
				return res, err
			}
		}
		return res, nil
	}), nil
}
