package jobs

import (
	"context"

	"opshub/internal/models"
	"opshub/internal/services/klaviyo"
	"opshub/internal/store"
)

func newKlaviyoCampaigns(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	apiKey, err := integration.Credential("api_key")
	if err != nil {
		return nil, err
	}
	client := klaviyo.NewClient(integration.Setting("base_url", ""), apiKey, deps.HTTP)
	metricID := integration.Setting("conversion_metric_id", "")
	log := deps.log()
	if metricID == "" {
		log.Warn("No conversion_metric_id on %s, campaigns sync without stats", integration.Name)
	}

	return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, next string) ([]klaviyo.Campaign, string, error) {
			page, err := client.ListCampaigns(ctx, next)
			if err != nil {
				return nil, "", err
			}
			return page.Data, page.Links.Next, nil
		}
		err := drain(ctx, "", fetch, func(campaigns []klaviyo.Campaign) error {
			res.Fetched += len(campaigns)
			ids := make([]string, len(campaigns))
			for i := range campaigns {
				ids[i] = campaigns[i].ID
			}
			// Without stats the upsert would zero the counts stored earlier.
			stats, err := client.CampaignStats(ctx, ids, metricID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.Failed += len(campaigns)
				log.Warn("Skipping %d campaigns, stats unavailable: %v", len(campaigns), err)
				return nil
			}

			rows := make([]models.Campaign, len(campaigns))
			for i := range campaigns {
				rows[i] = campaigns[i].ToModel(integration.BusinessCode, stats[campaigns[i].ID], now)
			}
			return upsert(ctx, sink, "campaigns", rows, &res)
		})
		return res, err
	}), nil
}
