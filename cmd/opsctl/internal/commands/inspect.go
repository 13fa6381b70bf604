package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"opshub/internal/app"
	"opshub/internal/httpx"
	"opshub/internal/jobs"
	"opshub/internal/models"
	"opshub/internal/services/merchant"
	"opshub/internal/services/shopify"
	"opshub/internal/services/smartlead"
	"opshub/internal/validation"

	"github.com/spf13/cobra"
)

func newInspectCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Look at live provider data without syncing it",
	}
	cmd.AddCommand(
		newInspectShopifyCommand(env),
		newInspectShopifyProductCommand(env),
		newInspectSmartleadCommand(env),
		newInspectMerchantCommand(env),
	)
	return cmd
}

func shopifyClient(cmd *cobra.Command, env *Env, t *target) (*shopify.Client, *models.Integration, error) {
	a, err := env.App(app.Options{})
	if err != nil {
		return nil, nil, err
	}
	integration, err := t.pick(cmd.Context(), a, models.ProviderShopify)
	if err != nil {
		return nil, nil, err
	}
	token, err := integration.Credential("access_token")
	if err != nil {
		return nil, nil, err
	}
	client := shopify.NewClient(
		integration.Setting("shop_domain", ""),
		token,
		integration.Setting("api_version", ""),
		httpx.OptionsFromConfig(a.Config, env.Logger()),
	)
	return client, integration, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInspectShopifyCommand(env *Env) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "shopify-shop",
		Short: "Print the shop details for a Shopify integration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := shopifyClient(cmd, env, &t)
			if err != nil {
				return err
			}
			shop, err := client.GetShop(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, shop)
		},
	}
	t.bind(cmd)
	return cmd
}

func newInspectShopifyProductCommand(env *Env) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "shopify-product <product-id>",
		Short: "Fetch one live Shopify product and show it as it would be synced, with feed problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			client, integration, err := shopifyClient(cmd, env, &t)
			if err != nil {
				return err
			}
			product, err := client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			transformer := shopify.NewTransformer(
				integration.BusinessCode,
				integration.Setting("currency", "AUD"),
				integration.Setting("store_url", ""),
			)
			row, err := transformer.TransformProduct(product, time.Now().UTC())
			if err != nil {
				return err
			}
			validation.New(env.Logger()).Apply(&row)
			return printJSON(cmd, row)
		},
	}
	t.bind(cmd)
	return cmd
}

func newInspectSmartleadCommand(env *Env) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "smartlead-campaigns",
		Short: "List SmartLead campaigns with their send and reply counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}
			integration, err := t.pick(cmd.Context(), a, models.ProviderSmartLead)
			if err != nil {
				return err
			}
			apiKey, err := integration.Credential("api_key")
			if err != nil {
				return err
			}
			client := smartlead.NewClient(integration.Setting("base_url", ""), apiKey, httpx.OptionsFromConfig(a.Config, env.Logger()))
			campaigns, err := client.ListCampaigns(cmd.Context())
			if err != nil {
				return err
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSENT\tOPENED\tREPLIED\tBOUNCED")
			for _, c := range campaigns {
				stats, err := client.CampaignAnalytics(cmd.Context(), c.ID)
				if err != nil {
					env.Logger().Warn("Analytics for campaign %d: %v", c.ID, err)
					fmt.Fprintf(w, "%d\t%s\t%s\t-\t-\t-\t-\n", c.ID, c.Name, c.Status)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
					c.ID, c.Name, c.Status, stats.SentCount, stats.OpenCount, stats.ReplyCount, stats.BounceCount)
			}
			return w.Flush()
		},
	}
	t.bind(cmd)
	return cmd
}

type issueCount struct {
	code        string
	description string
	offers      int
}

func newInspectMerchantCommand(env *Env) *cobra.Command {
	var (
		business string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "merchant-issues",
		Short: "Group disapproved Merchant Center offers by issue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}
			if refresh {
				if _, err := a.Runner.Run(cmd.Context(), jobs.KindMerchantStatuses, models.TriggerManual); err != nil {
					return err
				}
			}

			q := a.Database.DB.WithContext(cmd.Context()).Where("is_disapproved = ?", true)
			if business != "" {
				q = q.Where("business_code = ?", business)
			}
			var statuses []models.MerchantProductStatus
			if err := q.Find(&statuses).Error; err != nil {
				return err
			}

			counts := make(map[string]*issueCount)
			for _, s := range statuses {
				var issues []merchant.ItemLevelIssue
				if err := json.Unmarshal(s.Issues, &issues); err != nil {
					env.Logger().Warn("Offer %s has unreadable issues: %v", s.OfferID, err)
					continue
				}
				for _, issue := range issues {
					c, ok := counts[issue.Code]
					if !ok {
						c = &issueCount{code: issue.Code, description: issue.Description}
						counts[issue.Code] = c
					}
					c.offers++
				}
			}
			sorted := make([]*issueCount, 0, len(counts))
			for _, c := range counts {
				sorted = append(sorted, c)
			}
			sort.Slice(sorted, func(i, j int) bool {
				if sorted[i].offers != sorted[j].offers {
					return sorted[i].offers > sorted[j].offers
				}
				return sorted[i].code < sorted[j].code
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d disapproved offers\n\n", len(statuses))
			w := table(out)
			fmt.Fprintln(w, "OFFERS\tCODE\tDESCRIPTION")
			for _, c := range sorted {
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.offers, c.code, c.description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&business, "business", "", "only this business code")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "run merchant.statuses first")
	return cmd
}
