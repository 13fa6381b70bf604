package commands

import (
	"context"
	"fmt"

	"opshub/internal/app"
	"opshub/internal/models"

	"github.com/spf13/cobra"
)

type target struct {
	integration string
	business    string
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.integration, "integration", "", "integration id")
	cmd.Flags().StringVar(&t.business, "business", "", "business code, used when --integration is not set")
}

// pick resolves the single integration a command should talk to.
func (t *target) pick(ctx context.Context, a *app.App, provider models.Provider) (*models.Integration, error) {
	if t.integration != "" {
		integration, err := a.Integrations.Get(ctx, t.integration)
		if err != nil {
			return nil, fmt.Errorf("integration %s: %w", t.integration, err)
		}
		if integration.Provider != provider {
			return nil, fmt.Errorf("integration %s is %s, not %s", integration.ID, integration.Provider, provider)
		}
		return integration, nil
	}

	all, err := a.Integrations.ListActive(ctx, provider)
	if err != nil {
		return nil, err
	}
	var matches []models.Integration
	for _, i := range all {
		if t.business == "" || i.BusinessCode == t.business {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no active %s integration found", provider)
	case 1:
		return &matches[0], nil
	}
	return nil, fmt.Errorf("%d %s integrations match, pass --integration or --business", len(matches), provider)
}
