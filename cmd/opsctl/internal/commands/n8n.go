package commands

import (
	"fmt"
	"strings"

	"opshub/internal/app"
	"opshub/internal/httpx"
	"opshub/internal/jobs"
	"opshub/internal/models"
	"opshub/internal/resolver"
	"opshub/internal/services/n8n"

	"github.com/spf13/cobra"
)

func newN8NCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "n8n",
		Short: "Check and fix n8n workflows",
	}

	var apply bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Detect workflow problems, record them as issues and print the report",
		Long: `check runs the n8n resolver against every active n8n integration.
Without --apply it is a dry run: fixes are described but not made.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			a, err := env.App(app.Options{
				Apply:    apply,
				OnReport: func(report *resolver.Report) {
					fmt.Fprintln(out, report.Markdown())
				},
			})
			if err != nil {
				return err
			}
			_, err = a.Runner.Run(cmd.Context(), jobs.KindN8NResolve, models.TriggerManual)
			return err
		},
	}
	check.Flags().BoolVar(&apply, "apply", false, "apply automatic fixes")
	cmd.AddCommand(check)

	var t target
	workflows := &cobra.Command{
		Use:   "workflows",
		Short: "List workflows with their trigger and error settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}
			integration, err := t.pick(cmd.Context(), a, models.ProviderN8N)
			if err != nil {
				return err
			}
			apiKey, err := integration.Credential("api_key")
			if err != nil {
				return err
			}
			client := n8n.NewClient(integration.Setting("base_url", ""), apiKey, httpx.OptionsFromConfig(a.Config, env.Logger()))
			all, err := client.AllWorkflows(cmd.Context())
			if err != nil {
				return err
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tTRIGGER\tERROR WORKFLOW\tTAGS")
			for i := range all {
				wf := &all[i]
				tags := make([]string, len(wf.Tags))
				for j, tag := range wf.Tags {
					tags[j] = tag.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
					wf.ID, wf.Name, wf.Active, wf.Trigger(), wf.Setting("errorWorkflow"), strings.Join(tags, ","))
			}
			return w.Flush()
		},
	}
	t.bind(workflows)
	cmd.AddCommand(workflows)
	return cmd
}
