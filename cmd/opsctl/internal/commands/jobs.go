package commands

import (
	"fmt"
	"time"

	"opshub/internal/app"
	"opshub/internal/jobs"
	"opshub/internal/models"

	"github.com/spf13/cobra"
)

func newJobsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and run sync jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every job kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "KIND\tPROVIDER\tTABLE\tDESCRIPTION")
			for _, def := range jobs.DefaultRegistry().List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Kind, def.Provider, def.Table, def.Description)
			}
			return w.Flush()
		},
	})

	var integration string
	run := &cobra.Command{
		Use:   "run <kind>",
		Short: "Run a job now against every active integration, or one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}
			var runs []*models.SyncRun
			if integration != "" {
				run, err := a.Runner.RunIntegration(cmd.Context(), args[0], integration, models.TriggerManual)
				if run != nil {
					runs = append(runs, run)
				}
				printRuns(cmd, runs)
				return err
			}
			runs, err = a.Runner.Run(cmd.Context(), args[0], models.TriggerManual)
			printRuns(cmd, runs)
			return err
		},
	}
	run.Flags().StringVar(&integration, "integration", "", "run only this integration id")
	cmd.AddCommand(run)
	return cmd
}

func printRuns(cmd *cobra.Command, runs []*models.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No integrations ran")
		return
	}
	w := table(cmd.OutOrStdout())
	fmt.Fprintln(w, "RUN\tJOB\tBUSINESS\tSTATUS\tFETCHED\tUPSERTED\tFAILED\tTOOK\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.JobKind, r.BusinessCode, r.Status, r.Fetched, r.Upserted, r.Failed, r.Duration().Round(time.Millisecond), truncate(r.Error, 60))
	}
	w.Flush()
}
