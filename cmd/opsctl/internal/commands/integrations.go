package commands

import (
	"fmt"

	"opshub/internal/app"

	"github.com/spf13/cobra"
)

func newIntegrationsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Show configured third-party integrations",
	}

	var business string
	list := &cobra.Command{
		Use:   "list",
		Short: "List integrations with their sync status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}
			integrations, err := a.Integrations.List(cmd.Context(), business)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tBUSINESS\tPROVIDER\tNAME\tSTATUS\tLAST SYNC\tLAST ERROR")
			for _, i := range integrations {
				last := "never"
				if i.LastSyncAt != nil {
					last = i.LastSyncAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", i.ID, i.BusinessCode, i.Provider, i.Name, i.Status, last, truncate(i.LastError, 60))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&business, "business", "", "only this business code")
	cmd.AddCommand(list)
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
