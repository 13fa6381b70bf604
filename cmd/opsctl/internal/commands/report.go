package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"opshub/internal/app"
	"opshub/internal/reports"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newReportCommand(env *Env) *cobra.Command {
	var (
		format    string
		business  string
		threshold string
		since     time.Duration
		limit     int
		out       string
	)
	cmd := &cobra.Command{
		Use:   "report <name>",
		Short: "Export a report as CSV or XLSX",
		Long:  "report writes one of the named reports to --out, or to stdout when --out is not set. Run `opsctl report list` to see the names.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.App(app.Options{})
			if err != nil {
				return err
			}

			if args[0] == "list" {
				w := table(cmd.OutOrStdout())
				fmt.Fprintln(w, "NAME\tDESCRIPTION")
				for _, def := range a.Exporter.List() {
					fmt.Fprintf(w, "%s\t%s\n", def.Name, def.Description)
				}
				return w.Flush()
			}

			params := reports.Params{Business: business, Limit: limit}
			if threshold != "" {
				params.Threshold, err = decimal.NewFromString(threshold)
				if err != nil {
					return fmt.Errorf("invalid --threshold %q: %w", threshold, err)
				}
			}
			if since > 0 {
				params.Since = time.Now().Add(-since)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			t, err := a.Exporter.Export(cmd.Context(), args[0], format, params, w)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", len(t.Rows), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", reports.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVar(&business, "business", "", "only this business code")
	cmd.Flags().StringVar(&threshold, "threshold", "", "margin threshold for low-margin, e.g. 0.25")
	cmd.Flags().DurationVar(&since, "since", 0, "only rows newer than this, e.g. 72h")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}
