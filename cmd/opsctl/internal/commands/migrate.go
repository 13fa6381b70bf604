package commands

import (
	"fmt"

	"opshub/internal/migrate"

	"github.com/spf13/cobra"
)

func newMigrateCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or list the Postgres schema migrations",
	}

	open := func() (*migrate.Migrator, func(), error) {
		cfg, err := env.Config()
		if err != nil {
			return nil, nil, err
		}
		db, err := migrate.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return migrate.New(db, migrate.Files(), env.Logger()), func() { db.Close() }, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			applied, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", version)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			migrations, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "VERSION\tAPPLIED")
			for _, mig := range migrations {
				at := "pending"
				if mig.AppliedAt != nil {
					at = mig.AppliedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\n", mig.Version, at)
			}
			return w.Flush()
		},
	})
	return cmd
}
