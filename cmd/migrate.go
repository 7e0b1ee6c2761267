package cmd

import (
	"github.com/spf13/cobra"

	"janus-rag/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := migrations.Open(cfg.PostgresDSN())
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		switch args[0] {
		case "up":
			err = migrations.Up(ctx, db)
		case "down":
			err = migrations.Down(ctx, db)
		default:
			return migrations.Status(ctx, db)
		}
		if err != nil {
			return err
		}
		log.Info(ctx, "migrations finished", "direction", args[0])
		return nil
	},
}
