package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"brainbolt/internal/config"
	pgstore "brainbolt/internal/infra/postgres"
	"brainbolt/internal/integrity"
	"brainbolt/internal/seed"
)

// NewSeedCmd loads the built-in question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			verifier := integrity.NewVerifier(cfg.Quiz.AnswerSecret)
			return seed.Seed(ctx, pgstore.NewStore(pool), nil, verifier)
		},
	}
}
