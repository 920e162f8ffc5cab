package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborpress/outreach-engine/internal/config"
	"github.com/harborpress/outreach-engine/internal/db"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/repository"
)

// commandContext wires config, DB, and repositories once for every
// subcommand.
type commandContext struct {
	cfg *config.AppConfig
	db  *sql.DB

	campaignRepo  *repository.CampaignRepository
	recipientRepo *repository.RecipientRepository
	targetRepo    *repository.TargetRepository
}

func (c *commandContext) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.db = database
	c.campaignRepo = &repository.CampaignRepository{DB: database}
	c.recipientRepo = &repository.RecipientRepository{DB: database}
	c.targetRepo = &repository.TargetRepository{DB: database}
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "driver",
		Short:         "Outreach drip driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if ctx.db != nil {
				ctx.db.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newDripCommand(ctx))

	return rootCmd
}
