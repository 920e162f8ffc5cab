package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/generator"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/service"
)

// pollInterval spaces out RunBatch calls in one-shot mode.
const pollInterval = 2 * time.Second

func newGenerateCommand(cctx *commandContext) *cobra.Command {
	var batchSize int
	var cronSpec string

	cmd := &cobra.Command{
		Use:   "generate <campaign-id>",
		Short: "Run generation batches for a campaign until none remain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}

			if cctx.cfg.GeneratorURL == "" {
				return apperrors.NewConfigMissing("content generator")
			}
			batcher := &service.GenerationBatcher{
				CampaignRepo:  cctx.campaignRepo,
				RecipientRepo: cctx.recipientRepo,
				TargetRepo:    cctx.targetRepo,
				Generator: generator.NewHTTPGenerator(
					cctx.cfg.GeneratorURL, cctx.cfg.GeneratorKey, cctx.cfg.GeneratorModel),
			}

			if cmd.Flags().Changed("cron") {
				spec := cronSpec
				if spec == "" {
					spec = cctx.cfg.CronSpecGenerate
				}
				return runScheduled(batcher, campaignID, batchSize, spec)
			}
			return runToCompletion(cmd.Context(), batcher, campaignID, batchSize)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", service.DefaultBatchSize, "recipients per batch (capped)")
	cmd.Flags().StringVar(&cronSpec, "cron", "", "run one batch on this cron schedule instead of polling to completion (empty uses CRON_SPEC_GENERATE)")

	return cmd
}

// runToCompletion repeats RunBatch until no pending recipients remain. Each
// call is an independent unit of work; partial progress survives a crash.
func runToCompletion(ctx context.Context, batcher *service.GenerationBatcher, campaignID, batchSize int) error {
	for {
		result, err := batcher.RunBatch(ctx, campaignID, batchSize)
		if err != nil {
			var inactive *apperrors.ErrCampaignInactive
			if errors.As(err, &inactive) {
				logger.Log.Info(err.Error())
				return nil
			}
			return err
		}

		logger.Log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"generated":   result.Generated,
			"errors":      result.Errors,
			"remaining":   result.Remaining,
			"total":       result.Total,
			"status":      result.CampaignStatus,
		}).Info("generation batch done")

		if result.Remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// runScheduled runs one batch per cron tick, forever.
func runScheduled(batcher *service.GenerationBatcher, campaignID, batchSize int, spec string) error {
	engine := cron.New()
	_, err := engine.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := batcher.RunBatch(ctx, campaignID, batchSize)
		if err != nil {
			logger.Log.WithError(err).WithField("campaign_id", campaignID).Error("scheduled generation batch failed")
			return
		}
		logger.Log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"generated":   result.Generated,
			"errors":      result.Errors,
			"remaining":   result.Remaining,
		}).Info("scheduled generation batch done")
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	logger.Log.WithField("cron", spec).Info("scheduled generation running")
	engine.Run()
	return nil
}
