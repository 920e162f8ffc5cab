package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/mailer"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/service"
)

// errPause spaces retries after a per-recipient transport failure.
const errPause = 2 * time.Second

func newDripCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drip <campaign-id>",
		Short: "Drive the drip send loop for one campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}

			if cctx.cfg.SMTPHost == "" {
				return apperrors.NewConfigMissing("mail transport")
			}

			// One drip loop per campaign at a time. The scheduler itself is
			// lock-free; ownership is enforced here.
			lockPath := filepath.Join(cctx.cfg.LockDir, fmt.Sprintf("outreach-campaign-%d.lock", campaignID))
			lock := flock.New(lockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire campaign lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another driver already owns campaign %d", campaignID)
			}
			defer lock.Unlock()

			scheduler := &service.DripScheduler{
				CampaignRepo:  cctx.campaignRepo,
				RecipientRepo: cctx.recipientRepo,
				Transport: mailer.NewSMTPTransport(
					cctx.cfg.SMTPHost, cctx.cfg.SMTPPort, cctx.cfg.SMTPUser, cctx.cfg.SMTPPassword),
				DefaultSignature: cctx.cfg.DefaultSignature,
			}

			return runDripLoop(cmd, scheduler, campaignID)
		},
	}
	return cmd
}

func runDripLoop(cmd *cobra.Command, scheduler *service.DripScheduler, campaignID int) error {
	log := logger.Log.WithField("campaign_id", campaignID)
	log.Info("drip loop started")

	for {
		result, err := scheduler.SendNext(campaignID)
		if err != nil {
			var inactive *apperrors.ErrCampaignInactive
			if errors.As(err, &inactive) {
				log.Info(err.Error())
				return nil
			}
			return err
		}

		var wait time.Duration
		switch result.Outcome {
		case service.OutcomeSent:
			log.WithFields(map[string]interface{}{
				"to":        result.To,
				"remaining": result.RemainingApproved,
				"delay_s":   result.DelaySeconds,
			}).Info("sent")
			if result.CampaignStatus == model.CampaignCompleted {
				log.Info("campaign completed")
				return nil
			}
			wait = time.Duration(result.DelaySeconds) * time.Second
		case service.OutcomeRateLimited:
			log.WithFields(map[string]interface{}{
				"reason":        result.Reason,
				"retry_after_s": result.RetryAfterSeconds,
			}).Info("rate limited")
			wait = time.Duration(result.RetryAfterSeconds) * time.Second
		case service.OutcomeError:
			log.WithField("reason", result.Reason).Warn("send failed, moving on")
			wait = errPause
		case service.OutcomeNoneRemaining:
			log.WithField("status", result.CampaignStatus).Info("no approved recipients remain")
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(wait):
		}
	}
}
