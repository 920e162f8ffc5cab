// internal/service/batcher.go
package service

import (
	"context"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/generator"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/repository"
)

// GenerationBatcher advances pending recipients to generated, one bounded
// batch per call. Calls are idempotent: each touches only rows still pending,
// so a crash mid-batch resumes on the next call with no duplicate work.
type GenerationBatcher struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TargetRepo    repository.TargetRepositoryInterface
	Generator     generator.ContentGenerator

	// Pace is the blocking delay between successive generator calls inside
	// one batch, keeping under the upstream rate limit. Defaults to 1s.
	Pace time.Duration

	// Sleep and Now are injectable for tests.
	Sleep func(time.Duration)
	Now   func() time.Time
}

const (
	// DefaultBatchSize is used when the caller does not pick a size.
	DefaultBatchSize = 10
	// MaxBatchSize caps a single call's wall-clock time; HTTP callers have
	// their own timeouts.
	MaxBatchSize = 20
)

// BatchResult reports one RunBatch call's progress.
type BatchResult struct {
	Generated      int                  `json:"generated"`
	Errors         int                  `json:"errors"`
	Remaining      int                  `json:"remaining"`
	Total          int                  `json:"total"`
	CampaignStatus model.CampaignStatus `json:"campaign_status"`
}

func (b *GenerationBatcher) sleep(d time.Duration) {
	if b.Sleep != nil {
		b.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (b *GenerationBatcher) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *GenerationBatcher) pace() time.Duration {
	if b.Pace > 0 {
		return b.Pace
	}
	return time.Second
}

// RunBatch generates content for up to batchSize pending recipients in FIFO
// order. One recipient's failure is recorded on its row and never aborts the
// batch.
func (b *GenerationBatcher) RunBatch(ctx context.Context, campaignID, batchSize int) (*BatchResult, error) {
	if b.Generator == nil {
		return nil, apperrors.NewConfigMissing("content generator")
	}

	campaign, err := b.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Active() {
		return nil, apperrors.NewCampaignInactive(campaign.ID, string(campaign.Status))
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	rows, err := b.RecipientRepo.SelectByStatus(campaignID, model.RecipientPending, batchSize)
	if err != nil {
		return nil, err
	}

	// Only draft and ready move to generating. A campaign already sending
	// keeps its status even when a regenerated row re-enters the batch queue;
	// status never moves backwards outside pause/resume.
	if len(rows) > 0 && (campaign.Status == model.CampaignDraft || campaign.Status == model.CampaignReady) {
		if err := b.CampaignRepo.UpdateStatus(campaignID, model.CampaignGenerating); err != nil {
			return nil, err
		}
		campaign.Status = model.CampaignGenerating
	}

	prompt := generator.Prompt{
		Purpose:       campaign.Purpose,
		Tone:          campaign.Tone,
		Constraints:   campaign.Constraints,
		CallToAction:  campaign.CallToAction,
		MaxWords:      campaign.MaxWords,
		ReferenceText: campaign.ReferenceText,
	}

	result := &BatchResult{}
	for i, rec := range rows {
		if i > 0 {
			b.sleep(b.pace())
		}
		if ctx.Err() != nil {
			// Remaining rows stay pending; the next call picks them up.
			break
		}

		target, err := b.TargetRepo.GetByID(rec.TargetID)
		if err == nil && target == nil {
			err = apperrors.NewRecipientNotFound(rec.ID)
		}
		if err != nil {
			logger.Log.WithError(err).WithField("recipient_id", rec.ID).Warn("target lookup failed")
			if uerr := b.RecipientRepo.MarkGenerationError(rec.ID, err.Error()); uerr != nil {
				return nil, uerr
			}
			result.Errors++
			continue
		}

		draft, err := b.Generator.Generate(ctx, prompt, generator.Context{
			Name:    target.Name,
			Email:   rec.Email,
			Company: target.Company,
			Title:   target.Title,
			Notes:   target.Notes,
			Kind:    target.Kind,
		})
		if err != nil {
			logger.Log.WithError(err).WithField("recipient_id", rec.ID).Warn("content generation failed")
			if uerr := b.RecipientRepo.MarkGenerationError(rec.ID, err.Error()); uerr != nil {
				return nil, uerr
			}
			result.Errors++
			continue
		}

		html := HTMLizeBody(draft.Body)
		if err := b.RecipientRepo.MarkGenerated(rec.ID, draft.Subject, draft.Body, html, b.now()); err != nil {
			return nil, err
		}
		result.Generated++
	}

	counts, err := b.RecipientRepo.Counts(campaignID)
	if err != nil {
		return nil, err
	}
	result.Remaining = counts.Pending
	result.Total = counts.Total

	if counts.Pending == 0 && campaign.Status == model.CampaignGenerating {
		if err := b.CampaignRepo.UpdateStatus(campaignID, model.CampaignReady); err != nil {
			return nil, err
		}
		campaign.Status = model.CampaignReady
	}
	result.CampaignStatus = campaign.Status

	return result, nil
}
