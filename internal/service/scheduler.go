// internal/service/scheduler.go
package service

import (
	"math/rand"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/mailer"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/repository"
)

// DripScheduler sends at most one approved recipient per call, enforcing the
// send window, the daily cap, and the inter-send jitter. It never loops or
// sleeps itself: the external driver sleeps for the returned delay between
// calls. One driver loop per campaign at a time; the core takes no lock.
type DripScheduler struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	Transport     mailer.Transport

	// DefaultSignature is the sender-level signature, overridden per
	// campaign.
	DefaultSignature []string

	// Now and Rand are injectable for tests. Rand returns a value in [0, n).
	Now  func() time.Time
	Rand func(n int) int
}

// SendOutcome classifies one SendNext call.
type SendOutcome string

const (
	OutcomeSent          SendOutcome = "sent"
	OutcomeRateLimited   SendOutcome = "rate_limited"
	OutcomeNoneRemaining SendOutcome = "none_remaining"
	OutcomeError         SendOutcome = "error"
)

// SendResult is what the driver acts on after each call.
type SendResult struct {
	Outcome           SendOutcome          `json:"outcome"`
	To                string               `json:"to,omitempty"`
	TransportID       string               `json:"transport_id,omitempty"`
	DelaySeconds      int                  `json:"delay_seconds,omitempty"`
	RetryAfterSeconds int                  `json:"retry_after_seconds,omitempty"`
	RemainingApproved int                  `json:"remaining_approved,omitempty"`
	Reason            string               `json:"reason,omitempty"`
	CampaignStatus    model.CampaignStatus `json:"campaign_status,omitempty"`
}

func (s *DripScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *DripScheduler) randInt(n int) int {
	if s.Rand != nil {
		return s.Rand(n)
	}
	return rand.Intn(n)
}

// SendNext sends the oldest approved recipient, if policy allows one right
// now. Paused or completed campaigns reject with ErrCampaignInactive so the
// driver stops looping. Rate-limit outcomes are scheduling signals carrying a
// retry-after hint, not errors.
func (s *DripScheduler) SendNext(campaignID int) (*SendResult, error) {
	if s.Transport == nil {
		return nil, apperrors.NewConfigMissing("mail transport")
	}

	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.CampaignPaused {
		return nil, apperrors.NewCampaignInactive(campaign.ID, string(campaign.Status))
	}
	// Calling again after completion is harmless and idempotent.
	if campaign.Status == model.CampaignCompleted {
		return &SendResult{Outcome: OutcomeNoneRemaining, CampaignStatus: campaign.Status}, nil
	}

	now := s.now()
	window := campaign.Window()

	if !window.Contains(now) {
		return &SendResult{
			Outcome:           OutcomeRateLimited,
			Reason:            "outside send window",
			RetryAfterSeconds: window.SecondsUntilOpen(now),
			CampaignStatus:    campaign.Status,
		}, nil
	}

	if campaign.DailySendLimit > 0 {
		sentToday, err := s.RecipientRepo.CountSentSince(campaignID, window.StartOfDay(now))
		if err != nil {
			return nil, err
		}
		if sentToday >= campaign.DailySendLimit {
			return &SendResult{
				Outcome:           OutcomeRateLimited,
				Reason:            "daily send limit reached",
				RetryAfterSeconds: window.SecondsUntilTomorrow(now),
				CampaignStatus:    campaign.Status,
			}, nil
		}
	}

	rec, err := s.RecipientRepo.NextApproved(campaignID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		counts, err := s.RecipientRepo.Counts(campaignID)
		if err != nil {
			return nil, err
		}
		if counts.Total > 0 && counts.ActiveRemaining() == 0 && campaign.Status != model.CampaignCompleted {
			if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignCompleted); err != nil {
				return nil, err
			}
			campaign.Status = model.CampaignCompleted
		}
		return &SendResult{Outcome: OutcomeNoneRemaining, CampaignStatus: campaign.Status}, nil
	}

	html := rec.BodyHTML
	if html == "" {
		html = HTMLizeBody(rec.Body)
	}
	html = AppendSignature(html, SignatureLines(campaign, s.DefaultSignature))

	transportID, err := s.Transport.Send(mailer.Message{
		From:        campaign.FromEmail,
		FromName:    campaign.FromName,
		To:          rec.Email,
		ReplyTo:     campaign.ReplyTo,
		Subject:     rec.Subject,
		HTML:        html,
		TrackOpens:  campaign.TrackOpens,
		TrackClicks: campaign.TrackClicks,
	})
	if err != nil {
		// The row drops out of the approved selection; the next call moves
		// on to the next recipient.
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"campaign_id":  campaignID,
			"recipient_id": rec.ID,
		}).Error("transport send failed")
		if uerr := s.RecipientRepo.MarkFailed(rec.ID, err.Error()); uerr != nil {
			return nil, uerr
		}
		return &SendResult{
			Outcome:        OutcomeError,
			To:             rec.Email,
			Reason:         err.Error(),
			CampaignStatus: campaign.Status,
		}, nil
	}

	if err := s.RecipientRepo.MarkSent(rec.ID, transportID, now); err != nil {
		return nil, err
	}

	if campaign.Status != model.CampaignSending {
		if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignSending); err != nil {
			return nil, err
		}
		campaign.Status = model.CampaignSending
	}

	remaining, err := s.RecipientRepo.CountByStatus(campaignID, model.RecipientApproved)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignCompleted); err != nil {
			return nil, err
		}
		campaign.Status = model.CampaignCompleted
	}

	return &SendResult{
		Outcome:           OutcomeSent,
		To:                rec.Email,
		TransportID:       transportID,
		DelaySeconds:      s.jitter(campaign.MinDelaySeconds, campaign.MaxDelaySeconds),
		RemainingApproved: remaining,
		CampaignStatus:    campaign.Status,
	}, nil
}

// jitter picks a uniform-random delay in [min, max] seconds. This is the
// human-cadence spacing between sends, not a backoff.
func (s *DripScheduler) jitter(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.randInt(max-min+1)
}
