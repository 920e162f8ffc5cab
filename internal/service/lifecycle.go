// internal/service/lifecycle.go
package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/repository"
)

// CampaignLifecycle owns campaign creation, the recipient snapshot, and
// campaign-level status transitions driven by operators.
type CampaignLifecycle struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TargetRepo    repository.TargetRepositoryInterface

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// insertBatchSize bounds one bulk-insert statement; a failed batch never
// rolls back batches already committed.
const insertBatchSize = 500

// BuildReport summarizes recipient creation for one campaign.
type BuildReport struct {
	Created          int `json:"created"`
	SkippedNoAddress int `json:"skipped_no_address"`
	SkippedCooldown  int `json:"skipped_cooldown"`
	FailedInserts    int `json:"failed_inserts"`
}

func (l *CampaignLifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// CreateCampaign persists the campaign and snapshots its recipient set from
// the targets matching filter at this moment. Targets with no resolvable
// address are dropped, never inserted. Targets contacted within the
// cooldown period (measured from the start of the current UTC day) are
// likewise excluded.
func (l *CampaignLifecycle) CreateCampaign(c *model.Campaign, filter model.TargetFilter) (*BuildReport, error) {
	if err := validatePolicy(c); err != nil {
		return nil, err
	}

	targets, err := l.TargetRepo.ListByFilter(filter)
	if err != nil {
		return nil, err
	}

	report := &BuildReport{}

	type candidate struct {
		target *model.Target
		email  string
	}
	candidates := []candidate{}
	targetIDs := []int{}
	for _, t := range targets {
		email, err := l.resolveEmail(t)
		if err != nil {
			return nil, err
		}
		if email == "" {
			report.SkippedNoAddress++
			continue
		}
		candidates = append(candidates, candidate{target: t, email: email})
		targetIDs = append(targetIDs, t.ID)
	}

	contacted := map[int]bool{}
	if c.CooldownDays > 0 && len(targetIDs) > 0 {
		nowUTC := l.now().UTC()
		dayStart := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
		since := dayStart.AddDate(0, 0, -c.CooldownDays)
		contacted, err = l.RecipientRepo.RecentlyContactedTargets(targetIDs, since)
		if err != nil {
			return nil, err
		}
	}

	if err := l.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	rows := []*model.Recipient{}
	for _, cand := range candidates {
		if contacted[cand.target.ID] {
			report.SkippedCooldown++
			continue
		}
		rows = append(rows, &model.Recipient{
			CampaignID: c.ID,
			TargetID:   cand.target.ID,
			Email:      cand.email,
		})
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := l.RecipientRepo.BulkInsert(rows[start:end])
		if err != nil {
			logger.Log.WithError(err).WithField("campaign_id", c.ID).
				Warn("recipient batch insert failed, continuing with next batch")
			report.FailedInserts += end - start
			continue
		}
		report.Created += n
	}

	return report, nil
}

// resolveEmail returns the target's own address, the related contact's
// address as a fallback, or "" when no sendable address exists.
func (l *CampaignLifecycle) resolveEmail(t *model.Target) (string, error) {
	email := strings.TrimSpace(t.Email)
	if email == "" && t.ContactID != nil {
		var err error
		email, err = l.TargetRepo.FallbackEmail(*t.ContactID)
		if err != nil {
			return "", err
		}
		email = strings.TrimSpace(email)
	}
	if email == "" {
		return "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil
	}
	return email, nil
}

func validatePolicy(c *model.Campaign) error {
	if c.WindowStartHour < 0 || c.WindowStartHour > 23 || c.WindowEndHour < 1 || c.WindowEndHour > 24 {
		return fmt.Errorf("send window hours must be within the day")
	}
	if c.WindowStartHour >= c.WindowEndHour {
		return fmt.Errorf("window_start_hour must be before window_end_hour")
	}
	if c.MinDelaySeconds < 0 || c.MaxDelaySeconds < c.MinDelaySeconds {
		return fmt.Errorf("delay range is invalid")
	}
	if c.DailySendLimit < 1 {
		return fmt.Errorf("daily_send_limit must be at least 1")
	}
	if c.CooldownDays < 0 {
		return fmt.Errorf("cooldown_days cannot be negative")
	}
	if strings.TrimSpace(c.FromEmail) == "" {
		return fmt.Errorf("from_email is required")
	}
	return nil
}

// GetCampaign returns the campaign with its recipient counts, reconciling a
// stale "sending" status against the aggregates before returning.
func (l *CampaignLifecycle) GetCampaign(id int) (*model.Campaign, model.RecipientCounts, error) {
	campaign, err := l.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, model.RecipientCounts{}, err
	}
	counts, err := l.RecipientRepo.Counts(id)
	if err != nil {
		return nil, model.RecipientCounts{}, err
	}

	if reconciled := ReconcileStatus(campaign.Status, counts); reconciled != campaign.Status {
		if err := l.CampaignRepo.UpdateStatus(id, reconciled); err != nil {
			return nil, model.RecipientCounts{}, err
		}
		campaign.Status = reconciled
	}
	return campaign, counts, nil
}

// ReconcileStatus recomputes campaign status from recipient aggregates. A
// campaign observed in "sending" with nothing left to send missed its
// completed transition (e.g. a driver crash after the last send) and heals
// here on read.
func ReconcileStatus(stored model.CampaignStatus, counts model.RecipientCounts) model.CampaignStatus {
	if stored == model.CampaignSending && counts.Total > 0 && counts.ActiveRemaining() == 0 {
		return model.CampaignCompleted
	}
	return stored
}

// RecipientCounts returns the per-status aggregate for a campaign.
func (l *CampaignLifecycle) RecipientCounts(campaignID int) (model.RecipientCounts, error) {
	if _, err := l.CampaignRepo.GetByID(campaignID); err != nil {
		return model.RecipientCounts{}, err
	}
	return l.RecipientRepo.Counts(campaignID)
}

// ListCampaigns fetches campaigns with pagination.
func (l *CampaignLifecycle) ListCampaigns(page, pageSize int, status string) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := l.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// Pause stops the drip loop at its next SendNext call. An in-flight
// transport call is never interrupted.
func (l *CampaignLifecycle) Pause(campaignID int) error {
	campaign, err := l.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignCompleted {
		return apperrors.NewCampaignInactive(campaignID, string(campaign.Status))
	}
	return l.CampaignRepo.UpdateStatus(campaignID, model.CampaignPaused)
}

// Resume moves a paused campaign back to the state its recipient aggregates
// imply.
func (l *CampaignLifecycle) Resume(campaignID int) error {
	campaign, err := l.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignPaused {
		return fmt.Errorf("campaign %d is not paused", campaignID)
	}
	counts, err := l.RecipientRepo.Counts(campaignID)
	if err != nil {
		return err
	}
	return l.CampaignRepo.UpdateStatus(campaignID, resumeStatus(counts))
}

func resumeStatus(counts model.RecipientCounts) model.CampaignStatus {
	switch {
	case counts.Total > 0 && counts.ActiveRemaining() == 0:
		return model.CampaignCompleted
	case counts.Pending > 0:
		return model.CampaignGenerating
	case counts.Approved > 0 && counts.Sent > 0:
		return model.CampaignSending
	case counts.Approved > 0 || counts.Generated > 0:
		return model.CampaignReady
	default:
		return model.CampaignDraft
	}
}

// ApproveRecipient promotes a generated recipient into the send queue.
func (l *CampaignLifecycle) ApproveRecipient(recipientID int) error {
	rec, err := l.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.NewRecipientNotFound(recipientID)
	}
	// Failed sends keep their generated content, so re-approval puts them
	// straight back in the send queue.
	switch rec.Status {
	case model.RecipientGenerated, model.RecipientApproved, model.RecipientFailed:
	default:
		return fmt.Errorf("recipient %d cannot be approved from status %s", recipientID, rec.Status)
	}
	return l.RecipientRepo.SetApproval(recipientID, model.RecipientApproved, true)
}

// UnapproveRecipient revokes approval without destroying generated content.
func (l *CampaignLifecycle) UnapproveRecipient(recipientID int) error {
	rec, err := l.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.NewRecipientNotFound(recipientID)
	}
	if rec.Status != model.RecipientApproved {
		return fmt.Errorf("recipient %d is not approved", recipientID)
	}
	return l.RecipientRepo.SetApproval(recipientID, model.RecipientGenerated, false)
}

// SuppressRecipient takes a recipient out of all further generate/send work,
// e.g. after an out-of-band do-not-contact request. Rows that already reached
// a send state cannot be suppressed.
func (l *CampaignLifecycle) SuppressRecipient(recipientID int) error {
	rec, err := l.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.NewRecipientNotFound(recipientID)
	}
	if rec.Status.SentFamily() || rec.Status == model.RecipientFailed {
		return fmt.Errorf("recipient %d already reached %s and cannot be suppressed", recipientID, rec.Status)
	}
	return l.RecipientRepo.Suppress(recipientID)
}

// DeleteRecipient hard-removes a recipient before any send happened. Sent
// rows are history and cannot be deleted.
func (l *CampaignLifecycle) DeleteRecipient(recipientID int) error {
	rec, err := l.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.NewRecipientNotFound(recipientID)
	}
	if rec.SentAt != nil {
		return fmt.Errorf("recipient %d has a send on record and cannot be deleted", recipientID)
	}
	return l.RecipientRepo.Delete(recipientID)
}

// RegenerateRecipient puts a generated, errored, or transport-failed
// recipient back in the batcher's queue. Only rows with an actual delivery on
// record are untouchable.
func (l *CampaignLifecycle) RegenerateRecipient(recipientID int) error {
	rec, err := l.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.NewRecipientNotFound(recipientID)
	}
	if rec.Status.SentFamily() {
		return fmt.Errorf("recipient %d already reached %s and cannot be regenerated", recipientID, rec.Status)
	}
	return l.RecipientRepo.ResetToPending(recipientID)
}

// ApproveAll promotes every generated recipient in the campaign.
func (l *CampaignLifecycle) ApproveAll(campaignID int) (int, error) {
	if _, err := l.CampaignRepo.GetByID(campaignID); err != nil {
		return 0, err
	}
	return l.RecipientRepo.ApproveAllGenerated(campaignID)
}

// ListRecipients fetches a campaign's recipients, optionally by status.
func (l *CampaignLifecycle) ListRecipients(campaignID int, status string, page, pageSize int) ([]*model.Recipient, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return l.RecipientRepo.ListByCampaign(campaignID, status, (page-1)*pageSize, pageSize)
}
