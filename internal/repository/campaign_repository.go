package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	UpdateStatus(campaignID int, status model.CampaignStatus) error
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, status, purpose, tone, constraints, call_to_action, max_words,
	reference_text, window_start_hour, window_end_hour, min_delay_seconds, max_delay_seconds,
	daily_send_limit, cooldown_days, timezone, from_email, from_name, reply_to, signature,
	track_opens, track_clicks, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (name, status, purpose, tone, constraints, call_to_action, max_words,
            reference_text, window_start_hour, window_end_hour, min_delay_seconds, max_delay_seconds,
            daily_send_limit, cooldown_days, timezone, from_email, from_name, reply_to, signature,
            track_opens, track_clicks, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Status, c.Purpose, c.Tone, c.Constraints, c.CallToAction, c.MaxWords,
		c.ReferenceText, c.WindowStartHour, c.WindowEndHour, c.MinDelaySeconds, c.MaxDelaySeconds,
		c.DailySendLimit, c.CooldownDays, c.Timezone, c.FromEmail, c.FromName, c.ReplyTo, c.Signature,
		c.TrackOpens, c.TrackClicks, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Status, &c.Purpose, &c.Tone, &c.Constraints, &c.CallToAction, &c.MaxWords,
		&c.ReferenceText, &c.WindowStartHour, &c.WindowEndHour, &c.MinDelaySeconds, &c.MaxDelaySeconds,
		&c.DailySendLimit, &c.CooldownDays, &c.Timezone, &c.FromEmail, &c.FromName, &c.ReplyTo, &c.Signature,
		&c.TrackOpens, &c.TrackClicks, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Status, &c.Purpose, &c.Tone, &c.Constraints, &c.CallToAction, &c.MaxWords,
			&c.ReferenceText, &c.WindowStartHour, &c.WindowEndHour, &c.MinDelaySeconds, &c.MaxDelaySeconds,
			&c.DailySendLimit, &c.CooldownDays, &c.Timezone, &c.FromEmail, &c.FromName, &c.ReplyTo, &c.Signature,
			&c.TrackOpens, &c.TrackClicks, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
