package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/harborpress/outreach-engine/internal/model"
)

type RecipientRepositoryInterface interface {
	BulkInsert(rows []*model.Recipient) (int, error)
	GetByID(id int) (*model.Recipient, error)
	// SelectByStatus returns up to limit recipients in the given status,
	// earliest created first.
	SelectByStatus(campaignID int, status model.RecipientStatus, limit int) ([]*model.Recipient, error)
	// NextApproved returns the oldest recipient with status=approved and
	// approved=true, or nil when none remain.
	NextApproved(campaignID int) (*model.Recipient, error)
	ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.Recipient, error)

	MarkGenerated(id int, subject, body, bodyHTML string, at time.Time) error
	MarkGenerationError(id int, message string) error
	MarkSent(id int, transportID string, at time.Time) error
	MarkFailed(id int, message string) error
	SetApproval(id int, status model.RecipientStatus, approved bool) error
	// Suppress takes a not-yet-sent recipient out of all further work.
	Suppress(id int) error
	// Delete hard-removes a recipient that has not been sent.
	Delete(id int) error
	ResetToPending(id int) error
	ApproveAllGenerated(campaignID int) (int, error)

	CountByStatus(campaignID int, status model.RecipientStatus) (int, error)
	Counts(campaignID int) (model.RecipientCounts, error)
	CountSentSince(campaignID int, since time.Time) (int, error)
	RecentlyContactedTargets(targetIDs []int, since time.Time) (map[int]bool, error)

	// AdvanceDelivery moves a sent row forward to a later delivery state,
	// keyed by the transport message id. Reports whether a row changed.
	AdvanceDelivery(transportID string, status model.RecipientStatus) (bool, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, campaign_id, target_id, email, subject, body, body_html, status,
	approved, transport_id, last_error, generated_at, sent_at, created_at, updated_at`

func scanRecipient(row interface{ Scan(...interface{}) error }) (*model.Recipient, error) {
	var rec model.Recipient
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.TargetID, &rec.Email, &rec.Subject, &rec.Body, &rec.BodyHTML,
		&rec.Status, &rec.Approved, &rec.TransportID, &rec.LastError,
		&rec.GeneratedAt, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BulkInsert inserts one batch of recipient rows in a single statement and
// returns the number inserted. Callers chunk the full set themselves.
func (r *RecipientRepository) BulkInsert(rows []*model.Recipient) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now()
	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)
	for i, rec := range rows {
		base := i * 4
		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, 'pending', false, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, rec.CampaignID, rec.TargetID, rec.Email, now)
	}

	query := `
        INSERT INTO recipients (campaign_id, target_id, email, status, approved, created_at)
        VALUES ` + strings.Join(placeholders, ", ")

	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RecipientRepository) GetByID(id int) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) SelectByStatus(campaignID int, status model.RecipientStatus, limit int) ([]*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
        FROM recipients
        WHERE campaign_id=$1 AND status=$2
        ORDER BY created_at ASC, id ASC
        LIMIT $3`

	rows, err := r.DB.Query(query, campaignID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepository) NextApproved(campaignID int) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
        FROM recipients
        WHERE campaign_id=$1 AND status='approved' AND approved=true
        ORDER BY created_at ASC, id ASC
        LIMIT 1`

	rec, err := scanRecipient(r.DB.QueryRow(query, campaignID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE campaign_id=$1`
	args := []interface{}{campaignID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepository) MarkGenerated(id int, subject, body, bodyHTML string, at time.Time) error {
	query := `
        UPDATE recipients
        SET subject=$1, body=$2, body_html=$3, status='generated', generated_at=$4, last_error='', updated_at=NOW()
        WHERE id=$5`
	_, err := r.DB.Exec(query, subject, body, bodyHTML, at, id)
	return err
}

func (r *RecipientRepository) MarkGenerationError(id int, message string) error {
	query := `UPDATE recipients SET status='error', last_error=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, message, id)
	return err
}

func (r *RecipientRepository) MarkSent(id int, transportID string, at time.Time) error {
	query := `
        UPDATE recipients
        SET status='sent', transport_id=$1, sent_at=$2, last_error='', updated_at=NOW()
        WHERE id=$3`
	_, err := r.DB.Exec(query, transportID, at, id)
	return err
}

// MarkFailed records a transport failure. Approval is revoked so the row
// leaves the send queue until an operator explicitly re-approves or
// regenerates it.
func (r *RecipientRepository) MarkFailed(id int, message string) error {
	query := `UPDATE recipients SET status='failed', approved=false, last_error=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, message, id)
	return err
}

func (r *RecipientRepository) SetApproval(id int, status model.RecipientStatus, approved bool) error {
	query := `UPDATE recipients SET status=$1, approved=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, status, approved, id)
	return err
}

func (r *RecipientRepository) Suppress(id int) error {
	query := `
        UPDATE recipients
        SET status='suppressed', approved=false, updated_at=NOW()
        WHERE id=$1 AND status IN ('pending', 'generated', 'approved', 'error')`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *RecipientRepository) Delete(id int) error {
	query := `DELETE FROM recipients WHERE id=$1 AND sent_at IS NULL`
	_, err := r.DB.Exec(query, id)
	return err
}

// ResetToPending clears generated content and errors so the batcher picks the
// row up again. Failed sends may be reset too; nothing was delivered. Rows
// that reached a sent-family state may not.
func (r *RecipientRepository) ResetToPending(id int) error {
	query := `
        UPDATE recipients
        SET status='pending', approved=false, subject='', body='', body_html='',
            last_error='', generated_at=NULL, updated_at=NOW()
        WHERE id=$1 AND status IN ('generated', 'approved', 'error', 'failed')`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *RecipientRepository) ApproveAllGenerated(campaignID int) (int, error) {
	query := `
        UPDATE recipients
        SET status='approved', approved=true, updated_at=NOW()
        WHERE campaign_id=$1 AND status='generated'`
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RecipientRepository) CountByStatus(campaignID int, status model.RecipientStatus) (int, error) {
	var count int
	err := r.DB.QueryRow(
		`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1 AND status=$2`,
		campaignID, status,
	).Scan(&count)
	return count, err
}

func (r *RecipientRepository) Counts(campaignID int) (model.RecipientCounts, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return model.RecipientCounts{}, err
	}
	defer rows.Close()

	var counts model.RecipientCounts
	for rows.Next() {
		var status model.RecipientStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.RecipientCounts{}, err
		}
		switch {
		case status == model.RecipientPending:
			counts.Pending = count
		case status == model.RecipientGenerated:
			counts.Generated = count
		case status == model.RecipientApproved:
			counts.Approved = count
		case status == model.RecipientSuppressed:
			counts.Suppressed = count
		case status.SentFamily():
			counts.Sent += count
		case status == model.RecipientFailed:
			counts.Failed = count
		case status == model.RecipientError:
			counts.Errored = count
		}
		counts.Total += count
	}
	return counts, rows.Err()
}

func (r *RecipientRepository) CountSentSince(campaignID int, since time.Time) (int, error) {
	var count int
	err := r.DB.QueryRow(
		`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1 AND sent_at IS NOT NULL AND sent_at >= $2`,
		campaignID, since,
	).Scan(&count)
	return count, err
}

// RecentlyContactedTargets returns the subset of targetIDs that received any
// campaign email on or after since, across all campaigns.
func (r *RecipientRepository) RecentlyContactedTargets(targetIDs []int, since time.Time) (map[int]bool, error) {
	contacted := map[int]bool{}
	if len(targetIDs) == 0 {
		return contacted, nil
	}

	query := `
        SELECT DISTINCT target_id FROM recipients
        WHERE target_id = ANY($1) AND sent_at IS NOT NULL AND sent_at >= $2`
	rows, err := r.DB.Query(query, pq.Array(targetIDs), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		contacted[id] = true
	}
	return contacted, rows.Err()
}

// deliveryPriors lists the statuses a tracking event may advance from, so a
// late "delivered" event never downgrades an already-opened row.
var deliveryPriors = map[model.RecipientStatus][]string{
	model.RecipientDelivered: {"sent"},
	model.RecipientOpened:    {"sent", "delivered"},
	model.RecipientClicked:   {"sent", "delivered", "opened"},
	model.RecipientFailed:    {"sent", "delivered"},
}

func (r *RecipientRepository) AdvanceDelivery(transportID string, status model.RecipientStatus) (bool, error) {
	priors, ok := deliveryPriors[status]
	if !ok {
		return false, fmt.Errorf("status %s is not a delivery state", status)
	}

	query := `
        UPDATE recipients
        SET status=$1, updated_at=NOW()
        WHERE transport_id=$2 AND status = ANY($3)`
	res, err := r.DB.Exec(query, status, transportID, pq.Array(priors))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
