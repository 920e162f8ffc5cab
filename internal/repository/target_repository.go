package repository

import (
	"database/sql"
	"fmt"

	"github.com/harborpress/outreach-engine/internal/model"
)

type TargetRepositoryInterface interface {
	GetByID(id int) (*model.Target, error)
	ListByFilter(f model.TargetFilter) ([]*model.Target, error)
	// FallbackEmail looks up the address of the related contact record, for
	// targets that carry no email of their own.
	FallbackEmail(contactID int) (string, error)
}

type TargetRepository struct {
	DB *sql.DB
}

func (r *TargetRepository) GetByID(id int) (*model.Target, error) {
	query := `SELECT id, kind, name, email, company, title, notes, contact_id FROM targets WHERE id=$1`
	var t model.Target
	err := r.DB.QueryRow(query, id).Scan(
		&t.ID, &t.Kind, &t.Name, &t.Email, &t.Company, &t.Title, &t.Notes, &t.ContactID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TargetRepository) ListByFilter(f model.TargetFilter) ([]*model.Target, error) {
	query := `SELECT id, kind, name, email, company, title, notes, contact_id FROM targets WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind=$%d", argPos)
		args = append(args, f.Kind)
		argPos++
	}
	if f.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argPos)
		args = append(args, f.Tag)
		argPos++
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, f.Limit)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := []*model.Target{}
	for rows.Next() {
		t := &model.Target{}
		if err := rows.Scan(&t.ID, &t.Kind, &t.Name, &t.Email, &t.Company, &t.Title, &t.Notes, &t.ContactID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (r *TargetRepository) FallbackEmail(contactID int) (string, error) {
	var email string
	err := r.DB.QueryRow(`SELECT email FROM contacts WHERE id=$1`, contactID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return email, nil
}

var _ TargetRepositoryInterface = (*TargetRepository)(nil)
