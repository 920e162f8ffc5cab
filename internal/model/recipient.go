// internal/model/recipient.go
package model

import "time"

// RecipientStatus tracks one recipient's progress through generation and
// delivery. "error" marks a failed generation, "failed" a failed send.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientGenerated  RecipientStatus = "generated"
	RecipientApproved   RecipientStatus = "approved"
	RecipientSuppressed RecipientStatus = "suppressed"
	RecipientSent       RecipientStatus = "sent"
	RecipientDelivered  RecipientStatus = "delivered"
	RecipientOpened     RecipientStatus = "opened"
	RecipientClicked    RecipientStatus = "clicked"
	RecipientFailed     RecipientStatus = "failed"
	RecipientError      RecipientStatus = "error"
)

// Recipient is one (campaign, target) pairing with its own lifecycle.
// CampaignID and TargetID are immutable once created; Email is the address
// resolved at campaign-build time (targets with no resolvable address are
// never inserted).
type Recipient struct {
	ID         int    `db:"id" json:"id"`
	CampaignID int    `db:"campaign_id" json:"campaign_id"`
	TargetID   int    `db:"target_id" json:"target_id"`
	Email      string `db:"email" json:"email"`

	Subject  string `db:"subject" json:"subject,omitempty"`
	Body     string `db:"body" json:"body,omitempty"`
	BodyHTML string `db:"body_html" json:"body_html,omitempty"`

	Status RecipientStatus `db:"status" json:"status"`

	// Approved is kept separate from Status so an operator can revoke
	// approval without losing the generated content.
	Approved bool `db:"approved" json:"approved"`

	TransportID string `db:"transport_id" json:"transport_id,omitempty"`
	LastError   string `db:"last_error" json:"last_error,omitempty"`

	GeneratedAt *time.Time `db:"generated_at" json:"generated_at,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// SentFamily reports whether the status is sent or a later delivery state.
func (s RecipientStatus) SentFamily() bool {
	switch s {
	case RecipientSent, RecipientDelivered, RecipientOpened, RecipientClicked:
		return true
	}
	return false
}

// Terminal reports whether no further generate/send work applies to the row.
func (s RecipientStatus) Terminal() bool {
	return s.SentFamily() || s == RecipientFailed || s == RecipientSuppressed || s == RecipientError
}

// RecipientCounts aggregates a campaign's recipients by lifecycle stage.
type RecipientCounts struct {
	Pending    int `json:"pending"`
	Generated  int `json:"generated"`
	Approved   int `json:"approved"`
	Suppressed int `json:"suppressed"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Errored    int `json:"errored"`
	Total      int `json:"total"`
}

// ActiveRemaining is the number of recipients that still have generate or
// send work ahead of them.
func (c RecipientCounts) ActiveRemaining() int {
	return c.Pending + c.Generated + c.Approved
}
