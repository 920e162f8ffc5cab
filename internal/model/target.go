// internal/model/target.go
package model

// Target is an entity a campaign can email: a contact, a clinic, or an
// imported external address. The drip engine only reads targets; CRUD on the
// underlying entities lives elsewhere.
type Target struct {
	ID      int    `db:"id" json:"id"`
	Kind    string `db:"kind" json:"kind"` // contact, clinic, external
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email,omitempty"`
	Company string `db:"company" json:"company,omitempty"`
	Title   string `db:"title" json:"title,omitempty"`
	Notes   string `db:"notes" json:"notes,omitempty"`

	// ContactID points at a related contact record used as the address
	// fallback when the target itself has no email.
	ContactID *int `db:"contact_id" json:"contact_id,omitempty"`
}

// TargetFilter selects the targets snapshotted into a campaign at build time.
type TargetFilter struct {
	Kind  string `json:"kind"`
	Tag   string `json:"tag,omitempty"`
	Limit int    `json:"limit,omitempty"`
}
