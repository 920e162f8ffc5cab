// internal/apperrors/errors.go
package apperrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrRecipientNotFound is returned when a recipient id does not exist.
type ErrRecipientNotFound struct {
	RecipientID int
}

func (e *ErrRecipientNotFound) Error() string {
	return fmt.Sprintf("recipient with ID %d not found", e.RecipientID)
}

func NewRecipientNotFound(id int) error {
	return &ErrRecipientNotFound{RecipientID: id}
}

// ErrCampaignInactive rejects generate/send work on a paused or completed
// campaign. Driver loops should stop when they see it.
type ErrCampaignInactive struct {
	CampaignID int
	Status     string
}

func (e *ErrCampaignInactive) Error() string {
	return fmt.Sprintf("campaign %d is %s and accepts no further work", e.CampaignID, e.Status)
}

func NewCampaignInactive(id int, status string) error {
	return &ErrCampaignInactive{CampaignID: id, Status: status}
}

// ErrConfigMissing means a required external credential (generator, mail
// transport) is not configured. The whole call fails; nothing is retried.
type ErrConfigMissing struct {
	What string
}

func (e *ErrConfigMissing) Error() string {
	return fmt.Sprintf("%s is not configured", e.What)
}

func NewConfigMissing(what string) error {
	return &ErrConfigMissing{What: what}
}
