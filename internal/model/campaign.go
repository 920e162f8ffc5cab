// internal/model/campaign.go
package model

import "time"

// CampaignStatus is the operator-visible lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignGenerating CampaignStatus = "generating"
	CampaignReady      CampaignStatus = "ready"
	CampaignSending    CampaignStatus = "sending"
	CampaignPaused     CampaignStatus = "paused"
	CampaignCompleted  CampaignStatus = "completed"
)

type Campaign struct {
	ID     int            `db:"id" json:"id"`
	Name   string         `db:"name" json:"name"`
	Status CampaignStatus `db:"status" json:"status"`

	// Generation configuration handed to the content generator.
	Purpose       string `db:"purpose" json:"purpose"`
	Tone          string `db:"tone" json:"tone"`
	Constraints   string `db:"constraints" json:"constraints,omitempty"`
	CallToAction  string `db:"call_to_action" json:"call_to_action,omitempty"`
	MaxWords      int    `db:"max_words" json:"max_words"`
	ReferenceText string `db:"reference_text" json:"reference_text,omitempty"`

	// Send policy.
	WindowStartHour int    `db:"window_start_hour" json:"window_start_hour"`
	WindowEndHour   int    `db:"window_end_hour" json:"window_end_hour"`
	MinDelaySeconds int    `db:"min_delay_seconds" json:"min_delay_seconds"`
	MaxDelaySeconds int    `db:"max_delay_seconds" json:"max_delay_seconds"`
	DailySendLimit  int    `db:"daily_send_limit" json:"daily_send_limit"`
	CooldownDays    int    `db:"cooldown_days" json:"cooldown_days,omitempty"`
	Timezone        string `db:"timezone" json:"timezone,omitempty"`

	// Envelope settings. Signature overrides the sender-level default when set;
	// lines are stored newline-separated.
	FromEmail   string  `db:"from_email" json:"from_email"`
	FromName    string  `db:"from_name" json:"from_name,omitempty"`
	ReplyTo     string  `db:"reply_to" json:"reply_to,omitempty"`
	Signature   *string `db:"signature" json:"signature,omitempty"`
	TrackOpens  bool    `db:"track_opens" json:"track_opens"`
	TrackClicks bool    `db:"track_clicks" json:"track_clicks"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// DefaultTimezone anchors send windows and daily caps when a campaign does not
// set its own zone.
const DefaultTimezone = "America/New_York"

// Location resolves the campaign's reference timezone, falling back to the
// default zone and finally UTC if the zone name is unknown.
func (c *Campaign) Location() *time.Location {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window returns the campaign's send window bound to its reference timezone.
func (c *Campaign) Window() SendWindow {
	return SendWindow{StartHour: c.WindowStartHour, EndHour: c.WindowEndHour, Loc: c.Location()}
}

// Active reports whether the campaign may still accept generate/send work.
func (c *Campaign) Active() bool {
	return c.Status != CampaignPaused && c.Status != CampaignCompleted
}
