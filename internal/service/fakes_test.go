package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/generator"
	"github.com/harborpress/outreach-engine/internal/mailer"
	"github.com/harborpress/outreach-engine/internal/model"
)

// In-memory fakes standing in for the Postgres repositories.

type fakeCampaignRepo struct {
	campaigns map[int]*model.Campaign
	nextID    int
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 1}
}

func (f *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = f.nextID
	f.nextID++
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	stored := *c
	f.campaigns[c.ID] = &stored
	return nil
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, apperrors.NewCampaignNotFound(id)
	}
	out := *c
	return &out, nil
}

func (f *fakeCampaignRepo) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	c, ok := f.campaigns[campaignID]
	if !ok {
		return apperrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	ids := []int{}
	for id, c := range f.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	out := []*model.Campaign{}
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		c := *f.campaigns[id]
		out = append(out, &c)
	}
	return out, len(ids), nil
}

type fakeRecipientRepo struct {
	recipients map[int]*model.Recipient
	nextID     int

	// failInsertCall makes the n-th BulkInsert call fail (1-based).
	failInsertCall int
	insertCalls    int
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{recipients: map[int]*model.Recipient{}, nextID: 1}
}

func (f *fakeRecipientRepo) add(campaignID int, targetID int, status model.RecipientStatus, approved bool, createdAt time.Time) *model.Recipient {
	rec := &model.Recipient{
		ID:         f.nextID,
		CampaignID: campaignID,
		TargetID:   targetID,
		Email:      fmt.Sprintf("target%d@example.com", targetID),
		Status:     status,
		Approved:   approved,
		CreatedAt:  createdAt,
	}
	f.nextID++
	f.recipients[rec.ID] = rec
	return rec
}

func (f *fakeRecipientRepo) sorted(campaignID int) []*model.Recipient {
	out := []*model.Recipient{}
	for _, r := range f.recipients {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *fakeRecipientRepo) BulkInsert(rows []*model.Recipient) (int, error) {
	f.insertCalls++
	if f.failInsertCall == f.insertCalls {
		return 0, fmt.Errorf("insert batch failed")
	}
	now := time.Now()
	for _, rec := range rows {
		stored := *rec
		stored.ID = f.nextID
		f.nextID++
		stored.Status = model.RecipientPending
		stored.Approved = false
		stored.CreatedAt = now
		f.recipients[stored.ID] = &stored
	}
	return len(rows), nil
}

func (f *fakeRecipientRepo) GetByID(id int) (*model.Recipient, error) {
	r, ok := f.recipients[id]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (f *fakeRecipientRepo) SelectByStatus(campaignID int, status model.RecipientStatus, limit int) ([]*model.Recipient, error) {
	out := []*model.Recipient{}
	for _, r := range f.sorted(campaignID) {
		if r.Status != status {
			continue
		}
		c := *r
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRecipientRepo) NextApproved(campaignID int) (*model.Recipient, error) {
	for _, r := range f.sorted(campaignID) {
		if r.Status == model.RecipientApproved && r.Approved {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeRecipientRepo) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.Recipient, error) {
	out := []*model.Recipient{}
	matched := 0
	for _, r := range f.sorted(campaignID) {
		if status != "" && string(r.Status) != status {
			continue
		}
		matched++
		if matched <= offset || len(out) >= limit {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeRecipientRepo) MarkGenerated(id int, subject, body, bodyHTML string, at time.Time) error {
	r := f.recipients[id]
	r.Subject = subject
	r.Body = body
	r.BodyHTML = bodyHTML
	r.Status = model.RecipientGenerated
	r.GeneratedAt = &at
	r.LastError = ""
	return nil
}

func (f *fakeRecipientRepo) MarkGenerationError(id int, message string) error {
	r := f.recipients[id]
	r.Status = model.RecipientError
	r.LastError = message
	return nil
}

func (f *fakeRecipientRepo) MarkSent(id int, transportID string, at time.Time) error {
	r := f.recipients[id]
	r.Status = model.RecipientSent
	r.TransportID = transportID
	r.SentAt = &at
	r.LastError = ""
	return nil
}

func (f *fakeRecipientRepo) MarkFailed(id int, message string) error {
	r := f.recipients[id]
	r.Status = model.RecipientFailed
	r.Approved = false
	r.LastError = message
	return nil
}

func (f *fakeRecipientRepo) SetApproval(id int, status model.RecipientStatus, approved bool) error {
	r := f.recipients[id]
	r.Status = status
	r.Approved = approved
	return nil
}

func (f *fakeRecipientRepo) Suppress(id int) error {
	r := f.recipients[id]
	switch r.Status {
	case model.RecipientPending, model.RecipientGenerated, model.RecipientApproved, model.RecipientError:
		r.Status = model.RecipientSuppressed
		r.Approved = false
	}
	return nil
}

func (f *fakeRecipientRepo) Delete(id int) error {
	r, ok := f.recipients[id]
	if ok && r.SentAt == nil {
		delete(f.recipients, id)
	}
	return nil
}

func (f *fakeRecipientRepo) ResetToPending(id int) error {
	r := f.recipients[id]
	switch r.Status {
	case model.RecipientGenerated, model.RecipientApproved, model.RecipientError, model.RecipientFailed:
		r.Status = model.RecipientPending
		r.Approved = false
		r.Subject = ""
		r.Body = ""
		r.BodyHTML = ""
		r.LastError = ""
		r.GeneratedAt = nil
	}
	return nil
}

func (f *fakeRecipientRepo) ApproveAllGenerated(campaignID int) (int, error) {
	n := 0
	for _, r := range f.recipients {
		if r.CampaignID == campaignID && r.Status == model.RecipientGenerated {
			r.Status = model.RecipientApproved
			r.Approved = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRecipientRepo) CountByStatus(campaignID int, status model.RecipientStatus) (int, error) {
	n := 0
	for _, r := range f.recipients {
		if r.CampaignID == campaignID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecipientRepo) Counts(campaignID int) (model.RecipientCounts, error) {
	var counts model.RecipientCounts
	for _, r := range f.recipients {
		if r.CampaignID != campaignID {
			continue
		}
		switch {
		case r.Status == model.RecipientPending:
			counts.Pending++
		case r.Status == model.RecipientGenerated:
			counts.Generated++
		case r.Status == model.RecipientApproved:
			counts.Approved++
		case r.Status == model.RecipientSuppressed:
			counts.Suppressed++
		case r.Status.SentFamily():
			counts.Sent++
		case r.Status == model.RecipientFailed:
			counts.Failed++
		case r.Status == model.RecipientError:
			counts.Errored++
		}
		counts.Total++
	}
	return counts, nil
}

func (f *fakeRecipientRepo) CountSentSince(campaignID int, since time.Time) (int, error) {
	n := 0
	for _, r := range f.recipients {
		if r.CampaignID == campaignID && r.SentAt != nil && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecipientRepo) RecentlyContactedTargets(targetIDs []int, since time.Time) (map[int]bool, error) {
	wanted := map[int]bool{}
	for _, id := range targetIDs {
		wanted[id] = true
	}
	contacted := map[int]bool{}
	for _, r := range f.recipients {
		if wanted[r.TargetID] && r.SentAt != nil && !r.SentAt.Before(since) {
			contacted[r.TargetID] = true
		}
	}
	return contacted, nil
}

func (f *fakeRecipientRepo) AdvanceDelivery(transportID string, status model.RecipientStatus) (bool, error) {
	for _, r := range f.recipients {
		if r.TransportID == transportID && r.Status.SentFamily() {
			r.Status = status
			return true, nil
		}
	}
	return false, nil
}

type fakeTargetRepo struct {
	targets  map[int]*model.Target
	fallback map[int]string
}

func newFakeTargetRepo() *fakeTargetRepo {
	return &fakeTargetRepo{targets: map[int]*model.Target{}, fallback: map[int]string{}}
}

func (f *fakeTargetRepo) GetByID(id int) (*model.Target, error) {
	t, ok := f.targets[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (f *fakeTargetRepo) ListByFilter(filter model.TargetFilter) ([]*model.Target, error) {
	ids := []int{}
	for id, t := range f.targets {
		if filter.Kind != "" && t.Kind != filter.Kind {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := []*model.Target{}
	for _, id := range ids {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		t := *f.targets[id]
		out = append(out, &t)
	}
	return out, nil
}

func (f *fakeTargetRepo) FallbackEmail(contactID int) (string, error) {
	return f.fallback[contactID], nil
}

// fakeGenerator returns a deterministic draft per recipient, failing for
// addresses listed in failFor.
type fakeGenerator struct {
	calls   []string
	failFor map[string]bool
}

func (g *fakeGenerator) Generate(_ context.Context, _ generator.Prompt, rc generator.Context) (*generator.Draft, error) {
	g.calls = append(g.calls, rc.Email)
	if g.failFor[rc.Email] {
		return nil, fmt.Errorf("upstream generation failed")
	}
	return &generator.Draft{
		Subject: "Hello " + rc.Name,
		Body:    "Hi " + rc.Name + ",\n\nHope all is well.\nBest regards",
	}, nil
}

// fakeTransport records sends and can fail the next call.
type fakeTransport struct {
	sent     []mailer.Message
	failNext bool
	nextID   int
}

func (t *fakeTransport) Send(m mailer.Message) (string, error) {
	if t.failNext {
		t.failNext = false
		return "", fmt.Errorf("smtp connection refused")
	}
	t.nextID++
	t.sent = append(t.sent, m)
	return fmt.Sprintf("<msg-%d@test>", t.nextID), nil
}
