package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/service"
)

func testCampaign(repo *fakeCampaignRepo, status model.CampaignStatus) *model.Campaign {
	c := &model.Campaign{
		Name:            "spring outreach",
		Status:          status,
		WindowStartHour: 9,
		WindowEndHour:   17,
		MinDelaySeconds: 1,
		MaxDelaySeconds: 1,
		DailySendLimit:  10,
		Timezone:        "UTC",
		FromEmail:       "press@harborpress.example",
	}
	repo.Create(c)
	return c
}

func newScheduler(cr *fakeCampaignRepo, rr *fakeRecipientRepo, tr *fakeTransport, now time.Time) *service.DripScheduler {
	return &service.DripScheduler{
		CampaignRepo:  cr,
		RecipientRepo: rr,
		Transport:     tr,
		Now:           func() time.Time { return now },
	}
}

func day(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func approve(rr *fakeRecipientRepo, rec *model.Recipient) {
	rec2 := rr.recipients[rec.ID]
	rec2.Status = model.RecipientApproved
	rec2.Approved = true
	rec2.Subject = "Hello"
	rec2.Body = "Hi there,\n\nShort note."
	rec2.BodyHTML = service.HTMLizeBody(rec2.Body)
}

func TestSendNextWindowBoundary(t *testing.T) {
	cases := []struct {
		name       string
		now        time.Time
		wantSent   bool
		retryAfter int
	}{
		{"just before open", day(8, 59), false, 60},
		{"at open", day(9, 0), true, 0},
		{"last minute", day(16, 59), true, 0},
		{"at close", day(17, 0), false, 16 * 3600},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cr := newFakeCampaignRepo()
			rr := newFakeRecipientRepo()
			c := testCampaign(cr, model.CampaignReady)
			approve(rr, rr.add(c.ID, 1, model.RecipientPending, false, day(0, 1)))

			sched := newScheduler(cr, rr, &fakeTransport{}, tc.now)
			result, err := sched.SendNext(c.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tc.wantSent {
				if result.Outcome != service.OutcomeSent {
					t.Fatalf("expected sent at %s, got %s (%s)", tc.now, result.Outcome, result.Reason)
				}
				return
			}
			if result.Outcome != service.OutcomeRateLimited {
				t.Fatalf("expected rate_limited at %s, got %s", tc.now, result.Outcome)
			}
			if result.RetryAfterSeconds != tc.retryAfter {
				t.Errorf("expected retry after %d, got %d", tc.retryAfter, result.RetryAfterSeconds)
			}
		})
	}
}

func TestSendNextDailyCap(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignSending)
	cr.campaigns[c.ID].DailySendLimit = 2

	// Two already sent today.
	for i := 1; i <= 2; i++ {
		rec := rr.add(c.ID, i, model.RecipientSent, true, day(0, i))
		sentAt := day(10, i)
		rec.SentAt = &sentAt
	}
	approve(rr, rr.add(c.ID, 3, model.RecipientPending, false, day(0, 5)))

	sched := newScheduler(cr, rr, &fakeTransport{}, day(11, 0))
	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %s", result.Outcome)
	}
	if result.Reason != "daily send limit reached" {
		t.Errorf("unexpected reason: %s", result.Reason)
	}
	// 13 hours left in the reference day at 11:00.
	if result.RetryAfterSeconds != 13*3600 {
		t.Errorf("expected retry after %d, got %d", 13*3600, result.RetryAfterSeconds)
	}
}

func TestSendNextDripScenario(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	for i := 1; i <= 3; i++ {
		approve(rr, rr.add(c.ID, i, model.RecipientPending, false, day(0, i)))
	}

	transport := &fakeTransport{}
	sched := newScheduler(cr, rr, transport, day(10, 0))

	for i := 1; i <= 3; i++ {
		result, err := sched.SendNext(c.ID)
		if err != nil {
			t.Fatalf("send %d: unexpected error: %v", i, err)
		}
		if result.Outcome != service.OutcomeSent {
			t.Fatalf("send %d: expected sent, got %s (%s)", i, result.Outcome, result.Reason)
		}
		if result.DelaySeconds != 1 {
			t.Errorf("send %d: expected delay 1, got %d", i, result.DelaySeconds)
		}
		if result.RemainingApproved != 3-i {
			t.Errorf("send %d: expected %d remaining, got %d", i, 3-i, result.RemainingApproved)
		}
	}

	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeNoneRemaining {
		t.Fatalf("expected none_remaining, got %s", result.Outcome)
	}
	if got, _ := cr.GetByID(c.ID); got.Status != model.CampaignCompleted {
		t.Errorf("expected campaign completed, got %s", got.Status)
	}
	if len(transport.sent) != 3 {
		t.Errorf("expected 3 sends, got %d", len(transport.sent))
	}
}

func TestSendNextFIFO(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	// Inserted newest-first; send order must still follow creation time.
	late := rr.add(c.ID, 2, model.RecipientPending, false, day(0, 30))
	early := rr.add(c.ID, 1, model.RecipientPending, false, day(0, 10))
	approve(rr, late)
	approve(rr, early)

	transport := &fakeTransport{}
	sched := newScheduler(cr, rr, transport, day(10, 0))

	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.To != early.Email {
		t.Errorf("expected earliest recipient %s first, got %s", early.Email, result.To)
	}
}

func TestSendNextTransportFailure(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	first := rr.add(c.ID, 1, model.RecipientPending, false, day(0, 1))
	second := rr.add(c.ID, 2, model.RecipientPending, false, day(0, 2))
	approve(rr, first)
	approve(rr, second)

	transport := &fakeTransport{failNext: true}
	sched := newScheduler(cr, rr, transport, day(10, 0))

	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeError {
		t.Fatalf("expected error outcome, got %s", result.Outcome)
	}

	failed := rr.recipients[first.ID]
	if failed.Status != model.RecipientFailed {
		t.Errorf("expected failed status, got %s", failed.Status)
	}
	if failed.LastError == "" {
		t.Error("expected last_error to be recorded")
	}

	// The next call naturally skips the failed row.
	result, err = sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeSent {
		t.Fatalf("expected sent, got %s", result.Outcome)
	}
	if result.To != second.Email {
		t.Errorf("expected %s, got %s", second.Email, result.To)
	}
}

func TestSendNextPausedRejects(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignPaused)
	approve(rr, rr.add(c.ID, 1, model.RecipientPending, false, day(0, 1)))

	sched := newScheduler(cr, rr, &fakeTransport{}, day(10, 0))
	_, err := sched.SendNext(c.ID)

	var inactive *apperrors.ErrCampaignInactive
	if !errors.As(err, &inactive) {
		t.Fatalf("expected ErrCampaignInactive, got %v", err)
	}
}

func TestSendNextMissingTransport(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	sched := &service.DripScheduler{CampaignRepo: cr, RecipientRepo: rr}
	_, err := sched.SendNext(c.ID)

	var missing *apperrors.ErrConfigMissing
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestSendNextStatusFlipToSending(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	for i := 1; i <= 2; i++ {
		approve(rr, rr.add(c.ID, i, model.RecipientPending, false, day(0, i)))
	}

	sched := newScheduler(cr, rr, &fakeTransport{}, day(10, 0))
	if _, err := sched.SendNext(c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := cr.GetByID(c.ID); got.Status != model.CampaignSending {
		t.Errorf("expected sending after first send, got %s", got.Status)
	}
}

func TestSendNextSignature(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)
	override := "Jo Harper\nHarborpress Media"
	cr.campaigns[c.ID].Signature = &override

	approve(rr, rr.add(c.ID, 1, model.RecipientPending, false, day(0, 1)))

	transport := &fakeTransport{}
	sched := newScheduler(cr, rr, transport, day(10, 0))
	sched.DefaultSignature = []string{"Default Sender"}

	if _, err := sched.SendNext(c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	html := transport.sent[0].HTML
	if !strings.Contains(html, "Jo Harper<br>Harborpress Media") {
		t.Errorf("expected campaign signature override in html: %s", html)
	}
	if strings.Contains(html, "Default Sender") {
		t.Errorf("default signature should be overridden: %s", html)
	}
}

func TestSendNextFailedRecipientRecovers(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	rec := rr.add(c.ID, 1, model.RecipientPending, false, day(0, 1))
	approve(rr, rec)

	transport := &fakeTransport{failNext: true}
	sched := newScheduler(cr, rr, transport, day(10, 0))

	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeError {
		t.Fatalf("expected error outcome, got %s", result.Outcome)
	}

	// Nothing was delivered, so the failure revokes approval rather than
	// stranding the row in the send queue.
	failed := rr.recipients[rec.ID]
	if failed.Status != model.RecipientFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.Approved {
		t.Error("a failed send must revoke approval")
	}

	// Explicit re-approval puts the row straight back in the queue.
	l := &service.CampaignLifecycle{CampaignRepo: cr, RecipientRepo: rr}
	if err := l.ApproveRecipient(rec.ID); err != nil {
		t.Fatalf("re-approving a failed recipient: %v", err)
	}

	result, err = sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeSent {
		t.Fatalf("expected sent after re-approval, got %s", result.Outcome)
	}
	if len(transport.sent) != 1 {
		t.Errorf("expected exactly one delivery, got %d", len(transport.sent))
	}
	if got := rr.recipients[rec.ID]; got.Status != model.RecipientSent || got.LastError != "" {
		t.Errorf("expected clean sent row, got status=%s err=%q", got.Status, got.LastError)
	}
}

func TestSendNextEmptyCampaign(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignReady)

	sched := newScheduler(cr, rr, &fakeTransport{}, day(10, 0))
	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeNoneRemaining {
		t.Fatalf("expected none_remaining, got %s", result.Outcome)
	}
	// A campaign that never had recipients is not "done"; it stays where the
	// operator left it.
	if got, _ := cr.GetByID(c.ID); got.Status != model.CampaignReady {
		t.Errorf("an empty campaign must not auto-complete, got %s", got.Status)
	}
}

func TestSendNextCompletedIsIdempotent(t *testing.T) {
	cr := newFakeCampaignRepo()
	rr := newFakeRecipientRepo()
	c := testCampaign(cr, model.CampaignCompleted)

	sched := newScheduler(cr, rr, &fakeTransport{}, day(10, 0))
	result, err := sched.SendNext(c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != service.OutcomeNoneRemaining {
		t.Fatalf("expected none_remaining, got %s", result.Outcome)
	}
}
