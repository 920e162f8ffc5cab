// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harborpress/outreach-engine/internal/apperrors"
	"github.com/harborpress/outreach-engine/internal/model"
	"github.com/harborpress/outreach-engine/internal/service"
)

// CampaignDefaults fills envelope fields a create request leaves empty.
type CampaignDefaults struct {
	FromEmail string
	FromName  string
	ReplyTo   string
	Timezone  string
}

type CampaignController struct {
	Lifecycle *service.CampaignLifecycle
	Batcher   *service.GenerationBatcher
	Scheduler *service.DripScheduler
	Defaults  CampaignDefaults
}

func (d CampaignDefaults) apply(c *model.Campaign) {
	if c.FromEmail == "" {
		c.FromEmail = d.FromEmail
	}
	if c.FromName == "" {
		c.FromName = d.FromName
	}
	if c.ReplyTo == "" {
		c.ReplyTo = d.ReplyTo
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
}

func writeError(w http.ResponseWriter, err error) {
	var notFoundC *apperrors.ErrCampaignNotFound
	var notFoundR *apperrors.ErrRecipientNotFound
	var inactive *apperrors.ErrCampaignInactive
	var missing *apperrors.ErrConfigMissing

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFoundC), errors.As(err, &notFoundR):
		status = http.StatusNotFound
	case errors.As(err, &inactive):
		status = http.StatusConflict
	case errors.As(err, &missing):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Campaign     model.Campaign     `json:"campaign"`
		TargetFilter model.TargetFilter `json:"target_filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	c.Defaults.apply(&body.Campaign)
	report, err := c.Lifecycle.CreateCampaign(&body.Campaign, body.TargetFilter)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign":     body.Campaign,
		"build_report": report,
	})
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.Lifecycle.ListCampaigns(page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	campaign, counts, err := c.Lifecycle.GetCampaign(id)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign": campaign,
		"counts":   counts,
	})
}

func (c *CampaignController) Generate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var body struct {
		BatchSize int `json:"batch_size"`
	}
	// An empty body means the default batch size.
	_ = json.NewDecoder(r.Body).Decode(&body)

	result, err := c.Batcher.RunBatch(r.Context(), id, body.BatchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (c *CampaignController) SendNext(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	result, err := c.Scheduler.SendNext(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.Pause(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"campaign_id": id, "status": model.CampaignPaused})
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.Resume(id); err != nil {
		writeError(w, err)
		return
	}
	campaign, counts, err := c.Lifecycle.GetCampaign(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"campaign": campaign, "counts": counts})
}

func (c *CampaignController) ApproveAll(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	n, err := c.Lifecycle.ApproveAll(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"campaign_id": id, "approved": n})
}

func (c *CampaignController) ListRecipients(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	recipients, err := c.Lifecycle.ListRecipients(id, status, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": recipients})
}

func (c *CampaignController) ApproveRecipient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.ApproveRecipient(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"recipient_id": id, "status": model.RecipientApproved})
}

func (c *CampaignController) UnapproveRecipient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.UnapproveRecipient(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"recipient_id": id, "status": model.RecipientGenerated})
}

func (c *CampaignController) SuppressRecipient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.SuppressRecipient(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"recipient_id": id, "status": model.RecipientSuppressed})
}

func (c *CampaignController) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.DeleteRecipient(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"recipient_id": id, "deleted": true})
}

func (c *CampaignController) RegenerateRecipient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.Lifecycle.RegenerateRecipient(id); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"recipient_id": id, "status": model.RecipientPending})
}
