// cmd/server/main.go
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborpress/outreach-engine/internal/config"
	"github.com/harborpress/outreach-engine/internal/controller"
	"github.com/harborpress/outreach-engine/internal/db"
	"github.com/harborpress/outreach-engine/internal/generator"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/mailer"
	"github.com/harborpress/outreach-engine/internal/repository"
	"github.com/harborpress/outreach-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("failed to connect to DB: %v", err)
	}
	defer database.Close()

	campaignRepo := &repository.CampaignRepository{DB: database}
	recipientRepo := &repository.RecipientRepository{DB: database}
	targetRepo := &repository.TargetRepository{DB: database}

	lifecycle := &service.CampaignLifecycle{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TargetRepo:    targetRepo,
	}

	batcher := &service.GenerationBatcher{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TargetRepo:    targetRepo,
	}
	if cfg.GeneratorURL != "" {
		batcher.Generator = generator.NewHTTPGenerator(cfg.GeneratorURL, cfg.GeneratorKey, cfg.GeneratorModel)
	} else {
		logger.Log.Warn("GENERATOR_URL not set, generation endpoints will refuse work")
	}

	scheduler := &service.DripScheduler{
		CampaignRepo:     campaignRepo,
		RecipientRepo:    recipientRepo,
		DefaultSignature: cfg.DefaultSignature,
	}
	if cfg.SMTPHost != "" {
		scheduler.Transport = mailer.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	} else {
		logger.Log.Warn("SMTP_HOST not set, send endpoints will refuse work")
	}

	campaignController := &controller.CampaignController{
		Lifecycle: lifecycle,
		Batcher:   batcher,
		Scheduler: scheduler,
		Defaults: controller.CampaignDefaults{
			FromEmail: cfg.DefaultFromEmail,
			FromName:  cfg.DefaultFromName,
			ReplyTo:   cfg.DefaultReplyTo,
			Timezone:  cfg.SendTimezone,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/generate", campaignController.Generate)
	r.Post("/campaigns/{id}/send-next", campaignController.SendNext)
	r.Post("/campaigns/{id}/pause", campaignController.Pause)
	r.Post("/campaigns/{id}/resume", campaignController.Resume)
	r.Post("/campaigns/{id}/approve-all", campaignController.ApproveAll)
	r.Get("/campaigns/{id}/recipients", campaignController.ListRecipients)
	r.Post("/recipients/{id}/approve", campaignController.ApproveRecipient)
	r.Post("/recipients/{id}/unapprove", campaignController.UnapproveRecipient)
	r.Post("/recipients/{id}/suppress", campaignController.SuppressRecipient)
	r.Post("/recipients/{id}/regenerate", campaignController.RegenerateRecipient)
	r.Delete("/recipients/{id}", campaignController.DeleteRecipient)

	logger.Log.Infof("Server running on %s", cfg.HTTPAddr)
	logger.Log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
