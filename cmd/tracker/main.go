// cmd/tracker/main.go
//
// tracker consumes transport delivery/open/click events from AMQP and
// advances recipient rows.
package main

import (
	"time"

	"github.com/harborpress/outreach-engine/internal/config"
	"github.com/harborpress/outreach-engine/internal/db"
	"github.com/harborpress/outreach-engine/internal/events"
	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/repository"
)

// reconnectDelay spaces reconnect attempts after the broker drops us.
const reconnectDelay = 5 * time.Second

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

	consumer := &events.Consumer{
		RecipientRepo: &repository.RecipientRepository{DB: database},
		URL:           cfg.AMQPURL,
		Queue:         cfg.EventsQueue,
	}

	for {
		if err := consumer.Run(); err != nil {
			logger.Log.WithError(err).Error("tracking consumer stopped, reconnecting")
		} else {
			logger.Log.Warn("tracking consumer channel closed, reconnecting")
		}
		time.Sleep(reconnectDelay)
	}
}
