// internal/events/consumer.go
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/harborpress/outreach-engine/internal/logger"
	"github.com/harborpress/outreach-engine/internal/model"
)

// DeliveryStore is the slice of the recipient repository the consumer needs.
type DeliveryStore interface {
	AdvanceDelivery(transportID string, status model.RecipientStatus) (bool, error)
}

// TrackingEvent is the transport's webhook payload relayed onto the queue:
// one delivery/open/click/bounce notice keyed by the Message-ID we sent with.
type TrackingEvent struct {
	MessageID  string    `json:"message_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

var eventStatus = map[string]model.RecipientStatus{
	"delivered": model.RecipientDelivered,
	"opened":    model.RecipientOpened,
	"clicked":   model.RecipientClicked,
	"bounced":   model.RecipientFailed,
}

// Consumer reads tracking events off AMQP and advances recipient rows.
type Consumer struct {
	RecipientRepo DeliveryStore
	URL           string
	Queue         string
}

// Run consumes until the connection drops or closes. Events that fail to
// apply are requeued once; malformed payloads are dropped.
func (c *Consumer) Run() error {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Log.WithField("queue", q.Name).Info("tracking consumer running")

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			logger.Log.WithError(err).Warn("failed to apply tracking event")
			// One retry; a second failure drops the event.
			requeue := !d.Redelivered
			d.Nack(false, requeue)
			continue
		}
		d.Ack(false)
	}
	return nil
}

// Handle applies a single raw event payload. Unknown event types and
// payloads that match no recipient are not errors; they are logged and
// dropped so the queue never wedges on stale data.
func (c *Consumer) Handle(body []byte) error {
	var ev TrackingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		logger.Log.WithError(err).Warn("invalid tracking event payload, dropping")
		return nil
	}

	status, ok := eventStatus[ev.Event]
	if !ok {
		logger.Log.WithField("event", ev.Event).Debug("ignoring unknown tracking event type")
		return nil
	}

	changed, err := c.RecipientRepo.AdvanceDelivery(ev.MessageID, status)
	if err != nil {
		return err
	}
	if !changed {
		logger.Log.WithFields(map[string]interface{}{
			"message_id": ev.MessageID,
			"event":      ev.Event,
		}).Debug("tracking event matched no advanceable recipient")
	}
	return nil
}
