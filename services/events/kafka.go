// Package events consumes platform events and turns them into notifications.
//
// Other platform services (bookings, applications, grading) publish
// notification events to a Kafka topic instead of calling the API directly;
// this consumer is the only writer on that path.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
)

// Event is the wire shape of one notification event.
type Event struct {
	RecipientRole notification.Role `json:"recipientRole"`
	RecipientID   int               `json:"recipientId"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Email         string            `json:"email,omitempty"`
}

func (e Event) newNotification() notification.NewNotification {
	return notification.NewNotification{
		RecipientRole: e.RecipientRole,
		RecipientID:   e.RecipientID,
		Title:         e.Title,
		Message:       e.Message,
		Email:         e.Email,
	}
}

type Consumer struct {
	reader     *kafka.Reader
	svc        notification.ServiceInterface
	logger     core.Logger
	retryDelay time.Duration
}

func NewConsumer(conf *core.Config, svc notification.ServiceInterface, logger core.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        conf.Kafka.Brokers,
			GroupID:        conf.Kafka.GroupID,
			Topic:          conf.Kafka.Topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
		svc:        svc,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is canceled. Malformed or invalid events are logged
// and committed anyway; redelivering them cannot make them valid.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() { _ = c.reader.Close() }()

	c.logger.Info(fmt.Sprintf(
		"notification event consumer started; topic=%s group=%s",
		c.reader.Config().Topic, c.reader.Config().GroupID,
	))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("notification event consumer shutting down")
				return nil
			}
			c.logger.Error(fmt.Sprintf("fetching event: %v", err), err)
			time.Sleep(time.Second)
			continue
		}

		if err = c.process(ctx, m.Value); err != nil {
			c.logger.Info("notification event consumer shutting down")
			return nil
		}

		if err = c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error(fmt.Sprintf("committing event offset: %v", err), err)
		}
	}
}

// process handles one message to completion. Consumer-group commits are a
// per-partition high-water mark: committing any later offset would mark this
// message consumed too, so on storage failure it is retried in place rather
// than skipped. Returns a non-nil error only when ctx is canceled mid-retry.
func (c *Consumer) process(ctx context.Context, value []byte) error {
	for {
		err := c.handle(ctx, value)
		if err == nil {
			return nil
		}
		if !core.IsStorageError(err) {
			c.logger.Warn(fmt.Sprintf("skipping bad event: %v", err), err)
			return nil
		}
		c.logger.Error(fmt.Sprintf("storing event, retrying: %v", err), err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	event, err := DecodeEvent(value)
	if err != nil {
		return err
	}
	_, err = c.svc.Create(ctx, event.newNotification())
	return err
}

// DecodeEvent parses one event payload. Unknown fields are rejected so
// producer-side schema drift surfaces in logs instead of silently dropping
// data.
func DecodeEvent(value []byte) (Event, error) {
	var event Event
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}
