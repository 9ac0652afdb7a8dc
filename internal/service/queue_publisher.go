package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/tour-marketplace/internal/queue"
)

// Notifier publishes booking lifecycle events. The booking service calls
// it after commit; implementations must never affect the request outcome.
type Notifier interface {
	BookingCreated(ctx context.Context, ev q.BookingCreatedEvent)
	BookingStatus(ctx context.Context, ev q.BookingStatusEvent)
}

// AMQPNotifier publishes events to RabbitMQ, one short-lived connection
// per publish. Errors are logged and swallowed: notification delivery is
// best-effort and the booking has already been committed.
type AMQPNotifier struct{}

// BookingCreated publishes a BookingCreatedEvent to the booking.created
// queue. Messages are marked persistent.
func (AMQPNotifier) BookingCreated(ctx context.Context, ev q.BookingCreatedEvent) {
	publish(ctx, q.BookingCreatedQueue, ev)
}

// BookingStatus publishes a BookingStatusEvent to the booking.status queue.
func (AMQPNotifier) BookingStatus(ctx context.Context, ev q.BookingStatusEvent) {
	publish(ctx, q.BookingStatusQueue, ev)
}

func publish(ctx context.Context, queueName string, event interface{}) {
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
	}
}
