// Package queue moves thumbnail capture jobs from the API to the worker
// over RabbitMQ, so screenshot post-processing never blocks a request.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ThumbnailQueue is the work queue for screenshot-to-thumbnail jobs.
const ThumbnailQueue = "previewd.thumbnails"

var ErrQueueClosed = errors.New("queue connection is closed")

// ThumbnailJob carries a captured screenshot to the worker, which uploads
// it to the project store as the project's thumbnail.
type ThumbnailJob struct {
	ProjectID  string    `json:"project_id"`
	Data       string    `json:"data"`
	CapturedAt time.Time `json:"captured_at"`
}

// QueueManager handles RabbitMQ operations
type QueueManager struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewQueueManager connects to RabbitMQ and declares the work queues.
func NewQueueManager(url string) (*QueueManager, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	qm := &QueueManager{conn: conn, channel: ch}
	if err := qm.DeclareQueue(ThumbnailQueue); err != nil {
		qm.Close()
		return nil, err
	}
	return qm, nil
}

// Close closes the RabbitMQ connection
func (qm *QueueManager) Close() error {
	if qm.channel != nil {
		qm.channel.Close()
	}
	if qm.conn != nil {
		return qm.conn.Close()
	}
	return nil
}

// DeclareQueue declares a durable queue if it doesn't exist
func (qm *QueueManager) DeclareQueue(queueName string) error {
	_, err := qm.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return nil
}

// PublishMessage publishes a JSON message to a queue
func (qm *QueueManager) PublishMessage(ctx context.Context, queueName string, message interface{}) error {
	if qm.channel == nil {
		return ErrQueueClosed
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = qm.channel.PublishWithContext(ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Printf("[queue] published message to queue: %s", queueName)
	return nil
}

// ConsumeMessages consumes messages from a queue until ctx is cancelled
func (qm *QueueManager) ConsumeMessages(ctx context.Context, queueName string, handler func([]byte) error) error {
	if qm.channel == nil {
		return ErrQueueClosed
	}

	msgs, err := qm.channel.Consume(
		queueName,
		"",    // consumer
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go qm.consumeLoop(ctx, queueName, msgs, handler)

	log.Printf("[queue] started consuming from queue: %s", queueName)
	return nil
}

// consumeLoop dispatches deliveries until ctx is cancelled or the broker
// closes the delivery channel.
func (qm *QueueManager) consumeLoop(ctx context.Context, queueName string, msgs <-chan amqp.Delivery, handler func([]byte) error) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[queue] stopping consumer for queue: %s", queueName)
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[queue] delivery channel closed for queue: %s", queueName)
				return
			}
			if err := handler(msg.Body); err != nil {
				log.Printf("[queue] error handling message: %v", err)
			}
		}
	}
}

// PublishThumbnailJob enqueues a captured screenshot for thumbnail upload.
func (qm *QueueManager) PublishThumbnailJob(ctx context.Context, job ThumbnailJob) error {
	if job.ProjectID == "" {
		return errors.New("project ID cannot be empty")
	}
	if job.CapturedAt.IsZero() {
		job.CapturedAt = time.Now().UTC()
	}
	return qm.PublishMessage(ctx, ThumbnailQueue, job)
}

// ConsumeThumbnailJobs runs handler for each thumbnail job until ctx is
// cancelled. Undecodable payloads are logged and skipped.
func (qm *QueueManager) ConsumeThumbnailJobs(ctx context.Context, handler func(ThumbnailJob) error) error {
	return qm.ConsumeMessages(ctx, ThumbnailQueue, func(body []byte) error {
		var job ThumbnailJob
		if err := json.Unmarshal(body, &job); err != nil {
			log.Printf("[queue] dropping undecodable thumbnail job: %v", err)
			return nil
		}
		return handler(job)
	})
}
