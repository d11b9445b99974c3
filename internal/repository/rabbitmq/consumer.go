package rabbitmq

import (
	"context"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// HandlerFunc processes one unwrapped fan-out message. A permanent error
// (entity.IsPermanent) sends the delivery to the dead-letter queue; any other
// error consumes a retry.
type HandlerFunc func(ctx context.Context, msg entity.FanOutMessage) error

// FailureRecorder lets the consumer mark a job FAILED when its message is
// taken out of circulation. The store's guard keeps COMPLETED jobs untouched.
type FailureRecorder interface {
	MarkFailed(ctx context.Context, imageID string) error
}

type ConsumerConfig struct {
	Exchange           string
	Queue              string
	DeadLetterExchange string
	DeadLetterQueue    string

	// MaxRetries bounds transient-failure redeliveries before the message is
	// dead-lettered.
	MaxRetries     int
	HandlerTimeout time.Duration
}

const retryCountHeader = "x-retry-count"

// StageConsumer binds one worker queue to the fanout exchange and feeds
// deliveries to a handler, acking, retrying or dead-lettering per result.
type StageConsumer struct {
	channel  *amqp.Channel
	cfg      ConsumerConfig
	handler  HandlerFunc
	failures FailureRecorder

	// publish pushes a republished delivery back onto the stage queue.
	publish func(ctx context.Context, queue string, msg amqp.Publishing) error
}

func NewStageConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler HandlerFunc, failures FailureRecorder) (*StageConsumer, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	if err := ch.QueueBind(cfg.DeadLetterQueue, "", cfg.DeadLetterExchange, false, nil); err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,
		false,
		false,
		false,
		amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange},
	)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(cfg.Queue, "", cfg.Exchange, false, nil); err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}

	return &StageConsumer{
		channel:  ch,
		cfg:      cfg,
		handler:  handler,
		failures: failures,
		publish: func(ctx context.Context, queue string, msg amqp.Publishing) error {
			return ch.PublishWithContext(ctx, "", queue, false, false, msg)
		},
	}, nil
}

func (c *StageConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("consumer for %s shutting down", c.cfg.Queue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("RabbitMQ channel for %s closed", c.cfg.Queue)
				return nil
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *StageConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	fanout, err := entity.UnwrapFanOut(msg.Body)
	if err != nil {
		log.Printf("%s: malformed message, dead-lettering: %v", c.cfg.Queue, err)
		_ = msg.Nack(false, false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	err = c.handler(hctx, fanout)
	cancel()

	switch {
	case err == nil:
		_ = msg.Ack(false)

	case entity.IsPermanent(err):
		log.Printf("%s: permanent failure for %s, dead-lettering: %v", c.cfg.Queue, fanout.Key, err)
		c.deadLetter(ctx, msg, fanout.Key)

	default:
		attempts := retryCount(msg.Headers)
		if attempts >= c.cfg.MaxRetries {
			log.Printf("%s: retry budget exhausted for %s after %d attempts, dead-lettering: %v",
				c.cfg.Queue, fanout.Key, attempts, err)
			c.deadLetter(ctx, msg, fanout.Key)
			return
		}
		log.Printf("%s: transient failure for %s (attempt %d): %v", c.cfg.Queue, fanout.Key, attempts+1, err)
		c.requeue(ctx, msg, attempts+1)
	}
}

// deadLetter removes the message from circulation via the queue's DLX and
// records the job as FAILED unless it already reached a terminal state.
func (c *StageConsumer) deadLetter(ctx context.Context, msg amqp.Delivery, imageID string) {
	_ = msg.Nack(false, false)
	if c.failures == nil {
		return
	}
	if err := c.failures.MarkFailed(ctx, imageID); err != nil {
		log.Printf("%s: failed to mark job %s failed: %v", c.cfg.Queue, imageID, err)
	}
}

// requeue republishes the delivery to its own queue with the retry counter
// bumped and acks the original. If the republish itself fails, fall back to
// a broker nack-requeue so the message is not lost.
func (c *StageConsumer) requeue(ctx context.Context, msg amqp.Delivery, attempt int) {
	err := c.publish(ctx, c.cfg.Queue, amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryCountHeader: int32(attempt)},
		Body:         msg.Body,
	})
	if err != nil {
		log.Printf("%s: republish failed, falling back to broker requeue: %v", c.cfg.Queue, err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
