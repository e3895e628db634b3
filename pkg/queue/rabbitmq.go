package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"matchbot/pkg/config"
	"matchbot/pkg/logger"

	cmap "github.com/orcaman/concurrent-map/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishAttempts = 3
	publishBackoff  = 200 * time.Millisecond
)

var ErrClosed = errors.New("rabbitmq client closed")

// Message is an outbound broker message.
type Message struct {
	Body          []byte
	ContentType   string
	CorrelationID string
	ReplyTo       string
	Headers       amqp.Table
}

type Client struct {
	url      string
	logger   *logger.Logger
	mu       sync.Mutex
	conn     *amqp.Connection
	channels chan *amqp.Channel
	declared cmap.ConcurrentMap[string, struct{}]
	closed   bool
	prefetch int

	// consumers registered through ConsumeShared all live on shared
	sharedMu   sync.Mutex
	shared     *amqp.Channel
	sharedDone chan struct{}
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	poolSize := cfg.RabbitMQChannelPool
	if poolSize <= 0 {
		poolSize = 1
	}

	c := &Client{
		url:      AMQPURL(cfg),
		logger:   log,
		channels: make(chan *amqp.Channel, poolSize),
		declared: cmap.New[struct{}](),
		prefetch: cfg.RabbitMQPrefetch,
	}

	if _, err := c.connection(); err != nil {
		return nil, err
	}

	log.Info("Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)
	return c, nil
}

func AMQPURL(cfg *config.Config) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.RabbitMQUser, cfg.RabbitMQPassword),
		Host:   cfg.RabbitMQHost + ":" + cfg.RabbitMQPort,
		Path:   "/" + cfg.RabbitMQVHost,
	}
	return u.String()
}

// UserQueueName fills the {user_id} placeholder of a reply queue template.
func UserQueueName(template string, userID int64) string {
	return strings.ReplaceAll(template, "{user_id}", strconv.FormatInt(userID, 10))
}

func (c *Client) connection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	if c.conn != nil {
		c.logger.Warn("[RABBITMQ] Connection was lost, redialed")
		// A redial may follow a broker restart.
		c.declared.Clear()
	}
	c.conn = conn
	return conn, nil
}

// Ping reports whether a broker connection is open or can be redialed.
func (c *Client) Ping() error {
	_, err := c.connection()
	return err
}

func (c *Client) acquire() (*amqp.Channel, error) {
	for {
		select {
		case ch := <-c.channels:
			if ch.IsClosed() {
				continue
			}
			return ch, nil
		default:
			conn, err := c.connection()
			if err != nil {
				return nil, err
			}
			ch, err := conn.Channel()
			if err != nil {
				return nil, fmt.Errorf("failed to open channel: %w", err)
			}
			return ch, nil
		}
	}
}

func (c *Client) release(ch *amqp.Channel) {
	if ch.IsClosed() {
		return
	}
	select {
	case c.channels <- ch:
	default:
		ch.Close()
	}
}

// WithChannel runs fn on a pooled channel. A channel that fn leaves closed
// (any AMQP error closes it) is dropped from the pool.
func (c *Client) WithChannel(fn func(ch *amqp.Channel) error) error {
	ch, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.release(ch)
	return fn(ch)
}

func (c *Client) DeclareExchange(name string) error {
	if c.declared.Has("exchange:" + name) {
		return nil
	}
	err := c.WithChannel(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(
			name,    // name
			"topic", // type
			true,    // durable
			false,   // auto-deleted
			false,   // internal
			false,   // no-wait
			nil,     // arguments
		)
	})
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	c.declared.Set("exchange:"+name, struct{}{})
	return nil
}

// DeclareBoundQueue declares a durable queue and binds it to exchange.
func (c *Client) DeclareBoundQueue(queue, routingKey, exchange string) error {
	key := "binding:" + exchange + ":" + routingKey + ":" + queue
	if c.declared.Has(key) {
		return nil
	}
	err := c.WithChannel(func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", queue, exchange, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.declared.Set(key, struct{}{})
	return nil
}

// EnsureTopology declares exchange, the reply queue bound under its own
// name, and the shared work queue bound under workKey. It is idempotent.
func (c *Client) EnsureTopology(exchange, replyQueue, workQueue, workKey string) error {
	if err := c.DeclareExchange(exchange); err != nil {
		return err
	}
	if replyQueue != "" {
		if err := c.DeclareBoundQueue(replyQueue, replyQueue, exchange); err != nil {
			return err
		}
	}
	return c.DeclareBoundQueue(workQueue, workKey, exchange)
}

// DeclareWorkQueue binds workQueue on every exchange in exchanges.
func (c *Client) DeclareWorkQueue(workQueue, workKey string, exchanges []string) error {
	for _, ex := range exchanges {
		if err := c.EnsureTopology(ex, "", workQueue, workKey); err != nil {
			return err
		}
	}
	c.logger.Info("[RABBITMQ] Work queue %s bound on %d exchanges", workQueue, len(exchanges))
	return nil
}

func toPublishing(msg Message) amqp.Publishing {
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return amqp.Publishing{
		ContentType:   contentType,
		Body:          msg.Body,
		CorrelationId: msg.CorrelationID,
		ReplyTo:       msg.ReplyTo,
		Headers:       msg.Headers,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
	}
}

// Publish sends a persistent message, retrying on a fresh channel when the
// broker connection or channel fails.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	publishing := toPublishing(msg)

	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		lastErr = c.WithChannel(func(ch *amqp.Channel) error {
			return ch.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
		})
		if lastErr == nil {
			c.logger.Debug("[RABBITMQ] Published to exchange=%s, routing_key=%s, correlation_id=%s, size=%d bytes",
				exchange, routingKey, msg.CorrelationID, len(msg.Body))
			return nil
		}
		if errors.Is(lastErr, ErrClosed) {
			break
		}

		c.logger.Warn("[RABBITMQ] Publish attempt %d to exchange=%s failed: %v", attempt, exchange, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * publishBackoff):
		}
	}

	c.logger.Error("[RABBITMQ] Failed to publish message to exchange=%s, routing_key=%s: %v", exchange, routingKey, lastErr)
	return fmt.Errorf("failed to publish message: %w", lastErr)
}

// Consume starts a manual-ack consumer on its own channel. The returned
// channel is closed when ctx is done or the broker cancels the consumer.
func (c *Client) Consume(ctx context.Context, queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	msgs, err := ch.Consume(
		queue,    // queue
		consumer, // consumer
		false,    // auto-ack (we'll manually ack after processing)
		false,    // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[RABBITMQ] Started consuming from queue: %s", queue)

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case <-ctx.Done():
			ch.Close()
		case err := <-closed:
			if err != nil {
				c.logger.Warn("[RABBITMQ] Consumer channel for %s closed: %v", queue, err)
			}
		}
	}()

	return msgs, nil
}

// ConsumeShared starts a manual-ack consumer on the client's single shared
// consumer channel, so any number of queues cost one AMQP channel. consumer
// must be unique among live shared consumers. The returned channel is closed
// when ctx is done (the consumer is cancelled) or the shared channel closes;
// the next ConsumeShared call then opens a fresh one.
func (c *Client) ConsumeShared(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	ch, done, err := c.sharedChannel()
	if err != nil {
		return nil, err
	}

	msgs, err := ch.Consume(
		queue,    // queue
		consumer, // consumer
		false,    // auto-ack
		false,    // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer %s: %w", consumer, err)
	}

	c.logger.Debug("[RABBITMQ] Shared consumer %s started on queue: %s", consumer, queue)

	go func() {
		select {
		case <-ctx.Done():
			if err := ch.Cancel(consumer, false); err != nil && !ch.IsClosed() {
				c.logger.Warn("[RABBITMQ] Failed to cancel consumer %s: %v", consumer, err)
			}
		case <-done:
		}
	}()

	return msgs, nil
}

func (c *Client) sharedChannel() (*amqp.Channel, <-chan struct{}, error) {
	c.sharedMu.Lock()
	defer c.sharedMu.Unlock()

	if c.shared != nil && !c.shared.IsClosed() {
		return c.shared, c.sharedDone, nil
	}

	conn, err := c.connection()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			ch.Close()
			return nil, nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	done := make(chan struct{})
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-closed; err != nil {
			c.logger.Warn("[RABBITMQ] Shared consumer channel closed: %v", err)
		}
		close(done)
	}()

	c.shared, c.sharedDone = ch, done
	return ch, done, nil
}

func (c *Client) Close() error {
	c.sharedMu.Lock()
	if c.shared != nil {
		c.shared.Close()
		c.shared = nil
	}
	c.sharedMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true

drain:
	for {
		select {
		case ch := <-c.channels:
			ch.Close()
		default:
			break drain
		}
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
