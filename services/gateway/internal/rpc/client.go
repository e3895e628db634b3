package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"matchbot/pkg/config"
	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/pkg/protocol"
	"matchbot/pkg/queue"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrServiceUnavailable is returned when the worker cannot be reached or
// does not answer within the configured timeout.
var ErrServiceUnavailable = errors.New("service unavailable")

// Broker is the part of *queue.Client the RPC client needs.
type Broker interface {
	EnsureTopology(exchange, replyQueue, workQueue, workKey string) error
	Publish(ctx context.Context, exchange, routingKey string, msg queue.Message) error
	ConsumeShared(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error)
}

// Client issues requests to the worker over the broker. Replies are matched
// to calls by correlation id only; a reply nobody waits for is dropped.
type Client struct {
	broker    Broker
	userQueue string
	workQueue string
	timeout   time.Duration
	logger    *logger.Logger

	// correlation id -> reply body
	pending cmap.ConcurrentMap[string, chan []byte]
	// reply queues with a running listener
	listeners cmap.ConcurrentMap[string, struct{}]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClient(broker Broker, cfg *config.Config, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		broker:    broker,
		userQueue: cfg.UserQueue,
		workQueue: cfg.WorkQueue,
		timeout:   cfg.RPCTimeout,
		logger:    log,
		pending:   cmap.New[chan []byte](),
		listeners: cmap.New[struct{}](),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Call publishes req and decodes the matching reply into resp. A reply with
// status=error is returned as a *protocol.RemoteError after resp is filled.
func (c *Client) Call(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	action := req.Kind()
	start := time.Now()
	defer func() {
		metrics.RPCLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	}()

	exchange, replyQueue, err := c.prepare(req, true)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "unavailable").Inc()
		return err
	}
	if err := c.ensureListener(replyQueue); err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "unavailable").Inc()
		return fmt.Errorf("%w: listen on %s: %v", ErrServiceUnavailable, replyQueue, err)
	}

	body, err := protocol.EncodeRequest(req)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "error").Inc()
		return err
	}

	correlationID := uuid.NewString()
	replies := make(chan []byte, 1)
	c.pending.Set(correlationID, replies)
	defer c.pending.Remove(correlationID)

	if err := c.broker.Publish(ctx, exchange, protocol.WorkRoutingKey, queue.Message{
		Body:          body,
		ContentType:   protocol.ContentType,
		CorrelationID: correlationID,
		ReplyTo:       replyQueue,
	}); err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "unavailable").Inc()
		return fmt.Errorf("%w: publish %s: %v", ErrServiceUnavailable, action, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case reply := <-replies:
		if err := protocol.DecodeResponse(reply, resp); err != nil {
			metrics.RPCCalls.WithLabelValues(string(action), "error").Inc()
			return err
		}
		if err := resp.Err(); err != nil {
			metrics.RPCCalls.WithLabelValues(string(action), "remote_error").Inc()
			return err
		}
		metrics.RPCCalls.WithLabelValues(string(action), "ok").Inc()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			metrics.RPCCalls.WithLabelValues(string(action), "canceled").Inc()
			return ctx.Err()
		}
		c.logger.Warn("[RPC] %s for tg_id=%d timed out after %s, correlation_id=%s", action, req.ReplyUserID(), c.timeout, correlationID)
		metrics.RPCCalls.WithLabelValues(string(action), "timeout").Inc()
		return ErrServiceUnavailable
	}
}

// Send publishes a request that has no reply. No reply queue is declared.
func (c *Client) Send(ctx context.Context, req protocol.Request) error {
	action := req.Kind()
	exchange, _, err := c.prepare(req, false)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "unavailable").Inc()
		return err
	}

	body, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	if err := c.broker.Publish(ctx, exchange, protocol.WorkRoutingKey, queue.Message{
		Body:        body,
		ContentType: protocol.ContentType,
	}); err != nil {
		metrics.RPCCalls.WithLabelValues(string(action), "unavailable").Inc()
		return fmt.Errorf("%w: publish %s: %v", ErrServiceUnavailable, action, err)
	}
	metrics.RPCCalls.WithLabelValues(string(action), "sent").Inc()
	return nil
}

// Close stops every reply listener and waits for them to exit.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// prepare declares the action's exchange and the shared work queue, plus
// the caller's reply queue when withReply is set.
func (c *Client) prepare(req protocol.Request, withReply bool) (exchange, replyQueue string, err error) {
	exchange, ok := protocol.ExchangeFor(req.Kind())
	if !ok {
		return "", "", fmt.Errorf("%w: %s", protocol.ErrUnknownAction, req.Kind())
	}
	if withReply {
		replyQueue = queue.UserQueueName(c.userQueue, req.ReplyUserID())
	}
	if err := c.broker.EnsureTopology(exchange, replyQueue, c.workQueue, protocol.WorkRoutingKey); err != nil {
		return "", "", fmt.Errorf("%w: declare topology: %v", ErrServiceUnavailable, err)
	}
	return exchange, replyQueue, nil
}

func (c *Client) ensureListener(replyQueue string) error {
	if !c.listeners.SetIfAbsent(replyQueue, struct{}{}) {
		return nil
	}

	deliveries, err := c.broker.ConsumeShared(c.ctx, replyQueue, ConsumerTag(replyQueue))
	if err != nil {
		c.listeners.Remove(replyQueue)
		return err
	}

	c.wg.Add(1)
	go c.listen(replyQueue, deliveries)
	return nil
}

// ConsumerTag names the listener of a reply queue. Tags are unique per
// queue, which the shared consumer channel requires.
func ConsumerTag(replyQueue string) string {
	return "rpc-" + replyQueue
}

func (c *Client) listen(replyQueue string, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	defer c.listeners.Remove(replyQueue)

	for d := range deliveries {
		c.deliver(d)
	}
	c.logger.Debug("[RPC] Listener on %s stopped", replyQueue)
}

func (c *Client) deliver(d amqp.Delivery) {
	replies, ok := c.pending.Pop(d.CorrelationId)
	if !ok {
		metrics.StaleReplies.Inc()
		c.logger.Warn("[RPC] Dropping reply with no pending call, correlation_id=%q, routing_key=%s", d.CorrelationId, d.RoutingKey)
		d.Ack(false)
		return
	}
	replies <- d.Body
	d.Ack(false)
}
