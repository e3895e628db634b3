package notify

import (
	"context"
	"fmt"
	"strconv"

	"matchbot/pkg/logger"
	"matchbot/pkg/protocol"
	"matchbot/pkg/queue"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *queue.Client the notifier needs.
type Publisher interface {
	DeclareExchange(name string) error
	DeclareBoundQueue(queue, routingKey, exchange string) error
	Publish(ctx context.Context, exchange, routingKey string, msg queue.Message) error
}

// MatchNotifier tells each side of a match about the other. Alerts are kept
// in a durable queue bound on match_notifications until the chat transport
// drains it.
type MatchNotifier struct {
	publisher  Publisher
	alertQueue string
	logger     *logger.Logger
}

func NewMatchNotifier(publisher Publisher, alertQueue string, logger *logger.Logger) *MatchNotifier {
	return &MatchNotifier{publisher: publisher, alertQueue: alertQueue, logger: logger}
}

// EnsureTopology declares the alert exchange and binds the alert queue on
// it. It is idempotent and runs again before every notification, so the
// queue comes back after a broker restart.
func (n *MatchNotifier) EnsureTopology() error {
	if err := n.publisher.DeclareExchange(protocol.ExchangeMatchNotifications); err != nil {
		return err
	}
	return n.publisher.DeclareBoundQueue(n.alertQueue, protocol.MatchBindingKey, protocol.ExchangeMatchNotifications)
}

// NotifyMatch publishes one alert per party. Both are attempted even if the
// first fails.
func (n *MatchNotifier) NotifyMatch(ctx context.Context, a, b protocol.MatchParty) error {
	if err := n.EnsureTopology(); err != nil {
		return err
	}

	var firstErr error
	for _, pair := range [][2]protocol.MatchParty{{a, b}, {b, a}} {
		to, peer := pair[0], pair[1]
		if err := n.publish(ctx, to, peer); err != nil {
			n.logger.Error("[NOTIFY] Failed to notify tg_id=%d about match with tg_id=%d: %v", to.TgID, peer.TgID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n.logger.Info("[NOTIFY] Match alert sent to tg_id=%d", to.TgID)
	}
	return firstErr
}

func (n *MatchNotifier) publish(ctx context.Context, to, peer protocol.MatchParty) error {
	body, err := protocol.EncodeAlert(protocol.MatchAlert{
		ToPlatformID:   to.TgID,
		PeerPlatformID: peer.TgID,
		PeerUsername:   peer.TgUsername,
		PeerName:       peer.DisplayName(),
	})
	if err != nil {
		return fmt.Errorf("encode match alert: %w", err)
	}

	return n.publisher.Publish(ctx, protocol.ExchangeMatchNotifications, protocol.MatchRoutingKey(to.TgID), queue.Message{
		Body:        body,
		ContentType: protocol.ContentType,
		Headers:     amqp.Table{"user_id": strconv.FormatInt(to.TgID, 10)},
	})
}
