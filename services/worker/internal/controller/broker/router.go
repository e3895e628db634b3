package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/pkg/protocol"
	"matchbot/pkg/queue"
	"matchbot/services/worker/internal/entity"
	"matchbot/services/worker/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"
)

// Publisher is the part of *queue.Client the router replies through.
type Publisher interface {
	EnsureTopology(exchange, replyQueue, workQueue, workKey string) error
	Publish(ctx context.Context, exchange, routingKey string, msg queue.Message) error
}

type Router struct {
	profiles  usecase.ProfileUseCase
	matching  usecase.MatchingUseCase
	publisher Publisher
	userQueue string
	workQueue string
	logger    *logger.Logger
}

func NewRouter(
	profiles usecase.ProfileUseCase,
	matching usecase.MatchingUseCase,
	publisher Publisher,
	userQueue, workQueue string,
	logger *logger.Logger,
) *Router {
	return &Router{
		profiles:  profiles,
		matching:  matching,
		publisher: publisher,
		userQueue: userQueue,
		workQueue: workQueue,
		logger:    logger,
	}
}

// Serve handles deliveries with at most concurrency handlers in flight. It
// returns nil when ctx is done and an error when the broker closes the
// delivery channel first. A concurrency below 1 is treated as 1.
func (r *Router) Serve(ctx context.Context, deliveries <-chan amqp.Delivery, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	p := pool.New().WithMaxGoroutines(concurrency)
	defer p.Wait()

	// In-flight handlers finish their transaction and reply after shutdown starts.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed by broker")
			}
			p.Go(func() {
				r.Handle(handlerCtx, d)
			})
		}
	}
}

// Handle processes one delivery and settles it. Undecodable messages are
// rejected; a failed reply is requeued once.
func (r *Router) Handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()

	req, err := protocol.Decode(d.Body)
	if err != nil {
		r.logger.Error("[WORKER] Failed to decode message: %v, size=%d bytes", err, len(d.Body))
		metrics.WorkerMessages.WithLabelValues("unknown", "rejected").Inc()
		d.Nack(false, false)
		return
	}

	action := req.Kind()
	log := r.logger.With("action", string(action), "tg_id", req.ReplyUserID(), "correlation_id", d.CorrelationId)
	defer func() {
		metrics.WorkerLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	}()

	resp, opErr := r.Dispatch(ctx, req)
	status := "success"
	if opErr != nil {
		status = "error"
		if usecase.IsClientError(opErr) {
			log.Warn("[WORKER] %s rejected: %v", action, opErr)
		} else {
			log.Error("[WORKER] %s failed: %v", action, opErr)
		}
	}

	if resp == nil {
		metrics.WorkerMessages.WithLabelValues(string(action), status).Inc()
		d.Ack(false)
		return
	}

	if err := r.reply(ctx, d, req, resp); err != nil {
		log.Error("[WORKER] Failed to reply to %s: %v (redelivered=%t)", action, err, d.Redelivered)
		metrics.WorkerMessages.WithLabelValues(string(action), "nacked").Inc()
		d.Nack(false, !d.Redelivered)
		return
	}

	metrics.WorkerMessages.WithLabelValues(string(action), status).Inc()
	d.Ack(false)
	log.Debug("[WORKER] %s handled in %s", action, time.Since(start))
}

func (r *Router) reply(ctx context.Context, d amqp.Delivery, req protocol.Request, resp protocol.Response) error {
	action := req.Kind()
	exchange, ok := protocol.ExchangeFor(action)
	if !ok {
		return fmt.Errorf("no exchange for %s", action)
	}

	routingKey := d.ReplyTo
	if routingKey == "" {
		routingKey = queue.UserQueueName(r.userQueue, req.ReplyUserID())
		if err := r.publisher.EnsureTopology(exchange, routingKey, r.workQueue, protocol.WorkRoutingKey); err != nil {
			return err
		}
	}

	body, err := protocol.EncodeResponse(action, resp)
	if err != nil {
		return err
	}

	return r.publisher.Publish(ctx, exchange, routingKey, queue.Message{
		Body:          body,
		ContentType:   protocol.ContentType,
		CorrelationID: d.CorrelationId,
		Headers: amqp.Table{
			"user_id": strconv.FormatInt(req.ReplyUserID(), 10),
			"action":  string(action),
		},
	})
}

// Dispatch runs the operation req asks for. The response is nil for
// fire-and-forget actions; err is the operation failure, already folded
// into the response.
func (r *Router) Dispatch(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	switch req := req.(type) {
	case *protocol.CheckUserRequest:
		resp := &protocol.CheckUserResponse{UserID: req.UserID}
		exists, err := r.profiles.CheckUser(ctx, req.UserID)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusSuccess
		resp.Exists = exists
		return resp, nil

	case *protocol.CreateUserProfileRequest:
		_, err := r.profiles.CreateProfile(ctx, req.UserID, req.Username, req.UserData)
		return nil, err

	case *protocol.UpdatePreferencesRequest:
		resp := &protocol.UpdatePreferencesResponse{UserTgID: req.UserTgID}
		fields, err := r.profiles.UpdatePreferences(ctx, req.UserTgID, req.Data)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusUpdated
		resp.UpdatedFields = fields
		return resp, nil

	case *protocol.UpdatePhotoRequest:
		resp := &protocol.UpdatePhotoResponse{UserTgID: req.UserTgID}
		url, err := r.profiles.UpdatePhoto(ctx, req.UserTgID, req.FileData, req.Filename)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusSuccess
		resp.PhotoURL = url
		return resp, nil

	case *protocol.GetNextProfileRequest:
		resp := &protocol.NextProfileResponse{UserTgID: req.CurrentTgID}
		profile, err := r.matching.NextProfile(ctx, req.CurrentTgID, req.CommentedButNotRated)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		if profile == nil {
			resp.Status = protocol.StatusEmpty
			return resp, nil
		}
		resp.Status = protocol.StatusSuccess
		resp.Profile = toProfileMessage(profile)
		return resp, nil

	case *protocol.ReactionRequest:
		resp := &protocol.ReactionResponse{FromUserTgID: req.FromUserTgID, ToUserID: req.ToUserID, IsLike: req.IsLike}
		result, err := r.matching.ProcessReaction(ctx, req.FromUserTgID, req.ToUserID, req.IsLike)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusSuccess
		if result.Match {
			resp.Match = true
			resp.MatchedUser = toPartyMessage(result.MatchedUser)
			resp.FromUserData = toPartyMessage(result.FromUser)
		}
		return resp, nil

	case *protocol.UpdateProfileFieldRequest:
		resp := &protocol.UpdateProfileFieldResponse{UserTgID: req.UserTgID, ActionType: req.ActionType}
		fields, err := r.profiles.UpdateProfileField(ctx, req.UserTgID, req.Data)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusSuccess
		resp.UpdatedFields = fields
		return resp, nil

	case *protocol.GetRatingRequest:
		resp := &protocol.RatingResponse{UserTgID: req.UserTgID}
		rating, err := r.profiles.GetRating(ctx, req.UserTgID)
		if err != nil {
			fail(resp, err)
			return resp, err
		}
		resp.Status = protocol.StatusSuccess
		resp.Rating = rating.Value
		resp.LikeCount = rating.LikeCount
		resp.DislikeCount = rating.DislikeCount
		return resp, nil

	default:
		return nil, fmt.Errorf("%w: %T", protocol.ErrUnknownAction, req)
	}
}

// fail reports client errors verbatim and hides infrastructure details.
func fail(resp protocol.Response, err error) {
	if usecase.IsClientError(err) {
		resp.Fail(err)
		return
	}
	resp.Fail(protocol.ErrInternal)
}

func toProfileMessage(p *entity.Profile) *protocol.Profile {
	return &protocol.Profile{
		ID:        p.ID,
		Firstname: p.Firstname,
		Lastname:  p.Lastname,
		Mname:     p.Mname,
		FullName:  p.FullName(),
		Photo:     p.PhotoURL,
		Bio:       p.Bio,
		Age:       p.Age,
		Gender:    p.Gender,
		Rating:    p.Rating,
	}
}

func toPartyMessage(p *entity.MatchParty) *protocol.MatchParty {
	if p == nil {
		return nil
	}
	return &protocol.MatchParty{
		TgID:       p.PlatformID,
		TgUsername: p.Username,
		Firstname:  p.Firstname,
		Lastname:   p.Lastname,
	}
}
