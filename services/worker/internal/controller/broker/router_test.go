package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"matchbot/pkg/logger"
	"matchbot/pkg/protocol"
	"matchbot/pkg/queue"
	"matchbot/services/worker/internal/entity"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProfileUseCase struct {
	mock.Mock
}

func (m *MockProfileUseCase) CheckUser(ctx context.Context, platformID int64) (bool, error) {
	args := m.Called(ctx, platformID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileUseCase) CreateProfile(ctx context.Context, platformID int64, username string, form protocol.UserData) (*entity.Profile, error) {
	args := m.Called(ctx, platformID, username, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

func (m *MockProfileUseCase) UpdatePreferences(ctx context.Context, platformID int64, update protocol.PreferenceUpdate) ([]string, error) {
	args := m.Called(ctx, platformID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProfileUseCase) UpdatePhoto(ctx context.Context, platformID int64, data []byte, filename string) (string, error) {
	args := m.Called(ctx, platformID, data, filename)
	return args.String(0), args.Error(1)
}

func (m *MockProfileUseCase) UpdateProfileField(ctx context.Context, platformID int64, update protocol.ProfileUpdate) ([]string, error) {
	args := m.Called(ctx, platformID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProfileUseCase) GetRating(ctx context.Context, platformID int64) (entity.Rating, error) {
	args := m.Called(ctx, platformID)
	return args.Get(0).(entity.Rating), args.Error(1)
}

type MockMatchingUseCase struct {
	mock.Mock
}

func (m *MockMatchingUseCase) NextProfile(ctx context.Context, platformID int64, commentedButNotRated *uint) (*entity.Profile, error) {
	args := m.Called(ctx, platformID, commentedButNotRated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

func (m *MockMatchingUseCase) ProcessReaction(ctx context.Context, fromPlatformID int64, toUserID uint, isLike bool) (*entity.ReactionResult, error) {
	args := m.Called(ctx, fromPlatformID, toUserID, isLike)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReactionResult), args.Error(1)
}

type published struct {
	exchange   string
	routingKey string
	msg        queue.Message
}

type fakePublisher struct {
	mu         sync.Mutex
	published  []published
	topologies []string
	publishErr error
}

func (p *fakePublisher) EnsureTopology(exchange, replyQueue, workQueue, workKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topologies = append(p.topologies, exchange+"/"+replyQueue)
	return nil
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, published{exchange: exchange, routingKey: routingKey, msg: msg})
	return nil
}

func (p *fakePublisher) last(t *testing.T) published {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.published)
	return p.published[len(p.published)-1]
}

// fakeAcknowledger records how a delivery was settled.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type routerEnv struct {
	router    *Router
	profiles  *MockProfileUseCase
	matching  *MockMatchingUseCase
	publisher *fakePublisher
}

func newRouterEnv() *routerEnv {
	env := &routerEnv{
		profiles:  &MockProfileUseCase{},
		matching:  &MockMatchingUseCase{},
		publisher: &fakePublisher{},
	}
	env.router = NewRouter(env.profiles, env.matching, env.publisher, "user_queue.{user_id}", "user_messages", logger.Nop())
	return env
}

func delivery(t *testing.T, req protocol.Request, replyTo, correlationID string) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	body, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	ack := &fakeAcknowledger{}
	return amqp.Delivery{
		Acknowledger:  ack,
		DeliveryTag:   1,
		Body:          body,
		ReplyTo:       replyTo,
		CorrelationId: correlationID,
		ContentType:   protocol.ContentType,
	}, ack
}

func TestRouter_CheckUserRepliesWithCorrelationID(t *testing.T) {
	env := newRouterEnv()
	env.profiles.On("CheckUser", mock.Anything, int64(42)).Return(true, nil)

	d, ack := delivery(t, &protocol.CheckUserRequest{UserID: 42}, "user_queue.42", "cid-1")
	env.router.Handle(context.Background(), d)

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)

	out := env.publisher.last(t)
	assert.Equal(t, protocol.ExchangeUserCheck, out.exchange)
	assert.Equal(t, "user_queue.42", out.routingKey)
	assert.Equal(t, "cid-1", out.msg.CorrelationID)
	assert.Equal(t, protocol.ContentType, out.msg.ContentType)
	assert.Equal(t, "42", out.msg.Headers["user_id"])

	var resp protocol.CheckUserResponse
	require.NoError(t, protocol.DecodeResponse(out.msg.Body, &resp))
	assert.Equal(t, protocol.ActionCheckUser, resp.Action)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.True(t, resp.Exists)
	assert.NoError(t, resp.Err())
}

func TestRouter_MissingReplyToFallsBackToUserQueue(t *testing.T) {
	env := newRouterEnv()
	env.profiles.On("GetRating", mock.Anything, int64(7)).Return(entity.Rating{Value: 2.6, LikeCount: 1}, nil)

	d, ack := delivery(t, &protocol.GetRatingRequest{UserTgID: 7}, "", "")
	env.router.Handle(context.Background(), d)

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, []string{protocol.ExchangeProfileUpdates + "/user_queue.7"}, env.publisher.topologies)

	out := env.publisher.last(t)
	assert.Equal(t, "user_queue.7", out.routingKey)

	var resp protocol.RatingResponse
	require.NoError(t, protocol.DecodeResponse(out.msg.Body, &resp))
	assert.Equal(t, 2.6, resp.Rating)
	assert.Equal(t, 1, resp.LikeCount)
}

func TestRouter_CreateProfilePublishesNothing(t *testing.T) {
	env := newRouterEnv()
	form := protocol.UserData{FullName: "Petrov Ivan", Age: 30, Gender: "M", Photo: "http://minio/x.jpg"}
	env.profiles.On("CreateProfile", mock.Anything, int64(5), "ivan", form).Return(&entity.Profile{ID: 1}, nil)

	d, ack := delivery(t, &protocol.CreateUserProfileRequest{UserID: 5, Username: "ivan", UserData: form}, "user_queue.5", "cid")
	env.router.Handle(context.Background(), d)

	assert.Equal(t, 1, ack.acked)
	assert.Empty(t, env.publisher.published)
	env.profiles.AssertExpectations(t)
}

func TestRouter_DomainErrorBecomesErrorReply(t *testing.T) {
	env := newRouterEnv()
	env.matching.On("ProcessReaction", mock.Anything, int64(1), uint(1), true).Return(nil, entity.ErrSelfReaction)

	d, ack := delivery(t, &protocol.ReactionRequest{FromUserTgID: 1, ToUserID: 1, IsLike: true}, "user_queue.1", "cid")
	env.router.Handle(context.Background(), d)

	assert.Equal(t, 1, ack.acked)
	out := env.publisher.last(t)
	assert.Equal(t, protocol.ExchangeLikesUpdates, out.exchange)

	var resp protocol.ReactionResponse
	require.NoError(t, protocol.DecodeResponse(out.msg.Body, &resp))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.ActionProcessLike, resp.Action)

	var remote *protocol.RemoteError
	require.True(t, errors.As(resp.Err(), &remote))
	assert.Contains(t, remote.Message, entity.ErrSelfReaction.Error())
}

func TestRouter_MatchReply(t *testing.T) {
	env := newRouterEnv()
	env.matching.On("ProcessReaction", mock.Anything, int64(10), uint(2), true).Return(&entity.ReactionResult{
		Match:       true,
		NewMatch:    true,
		MatchedUser: &entity.MatchParty{PlatformID: 20, Username: "bob", Firstname: "Bob"},
		FromUser:    &entity.MatchParty{PlatformID: 10, Username: "alice", Firstname: "Alice"},
	}, nil)

	d, _ := delivery(t, &protocol.ReactionRequest{FromUserTgID: 10, ToUserID: 2, IsLike: true}, "user_queue.10", "cid")
	env.router.Handle(context.Background(), d)

	var resp protocol.ReactionResponse
	require.NoError(t, protocol.DecodeResponse(env.publisher.last(t).msg.Body, &resp))
	assert.True(t, resp.Match)
	require.NotNil(t, resp.MatchedUser)
	assert.Equal(t, int64(20), resp.MatchedUser.TgID)
	require.NotNil(t, resp.FromUserData)
	assert.Equal(t, "alice", resp.FromUserData.TgUsername)
}

func TestRouter_DislikeUsesDislikeAction(t *testing.T) {
	env := newRouterEnv()
	env.matching.On("ProcessReaction", mock.Anything, int64(10), uint(2), false).Return(&entity.ReactionResult{}, nil)

	d, _ := delivery(t, &protocol.ReactionRequest{FromUserTgID: 10, ToUserID: 2}, "user_queue.10", "cid")
	env.router.Handle(context.Background(), d)

	var resp protocol.ReactionResponse
	require.NoError(t, protocol.DecodeResponse(env.publisher.last(t).msg.Body, &resp))
	assert.Equal(t, protocol.ActionProcessDislike, resp.Action)
	assert.False(t, resp.Match)
	assert.Nil(t, resp.MatchedUser)
	env.matching.AssertExpectations(t)
}

func TestRouter_NextProfileEmpty(t *testing.T) {
	env := newRouterEnv()
	pending := uint(9)
	env.matching.On("NextProfile", mock.Anything, int64(3), &pending).Return(nil, nil)

	d, _ := delivery(t, &protocol.GetNextProfileRequest{CurrentTgID: 3, CommentedButNotRated: &pending}, "user_queue.3", "cid")
	env.router.Handle(context.Background(), d)

	out := env.publisher.last(t)
	assert.Equal(t, protocol.ExchangeMeetingUpdates, out.exchange)

	var resp protocol.NextProfileResponse
	require.NoError(t, protocol.DecodeResponse(out.msg.Body, &resp))
	assert.Equal(t, protocol.StatusEmpty, resp.Status)
	assert.Nil(t, resp.Profile)
}

func TestRouter_NextProfileFound(t *testing.T) {
	env := newRouterEnv()
	env.matching.On("NextProfile", mock.Anything, int64(3), (*uint)(nil)).Return(&entity.Profile{
		ID: 4, Firstname: "Anna", Lastname: "Ivanova", Age: 25, Gender: "F", PhotoURL: "http://minio/a.jpg", Rating: 2.5,
	}, nil)

	d, _ := delivery(t, &protocol.GetNextProfileRequest{CurrentTgID: 3}, "user_queue.3", "cid")
	env.router.Handle(context.Background(), d)

	var resp protocol.NextProfileResponse
	require.NoError(t, protocol.DecodeResponse(env.publisher.last(t).msg.Body, &resp))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, uint(4), resp.Profile.ID)
	assert.Equal(t, "Ivanova Anna", resp.Profile.FullName)
	assert.Equal(t, "http://minio/a.jpg", resp.Profile.Photo)
}

func TestRouter_PreferencesUpdated(t *testing.T) {
	env := newRouterEnv()
	minAge := 20
	update := protocol.PreferenceUpdate{MinAge: &minAge}
	env.profiles.On("UpdatePreferences", mock.Anything, int64(3), update).Return([]string{"min_age"}, nil)

	d, _ := delivery(t, &protocol.UpdatePreferencesRequest{UserTgID: 3, Data: update}, "user_queue.3", "cid")
	env.router.Handle(context.Background(), d)

	out := env.publisher.last(t)
	assert.Equal(t, protocol.ExchangePreferencesUpdates, out.exchange)

	var resp protocol.UpdatePreferencesResponse
	require.NoError(t, protocol.DecodeResponse(out.msg.Body, &resp))
	assert.Equal(t, protocol.StatusUpdated, resp.Status)
	assert.Equal(t, []string{"min_age"}, resp.UpdatedFields)
}

func TestRouter_UndecodableMessageRejected(t *testing.T) {
	env := newRouterEnv()
	ack := &fakeAcknowledger{}

	env.router.Handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not msgpack")})

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, env.publisher.published)
}

func TestRouter_PublishFailureRequeuesOnce(t *testing.T) {
	env := newRouterEnv()
	env.publisher.publishErr = errors.New("channel closed")
	env.profiles.On("CheckUser", mock.Anything, int64(1)).Return(false, nil)

	d, ack := delivery(t, &protocol.CheckUserRequest{UserID: 1}, "user_queue.1", "cid")
	env.router.Handle(context.Background(), d)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)

	d, ack = delivery(t, &protocol.CheckUserRequest{UserID: 1}, "user_queue.1", "cid")
	d.Redelivered = true
	env.router.Handle(context.Background(), d)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestRouter_ServeDrainsDeliveries(t *testing.T) {
	env := newRouterEnv()
	env.profiles.On("CheckUser", mock.Anything, mock.AnythingOfType("int64")).Return(true, nil)

	deliveries := make(chan amqp.Delivery)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.router.Serve(ctx, deliveries, 4) }()

	acks := make([]*fakeAcknowledger, 0, 10)
	for i := int64(0); i < 10; i++ {
		d, ack := delivery(t, &protocol.CheckUserRequest{UserID: i}, "", "")
		acks = append(acks, ack)
		deliveries <- d
	}
	close(deliveries)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the delivery channel closed")
	}

	for _, ack := range acks {
		assert.Equal(t, 1, ack.acked)
	}
	assert.Len(t, env.publisher.published, 10)
}

func TestRouter_ServeStopsOnCancel(t *testing.T) {
	env := newRouterEnv()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.router.Serve(ctx, make(chan amqp.Delivery), 1) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestRouter_ServeClampsConcurrency(t *testing.T) {
	for _, concurrency := range []int{0, -3} {
		env := newRouterEnv()
		env.profiles.On("CheckUser", mock.Anything, int64(1)).Return(true, nil)

		d, ack := delivery(t, &protocol.CheckUserRequest{UserID: 1}, "user_queue.1", "cid")
		deliveries := make(chan amqp.Delivery, 1)
		deliveries <- d
		close(deliveries)

		var err error
		assert.NotPanics(t, func() {
			err = env.router.Serve(context.Background(), deliveries, concurrency)
		})
		assert.Error(t, err)
		assert.Equal(t, 1, ack.acked)
		assert.Len(t, env.publisher.published, 1)
	}
}
