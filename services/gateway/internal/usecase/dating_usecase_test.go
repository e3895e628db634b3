package usecase

import (
	"context"
	"errors"
	"testing"

	"matchbot/pkg/logger"
	"matchbot/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) Call(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	args := m.Called(ctx, req, resp)
	return args.Error(0)
}

func (m *MockCaller) Send(ctx context.Context, req protocol.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type MockPhotoStore struct {
	mock.Mock
}

func (m *MockPhotoStore) Store(ctx context.Context, data []byte, filename string) (string, error) {
	args := m.Called(ctx, data, filename)
	return args.String(0), args.Error(1)
}

func (m *MockPhotoStore) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyMatch(ctx context.Context, a, b protocol.MatchParty) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

type datingEnv struct {
	uc       DatingUseCase
	rpc      *MockCaller
	photos   *MockPhotoStore
	notifier *MockNotifier
}

func newDatingEnv() *datingEnv {
	env := &datingEnv{rpc: &MockCaller{}, photos: &MockPhotoStore{}, notifier: &MockNotifier{}}
	env.uc = NewDatingUseCase(env.rpc, env.photos, env.notifier, logger.Nop())
	return env
}

func TestCheckUser(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, &protocol.CheckUserRequest{UserID: 1}, mock.AnythingOfType("*protocol.CheckUserResponse")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*protocol.CheckUserResponse).Exists = true
		}).Return(nil)

	exists, err := env.uc.CheckUser(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegister_StoresPhotoThenSends(t *testing.T) {
	env := newDatingEnv()
	photo := []byte{0xff, 0xd8, 0xff}
	env.photos.On("Store", mock.Anything, photo, "me.jpg").Return("http://minio:9000/photos/avatars/u_me.jpg", nil)
	env.rpc.On("Send", mock.Anything, &protocol.CreateUserProfileRequest{
		UserID:   5,
		Username: "ivan",
		UserData: protocol.UserData{
			FullName: "Petrov Ivan",
			Age:      30,
			Gender:   "M",
			Bio:      "hi",
			Photo:    "http://minio:9000/photos/avatars/u_me.jpg",
		},
	}).Return(nil)

	err := env.uc.Register(context.Background(), 5, "ivan", RegistrationForm{FullName: "Petrov Ivan", Age: 30, Gender: "M", Bio: "hi"}, photo, "me.jpg")
	require.NoError(t, err)
	env.photos.AssertExpectations(t)
	env.rpc.AssertExpectations(t)
}

func TestRegister_RejectsBadForm(t *testing.T) {
	env := newDatingEnv()
	photo := []byte{1}

	cases := []RegistrationForm{
		{FullName: "Ivan", Age: 30, Gender: "M"},
		{FullName: "Petrov Ivan", Age: 9, Gender: "M"},
		{FullName: "Petrov Ivan", Age: 111, Gender: "M"},
		{FullName: "Petrov Ivan", Age: 30, Gender: " "},
	}
	for _, form := range cases {
		err := env.uc.Register(context.Background(), 5, "ivan", form, photo, "x.jpg")
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", form)
	}

	err := env.uc.Register(context.Background(), 5, "ivan", RegistrationForm{FullName: "Petrov Ivan", Age: 30, Gender: "M"}, nil, "x.jpg")
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.photos.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	env.rpc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNextProfile_WithPhoto(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, mock.AnythingOfType("*protocol.GetNextProfileRequest"), mock.AnythingOfType("*protocol.NextProfileResponse")).
		Run(func(args mock.Arguments) {
			resp := args.Get(2).(*protocol.NextProfileResponse)
			resp.Status = protocol.StatusSuccess
			resp.Profile = &protocol.Profile{ID: 2, FullName: "Ivanova Anna", Photo: "http://minio/a.jpg"}
		}).Return(nil)
	env.photos.On("Fetch", mock.Anything, "http://minio/a.jpg").Return([]byte("jpeg"), true, nil)

	c, err := env.uc.NextProfile(context.Background(), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint(2), c.Profile.ID)
	assert.Equal(t, []byte("jpeg"), c.Photo)
}

func TestNextProfile_MissingPhotoStillShown(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			resp := args.Get(2).(*protocol.NextProfileResponse)
			resp.Status = protocol.StatusSuccess
			resp.Profile = &protocol.Profile{ID: 2, Photo: "http://minio/gone.jpg"}
		}).Return(nil)
	env.photos.On("Fetch", mock.Anything, "http://minio/gone.jpg").Return(nil, false, nil)

	c, err := env.uc.NextProfile(context.Background(), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Nil(t, c.Photo)
}

func TestNextProfile_Empty(t *testing.T) {
	env := newDatingEnv()
	pending := uint(3)
	env.rpc.On("Call", mock.Anything, &protocol.GetNextProfileRequest{CurrentTgID: 1, CommentedButNotRated: &pending}, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(*protocol.NextProfileResponse).Status = protocol.StatusEmpty
		}).Return(nil)

	c, err := env.uc.NextProfile(context.Background(), 1, &pending)
	require.NoError(t, err)
	assert.Nil(t, c)
	env.photos.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestReact_MatchNotifiesBothSides(t *testing.T) {
	env := newDatingEnv()
	alice := protocol.MatchParty{TgID: 10, TgUsername: "alice"}
	bob := protocol.MatchParty{TgID: 20, TgUsername: "bob"}
	env.rpc.On("Call", mock.Anything, &protocol.ReactionRequest{FromUserTgID: 10, ToUserID: 2, IsLike: true}, mock.Anything).
		Run(func(args mock.Arguments) {
			resp := args.Get(2).(*protocol.ReactionResponse)
			resp.Status = protocol.StatusSuccess
			resp.Match = true
			resp.MatchedUser = &bob
			resp.FromUserData = &alice
		}).Return(nil)
	env.notifier.On("NotifyMatch", mock.Anything, alice, bob).Return(nil)

	out, err := env.uc.React(context.Background(), 10, 2, true)
	require.NoError(t, err)
	assert.True(t, out.Match)
	assert.Equal(t, "bob", out.Peer.TgUsername)
	env.notifier.AssertExpectations(t)
}

func TestReact_NotifierFailureDoesNotFailReaction(t *testing.T) {
	env := newDatingEnv()
	alice := protocol.MatchParty{TgID: 10}
	bob := protocol.MatchParty{TgID: 20}
	env.rpc.On("Call", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			resp := args.Get(2).(*protocol.ReactionResponse)
			resp.Match = true
			resp.MatchedUser = &bob
			resp.FromUserData = &alice
		}).Return(nil)
	env.notifier.On("NotifyMatch", mock.Anything, alice, bob).Return(errors.New("broker down"))

	out, err := env.uc.React(context.Background(), 10, 2, true)
	require.NoError(t, err)
	assert.True(t, out.Match)
}

func TestReact_NoMatch(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, &protocol.ReactionRequest{FromUserTgID: 10, ToUserID: 2}, mock.Anything).Return(nil)

	out, err := env.uc.React(context.Background(), 10, 2, false)
	require.NoError(t, err)
	assert.False(t, out.Match)
	assert.Nil(t, out.Peer)
	env.notifier.AssertNotCalled(t, "NotifyMatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestReact_PropagatesRemoteError(t *testing.T) {
	env := newDatingEnv()
	remote := &protocol.RemoteError{Action: protocol.ActionProcessLike, Message: "target user not found"}
	env.rpc.On("Call", mock.Anything, mock.Anything, mock.Anything).Return(remote)

	_, err := env.uc.React(context.Background(), 10, 99, true)
	assert.ErrorIs(t, err, remote)
}

func TestUpdatePreferences_RejectsInvertedRange(t *testing.T) {
	env := newDatingEnv()
	minAge, maxAge := 40, 20
	_, err := env.uc.UpdatePreferences(context.Background(), 1, protocol.PreferenceUpdate{MinAge: &minAge, MaxAge: &maxAge})
	assert.ErrorIs(t, err, ErrInvalidInput)

	minRating, maxRating := 4.0, 1.0
	_, err = env.uc.UpdatePreferences(context.Background(), 1, protocol.PreferenceUpdate{MinRating: &minRating, MaxRating: &maxRating})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.uc.UpdatePreferences(context.Background(), 1, protocol.PreferenceUpdate{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.rpc.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePreferences(t *testing.T) {
	env := newDatingEnv()
	gender := "F"
	update := protocol.PreferenceUpdate{PreferredGender: &gender}
	env.rpc.On("Call", mock.Anything, &protocol.UpdatePreferencesRequest{UserTgID: 1, Data: update}, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(*protocol.UpdatePreferencesResponse).UpdatedFields = []string{"preferred_gender"}
		}).Return(nil)

	fields, err := env.uc.UpdatePreferences(context.Background(), 1, update)
	require.NoError(t, err)
	assert.Equal(t, []string{"preferred_gender"}, fields)
}

func TestUpdatePhoto(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, &protocol.UpdatePhotoRequest{UserTgID: 1, FileData: []byte{1, 2}, Filename: "a.png"}, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(*protocol.UpdatePhotoResponse).PhotoURL = "http://minio/new.png"
		}).Return(nil)

	url, err := env.uc.UpdatePhoto(context.Background(), 1, []byte{1, 2}, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "http://minio/new.png", url)

	_, err = env.uc.UpdatePhoto(context.Background(), 1, nil, "a.png")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProfileField(t *testing.T) {
	env := newDatingEnv()
	bio := "new bio"
	update := protocol.ProfileUpdate{Bio: &bio}
	env.rpc.On("Call", mock.Anything, &protocol.UpdateProfileFieldRequest{UserTgID: 1, Data: update, ActionType: "edit_bio"}, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(*protocol.UpdateProfileFieldResponse).UpdatedFields = []string{"bio"}
		}).Return(nil)

	fields, err := env.uc.UpdateProfileField(context.Background(), 1, update, "edit_bio")
	require.NoError(t, err)
	assert.Equal(t, []string{"bio"}, fields)

	_, err = env.uc.UpdateProfileField(context.Background(), 1, protocol.ProfileUpdate{}, "edit_bio")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRating(t *testing.T) {
	env := newDatingEnv()
	env.rpc.On("Call", mock.Anything, &protocol.GetRatingRequest{UserTgID: 1}, mock.Anything).
		Run(func(args mock.Arguments) {
			resp := args.Get(2).(*protocol.RatingResponse)
			resp.Rating = 2.7
			resp.LikeCount = 2
		}).Return(nil)

	view, err := env.uc.Rating(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &RatingView{Rating: 2.7, LikeCount: 2}, view)
}

func TestPhoto(t *testing.T) {
	env := newDatingEnv()
	env.photos.On("Fetch", mock.Anything, "http://minio/a.jpg").Return([]byte("x"), true, nil)

	data, found, err := env.uc.Photo(context.Background(), "http://minio/a.jpg")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("x"), data)

	_, _, err = env.uc.Photo(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
