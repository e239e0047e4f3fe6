package worker_handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	users map[string]entity.User
	err   *app_error.AppError
}

func (s *stubUsers) FindUserByID(ctx context.Context, id string) (*entity.User, *app_error.AppError) {
	u, ok := s.users[id]
	if !ok {
		return nil, app_error.NotFound("user not found", "userId")
	}
	return &u, nil
}

func (s *stubUsers) FindUsersByIDs(ctx context.Context, ids []string) ([]entity.User, *app_error.AppError) {
	if s.err != nil {
		return nil, s.err
	}
	var out []entity.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubUsers) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) *app_error.AppError {
	return nil
}

func (s *stubUsers) ResetPresence(ctx context.Context) *app_error.AppError { return nil }

type recordingPush struct {
	to   []string
	fail map[string]bool
}

func (r *recordingPush) Push(ctx context.Context, to entity.User, msg chat_dto.OfflineMessagePayload) error {
	if r.fail[to.ID] {
		return errors.New("smtp down")
	}
	r.to = append(r.to, to.ID)
	return nil
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: map[string]entity.User{
		"bob":   {ID: "bob", Username: "bob"},
		"carol": {ID: "carol", Username: "carol"},
	}}
}

func payload(t *testing.T, recipients ...string) []byte {
	raw, err := json.Marshal(chat_dto.OfflineMessagePayload{ChatID: "c1", SenderName: "alice", Recipients: recipients})
	require.NoError(t, err)
	return raw
}

func TestHandlePushOfflineMessage_NotifiesKnownRecipients(t *testing.T) {
	push := &recordingPush{}
	wh := NewWorkerHandler(newStubUsers(), push)

	err := wh.HandlePushOfflineMessage(context.Background(), payload(t, "bob", "carol", "ghost"))

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, push.to)
}

func TestHandlePushOfflineMessage_PartialFailureFailsJob(t *testing.T) {
	push := &recordingPush{fail: map[string]bool{"carol": true}}
	wh := NewWorkerHandler(newStubUsers(), push)

	err := wh.HandlePushOfflineMessage(context.Background(), payload(t, "bob", "carol"))

	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, []string{"bob"}, push.to)
}

func TestHandlePushOfflineMessage_BadInput(t *testing.T) {
	users := newStubUsers()
	wh := NewWorkerHandler(users, &recordingPush{})

	assert.ErrorContains(t, wh.HandlePushOfflineMessage(context.Background(), []byte("{")), "invalid push payload")
	assert.NoError(t, wh.HandlePushOfflineMessage(context.Background(), payload(t)))

	users.err = app_error.Persistence("db down", "")
	assert.Error(t, wh.HandlePushOfflineMessage(context.Background(), payload(t, "bob")))
}
