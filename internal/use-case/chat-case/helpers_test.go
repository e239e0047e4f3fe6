package chat_service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	chat_repo "github.com/ThinkYuvraj/Sociale/internal/repo/chat"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/stretchr/testify/require"
)

type fakeDirectory map[string]entity.UserSummary

func (d fakeDirectory) Resolve(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError) {
	u, ok := d[userID]
	if !ok {
		return nil, app_error.NotFound("cannot find user", "user-id")
	}
	return &u, nil
}

func (d fakeDirectory) ResolveMany(ctx context.Context, userIDs []string) map[string]entity.UserSummary {
	out := make(map[string]entity.UserSummary)
	for _, id := range userIDs {
		if u, ok := d[id]; ok {
			out[id] = u
		}
	}
	return out
}

func testDirectory() fakeDirectory {
	return fakeDirectory{
		"alice": {ID: "alice", Username: "alice", FirstName: "Alice"},
		"bob":   {ID: "bob", Username: "bob", FirstName: "Bob"},
		"carol": {ID: "carol", Username: "carol", FirstName: "Carol"},
		"dave":  {ID: "dave", Username: "dave", FirstName: "Dave"},
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []chat_dto.OfflineMessagePayload
}

func (n *recordingNotifier) NotifyOffline(ctx context.Context, payload chat_dto.OfflineMessagePayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *recordingNotifier) all() []chat_dto.OfflineMessagePayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]chat_dto.OfflineMessagePayload(nil), n.payloads...)
}

type presenceUpdate struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}

type recordingPresence struct {
	mu      sync.Mutex
	updates []presenceUpdate
}

func (p *recordingPresence) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) *app_error.AppError {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, presenceUpdate{UserID: userID, Online: online, LastSeen: lastSeen})
	return nil
}

func (p *recordingPresence) all() []presenceUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presenceUpdate(nil), p.updates...)
}

// countingChatRepo counts every store mutation.
type countingChatRepo struct {
	chat_repo.ChatRepoContract
	writes atomic.Int32
}

func (r *countingChatRepo) FindOrCreatePrivateChat(ctx context.Context, a, b string) (*entity.Chat, bool, *app_error.AppError) {
	r.writes.Add(1)
	return r.ChatRepoContract.FindOrCreatePrivateChat(ctx, a, b)
}

func (r *countingChatRepo) CreateGroupChat(ctx context.Context, admin, name string, participants []string) (*entity.Chat, *app_error.AppError) {
	r.writes.Add(1)
	return r.ChatRepoContract.CreateGroupChat(ctx, admin, name, participants)
}

func (r *countingChatRepo) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, *app_error.AppError) {
	r.writes.Add(1)
	return r.ChatRepoContract.AppendMessage(ctx, chatID, msg)
}

func (r *countingChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string, readAt time.Time) *app_error.AppError {
	r.writes.Add(1)
	return r.ChatRepoContract.MarkMessagesRead(ctx, chatID, userID, readAt)
}

// brokenChatRepo simulates an unreachable store.
type brokenChatRepo struct {
	chat_repo.ChatRepoContract
}

func (brokenChatRepo) FindActiveChatsForUser(ctx context.Context, userID string) ([]*entity.Chat, *app_error.AppError) {
	return nil, app_error.Persistence("connection refused", "mongo")
}

func (brokenChatRepo) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, *app_error.AppError) {
	return nil, app_error.Persistence("connection refused", "mongo")
}

func (brokenChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string, readAt time.Time) *app_error.AppError {
	return app_error.Persistence("connection refused", "mongo")
}

type fixture struct {
	hub       *websocket.Hub
	store     *chat_repo.MemoryChatRepo
	repo      *countingChatRepo
	registry  *presence.Registry
	notifier  *recordingNotifier
	presenceW *recordingPresence
	engine    *ChatEngine
	users     fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		hub:       websocket.NewHub(),
		store:     chat_repo.NewMemoryChatRepo(),
		registry:  presence.NewRegistry(),
		notifier:  &recordingNotifier{},
		presenceW: &recordingPresence{},
		users:     testDirectory(),
	}
	f.repo = &countingChatRepo{ChatRepoContract: f.store}
	f.engine = NewChatEngine(f.hub, f.repo, f.users, f.registry, f.presenceW, f.notifier)
	t.Cleanup(f.hub.Close)
	return f
}

func (f *fixture) privateChat(t *testing.T, a, b string) string {
	chat, _, err := f.store.FindOrCreatePrivateChat(context.Background(), a, b)
	require.Nil(t, err)
	return chat.ID.Hex()
}

func (f *fixture) connect(userID string) *websocket.Client {
	c := websocket.NewClient(nil, f.users[userID], "127.0.0.1")
	f.hub.Register(c)
	f.engine.OnConnect(context.Background(), c)
	return c
}

func (f *fixture) disconnect(c *websocket.Client) {
	c.Close()
	rooms := f.hub.Unregister(c)
	f.engine.OnDisconnect(context.Background(), c, rooms)
}

func (f *fixture) send(c *websocket.Client, evt websocket.InboundEvent) {
	f.engine.OnEvent(context.Background(), c, evt)
}

type received struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func drain(t *testing.T, c *websocket.Client) []received {
	t.Helper()
	var out []received
	for {
		select {
		case raw := <-c.Send:
			var evt received
			require.NoError(t, json.Unmarshal(raw, &evt))
			out = append(out, evt)
		default:
			return out
		}
	}
}

func named(events []received, name string) []received {
	var out []received
	for _, e := range events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// blockingPresence holds the first offline write for one user until
// release is closed.
type blockingPresence struct {
	recordingPresence
	userID  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingPresence(userID string) *blockingPresence {
	return &blockingPresence{
		userID:  userID,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *blockingPresence) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) *app_error.AppError {
	if userID == p.userID && !online {
		blocked := false
		p.once.Do(func() { blocked = true })
		if blocked {
			close(p.entered)
			<-p.release
		}
	}
	return p.recordingPresence.UpdatePresence(ctx, userID, online, lastSeen)
}
