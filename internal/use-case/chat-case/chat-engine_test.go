package chat_service

import (
	"context"
	"testing"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/presence"
	chat_repo "github.com/ThinkYuvraj/Sociale/internal/repo/chat"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatEngine_SendAndReadScenario(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	b := f.connect("bob")
	drain(t, a)
	drain(t, b)

	f.send(a, &websocket.SendMessage{ChatID: chatID, Content: "hi", MessageType: "text"})

	bEvents := named(drain(t, b), websocket.EventNewMessage)
	require.Len(t, bEvents, 1)
	assert.Equal(t, chatID, bEvents[0].Data["chatId"])
	msg := bEvents[0].Data["message"].(map[string]any)
	assert.Equal(t, "alice", msg["sender"].(map[string]any)["_id"])
	assert.Equal(t, "hi", msg["content"])
	assert.Equal(t, "text", msg["messageType"])
	assert.Empty(t, msg["readBy"])

	aEvents := named(drain(t, a), websocket.EventNewMessage)
	require.Len(t, aEvents, 1, "sender's own session receives the message")
	assert.Equal(t, msg["_id"], aEvents[0].Data["message"].(map[string]any)["_id"])

	f.send(b, &websocket.MarkMessagesRead{ChatID: chatID})

	reads := named(drain(t, a), websocket.EventMessagesRead)
	require.Len(t, reads, 1)
	assert.Equal(t, chatID, reads[0].Data["chatId"])
	assert.Equal(t, "bob", reads[0].Data["userId"])
	assert.NotEmpty(t, reads[0].Data["readAt"])
	assert.Empty(t, named(drain(t, b), websocket.EventMessagesRead), "reader's session is excluded")

	messages, _, err := f.store.GetMessages(context.Background(), chatID, 0, 50)
	require.Nil(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].ReadBy, 1)
	assert.Equal(t, "bob", messages[0].ReadBy[0].User)
}

func TestChatEngine_ConnectWithoutChatsJoinsPersonalRoomOnly(t *testing.T) {
	f := newFixture(t)

	c := f.connect("carol")

	assert.Equal(t, []string{websocket.PersonalRoom("carol")}, f.hub.Rooms(c))
	assert.True(t, f.registry.IsOnline("carol"))
}

func TestChatEngine_ConnectJoinsChatRooms(t *testing.T) {
	f := newFixture(t)
	first := f.privateChat(t, "alice", "bob")
	second := f.privateChat(t, "alice", "carol")

	c := f.connect("alice")

	assert.ElementsMatch(t, []string{websocket.PersonalRoom("alice"), first, second}, f.hub.Rooms(c))
}

func TestChatEngine_ConnectSurvivesStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.chats = brokenChatRepo{ChatRepoContract: f.store}

	c := f.connect("alice")

	assert.Equal(t, []string{websocket.PersonalRoom("alice")}, f.hub.Rooms(c))
	errs := named(drain(t, c), websocket.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "failed to load chats", errs[0].Data["message"])
	assert.True(t, f.registry.IsOnline("alice"))
}

func TestChatEngine_NonParticipantCannotSend(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	intruder := f.connect("carol")
	f.send(intruder, &websocket.JoinChat{ChatID: chatID})
	drain(t, a)
	drain(t, intruder)

	f.send(intruder, &websocket.SendMessage{ChatID: chatID, Content: "let me in"})

	errs := named(drain(t, intruder), websocket.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "not a participant of this chat", errs[0].Data["message"])
	assert.Empty(t, drain(t, a))

	_, total, err := f.store.GetMessages(context.Background(), chatID, 0, 50)
	require.Nil(t, err)
	assert.Zero(t, total)
}

func TestChatEngine_SendErrors(t *testing.T) {
	f := newFixture(t)
	a := f.connect("alice")

	f.send(a, &websocket.SendMessage{ChatID: "65f000000000000000000000", Content: "hi"})
	f.send(a, &websocket.SendMessage{ChatID: "whatever", Content: "   "})

	errs := named(drain(t, a), websocket.EventError)
	require.Len(t, errs, 2)
	assert.Equal(t, "chat not found", errs[0].Data["message"])
	assert.Equal(t, "message content is required", errs[1].Data["message"])
}

func TestChatEngine_PersistenceFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	b := f.connect("bob")
	drain(t, a)
	drain(t, b)
	f.engine.chats = brokenChatRepo{ChatRepoContract: f.store}

	f.send(a, &websocket.SendMessage{ChatID: chatID, Content: "hi"})
	f.send(a, &websocket.MarkMessagesRead{ChatID: chatID})

	errs := named(drain(t, a), websocket.EventError)
	require.Len(t, errs, 2)
	assert.Equal(t, "failed to send message", errs[0].Data["message"])
	assert.Equal(t, "failed to mark messages as read", errs[1].Data["message"])
	assert.Empty(t, drain(t, b), "nothing is broadcast after a failed write")
}

func TestChatEngine_TypingNeverWrites(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	b := f.connect("bob")
	drain(t, a)
	drain(t, b)
	before := f.repo.writes.Load()

	for i := 0; i < 1000; i++ {
		f.send(a, &websocket.Typing{ChatID: chatID, IsTyping: true})
		if i%200 == 0 {
			drain(t, b)
		}
	}

	assert.Equal(t, before, f.repo.writes.Load())
	assert.Empty(t, drain(t, a), "typing is not echoed to the sender")
}

func TestChatEngine_TypingPayload(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	b := f.connect("bob")
	drain(t, b)

	f.send(a, &websocket.Typing{ChatID: chatID, IsTyping: false})

	events := named(drain(t, b), websocket.EventUserTyping)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"chatId": chatID, "userId": "alice", "username": "alice", "isTyping": false}, events[0].Data)
}

func TestChatEngine_MarkReadSoftFailures(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	intruder := f.connect("carol")
	drain(t, a)
	drain(t, intruder)

	f.send(intruder, &websocket.MarkMessagesRead{ChatID: chatID})
	f.send(intruder, &websocket.MarkMessagesRead{ChatID: "65f000000000000000000000"})

	assert.Empty(t, drain(t, intruder))
	assert.Empty(t, drain(t, a))
}

func TestChatEngine_MarkReadTwiceAddsOneEntry(t *testing.T) {
	f := newFixture(t)
	chatID := f.privateChat(t, "alice", "bob")
	a := f.connect("alice")
	b := f.connect("bob")
	f.send(a, &websocket.SendMessage{ChatID: chatID, Content: "one"})
	f.send(a, &websocket.SendMessage{ChatID: chatID, Content: "two"})

	f.send(b, &websocket.MarkMessagesRead{ChatID: chatID})
	f.send(b, &websocket.MarkMessagesRead{ChatID: chatID})

	messages, _, err := f.store.GetMessages(context.Background(), chatID, 0, 50)
	require.Nil(t, err)
	for _, m := range messages {
		assert.Len(t, m.ReadBy, 1)
	}
}

func TestChatEngine_BroadcastStaysInChat(t *testing.T) {
	f := newFixture(t)
	group, appErr := f.store.CreateGroupChat(context.Background(), "alice", "crew", []string{"alice", "bob", "carol"})
	require.Nil(t, appErr)
	chatID := group.ID.Hex()

	a1 := f.connect("alice")
	a2 := f.connect("alice")
	b := f.connect("bob")
	c := f.connect("carol")
	outsider := f.connect("dave")
	for _, s := range []*websocket.Client{a1, a2, b, c, outsider} {
		drain(t, s)
	}

	f.send(a1, &websocket.SendMessage{ChatID: chatID, Content: "hello crew"})

	var ids []any
	for _, s := range []*websocket.Client{a1, a2, b, c} {
		events := named(drain(t, s), websocket.EventNewMessage)
		require.Len(t, events, 1)
		msg := events[0].Data["message"].(map[string]any)
		assert.Equal(t, "hello crew", msg["content"])
		assert.Equal(t, chatID, events[0].Data["chatId"])
		ids = append(ids, msg["_id"])
	}
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Empty(t, drain(t, outsider))
}

func TestChatEngine_PresenceScopedToSharedChats(t *testing.T) {
	f := newFixture(t)
	f.privateChat(t, "alice", "bob")
	b := f.connect("bob")
	stranger := f.connect("carol")
	drain(t, b)
	drain(t, stranger)

	a := f.connect("alice")

	online := named(drain(t, b), websocket.EventUserOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "alice", online[0].Data["userId"])
	assert.Empty(t, drain(t, stranger))
	assert.Empty(t, named(drain(t, a), websocket.EventUserOnline))

	f.disconnect(a)

	offline := named(drain(t, b), websocket.EventUserOffline)
	require.Len(t, offline, 1)
	assert.Equal(t, "alice", offline[0].Data["userId"])
	assert.NotEmpty(t, offline[0].Data["lastSeen"])
	assert.Empty(t, drain(t, stranger))
	assert.False(t, f.registry.IsOnline("alice"))
}

func TestChatEngine_SecondTabKeepsUserOnline(t *testing.T) {
	f := newFixture(t)
	f.privateChat(t, "alice", "bob")
	b := f.connect("bob")
	a1 := f.connect("alice")
	a2 := f.connect("alice")
	drain(t, b)

	f.disconnect(a1)
	assert.True(t, f.registry.IsOnline("alice"))
	assert.Empty(t, drain(t, b))

	f.disconnect(a2)
	assert.False(t, f.registry.IsOnline("alice"))
	assert.Len(t, named(drain(t, b), websocket.EventUserOffline), 1)

	updates := f.presenceW.all()
	var alice []presenceUpdate
	for _, u := range updates {
		if u.UserID == "alice" {
			alice = append(alice, u)
		}
	}
	require.Len(t, alice, 2)
	assert.True(t, alice[0].Online)
	assert.False(t, alice[1].Online)
	assert.False(t, alice[1].LastSeen.Before(alice[0].LastSeen))
}

func TestChatEngine_ReconnectDuringOfflineWriteStaysOnline(t *testing.T) {
	f := newFixture(t)
	writer := newBlockingPresence("alice")
	f.engine = NewChatEngine(f.hub, f.repo, f.users, f.registry, writer, f.notifier)
	f.privateChat(t, "alice", "bob")
	b := f.connect("bob")
	old := f.connect("alice")
	drain(t, b)

	tornDown := make(chan struct{})
	go func() {
		f.disconnect(old)
		close(tornDown)
	}()
	<-writer.entered

	reconnected := make(chan struct{})
	go func() {
		f.connect("alice")
		close(reconnected)
	}()
	require.Eventually(t, func() bool { return f.registry.IsOnline("alice") }, time.Second, 5*time.Millisecond)

	close(writer.release)
	<-tornDown
	<-reconnected

	assert.True(t, f.registry.IsOnline("alice"))

	events := drain(t, b)
	assert.Empty(t, named(events, websocket.EventUserOffline))
	online := named(events, websocket.EventUserOnline)
	require.NotEmpty(t, online)
	assert.Equal(t, "alice", online[len(online)-1].Data["userId"])

	var alice []presenceUpdate
	for _, u := range writer.all() {
		if u.UserID == "alice" {
			alice = append(alice, u)
		}
	}
	require.NotEmpty(t, alice)
	assert.True(t, alice[len(alice)-1].Online, "last persisted state must be online")
}

func TestChatEngine_OfflineParticipantsHandedToNotifier(t *testing.T) {
	f := newFixture(t)
	group, appErr := f.store.CreateGroupChat(context.Background(), "alice", "crew", []string{"alice", "bob", "carol"})
	require.Nil(t, appErr)
	a := f.connect("alice")
	f.connect("bob")

	f.send(a, &websocket.SendMessage{ChatID: group.ID.Hex(), Content: "anyone?"})

	payloads := f.notifier.all()
	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"carol"}, payloads[0].Recipients)
	assert.Equal(t, "alice", payloads[0].SenderID)
	assert.Equal(t, "anyone?", payloads[0].Preview)
}

func TestChatEngine_Relays(t *testing.T) {
	f := newFixture(t)
	a := f.connect("alice")
	b1 := f.connect("bob")
	b2 := f.connect("bob")
	drain(t, a)

	f.send(a, &websocket.LikePost{PostID: "p1", AuthorID: "bob", IsLiked: true})
	f.send(a, &websocket.CommentPost{PostID: "p1", AuthorID: "bob", Comment: "nice"})
	f.send(a, &websocket.FollowUser{UserID: "bob", IsFollowing: true})

	for _, s := range []*websocket.Client{b1, b2} {
		events := drain(t, s)
		require.Len(t, events, 3)
		assert.Equal(t, websocket.EventPostLiked, events[0].Event)
		assert.Equal(t, map[string]any{"postId": "p1", "userId": "alice", "username": "alice", "isLiked": true}, events[0].Data)
		assert.Equal(t, websocket.EventPostCommented, events[1].Event)
		assert.Equal(t, "nice", events[1].Data["comment"])
		assert.Equal(t, websocket.EventUserFollowed, events[2].Event)
		assert.Equal(t, true, events[2].Data["isFollowing"])
	}
	assert.Empty(t, drain(t, a))
	assert.Zero(t, f.repo.writes.Load())
}

func TestChatEngine_JoinLeave(t *testing.T) {
	f := newFixture(t)
	a := f.connect("alice")
	drain(t, a)

	f.send(a, &websocket.JoinChat{ChatID: "room-1"})
	f.send(a, &websocket.JoinChat{ChatID: "room-1"})
	assert.Contains(t, f.hub.Rooms(a), "room-1")

	f.send(a, &websocket.LeaveChat{ChatID: "room-1"})
	assert.NotContains(t, f.hub.Rooms(a), "room-1")

	f.send(a, &websocket.JoinChat{ChatID: websocket.PersonalRoom("bob")})
	assert.NotContains(t, f.hub.Rooms(a), websocket.PersonalRoom("bob"))
	assert.Len(t, named(drain(t, a), websocket.EventError), 1)

	f.send(a, &websocket.LeaveChat{ChatID: websocket.PersonalRoom("alice")})
	assert.Contains(t, f.hub.Rooms(a), websocket.PersonalRoom("alice"))
}

func TestChatEngine_NilCollaborators(t *testing.T) {
	hub := websocket.NewHub()
	t.Cleanup(hub.Close)
	store := chat_repo.NewMemoryChatRepo()
	chat, _, _ := store.FindOrCreatePrivateChat(context.Background(), "alice", "bob")
	engine := NewChatEngine(hub, store, nil, presence.NewRegistry(), nil, nil)

	c := websocket.NewClient(nil, testDirectory()["alice"], "127.0.0.1")
	hub.Register(c)
	engine.OnConnect(context.Background(), c)
	engine.OnEvent(context.Background(), c, &websocket.SendMessage{ChatID: chat.ID.Hex(), Content: "hi"})

	events := named(drain(t, c), websocket.EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Data["message"].(map[string]any)["sender"].(map[string]any)["username"])
}

func TestPreview(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, preview(short))

	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	got := []rune(preview(string(long)))
	assert.Len(t, got, previewLength+3)
}
