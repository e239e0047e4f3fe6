package websocket

import (
	"strings"
	"testing"

	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_Variants(t *testing.T) {
	tests := []struct {
		raw  string
		want InboundEvent
	}{
		{`{"event":"join-chat","data":{"chatId":"c1"}}`, &JoinChat{ChatID: "c1"}},
		{`{"event":"leave-chat","data":{"chatId":"c1"}}`, &LeaveChat{ChatID: "c1"}},
		{`{"event":"send-message","data":{"chatId":"c1","content":"hi","messageType":"text"}}`, &SendMessage{ChatID: "c1", Content: "hi", MessageType: "text"}},
		{`{"event":"send-message","data":{"chatId":"c1","content":"hi"}}`, &SendMessage{ChatID: "c1", Content: "hi"}},
		{`{"event":"typing-start","data":{"chatId":"c1"}}`, &Typing{ChatID: "c1", IsTyping: true}},
		{`{"event":"typing-stop","data":{"chatId":"c1"}}`, &Typing{ChatID: "c1", IsTyping: false}},
		{`{"event":"mark-messages-read","data":{"chatId":"c1"}}`, &MarkMessagesRead{ChatID: "c1"}},
		{`{"event":"like-post","data":{"postId":"p1","authorId":"u2","isLiked":true}}`, &LikePost{PostID: "p1", AuthorID: "u2", IsLiked: true}},
		{`{"event":"comment-post","data":{"postId":"p1","authorId":"u2","comment":"nice"}}`, &CommentPost{PostID: "p1", AuthorID: "u2", Comment: "nice"}},
		{`{"event":"follow-user","data":{"userId":"u2","isFollowing":true}}`, &FollowUser{UserID: "u2", IsFollowing: true}},
	}

	for _, tt := range tests {
		t.Run(tt.want.EventName(), func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.raw))
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":           `hello`,
		"unknown event":      `{"event":"delete-everything","data":{}}`,
		"missing chat id":    `{"event":"join-chat","data":{}}`,
		"no data":            `{"event":"send-message"}`,
		"wrong payload type": `{"event":"send-message","data":{"chatId":1}}`,
		"bad message type":   `{"event":"send-message","data":{"chatId":"c1","content":"hi","messageType":"audio"}}`,
		"content too long":   `{"event":"send-message","data":{"chatId":"c1","content":"` + strings.Repeat("a", 1001) + `"}}`,
		"missing author":     `{"event":"like-post","data":{"postId":"p1"}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			evt, err := DecodeEvent([]byte(raw))
			assert.Nil(t, evt)
			require.NotNil(t, err)
			assert.True(t, app_error.Is(err, app_error.KindValidation))
		})
	}
}

func TestDecodeEvent_ContentLimitCountsRunes(t *testing.T) {
	raw := `{"event":"send-message","data":{"chatId":"c1","content":"` + strings.Repeat("é", 1000) + `"}}`

	evt, err := DecodeEvent([]byte(raw))

	require.Nil(t, err)
	assert.Len(t, []rune(evt.(*SendMessage).Content), 1000)
}

func TestOutgoingEventShape(t *testing.T) {
	data, err := json.Marshal(ErrorEvent("boom"))

	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"message":"boom"}}`, string(data))
}
