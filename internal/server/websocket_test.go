package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/room"
)

func TestRoomConversation(t *testing.T) {
	srv := newTestServer(t, newTestHub(t))
	ann := dial(t, srv)
	bob := dial(t, srv)

	roster := decode[[]room.Profile](t, joinRoom(t, ann, "lobby", "Ann", "u1").Payload)
	require.Len(t, roster, 1)

	roster = decode[[]room.Profile](t, joinRoom(t, bob, "lobby", "Bob", "u2").Payload)
	require.Len(t, roster, 2)
	assert.Equal(t, []string{"u1", "u2"}, []string{roster[0].UserID, roster[1].UserID})

	roster = decode[[]room.Profile](t, readUntil(t, ann, protocol.TypeRoster).Payload)
	assert.Len(t, roster, 2)

	t.Run("chat reaches the whole room", func(t *testing.T) {
		sendFrame(t, ann, "chat", "c1", map[string]string{"text": "hello"})
		for _, conn := range []*websocket.Conn{ann, bob} {
			msg := decode[room.Message](t, readUntil(t, conn, protocol.TypeChat).Payload)
			assert.Equal(t, "hello", msg.Text)
			assert.Equal(t, "u1", msg.From.UserID)
			assert.Equal(t, "Ann", msg.From.DisplayName)
			assert.Equal(t, room.DefaultBubbleColor, msg.From.BubbleColor)
		}
		ack := decode[protocol.AckPayload](t, readUntil(t, ann, protocol.TypeAck).Payload)
		assert.Equal(t, protocol.AckPayload{Event: "chat", Delivered: 2}, ack)
	})

	t.Run("private reaches only the recipient", func(t *testing.T) {
		sendFrame(t, bob, "private", "p1", map[string]string{"toUserId": "u1", "stamp": "wave"})

		msg := decode[room.Message](t, readUntil(t, ann, protocol.TypePrivate).Payload)
		assert.Equal(t, "wave", msg.Stamp)
		assert.Equal(t, "u1", msg.ToUserID)
		assert.Equal(t, "Bob", msg.From.DisplayName)

		for {
			f := readFrame(t, bob)
			require.NotEqual(t, protocol.TypePrivate, f.Type)
			if f.Type == protocol.TypeAck {
				assert.Equal(t, "p1", f.RequestID)
				assert.Equal(t, 1, decode[protocol.AckPayload](t, f.Payload).Delivered)
				break
			}
		}
	})

	t.Run("private to unknown user", func(t *testing.T) {
		sendFrame(t, bob, "private", "p2", map[string]string{"toUserId": "ghost", "text": "?"})
		f := readUntil(t, bob, protocol.TypeError)
		assert.Equal(t, "p2", f.RequestID)
		assert.Equal(t, protocol.CodeUnknownRecipient, decode[protocol.ErrorPayload](t, f.Payload).Code)
	})

	t.Run("profile update rebroadcasts roster", func(t *testing.T) {
		sendFrame(t, ann, "updateProfile", "u", map[string]string{"bubbleColor": "#ff0000"})
		roster := decode[[]room.Profile](t, readUntil(t, bob, protocol.TypeRoster).Payload)
		require.Len(t, roster, 2)
		assert.Equal(t, "#ff0000", roster[0].BubbleColor)
		assert.Equal(t, room.DefaultTextColor, roster[0].TextColor)
		assert.Equal(t, "u", readUntil(t, ann, protocol.TypeAck).RequestID)
	})

	t.Run("leave updates the remaining members", func(t *testing.T) {
		sendFrame(t, bob, "leave", "l1", nil)
		assert.Equal(t, "l1", readUntil(t, bob, protocol.TypeAck).RequestID)

		roster := decode[[]room.Profile](t, readUntil(t, ann, protocol.TypeRoster).Payload)
		require.Len(t, roster, 1)
		assert.Equal(t, "u1", roster[0].UserID)
	})

	t.Run("chat after leave is rejected", func(t *testing.T) {
		sendFrame(t, bob, "chat", "c2", map[string]string{"text": "anyone?"})
		f := readUntil(t, bob, protocol.TypeError)
		payload := decode[protocol.ErrorPayload](t, f.Payload)
		assert.Equal(t, protocol.CodeNotJoined, payload.Code)
		assert.Equal(t, "chat", payload.Event)
	})
}

func TestInvalidFrames(t *testing.T) {
	srv := newTestServer(t, newTestHub(t))
	conn := dial(t, srv)

	tests := []struct {
		name      string
		raw       string
		requestID string
	}{
		{"not json", "not json", ""},
		{"unknown type", `{"type":"shout","request_id":"s"}`, "s"},
		{"join without room", `{"type":"join","request_id":"j","payload":{"displayName":"Ann","userId":"u1"}}`, "j"},
		{"private without recipient", `{"type":"private","request_id":"p","payload":{"text":"x"}}`, "p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			f := readUntil(t, conn, protocol.TypeError)
			assert.Equal(t, tt.requestID, f.RequestID)
			assert.Equal(t, protocol.CodeInvalidArgument, decode[protocol.ErrorPayload](t, f.Payload).Code)
		})
	}
}

func TestDisconnectReleasesSession(t *testing.T) {
	h := newTestHub(t)
	srv := newTestServer(t, h)
	ann := dial(t, srv)
	bob := dial(t, srv)

	joinRoom(t, ann, "lobby", "Ann", "u1")
	joinRoom(t, bob, "lobby", "Bob", "u2")
	readUntil(t, ann, protocol.TypeRoster)

	require.NoError(t, bob.Close())

	roster := decode[[]room.Profile](t, readUntil(t, ann, protocol.TypeRoster).Payload)
	require.Len(t, roster, 1)
	assert.Equal(t, "u1", roster[0].UserID)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDuplicateUserRejected(t *testing.T) {
	srv := newTestServer(t, newTestHub(t, func(c *config.Config) {
		c.DuplicatePolicy = room.DuplicateReject
	}))
	first := dial(t, srv)
	second := dial(t, srv)

	joinRoom(t, first, "lobby", "Ann", "u1")

	sendFrame(t, second, "join", "dup", map[string]string{"room": "lobby", "displayName": "Imposter", "userId": "u1"})
	f := readUntil(t, second, protocol.TypeError)
	assert.Equal(t, "dup", f.RequestID)
	assert.Equal(t, protocol.CodeUserIDTaken, decode[protocol.ErrorPayload](t, f.Payload).Code)
}

func TestDisallowedOriginForbidden(t *testing.T) {
	h := newTestHub(t)
	srv := newTestServer(t, h)

	for _, origin := range []string{"", "http://evil.example", "https://localhost:8080"} {
		conn, resp, err := dialWithOrigin(srv, origin)
		if conn != nil {
			_ = conn.Close()
		}
		require.Error(t, err, origin)
		require.NotNil(t, resp, origin)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, origin)
	}
	assert.Zero(t, h.ClientCount())
}

func TestOversizedMessageClosesConnection(t *testing.T) {
	srv := newTestServer(t, newTestHub(t, func(c *config.Config) { c.MaxMessageSize = 128 }))
	conn := dial(t, srv)

	big := `{"type":"chat","payload":{"text":"` + strings.Repeat("x", 512) + `"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig, websocket.CloseAbnormalClosure) ||
		strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "reset"), err.Error())
}

func TestRateLimitedFrames(t *testing.T) {
	srv := newTestServer(t, newTestHub(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	}))
	conn := dial(t, srv)

	for i := 0; i < 3; i++ {
		sendFrame(t, conn, "leave", "", nil)
	}

	var codes []protocol.Code
	for i := 0; i < 3; i++ {
		codes = append(codes, decode[protocol.ErrorPayload](t, readUntil(t, conn, protocol.TypeError).Payload).Code)
	}
	assert.ElementsMatch(t, []protocol.Code{protocol.CodeNotJoined, protocol.CodeNotJoined, protocol.CodeRateLimited}, codes)
}
