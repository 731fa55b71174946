package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubShutdownWithoutClients(t *testing.T) {
	h := NewHub(testConfig(), zerolog.Nop())
	go h.Run()

	assert.NoError(t, h.Shutdown(time.Second))
}

func TestShutdownDisconnectsClients(t *testing.T) {
	h := newTestHub(t)
	srv := newTestServer(t, h)

	conns := make([]*websocket.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conns = append(conns, dial(t, srv))
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 3 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.Shutdown(2*time.Second))

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}
}

func TestStartAndShutdownServer(t *testing.T) {
	s := CreateServer("127.0.0.1:0", http.NewServeMux())

	errc := make(chan error, 1)
	go func() { errc <- StartServer(s, zerolog.Nop()) }()

	require.NoError(t, ShutdownServer(s, time.Second, zerolog.Nop()))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartServer did not return after shutdown")
	}
}
