package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePumpFlushesQueueThenCloses(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		send := make(chan []byte, 4)
		send <- []byte(`{"type":"session.created"}`)
		send <- []byte(`{"type":"session.updated"}`)
		send <- []byte(`{"type":"session.deleted"}`)
		close(send)

		client := &Client{UserID: "alice", CampaignID: 1, Conn: conn, Send: send}
		client.WritePump()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []string
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "unexpected error: %v", err)
			break
		}
		assert.Equal(t, websocket.TextMessage, kind)
		assert.NotEmpty(t, data, "no empty frames before the close")
		got = append(got, string(data))
	}

	assert.Equal(t, []string{
		`{"type":"session.created"}`,
		`{"type":"session.updated"}`,
		`{"type":"session.deleted"}`,
	}, got)
}
