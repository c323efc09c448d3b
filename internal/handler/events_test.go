package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolov/imgd/internal/cache"
)

func TestEventsStream(t *testing.T) {
	env := testServer(t, true, nil)

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// give the server-side subscription a moment to register
	time.Sleep(100 * time.Millisecond)

	res := upload(t, env, testPNG(t, 10, 10))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev cache.ComputedEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, res.Identifier, ev.Identifier)
	assert.Equal(t, res.Format, ev.Format)
}

func TestEventsWithoutRedis(t *testing.T) {
	env := testServer(t, false, nil)

	resp, err := http.Get(env.ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
