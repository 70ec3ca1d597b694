package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models/events"
)

func TestEventsFeedSignalsBulkMutations(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	// Single-entity writes are not broadcast.
	resp := env.doJSON(t, http.MethodPost, "/api/customers", `{"name":"Client C","phone":"0550123456"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/reset?confirm=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg events.DataChanged
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.TypeDataChanged, msg.Type)

	// Nothing else is queued.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	conn.Close()
	require.Eventually(t, func() bool { return env.hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
