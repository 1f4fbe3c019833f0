package monitor

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vanet.sim/internal/sim"
)

func sampleFrame(t float64) sim.TickFrame {
	return sim.TickFrame{
		Time:           t,
		Vehicles:       10,
		ActiveVehicles: 8,
		CoveredCells:   42,
		Deliveries:     3,
		RSUs:           []sim.RSUState{{ID: 10001, Active: true, Covered: 42}},
	}
}

func TestStateEndpoint(t *testing.T) {
	ws := NewWebServer()
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode, "no tick published yet")

	ws.PublishTick(sampleFrame(7))

	resp, err = srv.Client().Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var frame sim.TickFrame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frame))
	require.Equal(t, 7.0, frame.Time)
	require.Len(t, frame.RSUs, 1)
}

func TestWebsocketReceivesFrames(t *testing.T) {
	ws := NewWebServer()
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler registers the client just after the handshake; wait for
	// it before publishing.
	require.Eventually(t, func() bool {
		ws.mu.RLock()
		defer ws.mu.RUnlock()
		return len(ws.clients) == 1
	}, time.Second, 5*time.Millisecond)

	ws.PublishTick(sampleFrame(1))

	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame sim.TickFrame
	require.NoError(t, json.Unmarshal(payload, &frame))
	require.Equal(t, 1.0, frame.Time)
}

func TestSlowClientIsDropped(t *testing.T) {
	ws := NewWebServer()
	c := &client{send: make(chan []byte, 1)}
	ws.mu.Lock()
	ws.clients[c] = struct{}{}
	ws.mu.Unlock()

	// No writePump drains the channel: the second publish overflows the
	// buffer and evicts the client instead of blocking.
	ws.PublishTick(sampleFrame(1))
	ws.PublishTick(sampleFrame(2))

	ws.mu.RLock()
	_, stillThere := ws.clients[c]
	ws.mu.RUnlock()
	require.False(t, stillThere)
}

func TestChartsPage(t *testing.T) {
	ws := NewWebServer()
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/charts")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode, "no tick published yet")

	ws.PublishTick(sampleFrame(3))
	ws.PublishTick(sampleFrame(4))

	resp, err = srv.Client().Get(srv.URL + "/charts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	require.Contains(t, page, "echarts", "charts page must embed echarts charts")
	require.Contains(t, page, "Coverage and dissemination")
	require.Contains(t, page, "RSU covered cells")
}

func TestHistoryIsBounded(t *testing.T) {
	ws := NewWebServer()
	for i := 0; i < maxHistory+10; i++ {
		ws.PublishTick(sampleFrame(float64(i)))
	}
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	require.Len(t, ws.history, maxHistory)
	require.Equal(t, float64(10), ws.history[0].Time, "oldest frames are evicted first")
}
