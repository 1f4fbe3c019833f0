// Package monitor serves a live view of a running simulation: a JSON state
// snapshot, a websocket feed pushing one frame per tick, and a chart page.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/vanet.sim/internal/sim"
)

// maxHistory bounds the tick history kept for the charts page.
const maxHistory = 2048

// WebServer publishes tick frames to HTTP and websocket clients. It
// implements sim.Publisher; PublishTick never blocks the loop — slow
// websocket clients are dropped.
type WebServer struct {
	mu      sync.RWMutex
	last    sim.TickFrame
	hasLast bool
	// history holds recent tick frames for the /charts timelines, oldest
	// first, capped at maxHistory.
	history []sim.TickFrame
	clients map[*client]struct{}

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWebServer returns a server with no connected clients.
func NewWebServer() *WebServer {
	return &WebServer{
		clients: make(map[*client]struct{}),
		// The monitor is a localhost debugging surface; skip origin checks.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

var _ sim.Publisher = (*WebServer)(nil)

// Handler returns the monitor's HTTP routes.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", ws.handleState)
	mux.HandleFunc("/ws", ws.handleWS)
	mux.HandleFunc("/charts", ws.handleCharts)
	return mux
}

// ListenAndServe runs the monitor on addr. Intended to run in its own
// goroutine for the lifetime of the process.
func (ws *WebServer) ListenAndServe(addr string) error {
	log.Printf("monitor listening on %s", addr)
	return http.ListenAndServe(addr, ws.Handler())
}

// PublishTick stores the frame and fans it out to connected clients.
func (ws *WebServer) PublishTick(frame sim.TickFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("monitor: marshal frame: %v", err)
		return
	}

	ws.mu.Lock()
	ws.last = frame
	ws.hasLast = true
	ws.history = append(ws.history, frame)
	if len(ws.history) > maxHistory {
		ws.history = ws.history[len(ws.history)-maxHistory:]
	}
	for c := range ws.clients {
		select {
		case c.send <- payload:
		default:
			// Client is not keeping up; drop it rather than stall the loop.
			delete(ws.clients, c)
			close(c.send)
		}
	}
	ws.mu.Unlock()
}

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	frame, ok := ws.last, ws.hasLast
	ws.mu.RUnlock()
	if !ok {
		http.Error(w, `{"error":"no tick yet"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		log.Printf("monitor: encode state: %v", err)
	}
}

func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	ws.mu.Lock()
	ws.clients[c] = struct{}{}
	ws.mu.Unlock()

	go c.writePump()
	go c.readPump(ws)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump(ws *WebServer) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.mu.Lock()
	if _, ok := ws.clients[c]; ok {
		delete(ws.clients, c)
		close(c.send)
	}
	ws.mu.Unlock()
}

// handleCharts renders an echarts dashboard of the run so far: coverage and
// delivery timelines plus the per-RSU covered-cell counts of the latest
// tick.
func (ws *WebServer) handleCharts(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	frame, ok := ws.last, ws.hasLast
	history := make([]sim.TickFrame, len(ws.history))
	copy(history, ws.history)
	ws.mu.RUnlock()
	if !ok {
		http.Error(w, "no tick yet", http.StatusNotFound)
		return
	}

	timeAxis := make([]string, len(history))
	coveredData := make([]opts.LineData, len(history))
	deliveryData := make([]opts.LineData, len(history))
	vehicleData := make([]opts.LineData, len(history))
	for i, f := range history {
		timeAxis[i] = fmt.Sprintf("%.0f", f.Time)
		coveredData[i] = opts.LineData{Value: f.CoveredCells}
		deliveryData[i] = opts.LineData{Value: f.Deliveries}
		vehicleData[i] = opts.LineData{Value: f.ActiveVehicles}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Coverage and dissemination",
			Subtitle: fmt.Sprintf("t=%.2f vehicles=%d/%d", frame.Time, frame.ActiveVehicles, frame.Vehicles),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(timeAxis).
		AddSeries("covered cells", coveredData).
		AddSeries("deliveries", deliveryData).
		AddSeries("active vehicles", vehicleData)

	rsuAxis := make([]string, len(frame.RSUs))
	rsuData := make([]opts.BarData, len(frame.RSUs))
	for i, r := range frame.RSUs {
		state := "off"
		if r.Active {
			state = "on"
		}
		rsuAxis[i] = fmt.Sprintf("%d (%s)", r.ID, state)
		rsuData[i] = opts.BarData{Value: r.Covered}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "RSU covered cells",
			Subtitle: fmt.Sprintf("%d rsus", len(frame.RSUs)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(rsuAxis).AddSeries("covered", rsuData,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
