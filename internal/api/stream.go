package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/gridsim/internal/engine"
	"github.com/talgya/gridsim/internal/power"
)

const (
	maxStreams   = 16
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var openStreams atomic.Int32

// streamFrame is what a stream client receives after each tick.
type streamFrame struct {
	Tick    uint64          `json:"tick"`
	Time    string          `json:"time"`
	Stats   engine.SimStats `json:"stats"`
	Supply  string          `json:"supply"`
	Demand  string          `json:"demand"`
	Revenue string          `json:"revenue"`
	Nets    int             `json:"nets"`
}

func frameOf(snap *engine.Snapshot) streamFrame {
	return streamFrame{
		Tick:    snap.Tick,
		Time:    snap.Time,
		Stats:   snap.Stats,
		Supply:  power.FormatPower(snap.Stats.Supply),
		Demand:  power.FormatPower(snap.Stats.Demand),
		Revenue: snap.Revenue.String(),
		Nets:    len(snap.Power.Nets),
	}
}

// handleStream upgrades to a websocket and pushes a frame for every
// published snapshot. A client too slow to keep up skips ticks.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if openStreams.Add(1) > maxStreams {
		openStreams.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer openStreams.Add(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "remote", r.RemoteAddr)

	// Incoming messages are discarded; reading is needed to see pongs and
	// the close frame.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("stream read error", "sub_id", subID, "error", err)
				}
				return
			}
		}
	}()

	if snap := s.Sim.Latest(); snap != nil {
		if err := writeFrame(conn, frameOf(snap)); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(conn, frameOf(snap)); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f streamFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
