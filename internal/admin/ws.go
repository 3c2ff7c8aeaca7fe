package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/logging"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsQueue      = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is one frame of the change stream. The initial frame has type
// "snapshot" and carries every collection; later frames carry the collection
// named by type.
type wsMessage struct {
	Type     string           `json:"type"`
	Drones   []fleet.Drone    `json:"drones,omitempty"`
	Alerts   []fleet.Alert    `json:"alerts,omitempty"`
	Activity []fleet.Activity `json:"activity,omitempty"`
	Stats    *fleet.Stats     `json:"stats,omitempty"`
}

func (s *Server) frame(kind fleet.ChangeKind) wsMessage {
	stats := s.store.Stats()
	msg := wsMessage{Type: string(kind), Stats: &stats}
	switch kind {
	case fleet.ChangeDrones:
		msg.Drones = s.store.ListDrones()
	case fleet.ChangeAlerts:
		msg.Alerts = s.store.ListAlerts()
	case fleet.ChangeActivity:
		msg.Activity = s.store.ListActivity()
	}
	return msg
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	changes := make(chan fleet.ChangeKind, wsQueue)
	unsubscribe := s.store.Subscribe(func(c fleet.Change) {
		select {
		case changes <- c.Kind:
		default:
			// Slow client. Frames carry whole collections, so the next one catches up.
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stats := s.store.Stats()
	snapshot := wsMessage{
		Type:     "snapshot",
		Drones:   s.store.ListDrones(),
		Alerts:   s.store.ListAlerts(),
		Activity: s.store.ListActivity(),
		Stats:    &stats,
	}
	if err := s.writeFrame(conn, snapshot); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case kind := <-changes:
			if err := s.writeFrame(conn, s.frame(kind)); err != nil {
				log.Debug("websocket write failed", "err", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
