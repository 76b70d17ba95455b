package ws

import (
	"log"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/iayvob/palboti-backend/internal/model"
)

// Room naming. Clients that subscribe to a single robot join its own room;
// everyone else can join the fleet room for all updates.
const fleetRoom = "robots"

func robotRoom(robotID string) string {
	return "robot-status-" + robotID
}

// Server wraps the Socket.IO server and owns the room-based robot status
// fan-out. It implements the bridge's Broadcaster.
type Server struct {
	io *socketio.Server
}

// NewServer creates and configures the Socket.IO server
func NewServer() *Server {
	io := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool {
					// Allow all origins for now (can be restricted later)
					return true
				},
			},
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool {
					return true
				},
			},
		},
	})

	s := &Server{io: io}

	io.OnConnect("/", func(conn socketio.Conn) error {
		// JWT authentication is handled in the handshake middleware.
		// If we reach here, the connection is authenticated.
		log.Printf("[WebSocket] Client connected: %s", conn.ID())

		s.handleSubscribeAll(conn)

		conn.Emit("connected", map[string]interface{}{
			"ok": true,
		})
		return nil
	})

	io.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		log.Printf("[WebSocket] Client disconnected: %s, reason: %s", conn.ID(), reason)
	})

	io.OnError("/", func(conn socketio.Conn, e error) {
		log.Printf("[WebSocket] Error for client %s: %v", conn.ID(), e)
	})

	io.OnEvent("/", "subscribe-robot-status", s.handleSubscribeRobot)
	io.OnEvent("/", "unsubscribe-robot-status", s.handleUnsubscribeRobot)

	return s
}

// Serve runs the Socket.IO event loop. Call it in a goroutine.
func (s *Server) Serve() error {
	return s.io.Serve()
}

// Close shuts the Socket.IO server down
func (s *Server) Close() error {
	return s.io.Close()
}

// handleSubscribeAll puts every connection in the fleet room so dashboards
// get the full stream by default
func (s *Server) handleSubscribeAll(conn socketio.Conn) {
	conn.Join(fleetRoom)
}

// handleSubscribeRobot joins the per-robot room
func (s *Server) handleSubscribeRobot(conn socketio.Conn, robotID string) {
	if robotID == "" {
		conn.Emit("error", map[string]interface{}{
			"message": "robot id is required",
		})
		return
	}
	log.Printf("[WebSocket] Client %s subscribed to robot %s", conn.ID(), robotID)
	conn.Join(robotRoom(robotID))
	conn.Emit("subscribed", map[string]interface{}{
		"robotId": robotID,
	})
}

// handleUnsubscribeRobot leaves the per-robot room
func (s *Server) handleUnsubscribeRobot(conn socketio.Conn, robotID string) {
	if robotID == "" {
		return
	}
	log.Printf("[WebSocket] Client %s unsubscribed from robot %s", conn.ID(), robotID)
	conn.Leave(robotRoom(robotID))
}

// BroadcastRobotStatus pushes a merged robot record to the robot's own room
// and to the fleet room
func (s *Server) BroadcastRobotStatus(robot *model.Robot) {
	s.io.BroadcastToRoom("/", robotRoom(robot.ID), "robot-status-update", robot)
	s.io.BroadcastToRoom("/", fleetRoom, "robot-status-update", robot)
}
