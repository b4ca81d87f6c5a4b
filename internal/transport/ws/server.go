// Package ws streams committed change batches to websocket subscribers, one
// world per connection.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"mycraft.gg/internal/world"
)

// TypeChanges is the only server-to-client message type on the feed.
const TypeChanges = "CHANGES"

// ChangesMsg mirrors world.FeedMsg on the wire.
type ChangesMsg struct {
	Type        string              `json:"type"`
	WorldID     int64               `json:"world_id"`
	Changes     []world.BlockChange `json:"changes"`
	LastUpdated time.Time           `json:"last_updated"`
}

type Server struct {
	svc  *world.Service
	feed *world.Feed
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *world.Service, feed *world.Feed, logger *log.Logger) *Server {
	return &Server{
		svc:  svc,
		feed: feed,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(rw, "world id must be an integer", http.StatusUnprocessableEntity)
			return
		}
		if _, err := s.svc.GetWorld(r.Context(), id); err != nil {
			if world.IsNotFound(err) {
				http.Error(rw, "world not found", http.StatusNotFound)
			} else {
				http.Error(rw, "storage unavailable", http.StatusServiceUnavailable)
			}
			return
		}

		// Subscribe before the upgrade so no batch committed after the
		// handshake can be missed.
		ch, cancelSub := s.feed.Subscribe(id)
		defer cancelSub()

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The client never sends application messages; the read loop only
		// notices the connection going away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out := ChangesMsg{
					Type:        TypeChanges,
					WorldID:     msg.WorldID,
					Changes:     msg.Changes,
					LastUpdated: msg.LastUpdated,
				}
				b, err := json.Marshal(out)
				if err != nil {
					s.log.Printf("ws: marshal feed msg: %v", err)
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}
