// Package websocket fans settlement events out to connected clients. The
// server tails the Redis stream the settlement sweep publishes to and
// broadcasts each entry to every subscriber.
package websocket

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/publisher"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development (TODO: restrict in production)
	},
}

// Server represents the WebSocket server
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	redis  *redis.Client
}

// NewServer creates a new WebSocket server. redisClient may be nil, in
// which case only direct broadcasts reach clients.
func NewServer(redisClient *redis.Client) *Server {
	return &Server{
		hub:   NewHub(),
		redis: redisClient,
	}
}

// Start starts the WebSocket server and blocks until it stops
func (s *Server) Start(ctx context.Context, port string) error {
	s.port = port

	go s.hub.Run()

	if s.redis != nil {
		go s.tailResolutionStream(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/predictions", s.handlePredictions)
	mux.HandleFunc("/ws/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}

	log.Printf("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

// handlePredictions handles WebSocket connections for settlement updates
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// tailResolutionStream relays settlement events from Redis to the hub
func (s *Server) tailResolutionStream(ctx context.Context) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{publisher.StreamPredictionsResolved, lastID},
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("Settlement stream read failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				if data, ok := msg.Values["data"].(string); ok {
					s.hub.Broadcast([]byte(data))
				}
			}
		}
	}
}

// BroadcastResolution sends a settlement payload to all connected clients
func (s *Server) BroadcastResolution(data []byte) {
	s.hub.Broadcast(data)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
