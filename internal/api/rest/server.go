package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, handler *Handler) *Server {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Sync triggers
	api.HandleFunc("/sync/rosters", handler.SyncRosters).Methods("POST")
	api.HandleFunc("/sync/odds", handler.SyncOdds).Methods("POST")
	api.HandleFunc("/sync/schedule", handler.SyncSchedule).Methods("POST")

	// Games
	api.HandleFunc("/games/today", handler.GetTodaysGames).Methods("GET")
	api.HandleFunc("/games", handler.GetGamesByDate).Methods("GET")
	api.HandleFunc("/games/{gameID}", handler.GetGame).Methods("GET")
	api.HandleFunc("/games/{gameID}/resolve", handler.ResolveGame).Methods("POST")
	api.HandleFunc("/games/{gameID}/predictions", handler.GetGamePredictions).Methods("GET")
	api.HandleFunc("/games/{gameID}/predictions", handler.DeleteGamePredictions).Methods("DELETE")

	// Identities
	api.HandleFunc("/identities/search", handler.SearchIdentities).Methods("GET")
	api.HandleFunc("/identities/{identityID}", handler.GetIdentity).Methods("GET")

	// Predictions
	api.HandleFunc("/predictions", handler.CreatePrediction).Methods("POST")
	api.HandleFunc("/predictions", handler.GetPredictions).Methods("GET")
	api.HandleFunc("/predictions/accuracy", handler.GetAccuracy).Methods("GET")
	api.HandleFunc("/predictions/stale", handler.GetStalePredictions).Methods("GET")
	api.HandleFunc("/players/{identityID}/predictions", handler.GetPlayerPredictions).Methods("GET")

	// Operational
	api.HandleFunc("/quota", handler.GetQuota).Methods("GET")
	api.HandleFunc("/scheduler/status", handler.GetSchedulerStatus).Methods("GET")

	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: router,
		},
	}
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
