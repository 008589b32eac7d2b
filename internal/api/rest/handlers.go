package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	predictionsvc "github.com/agreensr/sports-prop-odds-api-sub003/internal/predictions"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/quota"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/scheduler"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store/repository"
	syncsvc "github.com/agreensr/sports-prop-odds-api-sub003/internal/sync"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db           *store.Database
	identities   *repository.IdentityRepository
	games        *repository.GameRepository
	predictions  *repository.PredictionRepository
	resolver     *predictionsvc.Resolver
	syncService  *syncsvc.Service
	orchestrator *scheduler.Orchestrator
	guards       []*quota.Guard
}

// NewHandler creates a new handler
func NewHandler(db *store.Database, resolver *predictionsvc.Resolver, syncService *syncsvc.Service, orchestrator *scheduler.Orchestrator, guards []*quota.Guard) *Handler {
	return &Handler{
		db:           db,
		identities:   repository.NewIdentityRepository(db),
		games:        repository.NewGameRepository(db),
		predictions:  repository.NewPredictionRepository(db),
		resolver:     resolver,
		syncService:  syncService,
		orchestrator: orchestrator,
		guards:       guards,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.db.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]string{
		"status":  status,
		"service": "propwatch",
		"version": "1.0.0",
	})
}

// SyncRosters triggers a roster sync
func (h *Handler) SyncRosters(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.TriggerRosterSync(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Roster sync failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SyncOdds triggers an odds sweep
func (h *Handler) SyncOdds(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.TriggerOddsSync(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Odds sync failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SyncSchedule triggers a scoreboard sync for a date
func (h *Handler) SyncSchedule(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.syncService.SyncSchedule(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Schedule sync failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetTodaysGames returns all games for today
func (h *Handler) GetTodaysGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.GetByDate(r.Context(), time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch today's games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// GetGamesByDate returns games filtered by date, or by status when the
// status query parameter is set instead.
func (h *Handler) GetGamesByDate(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		if store.StatusRank(status) < 0 {
			respondError(w, http.StatusBadRequest, "Invalid status filter", nil)
			return
		}
		games, err := h.games.GetByStatus(r.Context(), status)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"games": games,
			"count": len(games),
		})
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	games, err := h.games.GetByDate(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// GetGame returns a specific game by identity ID
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	game, err := h.games.GetByID(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch game", err)
		return
	}
	if game == nil {
		respondError(w, http.StatusNotFound, "Game not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// ResolveGame settles unresolved predictions for a finished game
func (h *Handler) ResolveGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	game, err := h.games.GetByID(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch game", err)
		return
	}
	if game == nil {
		respondError(w, http.StatusNotFound, "Game not found", nil)
		return
	}
	if game.Status != store.StatusFinal {
		respondError(w, http.StatusConflict, "Game is not final", nil)
		return
	}

	settled, err := h.syncService.ResolveGame(r.Context(), game)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Settlement failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID,
		"settled": settled,
		"count":   len(settled),
	})
}

// GetGamePredictions returns all predictions for a game
func (h *Handler) GetGamePredictions(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	preds, err := h.predictions.GetByGame(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": preds,
		"count":       len(preds),
	})
}

// DeleteGamePredictions bulk-deletes a game's predictions ahead of a re-sync
func (h *Handler) DeleteGamePredictions(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	count, err := h.predictions.DeleteByGame(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID,
		"deleted": count,
	})
}

// SearchIdentities searches canonical identities by display name
func (h *Handler) SearchIdentities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "Missing query parameter 'q'", nil)
		return
	}

	kind := identity.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = identity.KindPlayer
	}
	if kind != identity.KindPlayer && kind != identity.KindGame {
		respondError(w, http.StatusBadRequest, "Invalid kind (use player or game)", nil)
		return
	}

	identities, err := h.identities.Search(r.Context(), kind, query)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to search identities", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"identities": identities,
		"count":      len(identities),
	})
}

// GetIdentity returns one identity with its provider mappings
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["identityID"]

	ident, err := h.identities.GetByID(r.Context(), identityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch identity", err)
		return
	}
	if ident == nil {
		respondError(w, http.StatusNotFound, "Identity not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, ident)
}

// predictionRequest is the POST /predictions payload
type predictionRequest struct {
	PlayerIdentityID string  `json:"player_identity_id"`
	GameIdentityID   string  `json:"game_identity_id"`
	StatType         string  `json:"stat_type"`
	PredictedValue   float64 `json:"predicted_value"`
	Line             float64 `json:"line"`
	Bookmaker        string  `json:"bookmaker"`
	Confidence       float64 `json:"confidence"`
	Call             string  `json:"call"`
}

// CreatePrediction stores a model's prop call. Re-submitting a tuple that
// already exists updates the unresolved row in place.
func (h *Handler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if req.PlayerIdentityID == "" || req.GameIdentityID == "" {
		respondError(w, http.StatusBadRequest, "player_identity_id and game_identity_id are required", nil)
		return
	}
	switch req.StatType {
	case store.StatPoints, store.StatRebounds, store.StatAssists, store.StatThrees:
	default:
		respondError(w, http.StatusBadRequest, "Invalid stat_type", nil)
		return
	}
	if req.Call != store.CallOver && req.Call != store.CallUnder {
		respondError(w, http.StatusBadRequest, "Invalid call (use OVER or UNDER)", nil)
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		respondError(w, http.StatusBadRequest, "Confidence must be in [0, 1]", nil)
		return
	}

	p := &store.Prediction{
		PlayerIdentityID: req.PlayerIdentityID,
		GameIdentityID:   req.GameIdentityID,
		StatType:         req.StatType,
		PredictedValue:   req.PredictedValue,
		Line:             req.Line,
		Bookmaker:        req.Bookmaker,
		Confidence:       req.Confidence,
		Call:             req.Call,
		Outcome:          store.OutcomeUnresolved,
	}

	if err := h.predictions.Upsert(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicatePrediction) {
			respondError(w, http.StatusConflict, "Prediction already resolved", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to store prediction", err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// GetPredictions lists predictions filtered by game, player, and/or outcome.
// At least one of game_id / player_id is required to bound the query.
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	playerID := r.URL.Query().Get("player_id")
	outcome := r.URL.Query().Get("outcome")

	if gameID == "" && playerID == "" {
		respondError(w, http.StatusBadRequest, "Provide game_id or player_id", nil)
		return
	}
	if outcome != "" && outcome != store.OutcomeUnresolved && outcome != store.OutcomeCorrect && outcome != store.OutcomeIncorrect {
		respondError(w, http.StatusBadRequest, "Invalid outcome filter", nil)
		return
	}

	var preds []*store.Prediction
	var err error
	if gameID != "" {
		preds, err = h.predictions.GetByGame(r.Context(), gameID)
	} else {
		preds, err = h.predictions.GetByPlayer(r.Context(), playerID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch predictions", err)
		return
	}

	filtered := preds[:0:0]
	for _, p := range preds {
		if playerID != "" && gameID != "" && p.PlayerIdentityID != playerID {
			continue
		}
		if outcome != "" && p.Outcome != outcome {
			continue
		}
		filtered = append(filtered, p)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": filtered,
		"count":       len(filtered),
	})
}

// GetPlayerPredictions returns a player's predictions
func (h *Handler) GetPlayerPredictions(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["identityID"]

	preds, err := h.predictions.GetByPlayer(r.Context(), identityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": preds,
		"count":       len(preds),
	})
}

// GetStalePredictions reports predictions still unresolved past a cutoff
// age. A growing list means settlement is stuck on missing stats mappings
// or box scores.
func (h *Handler) GetStalePredictions(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if s := r.URL.Query().Get("hours"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			hours = n
		}
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	preds, err := h.predictions.GetUnresolvedBefore(r.Context(), cutoff)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch stale predictions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cutoff":      cutoff,
		"predictions": preds,
		"count":       len(preds),
	})
}

// GetAccuracy returns accuracy stats over a rolling window
func (h *Handler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	windowDays := 30
	if s := r.URL.Query().Get("window_days"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 365 {
			windowDays = n
		}
	}

	stats, err := h.resolver.ComputeAccuracy(r.Context(), windowDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute accuracy", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetQuota reports the last observed provider allowances
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	statuses := make([]quota.Status, 0, len(h.guards))
	for _, g := range h.guards {
		statuses = append(statuses, g.Status())
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"providers": statuses})
}

// GetSchedulerStatus reports the orchestrator configuration
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.orchestrator.GetStatus())
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", s)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
