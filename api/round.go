package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"goTradeServer/config"
	"goTradeServer/db"
	"goTradeServer/round"
	"goTradeServer/ws"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// OpenPositionRequest represents a trade entry request
type OpenPositionRequest struct {
	Player      string  `json:"player"`
	Direction   string  `json:"direction"` // LONG or SHORT
	Size        float64 `json:"size"`
	Leverage    float64 `json:"leverage"`
	CandleIndex int     `json:"candleIndex"` // client-observed candle
	Price       float64 `json:"price"`       // client-observed close
}

// ClosePositionRequest represents a trade exit request
type ClosePositionRequest struct {
	Player      string  `json:"player"`
	CandleIndex int     `json:"candleIndex"`
	Price       float64 `json:"price"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var roundController *round.Controller

// SetController wires the round controller into the HTTP handlers.
func SetController(c *round.Controller) {
	roundController = c
}

/* =========================
   ROUND ENDPOINTS
========================= */

// HandleCurrentRound handles GET /api/round/current
func HandleCurrentRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	roundID := ws.CurrentRoundID()
	if roundID == "" || roundController == nil {
		sendError(w, http.StatusServiceUnavailable, "No active round")
		return
	}

	rd, err := roundController.GetRound(roundID)
	if err != nil {
		sendError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]interface{}{
		"success":        true,
		"roundId":        rd.ID,
		"serverSeedHash": rd.SeedHash,
		"provenance":     rd.Provenance,
		"status":         rd.Status(),
		"startedAt":      rd.StartedAt,
		"config":         rd.Config,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetCandle handles GET /api/round/candle?roundId=...&index=N
// Re-derives the candle on demand so clients can spot-check the stream.
func HandleGetCandle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if roundController == nil {
		sendError(w, http.StatusServiceUnavailable, "No active round")
		return
	}

	roundID := r.URL.Query().Get("roundId")
	if roundID == "" {
		roundID = ws.CurrentRoundID()
	}
	if roundID == "" {
		sendError(w, http.StatusServiceUnavailable, "No active round")
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	candle, err := roundController.GetCandle(roundID, index)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"roundId": roundID,
		"candle":  candle,
	})
}

// HandleRoundHistory handles GET /api/round/history
// Query params: limit (optional, default 20, max MaxRoundHistory)
func HandleRoundHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > config.MaxRoundHistory {
		limit = config.MaxRoundHistory
	}

	records, err := db.GetRecentRoundHistory(r.Context(), limit)
	if err != nil {
		log.Printf("❌ Failed to get round history: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve round history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"rounds":  records,
		"count":   len(records),
	})
}

/* =========================
   TRADE ENDPOINTS
========================= */

// HandleOpenPosition handles POST /api/position/open
func HandleOpenPosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	roundID, pos, err := ws.OpenTrade(r.Context(), req.Player, round.Direction(req.Direction),
		req.Size, req.Leverage, req.CandleIndex, req.Price)
	if err != nil {
		sendError(w, statusForTradeError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"roundId":  roundID,
		"position": pos,
	})
}

// HandleClosePosition handles POST /api/position/close
func HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ClosePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	roundID, settlement, err := ws.CloseTrade(r.Context(), req.Player, req.CandleIndex, req.Price)
	if err != nil {
		sendError(w, statusForTradeError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"roundId":    roundID,
		"settlement": settlement,
	})
}

// statusForTradeError maps verifier rejections to HTTP status codes.
func statusForTradeError(err error) int {
	switch {
	case errors.Is(err, round.ErrNoActiveRound), errors.Is(err, round.ErrRoundNotActive):
		return http.StatusServiceUnavailable
	case errors.Is(err, round.ErrPositionAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, round.ErrNoOpenPosition):
		return http.StatusNotFound
	case errors.Is(err, round.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, round.ErrPriceMismatch), errors.Is(err, round.ErrTimingViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

/* =========================
   HELPER FUNCTIONS
========================= */

// sendError sends an error response
func sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error:   message,
	})
}
