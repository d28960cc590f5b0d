package api

import (
	"encoding/json"
	"log"
	"net/http"

	"goTradeServer/crypto"
	"goTradeServer/db"
	"goTradeServer/game"
)

/* =========================
   VERIFICATION ENDPOINT
========================= */

// VerifyRequest asks the server to replay a finished round. Either roundId
// alone (the server looks up the stored seed) or an explicit seed, hash and
// config can be supplied, so third parties can verify without trusting the
// database.
type VerifyRequest struct {
	RoundID        string            `json:"roundId,omitempty"`
	ServerSeed     string            `json:"serverSeed,omitempty"`
	ServerSeedHash string            `json:"serverSeedHash,omitempty"`
	Config         *game.RoundConfig `json:"config,omitempty"`
}

// VerifyResponse is the full replay outcome
type VerifyResponse struct {
	Success            bool          `json:"success"`
	Valid              bool          `json:"valid"`
	Message            string        `json:"message,omitempty"`
	ServerSeed         string        `json:"serverSeed,omitempty"`
	ServerSeedHash     string        `json:"serverSeedHash,omitempty"`
	FinalClose         float64       `json:"finalClose,omitempty"`
	LiquidationIndices []int         `json:"liquidationIndices,omitempty"`
	Candles            []game.Candle `json:"candles,omitempty"`
}

// HandleVerifyRound handles POST /api/verify
// Recomputes the full candle path from the disclosed seed and checks it
// against the published commitment (and the stored record, when available).
func HandleVerifyRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seed := req.ServerSeed
	seedHash := req.ServerSeedHash
	cfg := req.Config

	var stored *db.RoundHistoryRecord
	if req.RoundID != "" {
		record, err := db.GetRoundHistory(r.Context(), req.RoundID)
		if err != nil {
			log.Printf("❌ Failed to load round %s for verification: %v", req.RoundID, err)
			sendError(w, http.StatusInternalServerError, "Failed to load round record")
			return
		}
		if record == nil {
			sendError(w, http.StatusNotFound, "Round not found")
			return
		}
		stored = record
		if seed == "" {
			seed = record.ServerSeed
		}
		if seedHash == "" {
			seedHash = record.ServerSeedHash
		}
		if cfg == nil {
			cfg = &record.Config
		}
	}

	if seed == "" || seedHash == "" || cfg == nil {
		sendError(w, http.StatusBadRequest, "roundId or serverSeed, serverSeedHash and config are required")
		return
	}

	// Commitment check first: a seed that does not hash to the published
	// commitment fails regardless of what path it produces
	if !crypto.VerifySeed(seed, seedHash) {
		json.NewEncoder(w).Encode(VerifyResponse{
			Success: true,
			Valid:   false,
			Message: "Seed does not match the published commitment",
		})
		return
	}

	result := game.ReplayRound(seed, *cfg)

	valid := true
	message := "Replay matches the commitment"
	if stored != nil && stored.FinalClose != 0 && result.FinalClose != stored.FinalClose {
		valid = false
		message = "Replay diverges from the stored round record"
		log.Printf("🚨 Verification mismatch for round %s: replayed %.6f, stored %.6f",
			req.RoundID, result.FinalClose, stored.FinalClose)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VerifyResponse{
		Success:            true,
		Valid:              valid,
		Message:            message,
		ServerSeed:         seed,
		ServerSeedHash:     seedHash,
		FinalClose:         result.FinalClose,
		LiquidationIndices: result.LiquidationIndices,
		Candles:            result.Candles,
	})
}

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// HandleHealthCheck handles health check requests
// GET /api/health
func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()

	// Check Redis
	redisHealth := "ok"
	if err := db.HealthCheck(ctx); err != nil {
		redisHealth = "error: " + err.Error()
	}

	// Check PostgreSQL
	postgresHealth := "ok"
	if err := db.HealthCheckPostgres(ctx); err != nil {
		postgresHealth = "error: " + err.Error()
	}

	response := map[string]interface{}{
		"success":  true,
		"redis":    redisHealth,
		"postgres": postgresHealth,
		"message":  "Health check completed",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
