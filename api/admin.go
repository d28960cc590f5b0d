// api/admin.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"goTradeServer/ws"
)

/* =========================
   OPERATOR ENDPOINTS
========================= */

// AbortRoundRequest represents an operator abort request
type AbortRoundRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HandleAbortRound handles POST /api/admin/abort
// Aborts the live round: locked margin is released, no further trades are
// accepted, and the candle history stays reproducible for audit. The round
// loop starts the next round on its normal schedule.
func HandleAbortRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Shared-secret gate. Unset means the endpoint is disabled.
	adminKey := os.Getenv("ADMIN_API_KEY")
	if adminKey == "" || r.Header.Get("X-Admin-Key") != adminKey {
		sendError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req AbortRoundRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctrl := roundController
	if ctrl == nil {
		sendError(w, http.StatusServiceUnavailable, "Round controller not available")
		return
	}

	roundID := ws.CurrentRoundID()
	if roundID == "" {
		sendError(w, http.StatusNotFound, "No live round")
		return
	}

	if err := ctrl.AbortRound(r.Context(), roundID); err != nil {
		log.Printf("❌ Failed to abort round %s: %v", roundID, err)
		sendError(w, http.StatusConflict, "Round cannot be aborted")
		return
	}

	log.Printf("🛑 Round %s aborted by operator (reason: %s)", roundID, req.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"roundId": roundID,
	})
}
