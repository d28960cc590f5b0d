// api/leaderboard.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"goTradeServer/db"
)

const defaultLeaderboardSize = 20
const maxLeaderboardSize = 100

// LeaderboardEntry is one ranked wallet with its cumulative realized PnL.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	WalletAddress string  `json:"walletAddress"`
	Pnl           float64 `json:"pnl"`
}

// LeaderboardResponse represents the leaderboard API response
type LeaderboardResponse struct {
	Success     bool               `json:"success"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	// Requesting wallet's own rank when it falls outside the page
	UserPosition *LeaderboardEntry `json:"userPosition,omitempty"`
}

// HandleGetLeaderboard handles GET /api/leaderboard?limit=N&wallet=0x...
// PnL accumulates across rounds through the trade settlement path, so the
// ranking reflects net realized results, liquidation losses included.
func HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxLeaderboardSize {
			n = maxLeaderboardSize
		}
		limit = n
	}

	records, err := db.GetWalletPnLLeaderboard(r.Context(), limit)
	if err != nil {
		log.Printf("❌ Failed to get leaderboard: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	response := LeaderboardResponse{
		Success:     true,
		Leaderboard: make([]LeaderboardEntry, 0, len(records)),
	}

	inPage := map[string]bool{}
	for _, record := range records {
		inPage[record.WalletAddress] = true
		response.Leaderboard = append(response.Leaderboard, LeaderboardEntry{
			Rank:          record.Rank,
			WalletAddress: record.WalletAddress,
			Pnl:           record.Amount,
		})
	}

	if wallet := r.URL.Query().Get("wallet"); wallet != "" && !inPage[wallet] {
		userRecord, err := db.GetWalletPnLRank(r.Context(), wallet)
		if err != nil {
			log.Printf("⚠️  Failed to get rank for %s: %v", wallet, err)
		} else if userRecord != nil {
			response.UserPosition = &LeaderboardEntry{
				Rank:          userRecord.Rank,
				WalletAddress: userRecord.WalletAddress,
				Pnl:           userRecord.Amount,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(response)
}
