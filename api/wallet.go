package api

import (
	"encoding/json"
	"log"
	"net/http"

	"goTradeServer/contract"
)

var escrowLedger *contract.EscrowLedger

// SetEscrowLedger wires the on-chain escrow ledger into the wallet handlers.
// When the server runs without a contract (local dev), these endpoints report
// unavailable instead of failing requests mid-flight.
func SetEscrowLedger(l *contract.EscrowLedger) {
	escrowLedger = l
}

// WithdrawRequest represents a withdrawal request
type WithdrawRequest struct {
	Address string `json:"address"`
}

// HandleGetBalance handles GET /api/wallet/balance?address=0x...
func HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if escrowLedger == nil {
		sendError(w, http.StatusServiceUnavailable, "Escrow not configured")
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		sendError(w, http.StatusBadRequest, "Address is required")
		return
	}

	balance, err := escrowLedger.Balance(r.Context(), address)
	if err != nil {
		log.Printf("❌ Failed to get balance for %s: %v", address, err)
		sendError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"address": address,
		"balance": balance,
	})
}

// HandleSyncDeposit handles POST /api/wallet/sync
// Pulls the player's on-chain escrow deposit into the trading ledger.
func HandleSyncDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if escrowLedger == nil {
		sendError(w, http.StatusServiceUnavailable, "Escrow not configured")
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Address == "" {
		sendError(w, http.StatusBadRequest, "Address is required")
		return
	}

	if err := escrowLedger.HydrateDeposit(r.Context(), req.Address); err != nil {
		log.Printf("❌ Failed to sync deposit for %s: %v", req.Address, err)
		sendError(w, http.StatusInternalServerError, "Failed to sync deposit")
		return
	}

	balance, err := escrowLedger.Balance(r.Context(), req.Address)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}

	log.Printf("💳 Deposit synced for %s - Balance: %.4f MNT", req.Address, balance)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"address": req.Address,
		"balance": balance,
	})
}

// HandleWithdraw handles POST /api/wallet/withdraw
// Pays out the player's full available balance on-chain via the relayer.
func HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if escrowLedger == nil {
		sendError(w, http.StatusServiceUnavailable, "Escrow not configured")
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Address == "" {
		sendError(w, http.StatusBadRequest, "Address is required")
		return
	}

	txHash, err := escrowLedger.Withdraw(r.Context(), req.Address)
	if err != nil {
		log.Printf("❌ Withdrawal failed for %s: %v", req.Address, err)
		sendError(w, http.StatusInternalServerError, "Withdrawal failed")
		return
	}

	log.Printf("✅ Withdrawal submitted for %s - TX: %s", req.Address, txHash)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"address": req.Address,
		"txHash":  txHash,
	})
}
