package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"goTradeServer/config"
)

// Relayer sends escrow payouts with retry and backoff, and keeps an eye on
// the server wallet's gas budget. Transactions are idempotent on the
// contract side (payout draws down the player's escrowed balance), so a
// retried send after an ambiguous failure cannot double-pay.
type Relayer struct {
	escrow     *EscrowContract
	minBalance *big.Int
}

func NewRelayer(escrow *EscrowContract) *Relayer {
	return &Relayer{
		escrow:     escrow,
		minBalance: big.NewInt(50000000000000000), // 0.05 MNT
	}
}

// SendPayout submits a payout transaction, retrying transient RPC failures.
func (r *Relayer) SendPayout(ctx context.Context, player common.Address, amount *big.Int) (string, error) {
	var txHash string
	err := withBackoff(ctx, "payout", func() error {
		ctx, cancel := context.WithTimeout(ctx, config.TransactionTimeout)
		defer cancel()

		var err error
		txHash, err = r.escrow.Payout(ctx, player, amount)
		return err
	})
	if err != nil {
		return "", err
	}
	return txHash, nil
}

// CheckBalance verifies the server wallet can still pay for gas.
func (r *Relayer) CheckBalance(ctx context.Context) error {
	balance, err := r.escrow.Client.BalanceAt(ctx, r.escrow.FromAddress, nil)
	if err != nil {
		return fmt.Errorf("failed to read relayer balance: %w", err)
	}
	if balance.Cmp(r.minBalance) < 0 {
		return fmt.Errorf("relayer balance too low: %s wei (minimum: %s)",
			balance.String(), r.minBalance.String())
	}
	return nil
}
