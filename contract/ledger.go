package contract

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"goTradeServer/config"

	"github.com/ethereum/go-ethereum/common"
)

// account tracks one player's in-round funds: the escrowed deposit hydrated
// from chain, margin currently locked, and accumulated settlement deltas.
type account struct {
	deposited float64
	locked    float64
	pnl       float64
}

// EscrowLedger implements round.FundsLedger on top of the escrow contract.
// Locks and settlement deltas are applied in memory during the round (all of
// that is core-side bookkeeping); only withdrawals move funds on chain, sent
// through the relayer with retry and backoff.
type EscrowLedger struct {
	escrow  *EscrowContract
	relayer *Relayer

	mu       sync.Mutex
	accounts map[string]*account
}

func NewEscrowLedger(escrow *EscrowContract, relayer *Relayer) *EscrowLedger {
	return &EscrowLedger{
		escrow:   escrow,
		relayer:  relayer,
		accounts: make(map[string]*account),
	}
}

func (l *EscrowLedger) getAccount(player string) *account {
	acct, ok := l.accounts[player]
	if !ok {
		acct = &account{}
		l.accounts[player] = acct
	}
	return acct
}

// HydrateDeposit refreshes a player's deposited balance from the chain.
// Called when the player joins, before their first trade.
func (l *EscrowLedger) HydrateDeposit(ctx context.Context, player string) error {
	wei, err := l.escrow.DepositOf(ctx, common.HexToAddress(player))
	if err != nil {
		return fmt.Errorf("failed to read deposit: %w", err)
	}

	l.mu.Lock()
	l.getAccount(player).deposited = config.WeiToMNT(wei)
	l.mu.Unlock()

	log.Printf("💰 Hydrated deposit - Player: %s, Amount: %.4f MNT", player, config.WeiToMNT(wei))
	return nil
}

// Balance returns the player's available (non-locked) balance.
func (l *EscrowLedger) Balance(ctx context.Context, player string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.getAccount(player)
	return acct.deposited + acct.pnl - acct.locked, nil
}

// Lock reserves margin against the player's balance.
func (l *EscrowLedger) Lock(ctx context.Context, player string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.getAccount(player)
	if amount > acct.deposited+acct.pnl-acct.locked {
		return fmt.Errorf("lock %.4f exceeds available balance for %s", amount, player)
	}
	acct.locked += amount
	return nil
}

// Release frees previously locked margin. Idempotent against over-release:
// the lock never goes negative.
func (l *EscrowLedger) Release(ctx context.Context, player string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.getAccount(player)
	acct.locked -= amount
	if acct.locked < 0 {
		acct.locked = 0
	}
	return nil
}

// Settle applies a realized PnL delta to the player's account.
func (l *EscrowLedger) Settle(ctx context.Context, player string, delta float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.getAccount(player).pnl += delta
	log.Printf("💸 Settled %+.4f MNT for %s", delta, player)
	return nil
}

// Withdraw pays out the player's full available balance on chain via the
// relayer and zeroes the local account. Fails if margin is still locked.
func (l *EscrowLedger) Withdraw(ctx context.Context, player string) (string, error) {
	l.mu.Lock()
	acct := l.getAccount(player)
	if acct.locked > 0 {
		l.mu.Unlock()
		return "", fmt.Errorf("cannot withdraw while %.4f margin is locked", acct.locked)
	}
	amount := acct.deposited + acct.pnl
	acct.deposited = 0
	acct.pnl = 0
	l.mu.Unlock()

	if amount <= 0 {
		return "", nil
	}

	txHash, err := l.relayer.SendPayout(ctx, common.HexToAddress(player), config.MNTToWei(amount))
	if err != nil {
		// Restore the account so the withdrawal can be retried.
		l.mu.Lock()
		l.getAccount(player).pnl += amount
		l.mu.Unlock()
		return "", err
	}

	return txHash, nil
}

// withBackoff retries op up to config.MaxRetries times with a fixed delay.
// Retrying lives here, at the boundary: the core never re-applies state.
func withBackoff(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		log.Printf("⚠️  %s attempt %d/%d failed: %v", label, attempt, config.MaxRetries, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.RetryDelay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, config.MaxRetries, err)
}
