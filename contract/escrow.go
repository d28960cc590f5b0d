package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	// Mantle Sepolia RPC
	MantleSepoliaRPC = "https://rpc.sepolia.mantle.xyz"

	// TradeEscrow contract address
	ContractAddress = "0x80Fc067cDDCDE4a78199a7A6751F2f629654b93A"

	// Chain ID for Mantle Sepolia
	ChainID = 5003
)

// escrowABI covers the three entry points the backend uses: deposits are
// read back for balance checks, payouts move settled funds to the player.
const escrowABI = `[
	{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
	{"name":"depositOf","type":"function","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"payout","type":"function","stateMutability":"nonpayable","inputs":[{"name":"player","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

// EscrowContract wraps the on-chain escrow that custodies player stakes.
type EscrowContract struct {
	Client      *ethclient.Client
	Contract    *bind.BoundContract
	ABI         abi.ABI
	Address     common.Address
	PrivateKey  *ecdsa.PrivateKey
	FromAddress common.Address
	ChainID     *big.Int
}

// NewEscrowContract creates a new escrow client. The server key comes from
// SERVER_PRIVATE_KEY; RPC and address can be overridden via ESCROW_RPC_URL
// and ESCROW_CONTRACT_ADDRESS.
func NewEscrowContract() (*EscrowContract, error) {
	rpcURL := os.Getenv("ESCROW_RPC_URL")
	if rpcURL == "" {
		rpcURL = MantleSepoliaRPC
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	contractABI, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	privateKeyHex := os.Getenv("SERVER_PRIVATE_KEY")
	if privateKeyHex == "" {
		return nil, fmt.Errorf("SERVER_PRIVATE_KEY environment variable not set")
	}
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}
	fromAddress := crypto.PubkeyToAddress(*publicKey)

	addr := os.Getenv("ESCROW_CONTRACT_ADDRESS")
	if addr == "" {
		addr = ContractAddress
	}
	contractAddress := common.HexToAddress(addr)
	contract := bind.NewBoundContract(contractAddress, contractABI, client, client, client)

	log.Printf("✅ Escrow client initialized - Address: %s, Owner: %s", contractAddress.Hex(), fromAddress.Hex())

	return &EscrowContract{
		Client:      client,
		Contract:    contract,
		ABI:         contractABI,
		Address:     contractAddress,
		PrivateKey:  privateKey,
		FromAddress: fromAddress,
		ChainID:     big.NewInt(ChainID),
	}, nil
}

// DepositOf reads a player's escrowed deposit.
func (c *EscrowContract) DepositOf(ctx context.Context, player common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.Contract.Call(&bind.CallOpts{Context: ctx}, &out, "depositOf", player)
	if err != nil {
		return nil, fmt.Errorf("depositOf call failed: %w", err)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected depositOf return type")
	}
	return amount, nil
}

// Payout sends settled funds to the player. Server pays gas; the transaction
// is fired without waiting for confirmation so settlement never blocks the
// round loop.
func (c *EscrowContract) Payout(ctx context.Context, player common.Address, amount *big.Int) (string, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.PrivateKey, c.ChainID)
	if err != nil {
		return "", fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.Value = big.NewInt(0)

	nonce, err := c.Client.PendingNonceAt(ctx, c.FromAddress)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = big.NewInt(int64(nonce))

	gasPrice, err := c.Client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	auth.GasPrice = gasPrice

	input, err := c.ABI.Pack("payout", player, amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack input: %w", err)
	}

	gasLimit, err := c.Client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.FromAddress,
		To:   &c.Address,
		Data: input,
	})
	if err != nil {
		log.Printf("⚠️  Gas estimation failed, using default: %v", err)
		auth.GasLimit = uint64(200000)
	} else {
		auth.GasLimit = gasLimit + (gasLimit * 20 / 100) // +20% buffer
	}

	tx, err := c.Contract.Transact(auth, "payout", player, amount)
	if err != nil {
		return "", fmt.Errorf("payout failed: %w", err)
	}

	log.Printf("📤 payout tx sent: %s (player=%s, amount=%s wei)", tx.Hash().Hex(), player.Hex(), amount.String())
	return tx.Hash().Hex(), nil
}

// Close closes the client connection
func (c *EscrowContract) Close() {
	c.Client.Close()
}
