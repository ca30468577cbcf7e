// Package chain is the on-chain boundary for tip transfers: an ERC-20
// token transfer service plus confirmation polling. Everything above this
// package deals only in transaction hashes and decimal amount strings.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	config "example.com/contextfeed/internal/init"
	"example.com/contextfeed/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var logg = logger.New()

// transferGasLimit covers a plain ERC-20 transfer with headroom.
const transferGasLimit = 100_000

// TransferService submits token transfers and waits for their inclusion.
type TransferService interface {
	// SubmitTransfer sends amount (in the token's smallest unit) to
	// recipient and returns the transaction hash.
	SubmitTransfer(ctx context.Context, recipient string, amount *big.Int) (string, error)
	// WaitConfirmed blocks until the transaction identified by txHash is
	// included with a successful status, or the context expires.
	WaitConfirmed(ctx context.Context, txHash string) error
	Close()
}

// ValidAddress reports whether s is a well-formed hex chain address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ERC20Service implements TransferService against a JSON-RPC node.
type ERC20Service struct {
	client       *ethclient.Client
	key          *ecdsa.PrivateKey
	from         common.Address
	token        common.Address
	chainID      *big.Int
	pollInterval time.Duration
}

// NewERC20Service dials the configured RPC node and prepares the signer.
func NewERC20Service(cfg *config.Config) (*ERC20Service, error) {
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token contract address")
	}

	key, err := crypto.HexToECDSA(cfg.ChainPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid chain private key: %w", err)
	}

	client, err := ethclient.Dial(cfg.ChainRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}

	chainID, err := client.NetworkID(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to fetch chain ID: %w", err)
	}

	logg.Info("chain", "Connected to chain RPC (endpoint anonymized)")
	return &ERC20Service{
		client:       client,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		token:        common.HexToAddress(cfg.TokenAddress),
		chainID:      chainID,
		pollInterval: cfg.ChainPollInterval,
	}, nil
}

// packTransfer builds calldata for transfer(address,uint256).
func packTransfer(to common.Address, amount *big.Int) []byte {
	methodID := crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	data := make([]byte, 0, 4+32+32)
	data = append(data, methodID...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

func (s *ERC20Service) SubmitTransfer(ctx context.Context, recipient string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", errors.New("malformed recipient address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("transfer amount must be positive")
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	data := packTransfer(common.HexToAddress(recipient), amount)
	tx := types.NewTransaction(nonce, s.token, big.NewInt(0), transferGasLimit, gasPrice, data)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	logg.Info("chain", "Token transfer submitted tx="+hash)
	return hash, nil
}

func (s *ERC20Service) WaitConfirmed(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return errors.New("transaction reverted")
			}
			logg.Info("chain", "Token transfer confirmed tx="+txHash)
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *ERC20Service) Close() {
	s.client.Close()
	logg.Info("chain", "Chain RPC connection closed")
}
