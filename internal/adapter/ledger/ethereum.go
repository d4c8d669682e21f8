package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// erc20BalanceOfSelector is the 4-byte selector of balanceOf(address).
var erc20BalanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Client is the read-side ledger adapter over an Ethereum JSON-RPC endpoint.
// All calls pass through a shared rate limiter so bursts of balance polls
// cannot exhaust the RPC quota.
type Client struct {
	eth     *ethclient.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     zerolog.Logger
}

var _ ports.LedgerClient = (*Client)(nil)

// NewClient dials the RPC endpoint and verifies connectivity.
func NewClient(ctx context.Context, rpcURL string, rps float64, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing ledger rpc: %w", err)
	}

	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		eth:     eth,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: timeout,
		log:     log.With().Str("component", "ledger_client").Logger(),
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.log.Info().Int64("chain_id", chainID).Msg("ledger RPC connection established")
	return c, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) withLimits(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return callCtx, cancel, nil
}

// Balance returns the native balance of an address in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("balance query", err)
	}
	defer cancel()

	balance, err := c.eth.BalanceAt(callCtx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("balance query", err)
	}
	return balance, nil
}

// TokenBalance returns the ERC-20 balance of an address in token base units.
func (c *Client) TokenBalance(ctx context.Context, contract string, address string) (*big.Int, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("token balance query", err)
	}
	defer cancel()

	to := common.HexToAddress(contract)
	result, err := c.eth.CallContract(callCtx, ethereum.CallMsg{
		To:   &to,
		Data: erc20BalanceOfCalldata(address),
	}, nil)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("token balance query", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// GasPrice returns the suggested gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("gas price query", err)
	}
	defer cancel()

	price, err := c.eth.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("gas price query", err)
	}
	return price, nil
}

// PendingNonce returns the next usable nonce including pending transactions.
func (c *Client) PendingNonce(ctx context.Context, address string) (uint64, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return 0, apperror.ErrLedgerUnreachable("nonce query", err)
	}
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(callCtx, common.HexToAddress(address))
	if err != nil {
		return 0, apperror.ErrLedgerUnreachable("nonce query", err)
	}
	return nonce, nil
}

// Receipt returns the receipt for a transaction hash, or nil while the
// transaction is unknown or unmined.
func (c *Client) Receipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable("receipt query", err)
	}
	defer cancel()

	receipt, err := c.eth.TransactionReceipt(callCtx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, apperror.ErrLedgerUnreachable("receipt query", err)
	}

	return &domain.Receipt{
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// ChainID returns the ledger's chain identifier.
func (c *Client) ChainID(ctx context.Context) (int64, error) {
	callCtx, cancel, err := c.withLimits(ctx)
	if err != nil {
		return 0, apperror.ErrLedgerUnreachable("chain id query", err)
	}
	defer cancel()

	id, err := c.eth.ChainID(callCtx)
	if err != nil {
		return 0, apperror.ErrLedgerUnreachable("chain id query", err)
	}
	return id.Int64(), nil
}

// Ping implements ports.HealthChecker.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ChainID(ctx)
	return err
}

// Name implements ports.HealthChecker.
func (c *Client) Name() string {
	return "ledger-rpc"
}

// erc20BalanceOfCalldata encodes balanceOf(address).
func erc20BalanceOfCalldata(address string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)
	return data
}
