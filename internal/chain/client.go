package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"lpMonitor/internal/model"
)

// Options tunes call behavior of a Client.
type Options struct {
	Retry       RetryConfig
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// Client wraps go-ethereum RPC with retries and per-call timeouts. Every
// error it returns is a *model.TransportError.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	retry       RetryConfig
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, model.NewTransportError("dial", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		retry:       opts.Retry.normalized(),
		callTimeout: opts.CallTimeout,
		logger:      logger,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Backend exposes the raw client for contract bindings and receipt polling.
func (c *Client) Backend() *ethclient.Client {
	return c.ethClient
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := Retry(ctx, c.retry, c.logger, func(ctx context.Context) (*big.Int, error) {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.ethClient.ChainID(callCtx)
	})
	if err != nil {
		return nil, model.NewTransportError("eth_chainId", err)
	}
	return id, nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := Retry(ctx, c.retry, c.logger, func(ctx context.Context) (uint64, error) {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.ethClient.BlockNumber(callCtx)
	})
	if err != nil {
		return 0, model.NewTransportError("eth_blockNumber", err)
	}
	return n, nil
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := Retry(ctx, c.retry, c.logger, func(ctx context.Context) ([]byte, error) {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.ethClient.CallContract(callCtx, msg, blockNumber)
	})
	if err != nil {
		return nil, model.NewTransportError("eth_call", err)
	}
	return out, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}
