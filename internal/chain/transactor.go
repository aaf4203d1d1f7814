package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"lpMonitor/internal/model"
)

// Backend is what a Transactor needs to send and await transactions.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Transactor signs and submits contract calls from one wallet.
type Transactor struct {
	backend     Backend
	key         *ecdsa.PrivateKey
	from        common.Address
	chainID     *big.Int
	waitTimeout time.Duration
	logger      *zap.Logger
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("parse private key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, common.Address{}, fmt.Errorf("error casting public key to ECDSA")
	}
	return key, crypto.PubkeyToAddress(*pub), nil
}

// NewTransactor builds a Transactor for chainID. waitTimeout bounds how long
// a submitted transaction may take to be mined; zero means no bound.
func NewTransactor(backend Backend, hexKey string, chainID *big.Int, waitTimeout time.Duration, logger *zap.Logger) (*Transactor, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	key, from, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{
		backend:     backend,
		key:         key,
		from:        from,
		chainID:     new(big.Int).Set(chainID),
		waitTimeout: waitTimeout,
		logger:      logger,
	}, nil
}

// From is the sending wallet address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Transact sends method on contract and waits for a successful receipt.
func (t *Transactor) Transact(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(t.key, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx

	bound := bind.NewBoundContract(contract, parsed, t.backend, t.backend, t.backend)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, model.NewTransportError("send "+method, err)
	}
	t.logger.Info("transaction sent",
		zap.String("method", method),
		zap.String("contract", contract.Hex()),
		zap.String("tx", tx.Hash().Hex()),
	)

	waitCtx := ctx
	if t.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.waitTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, t.backend, tx)
	if err != nil {
		return nil, model.NewTransportError("wait "+method, err)
	}
	if err := checkReceipt(method, receipt); err != nil {
		return receipt, err
	}
	return receipt, nil
}

func checkReceipt(method string, receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("%s: missing receipt", method)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s: transaction %s reverted in block %s", method, receipt.TxHash.Hex(), receipt.BlockNumber)
	}
	return nil
}
