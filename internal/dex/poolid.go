package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey identifies a V4 pool.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// Sorted returns the key with currency0 < currency1.
func (k PoolKey) Sorted() PoolKey {
	if bytes.Compare(k.Currency0.Bytes(), k.Currency1.Bytes()) > 0 {
		k.Currency0, k.Currency1 = k.Currency1, k.Currency0
	}
	return k
}

var poolKeyArgs = func() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	uint24Type, _ := abi.NewType("uint24", "", nil)
	int24Type, _ := abi.NewType("int24", "", nil)
	return abi.Arguments{
		{Type: addressType},
		{Type: addressType},
		{Type: uint24Type},
		{Type: int24Type},
		{Type: addressType},
	}
}()

// ComputePoolID returns keccak256(abi.encode(PoolKey)) after sorting the
// currencies.
func ComputePoolID(key PoolKey) (common.Hash, error) {
	if key.Fee >= 1<<24 {
		return common.Hash{}, fmt.Errorf("fee %d does not fit uint24", key.Fee)
	}
	if key.TickSpacing <= 0 || key.TickSpacing >= 1<<23 {
		return common.Hash{}, fmt.Errorf("tick spacing %d out of range", key.TickSpacing)
	}
	key = key.Sorted()
	encoded, err := poolKeyArgs.Pack(
		key.Currency0,
		key.Currency1,
		new(big.Int).SetUint64(uint64(key.Fee)),
		big.NewInt(int64(key.TickSpacing)),
		key.Hooks,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}
