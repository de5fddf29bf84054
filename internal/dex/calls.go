package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// viewCall runs method on contract at the latest block and unpacks the result.
func viewCall(ctx context.Context, caller ContractCaller, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

// readPoolMeta reads the four immutable pool fields the optimizer and
// executor depend on.
func readPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address) (model.PoolMeta, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}
	var meta model.PoolMeta
	fields := []struct {
		method string
		assign func(v interface{}) error
	}{
		{"token0", func(v interface{}) error {
			addr, err := asAddress(v)
			meta.Token0 = addr.Hex()
			return err
		}},
		{"token1", func(v interface{}) error {
			addr, err := asAddress(v)
			meta.Token1 = addr.Hex()
			return err
		}},
		{"fee", func(v interface{}) error {
			fee, err := asBigInt(v)
			if err != nil {
				return err
			}
			meta.Fee = uint32(fee.Uint64())
			return nil
		}},
		{"tickSpacing", func(v interface{}) error {
			spacing, err := asBigInt(v)
			if err != nil {
				return err
			}
			meta.TickSpacing, err = int24FromBig(spacing)
			return err
		}},
	}
	for _, f := range fields {
		values, err := viewCall(ctx, caller, pool, poolABI, f.method)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if err := f.assign(values[0]); err != nil {
			return model.PoolMeta{}, fmt.Errorf("%s: %w", f.method, err)
		}
	}
	if meta.TickSpacing <= 0 {
		return model.PoolMeta{}, fmt.Errorf("tickSpacing: %d is not positive", meta.TickSpacing)
	}
	return meta, nil
}

// readSlot0 reads the pool's current sqrt price and tick.
func readSlot0(ctx context.Context, caller ContractCaller, pool common.Address) (model.PoolSlot0, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolSlot0{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := viewCall(ctx, caller, pool, poolABI, "slot0")
	if err != nil {
		return model.PoolSlot0{}, err
	}
	if len(values) < 2 {
		return model.PoolSlot0{}, fmt.Errorf("slot0 return size %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolSlot0{}, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	if sqrtPrice.Sign() <= 0 {
		return model.PoolSlot0{}, fmt.Errorf("slot0 sqrtPriceX96 is zero, pool not initialized")
	}
	rawTick, err := asBigInt(values[1])
	if err != nil {
		return model.PoolSlot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(rawTick)
	if err != nil {
		return model.PoolSlot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	return model.PoolSlot0{SqrtPriceX96: sqrtPrice, Tick: tick}, nil
}

// readToken reads ERC20 decimals, which are required, and the symbol and
// name, which fall back to the bytes32 encoding some older tokens use.
func readToken(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := viewCall(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return model.TokenMeta{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("decimals: %w", err)
	}

	text := func(method string) string {
		if values, err := viewCall(ctx, caller, token, stringABI, method); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := viewCall(ctx, caller, token, bytes32ABI, method)
		if err == nil {
			if s, ok := bytes32ToString(values[0]); ok {
				return s
			}
		}
		logger.Debug("token text field unavailable", zap.String("token", token.Hex()), zap.String("field", method), zap.Error(err))
		return ""
	}

	return model.TokenMeta{
		Address:  token.Hex(),
		Decimals: decimals,
		Symbol:   text("symbol"),
		Name:     text("name"),
	}, nil
}
