package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OnchainPosition is the position manager view of one NFT position.
type OnchainPosition struct {
	TokenID     *big.Int
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// FetchPosition reads positions(tokenId) from the position manager.
func FetchPosition(ctx context.Context, chainClient ContractCaller, manager common.Address, tokenID *big.Int) (OnchainPosition, error) {
	if chainClient == nil {
		return OnchainPosition{}, fmt.Errorf("chain client is nil")
	}
	managerABI, err := PositionManagerABI()
	if err != nil {
		return OnchainPosition{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := viewCall(ctx, chainClient, manager, managerABI, "positions", tokenID)
	if err != nil {
		return OnchainPosition{}, err
	}
	if len(values) != 12 {
		return OnchainPosition{}, fmt.Errorf("positions return size %d", len(values))
	}

	out := OnchainPosition{TokenID: new(big.Int).Set(tokenID)}
	if out.Token0, err = asAddress(values[2]); err != nil {
		return OnchainPosition{}, fmt.Errorf("token0: %w", err)
	}
	if out.Token1, err = asAddress(values[3]); err != nil {
		return OnchainPosition{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return OnchainPosition{}, fmt.Errorf("fee: %w", err)
	}
	out.Fee = uint32(fee.Uint64())

	lower, err := asBigInt(values[5])
	if err != nil {
		return OnchainPosition{}, fmt.Errorf("tick lower: %w", err)
	}
	if out.TickLower, err = int24FromBig(lower); err != nil {
		return OnchainPosition{}, fmt.Errorf("tick lower: %w", err)
	}
	upper, err := asBigInt(values[6])
	if err != nil {
		return OnchainPosition{}, fmt.Errorf("tick upper: %w", err)
	}
	if out.TickUpper, err = int24FromBig(upper); err != nil {
		return OnchainPosition{}, fmt.Errorf("tick upper: %w", err)
	}
	if out.Liquidity, err = asBigInt(values[7]); err != nil {
		return OnchainPosition{}, fmt.Errorf("liquidity: %w", err)
	}
	if out.TokensOwed0, err = asBigInt(values[10]); err != nil {
		return OnchainPosition{}, fmt.Errorf("tokens owed0: %w", err)
	}
	if out.TokensOwed1, err = asBigInt(values[11]); err != nil {
		return OnchainPosition{}, fmt.Errorf("tokens owed1: %w", err)
	}
	return out, nil
}

// BalanceOf returns the ERC20 balance of owner.
func BalanceOf(ctx context.Context, chainClient ContractCaller, token, owner common.Address) (*big.Int, error) {
	return erc20Uint(ctx, chainClient, token, "balanceOf", owner)
}

// Allowance returns the ERC20 allowance granted by owner to spender.
func Allowance(ctx context.Context, chainClient ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	return erc20Uint(ctx, chainClient, token, "allowance", owner, spender)
}

func erc20Uint(ctx context.Context, chainClient ContractCaller, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := viewCall(ctx, chainClient, token, erc20, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return asBigInt(values[0])
}
