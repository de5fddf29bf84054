package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeKeeper/internal/dex"
	"rangeKeeper/internal/model"
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// TokenSource resolves token decimals.
type TokenSource interface {
	Token(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// ExecutorConfig names the periphery contracts used for writes.
type ExecutorConfig struct {
	PositionManager common.Address
	SwapRouter      common.Address
	Deadline        time.Duration
}

// Executor withdraws, swaps and deposits liquidity through the Uniswap V3
// position manager and swap router.
type Executor struct {
	tx       *Transactor
	caller   dex.ContractCaller
	tokens   TokenSource
	cfg      ExecutorConfig
	decoders []dex.Decoder
	logger   *zap.Logger
	now      func() time.Time

	managerABI abi.ABI
	routerABI  abi.ABI
	erc20ABI   abi.ABI
}

// NewExecutor builds an Executor.
func NewExecutor(tx *Transactor, caller dex.ContractCaller, tokens TokenSource, cfg ExecutorConfig, logger *zap.Logger) (*Executor, error) {
	if tx == nil || caller == nil || tokens == nil {
		return nil, fmt.Errorf("executor needs a transactor, a contract caller and a token source")
	}
	if cfg.PositionManager == (common.Address{}) {
		cfg.PositionManager = dex.BasePositionManager
	}
	if cfg.SwapRouter == (common.Address{}) {
		cfg.SwapRouter = dex.BaseSwapRouter
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	managerABI, err := dex.PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	routerABI, err := dex.SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse swap router abi: %w", err)
	}
	erc20ABI, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	decoders, err := dex.ReceiptDecoders(cfg.PositionManager)
	if err != nil {
		return nil, err
	}
	return &Executor{
		tx:         tx,
		caller:     caller,
		tokens:     tokens,
		cfg:        cfg,
		decoders:   decoders,
		logger:     logger,
		now:        time.Now,
		managerABI: managerABI,
		routerABI:  routerABI,
		erc20ABI:   erc20ABI,
	}, nil
}

// Account returns the address every write is signed and sent from.
func (e *Executor) Account() string {
	return e.tx.From().Hex()
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Withdraw removes all liquidity of the position and collects the tokens and
// fees it owes to the signer.
func (e *Executor) Withdraw(ctx context.Context, pos model.Position) (model.Withdrawal, error) {
	tokenID := new(big.Int).SetUint64(pos.TokenID)
	onchain, err := dex.FetchPosition(ctx, e.caller, e.cfg.PositionManager, tokenID)
	if err != nil {
		return model.Withdrawal{}, &model.ChainUnavailableError{Op: "positions", Err: err}
	}
	meta0, err := e.tokens.Token(ctx, onchain.Token0)
	if err != nil {
		return model.Withdrawal{}, err
	}
	meta1, err := e.tokens.Token(ctx, onchain.Token1)
	if err != nil {
		return model.Withdrawal{}, err
	}

	out := model.Withdrawal{TokenID: pos.TokenID}
	if onchain.Liquidity.Sign() > 0 {
		data, err := e.managerABI.Pack("decreaseLiquidity", decreaseLiquidityParams{
			TokenId:    tokenID,
			Liquidity:  onchain.Liquidity,
			Amount0Min: new(big.Int),
			Amount1Min: new(big.Int),
			Deadline:   e.deadline(),
		})
		if err != nil {
			return out, fmt.Errorf("pack decreaseLiquidity: %w", err)
		}
		receipt, err := e.tx.Send(ctx, "decreaseLiquidity", e.cfg.PositionManager, data)
		if err != nil {
			return out, err
		}
		out.TxHashes = append(out.TxHashes, receipt.TxHash.Hex())
	}

	data, err := e.managerABI.Pack("collect", collectParams{
		TokenId:    tokenID,
		Recipient:  e.tx.From(),
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return out, fmt.Errorf("pack collect: %w", err)
	}
	receipt, err := e.tx.Send(ctx, "collect", e.cfg.PositionManager, data)
	if err != nil {
		return out, err
	}
	out.TxHashes = append(out.TxHashes, receipt.TxHash.Hex())

	events, err := dex.DecodeReceipt(receipt, e.decoders...)
	if err != nil {
		return out, fmt.Errorf("decode collect receipt: %w", err)
	}
	raw0, raw1 := new(big.Int), new(big.Int)
	for _, c := range events.Collect {
		if c.TokenID != tokenID.String() {
			continue
		}
		raw0.Add(raw0, ParseRaw(c.Amount0))
		raw1.Add(raw1, ParseRaw(c.Amount1))
	}
	out.Amount0 = FromRaw(raw0, meta0.Decimals)
	out.Amount1 = FromRaw(raw1, meta1.Decimals)

	e.logger.Info("liquidity withdrawn",
		zap.Uint64("token_id", pos.TokenID),
		zap.String("amount0", out.Amount0.String()),
		zap.String("amount1", out.Amount1.String()),
	)
	return out, nil
}

// Swap sells req.AmountIn of req.TokenIn through the swap router.
func (e *Executor) Swap(ctx context.Context, req model.SwapRequest) (model.SwapResult, error) {
	tokenIn := common.HexToAddress(req.TokenIn.Address)
	tokenOut := common.HexToAddress(req.TokenOut.Address)
	amountIn := ToRaw(req.AmountIn, req.TokenIn.Decimals)
	if amountIn.Sign() <= 0 {
		return model.SwapResult{}, model.NewInvalidInput("swap amount", req.AmountIn.String(), "must be positive")
	}

	var out model.SwapResult
	hashes, err := e.ensureAllowance(ctx, tokenIn, e.cfg.SwapRouter, amountIn)
	out.TxHashes = append(out.TxHashes, hashes...)
	if err != nil {
		return out, err
	}

	data, err := e.routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(req.FeeTier)),
		Recipient:         e.tx.From(),
		AmountIn:          amountIn,
		AmountOutMinimum:  ToRaw(req.AmountOutMinimum, req.TokenOut.Decimals),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return out, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	receipt, err := e.tx.Send(ctx, "exactInputSingle", e.cfg.SwapRouter, data)
	if err != nil {
		return out, err
	}
	out.TxHashes = append(out.TxHashes, receipt.TxHash.Hex())

	events, err := dex.DecodeReceipt(receipt, e.decoders...)
	if err != nil {
		return out, fmt.Errorf("decode swap receipt: %w", err)
	}
	raw := new(big.Int)
	for _, s := range events.Swaps {
		for _, amount := range []string{s.Amount0, s.Amount1} {
			v := ParseRaw(amount)
			if v.Sign() < 0 {
				raw.Sub(raw, v)
			}
		}
	}
	out.AmountOut = FromRaw(raw, req.TokenOut.Decimals)

	e.logger.Info("swap executed",
		zap.String("token_in", req.TokenIn.Symbol),
		zap.String("token_out", req.TokenOut.Symbol),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("amount_out", out.AmountOut.String()),
	)
	return out, nil
}

// Deposit mints a new position with the given range and amounts.
func (e *Executor) Deposit(ctx context.Context, req model.DepositRequest) (model.Deposit, error) {
	if req.TickLower >= req.TickUpper {
		return model.Deposit{}, model.NewInvalidInput("tick bounds", fmt.Sprintf("[%d,%d]", req.TickLower, req.TickUpper), "lower must be below upper")
	}
	token0 := common.HexToAddress(req.Pool.Token0)
	token1 := common.HexToAddress(req.Pool.Token1)
	amount0 := ToRaw(req.Amount0, req.Pool.Decimals0)
	amount1 := ToRaw(req.Amount1, req.Pool.Decimals1)
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return model.Deposit{}, model.NewInvalidInput("deposit amounts", "0", "nothing to deposit")
	}

	var out model.Deposit
	for _, approval := range []struct {
		token  common.Address
		amount *big.Int
	}{{token0, amount0}, {token1, amount1}} {
		hashes, err := e.ensureAllowance(ctx, approval.token, e.cfg.PositionManager, approval.amount)
		out.TxHashes = append(out.TxHashes, hashes...)
		if err != nil {
			return out, err
		}
	}

	data, err := e.managerABI.Pack("mint", mintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            new(big.Int).SetUint64(uint64(req.Pool.FeeTier)),
		TickLower:      big.NewInt(int64(req.TickLower)),
		TickUpper:      big.NewInt(int64(req.TickUpper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      e.tx.From(),
		Deadline:       e.deadline(),
	})
	if err != nil {
		return out, fmt.Errorf("pack mint: %w", err)
	}
	receipt, err := e.tx.Send(ctx, "mint", e.cfg.PositionManager, data)
	if err != nil {
		return out, err
	}
	out.TxHashes = append(out.TxHashes, receipt.TxHash.Hex())

	events, err := dex.DecodeReceipt(receipt, e.decoders...)
	if err != nil {
		return out, fmt.Errorf("decode mint receipt: %w", err)
	}
	if len(events.IncreaseLiquidity) == 0 {
		return out, &model.TransactionFailedError{Op: "mint", TxHash: receipt.TxHash.Hex(), Err: fmt.Errorf("no IncreaseLiquidity event")}
	}
	minted := events.IncreaseLiquidity[0]
	id, ok := new(big.Int).SetString(minted.TokenID, 10)
	if !ok || !id.IsUint64() {
		return out, fmt.Errorf("unexpected token id %q", minted.TokenID)
	}
	out.TokenID = id.Uint64()
	out.Amount0 = FromRaw(ParseRaw(minted.Amount0), req.Pool.Decimals0)
	out.Amount1 = FromRaw(ParseRaw(minted.Amount1), req.Pool.Decimals1)

	e.logger.Info("liquidity deposited",
		zap.Uint64("token_id", out.TokenID),
		zap.Int32("tick_lower", req.TickLower),
		zap.Int32("tick_upper", req.TickUpper),
		zap.String("amount0", out.Amount0.String()),
		zap.String("amount1", out.Amount1.String()),
	)
	return out, nil
}

func (e *Executor) ensureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) ([]string, error) {
	if amount.Sign() == 0 {
		return nil, nil
	}
	current, err := dex.Allowance(ctx, e.caller, token, e.tx.From(), spender)
	if err != nil {
		return nil, &model.ChainUnavailableError{Op: "allowance", Err: err}
	}
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}
	data, err := e.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	receipt, err := e.tx.Send(ctx, "approve", token, data)
	if err != nil {
		return nil, err
	}
	return []string{receipt.TxHash.Hex()}, nil
}

func (e *Executor) deadline() *big.Int {
	return big.NewInt(e.now().Add(e.cfg.Deadline).Unix())
}

