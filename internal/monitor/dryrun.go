package monitor

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// DryRunExecutor logs intended writes and echoes the input amounts.
type DryRunExecutor struct {
	Logger *zap.Logger
}

func (d DryRunExecutor) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Withdraw reports the position's recorded amounts as withdrawn.
func (d DryRunExecutor) Withdraw(_ context.Context, pos model.Position) (model.Withdrawal, error) {
	d.logger().Info("dry run: withdraw",
		zap.Int64("position_id", pos.ID),
		zap.Uint64("token_id", pos.TokenID),
		zap.String("amount0", pos.Amount0.String()),
		zap.String("amount1", pos.Amount1.String()),
	)
	return model.Withdrawal{TokenID: pos.TokenID, Amount0: pos.Amount0, Amount1: pos.Amount1}, nil
}

// Swap reports no output; dry runs do not quote the router.
func (d DryRunExecutor) Swap(_ context.Context, req model.SwapRequest) (model.SwapResult, error) {
	d.logger().Info("dry run: swap",
		zap.String("token_in", req.TokenIn.Symbol),
		zap.String("token_out", req.TokenOut.Symbol),
		zap.String("amount_in", req.AmountIn.String()),
		zap.Uint32("fee_tier", req.FeeTier),
	)
	return model.SwapResult{AmountOut: decimal.Zero}, nil
}

// Deposit reports the requested amounts as deposited.
func (d DryRunExecutor) Deposit(_ context.Context, req model.DepositRequest) (model.Deposit, error) {
	d.logger().Info("dry run: deposit",
		zap.String("pool", req.Pool.Address),
		zap.Int32("tick_lower", req.TickLower),
		zap.Int32("tick_upper", req.TickUpper),
		zap.String("amount0", req.Amount0.String()),
		zap.String("amount1", req.Amount1.String()),
	)
	return model.Deposit{Amount0: req.Amount0, Amount1: req.Amount1}, nil
}
