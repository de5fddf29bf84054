package dex

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/tickmath"
)

// PoolReader reads pool identity and live state from chain, caching the
// immutable parts.
type PoolReader struct {
	caller  ContractCaller
	chainID uint64
	pools   *lru.Cache[common.Address, model.PoolMeta]
	tokens  *lru.Cache[common.Address, model.TokenMeta]
	logger  *zap.Logger
	now     func() time.Time
}

const metaCacheSize = 256

// NewPoolReader builds a PoolReader.
func NewPoolReader(caller ContractCaller, chainID uint64, logger *zap.Logger) *PoolReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	// lru.New only fails for a non-positive size.
	pools, _ := lru.New[common.Address, model.PoolMeta](metaCacheSize)
	tokens, _ := lru.New[common.Address, model.TokenMeta](metaCacheSize)
	return &PoolReader{
		caller:  caller,
		chainID: chainID,
		pools:   pools,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentTick returns the pool's slot0 tick.
func (r *PoolReader) CurrentTick(ctx context.Context, poolAddress string) (int32, error) {
	pool, err := parsePool(poolAddress)
	if err != nil {
		return 0, err
	}
	slot0, err := readSlot0(ctx, r.caller, pool)
	if err != nil {
		return 0, &model.ChainUnavailableError{Op: "slot0 " + pool.Hex(), Err: err}
	}
	return slot0.Tick, nil
}

// Meta returns cached immutable pool metadata, loading it on first use.
func (r *PoolReader) Meta(ctx context.Context, poolAddress string) (model.PoolMeta, error) {
	pool, err := parsePool(poolAddress)
	if err != nil {
		return model.PoolMeta{}, err
	}
	if meta, ok := r.pools.Get(pool); ok {
		return meta, nil
	}
	meta, err := readPoolMeta(ctx, r.caller, pool)
	if err != nil {
		return model.PoolMeta{}, &model.ChainUnavailableError{Op: "pool metadata " + pool.Hex(), Err: err}
	}
	r.pools.Add(pool, meta)
	return meta, nil
}

// Token returns cached token metadata.
func (r *PoolReader) Token(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := readToken(ctx, r.caller, token, r.logger)
	if err != nil {
		return model.TokenMeta{}, &model.ChainUnavailableError{Op: "token metadata " + token.Hex(), Err: err}
	}
	r.tokens.Add(token, meta)
	return meta, nil
}

// Snapshot returns the pool's identity, decimals and current price.
func (r *PoolReader) Snapshot(ctx context.Context, poolAddress string) (model.PoolSnapshot, error) {
	meta, err := r.Meta(ctx, poolAddress)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	token0, err := r.Token(ctx, common.HexToAddress(meta.Token0))
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	token1, err := r.Token(ctx, common.HexToAddress(meta.Token1))
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	pool := common.HexToAddress(poolAddress)
	slot0, err := readSlot0(ctx, r.caller, pool)
	if err != nil {
		return model.PoolSnapshot{}, &model.ChainUnavailableError{Op: "slot0 " + pool.Hex(), Err: err}
	}
	raw := tickmath.SqrtPriceX96ToPrice(slot0.SqrtPriceX96)

	return model.PoolSnapshot{
		ChainID:      r.chainID,
		Address:      pool.Hex(),
		Token0:       meta.Token0,
		Token1:       meta.Token1,
		Symbol0:      token0.Symbol,
		Symbol1:      token1.Symbol,
		Decimals0:    token0.Decimals,
		Decimals1:    token1.Decimals,
		FeeTier:      meta.Fee,
		TickSpacing:  meta.TickSpacing,
		CurrentTick:  slot0.Tick,
		CurrentPrice: tickmath.HumanPrice(raw, token0.Decimals, token1.Decimals),
		ObservedAt:   r.now(),
	}, nil
}

// CurrentPrice returns the human token1-per-token0 price from slot0.
func (r *PoolReader) CurrentPrice(ctx context.Context, poolAddress string) (float64, error) {
	snap, err := r.Snapshot(ctx, poolAddress)
	if err != nil {
		return 0, err
	}
	return snap.CurrentPrice, nil
}

func parsePool(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, model.NewInvalidInput("pool address", address, "not a hex address")
	}
	return common.HexToAddress(address), nil
}
