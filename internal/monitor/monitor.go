// Package monitor polls managed positions and re-centers the ones that
// drift out of range.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/rebalance"
	"rangeKeeper/internal/tickmath"
)

// PositionStore is the subset of the position store the monitor needs.
type PositionStore interface {
	ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error)
	UpdatePositionRange(ctx context.Context, id int64, update model.RangeUpdate) error
}

// TickReader reads a pool's current tick.
type TickReader interface {
	CurrentTick(ctx context.Context, poolAddress string) (int32, error)
}

// PoolSource reads a pool snapshot.
type PoolSource interface {
	Snapshot(ctx context.Context, poolAddress string) (model.PoolSnapshot, error)
}

// RangeOptimizer recommends a new range.
type RangeOptimizer interface {
	CalculateOptimalRange(ctx context.Context, pool model.PoolSnapshot, currentPrice, capitalUSD float64, profile string) (model.RangeRecommendation, error)
}

// Executor performs the chain writes of a rebalance.
type Executor interface {
	Withdraw(ctx context.Context, pos model.Position) (model.Withdrawal, error)
	Swap(ctx context.Context, req model.SwapRequest) (model.SwapResult, error)
	Deposit(ctx context.Context, req model.DepositRequest) (model.Deposit, error)
}

// SigningAccount is implemented by executors that send every write from one
// account. Executors without it share a single rebalance lock.
type SigningAccount interface {
	Account() string
}

// EventSink records rebalance attempts.
type EventSink interface {
	RecordRebalance(ctx context.Context, event model.RebalanceEvent) error
}

// Config controls loop timing and rebalance behaviour.
type Config struct {
	SweepInterval time.Duration
	IdleWait      time.Duration
	ErrorBackoff  time.Duration
	Concurrency   int
	Policy        rebalance.Policy
	// SwapFraction of the overweight token is sold after an out of range
	// withdraw. Zero means the default; DisableSwap turns the swap off.
	SwapFraction float64
	DisableSwap  bool
	DryRun       bool
}

// DefaultConfig sweeps every 30s, waits 60s when idle or after an error and
// checks four positions at a time.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 30 * time.Second,
		IdleWait:      60 * time.Second,
		ErrorBackoff:  60 * time.Second,
		Concurrency:   4,
		Policy:        rebalance.DefaultPolicy(),
		SwapFraction:  0.5,
	}
}

// Deps are the monitor's collaborators. Events and Metrics may be nil.
type Deps struct {
	Store     PositionStore
	Ticks     TickReader
	Pools     PoolSource
	Optimizer RangeOptimizer
	Executor  Executor
	Events    EventSink
	Metrics   *Metrics
}

// CheckResult is the outcome of one position check.
type CheckResult struct {
	PositionID int64
	Skipped    bool
	Tick       int32
	Decision   rebalance.Decision
	Event      *model.RebalanceEvent
	Err        error
}

// Monitor runs the polling loop.
type Monitor struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	locks *accountLocks

	mu        sync.Mutex
	lastCheck map[int64]time.Time
}

// New validates deps and builds a Monitor.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Monitor, error) {
	if deps.Store == nil || deps.Ticks == nil || deps.Pools == nil || deps.Optimizer == nil || deps.Executor == nil {
		return nil, fmt.Errorf("monitor needs a store, tick reader, pool source, optimizer and executor")
	}
	def := DefaultConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = def.IdleWait
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Policy.DeviationThreshold <= 0 {
		cfg.Policy = def.Policy
	}
	if cfg.SwapFraction == 0 {
		cfg.SwapFraction = def.SwapFraction
	}
	if cfg.SwapFraction < 0 || cfg.SwapFraction > 1 {
		return nil, model.NewConfigurationError("swap-fraction", "must be within (0,1]")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	return &Monitor{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		locks:     newAccountLocks(),
		lastCheck: make(map[int64]time.Time),
	}, nil
}

// Run sweeps until ctx is cancelled. A sweep in progress finishes first.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		zap.Duration("sweep_interval", m.cfg.SweepInterval),
		zap.Int("concurrency", m.cfg.Concurrency),
		zap.Bool("dry_run", m.cfg.DryRun),
	)
	for {
		results, err := m.Sweep(ctx)

		wait := m.cfg.SweepInterval
		switch {
		case err != nil:
			m.logger.Error("sweep failed", zap.Duration("backoff", m.cfg.ErrorBackoff), zap.Error(err))
			wait = m.cfg.ErrorBackoff
		case len(results) == 0:
			m.logger.Debug("no active positions", zap.Duration("wait", m.cfg.IdleWait))
			wait = m.cfg.IdleWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Sweep checks every active position once, at most Concurrency at a time.
func (m *Monitor) Sweep(ctx context.Context) ([]CheckResult, error) {
	start := m.now()
	positions, err := m.deps.Store.ListPositions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list active positions: %w", err)
	}
	m.deps.Metrics.ActivePositions.Set(float64(len(positions)))
	m.forgetInactive(positions)

	results := make([]CheckResult, len(positions))
	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for i, pos := range positions {
		if ctx.Err() != nil {
			results[i] = CheckResult{PositionID: pos.ID, Skipped: true}
			continue
		}
		i, pos := i, pos
		g.Go(func() error {
			results[i] = m.CheckPosition(ctx, pos)
			return nil
		})
	}
	_ = g.Wait()

	m.deps.Metrics.SweepDuration.Observe(m.now().Sub(start).Seconds())
	m.deps.Metrics.LastSweep.Set(float64(m.now().Unix()))
	return results, nil
}

// CheckPosition evaluates one position and rebalances it when required.
// Read failures are logged and treated as in range.
func (m *Monitor) CheckPosition(ctx context.Context, pos model.Position) CheckResult {
	result := CheckResult{PositionID: pos.ID}
	now := m.now()
	if !m.due(pos, now) {
		result.Skipped = true
		m.deps.Metrics.Checks.WithLabelValues("skipped").Inc()
		return result
	}

	logger := m.logger.With(zap.Int64("position_id", pos.ID), zap.String("pool", pos.PoolAddress))

	tick, err := m.deps.Ticks.CurrentTick(ctx, pos.PoolAddress)
	if err != nil {
		logger.Warn("current tick unavailable, assuming in range", zap.Error(err))
		m.deps.Metrics.Checks.WithLabelValues("error").Inc()
		result.Err = err
		return result
	}
	result.Tick = tick

	decision, err := m.cfg.Policy.Decide(pos.TickLower, pos.TickUpper, tick, pos.LastRebalanceAt, now)
	if err != nil {
		logger.Warn("cannot evaluate position", zap.Error(err))
		m.deps.Metrics.Checks.WithLabelValues("error").Inc()
		result.Err = err
		return result
	}
	result.Decision = decision
	m.deps.Metrics.Checks.WithLabelValues(string(decision.State)).Inc()

	if !decision.Rebalance {
		logger.Debug("no rebalance",
			zap.Int32("tick", tick),
			zap.String("state", string(decision.State)),
			zap.Float64("deviation", decision.Deviation),
		)
		return result
	}

	logger.Info("rebalance triggered",
		zap.Int32("tick", tick),
		zap.Int32("tick_lower", pos.TickLower),
		zap.Int32("tick_upper", pos.TickUpper),
		zap.String("state", string(decision.State)),
		zap.String("reason", decision.Reason),
	)
	event, err := m.rebalance(ctx, pos, tick, decision)
	result.Event = &event
	result.Err = err
	return result
}

func (m *Monitor) due(pos model.Position, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastCheck[pos.ID]; ok && now.Sub(last) < pos.Interval() {
		return false
	}
	m.lastCheck[pos.ID] = now
	return true
}

// forgetInactive drops check times of positions no longer listed as active.
func (m *Monitor) forgetInactive(active []model.Position) {
	keep := make(map[int64]struct{}, len(active))
	for _, pos := range active {
		keep[pos.ID] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.lastCheck {
		if _, ok := keep[id]; !ok {
			delete(m.lastCheck, id)
		}
	}
}

func (m *Monitor) signingAccount() string {
	if s, ok := m.deps.Executor.(SigningAccount); ok {
		return s.Account()
	}
	return ""
}

// rebalance withdraws, optionally swaps and re-deposits. Once started it runs
// to completion regardless of ctx; any failed write stops the sequence. The
// whole sequence holds the signing account's lock.
func (m *Monitor) rebalance(ctx context.Context, pos model.Position, tick int32, decision rebalance.Decision) (model.RebalanceEvent, error) {
	unlock := m.locks.Lock(m.signingAccount())
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	logger := m.logger.With(zap.Int64("position_id", pos.ID), zap.String("owner", pos.Owner))

	event := model.RebalanceEvent{
		ID:           m.newID(),
		PositionID:   pos.ID,
		Owner:        pos.Owner,
		PoolAddress:  pos.PoolAddress,
		OldTokenID:   pos.TokenID,
		Reason:       decision.Reason,
		CurrentTick:  tick,
		OldTickLower: pos.TickLower,
		OldTickUpper: pos.TickUpper,
		DryRun:       m.cfg.DryRun,
		StartedAt:    m.now(),
	}
	fail := func(status string, err error) (model.RebalanceEvent, error) {
		event.Status = status
		event.Error = err.Error()
		m.finish(ctx, &event, logger)
		return event, err
	}

	withdrawal, err := m.deps.Executor.Withdraw(ctx, pos)
	if err != nil {
		logger.Error("withdraw failed", zap.Error(err))
		return fail(model.RebalanceWithdrawFailed, fmt.Errorf("withdraw: %w", err))
	}
	event.Withdrawn0 = withdrawal.Amount0
	event.Withdrawn1 = withdrawal.Amount1
	event.TxHashes = append(event.TxHashes, withdrawal.TxHashes...)

	// From here on the position is out of the pool until deposit succeeds.
	attention := func(msg string, err error) {
		logger.Error(msg,
			zap.Bool("operator_attention", true),
			zap.String("withdrawn0", withdrawal.Amount0.String()),
			zap.String("withdrawn1", withdrawal.Amount1.String()),
			zap.Error(err),
		)
	}

	pool, err := m.deps.Pools.Snapshot(ctx, pos.PoolAddress)
	if err != nil {
		attention("pool snapshot failed after withdraw", err)
		return fail(model.RebalanceDepositFailed, fmt.Errorf("pool snapshot: %w", err))
	}

	amount0, amount1 := withdrawal.Amount0, withdrawal.Amount1
	if req, ok := m.correctiveSwap(pool, decision, tick, pos, amount0, amount1); ok {
		swap, err := m.deps.Executor.Swap(ctx, req)
		if err != nil {
			attention("swap failed after withdraw", err)
			return fail(model.RebalanceSwapFailed, fmt.Errorf("swap: %w", err))
		}
		event.TxHashes = append(event.TxHashes, swap.TxHashes...)
		if req.TokenIn.Address == pool.Token0 {
			amount0 = amount0.Sub(req.AmountIn)
			amount1 = amount1.Add(swap.AmountOut)
		} else {
			amount1 = amount1.Sub(req.AmountIn)
			amount0 = amount0.Add(swap.AmountOut)
		}
	}

	capital := m.capitalFor(pos, pool, withdrawal, logger)
	lower, upper := m.targetRange(ctx, pool, pos, capital, logger)
	event.NewTickLower, event.NewTickUpper = lower, upper

	deposit, err := m.deps.Executor.Deposit(ctx, model.DepositRequest{
		Pool:      pool,
		TickLower: lower,
		TickUpper: upper,
		Amount0:   amount0,
		Amount1:   amount1,
	})
	if err != nil {
		attention("deposit failed after withdraw", err)
		return fail(model.RebalanceDepositFailed, fmt.Errorf("deposit: %w", err))
	}
	event.NewTokenID = deposit.TokenID
	event.Deposited0 = deposit.Amount0
	event.Deposited1 = deposit.Amount1
	event.TxHashes = append(event.TxHashes, deposit.TxHashes...)

	if !m.cfg.DryRun {
		update := model.RangeUpdate{
			TokenID:      deposit.TokenID,
			TickLower:    lower,
			TickUpper:    upper,
			Amount0:      deposit.Amount0,
			Amount1:      deposit.Amount1,
			RebalancedAt: m.now(),
		}
		if err := m.deps.Store.UpdatePositionRange(ctx, pos.ID, update); err != nil {
			logger.Error("position store update failed after deposit",
				zap.Bool("operator_attention", true),
				zap.Uint64("new_token_id", deposit.TokenID),
				zap.Error(err),
			)
			return fail(model.RebalanceStoreFailed, fmt.Errorf("update position: %w", err))
		}
	}

	event.Status = model.RebalanceCompleted
	m.finish(ctx, &event, logger)
	logger.Info("rebalance completed",
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
		zap.Uint64("new_token_id", deposit.TokenID),
		zap.Strings("tx_hashes", event.TxHashes),
	)
	return event, nil
}

// correctiveSwap sells SwapFraction of the token a position holds entirely
// after exiting its range: token0 below the range, token1 above it.
func (m *Monitor) correctiveSwap(pool model.PoolSnapshot, decision rebalance.Decision, tick int32, pos model.Position, amount0, amount1 decimal.Decimal) (model.SwapRequest, bool) {
	if decision.State != rebalance.StateOutOfRange || m.cfg.DisableSwap {
		return model.SwapRequest{}, false
	}
	token0 := model.TokenConfig{Symbol: pool.Symbol0, Address: pool.Token0, Decimals: pool.Decimals0}
	token1 := model.TokenConfig{Symbol: pool.Symbol1, Address: pool.Token1, Decimals: pool.Decimals1}
	fraction := decimal.NewFromFloat(m.cfg.SwapFraction)

	req := model.SwapRequest{FeeTier: pool.FeeTier, AmountOutMinimum: decimal.Zero}
	if tick <= pos.TickLower {
		req.TokenIn, req.TokenOut = token0, token1
		req.AmountIn = amount0.Mul(fraction).Truncate(int32(token0.Decimals))
	} else {
		req.TokenIn, req.TokenOut = token1, token0
		req.AmountIn = amount1.Mul(fraction).Truncate(int32(token1.Decimals))
	}
	if !req.AmountIn.IsPositive() {
		return model.SwapRequest{}, false
	}
	return req, true
}

// capitalFor returns the position's recorded capital, or the withdrawn amounts
// valued at the pool price in token1 terms when none was recorded.
func (m *Monitor) capitalFor(pos model.Position, pool model.PoolSnapshot, withdrawal model.Withdrawal, logger *zap.Logger) float64 {
	if pos.CapitalUSD > 0 {
		return pos.CapitalUSD
	}
	value := withdrawal.Amount0.Mul(decimal.NewFromFloat(pool.CurrentPrice)).Add(withdrawal.Amount1)
	capital, _ := value.Float64()
	logger.Info("no recorded capital, using withdrawn value", zap.Float64("capital", capital))
	return capital
}

// targetRange asks the optimizer for a fresh range and falls back to the old
// width re-centered on the current tick.
func (m *Monitor) targetRange(ctx context.Context, pool model.PoolSnapshot, pos model.Position, capital float64, logger *zap.Logger) (int32, int32) {
	rec, err := m.deps.Optimizer.CalculateOptimalRange(ctx, pool, pool.CurrentPrice, capital, pos.Profile)
	if err == nil {
		logger.Info("optimizer recommendation",
			zap.Int32("tick_lower", rec.LowerTick),
			zap.Int32("tick_upper", rec.UpperTick),
			zap.Float64("volatility", rec.Volatility),
			zap.Float64("concentration", rec.Concentration),
			zap.Float64("target_duration_hours", rec.TargetDurationHours),
		)
		return rec.LowerTick, rec.UpperTick
	}

	spacing := pool.TickSpacing
	if spacing <= 0 {
		spacing = 1
	}
	lower, upper := tickmath.CenteredRange(pool.CurrentTick, pos.Width(), spacing)
	logger.Warn("optimizer unavailable, re-centering previous width",
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
		zap.Error(err),
	)
	return lower, upper
}

func (m *Monitor) finish(ctx context.Context, event *model.RebalanceEvent, logger *zap.Logger) {
	event.FinishedAt = m.now()
	m.deps.Metrics.Rebalances.WithLabelValues(event.Status).Inc()
	if m.deps.Events == nil {
		return
	}
	if err := m.deps.Events.RecordRebalance(ctx, *event); err != nil {
		logger.Warn("record rebalance event failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// IsShutdown reports whether err is the normal result of cancelling Run.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
