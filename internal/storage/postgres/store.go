package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/storage"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	id                   BIGSERIAL PRIMARY KEY,
	owner                TEXT        NOT NULL,
	token_id             NUMERIC(78) NOT NULL DEFAULT 0,
	pool_address         TEXT        NOT NULL,
	tick_lower           INTEGER     NOT NULL,
	tick_upper           INTEGER     NOT NULL,
	amount0              NUMERIC     NOT NULL DEFAULT 0,
	amount1              NUMERIC     NOT NULL DEFAULT 0,
	capital_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
	profile              TEXT        NOT NULL DEFAULT '',
	check_interval_secs  INTEGER     NOT NULL DEFAULT 0,
	active               BOOLEAN     NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	last_rebalance_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_positions_active ON positions (active);

CREATE TABLE IF NOT EXISTS rebalance_events (
	id              TEXT PRIMARY KEY,
	position_id     BIGINT      NOT NULL,
	owner           TEXT        NOT NULL,
	pool_address    TEXT        NOT NULL,
	old_token_id    NUMERIC(78) NOT NULL,
	new_token_id    NUMERIC(78) NOT NULL DEFAULT 0,
	reason          TEXT        NOT NULL,
	current_tick    INTEGER     NOT NULL,
	old_tick_lower  INTEGER     NOT NULL,
	old_tick_upper  INTEGER     NOT NULL,
	new_tick_lower  INTEGER     NOT NULL DEFAULT 0,
	new_tick_upper  INTEGER     NOT NULL DEFAULT 0,
	withdrawn0      NUMERIC     NOT NULL DEFAULT 0,
	withdrawn1      NUMERIC     NOT NULL DEFAULT 0,
	deposited0      NUMERIC     NOT NULL DEFAULT 0,
	deposited1      NUMERIC     NOT NULL DEFAULT 0,
	tx_hashes       TEXT[]      NOT NULL DEFAULT '{}',
	dry_run         BOOLEAN     NOT NULL DEFAULT FALSE,
	status          TEXT        NOT NULL,
	error           TEXT        NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rebalance_events_position ON rebalance_events (position_id, started_at DESC);
`

const positionColumns = `
	id, owner, token_id::text, pool_address, tick_lower, tick_upper,
	amount0::text, amount1::text, capital_usd, profile, check_interval_secs,
	active, created_at, updated_at, last_rebalance_at`

// Store provides Postgres persistence for positions and rebalance events.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ storage.PositionStore = (*Store)(nil)
	_ storage.EventSink     = (*Store)(nil)
)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, model.NewConfigurationError("database.dsn", "pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreatePosition inserts p and returns it with id and timestamps set.
func (s *Store) CreatePosition(ctx context.Context, p model.Position) (model.Position, error) {
	if err := storage.ValidatePosition(p); err != nil {
		return model.Position{}, err
	}
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true

	row := s.pool.QueryRow(ctx, `
		INSERT INTO positions (
			owner, token_id, pool_address, tick_lower, tick_upper, amount0, amount1,
			capital_usd, profile, check_interval_secs, active, created_at, updated_at
		) VALUES ($1, $2::numeric, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		p.Owner,
		fmt.Sprintf("%d", p.TokenID),
		p.PoolAddress,
		p.TickLower,
		p.TickUpper,
		p.Amount0.String(),
		p.Amount1.String(),
		p.CapitalUSD,
		p.Profile,
		int64(p.CheckInterval/time.Second),
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err := row.Scan(&p.ID); err != nil {
		return model.Position{}, fmt.Errorf("insert position: %w", err)
	}
	return p, nil
}

// GetPosition loads one position.
func (s *Store) GetPosition(ctx context.Context, id int64) (model.Position, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE id=$1`, id)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Position{}, storage.ErrNotFound
		}
		return model.Position{}, err
	}
	return p, nil
}

// ListPositions returns positions ordered by id.
func (s *Store) ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePositionRange stores the new range and token id.
func (s *Store) UpdatePositionRange(ctx context.Context, id int64, update model.RangeUpdate) error {
	if update.TickLower >= update.TickUpper {
		return model.NewInvalidInput("tick range", [2]int32{update.TickLower, update.TickUpper}, "lower must be below upper")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions SET
			token_id = $2::numeric,
			tick_lower = $3,
			tick_upper = $4,
			amount0 = $5::numeric,
			amount1 = $6::numeric,
			last_rebalance_at = GREATEST(COALESCE(last_rebalance_at, $7), $7),
			updated_at = $8
		WHERE id = $1
	`,
		id,
		fmt.Sprintf("%d", update.TokenID),
		update.TickLower,
		update.TickUpper,
		update.Amount0.String(),
		update.Amount1.String(),
		update.RebalancedAt.UTC(),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update position range: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetPositionActive pauses or resumes monitoring of a position.
func (s *Store) SetPositionActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE positions SET active=$2, updated_at=$3 WHERE id=$1`, id, active, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set position active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordRebalance inserts an event; a repeated id overwrites the outcome fields.
func (s *Store) RecordRebalance(ctx context.Context, e model.RebalanceEvent) error {
	txHashes := e.TxHashes
	if txHashes == nil {
		txHashes = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rebalance_events (
			id, position_id, owner, pool_address, old_token_id, new_token_id, reason, current_tick,
			old_tick_lower, old_tick_upper, new_tick_lower, new_tick_upper,
			withdrawn0, withdrawn1, deposited0, deposited1, tx_hashes, dry_run, status, error,
			started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12,
			$13::numeric, $14::numeric, $15::numeric, $16::numeric, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (id) DO UPDATE SET
			new_token_id = EXCLUDED.new_token_id,
			new_tick_lower = EXCLUDED.new_tick_lower,
			new_tick_upper = EXCLUDED.new_tick_upper,
			deposited0 = EXCLUDED.deposited0,
			deposited1 = EXCLUDED.deposited1,
			tx_hashes = EXCLUDED.tx_hashes,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`,
		e.ID,
		e.PositionID,
		e.Owner,
		e.PoolAddress,
		fmt.Sprintf("%d", e.OldTokenID),
		fmt.Sprintf("%d", e.NewTokenID),
		e.Reason,
		e.CurrentTick,
		e.OldTickLower,
		e.OldTickUpper,
		e.NewTickLower,
		e.NewTickUpper,
		e.Withdrawn0.String(),
		e.Withdrawn1.String(),
		e.Deposited0.String(),
		e.Deposited1.String(),
		txHashes,
		e.DryRun,
		e.Status,
		e.Error,
		e.StartedAt.UTC(),
		e.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert rebalance event: %w", err)
	}
	return nil
}

func scanPosition(row pgx.Row) (model.Position, error) {
	var (
		p             model.Position
		tokenID       string
		amount0       string
		amount1       string
		intervalSecs  int64
		lastRebalance *time.Time
	)
	if err := row.Scan(
		&p.ID,
		&p.Owner,
		&tokenID,
		&p.PoolAddress,
		&p.TickLower,
		&p.TickUpper,
		&amount0,
		&amount1,
		&p.CapitalUSD,
		&p.Profile,
		&intervalSecs,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
		&lastRebalance,
	); err != nil {
		return model.Position{}, err
	}
	var err error
	if _, err = fmt.Sscan(tokenID, &p.TokenID); err != nil {
		return model.Position{}, fmt.Errorf("parse token id %q: %w", tokenID, err)
	}
	if p.Amount0, err = decimal.NewFromString(amount0); err != nil {
		return model.Position{}, fmt.Errorf("parse amount0 %q: %w", amount0, err)
	}
	if p.Amount1, err = decimal.NewFromString(amount1); err != nil {
		return model.Position{}, fmt.Errorf("parse amount1 %q: %w", amount1, err)
	}
	p.CheckInterval = time.Duration(intervalSecs) * time.Second
	if lastRebalance != nil {
		p.LastRebalanceAt = lastRebalance.UTC()
	}
	return p, nil
}
