package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/storage"
)

// Times are stored as unix milliseconds so max() keeps last_rebalance_at monotonic.
const schema = `
CREATE TABLE IF NOT EXISTS positions (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	owner               TEXT    NOT NULL,
	token_id            TEXT    NOT NULL DEFAULT '0',
	pool_address        TEXT    NOT NULL,
	tick_lower          INTEGER NOT NULL,
	tick_upper          INTEGER NOT NULL,
	amount0             TEXT    NOT NULL DEFAULT '0',
	amount1             TEXT    NOT NULL DEFAULT '0',
	capital_usd         REAL    NOT NULL DEFAULT 0,
	profile             TEXT    NOT NULL DEFAULT '',
	check_interval_secs INTEGER NOT NULL DEFAULT 0,
	active              INTEGER NOT NULL DEFAULT 1,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL,
	last_rebalance_at   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_positions_active ON positions(active);

CREATE TABLE IF NOT EXISTS rebalance_events (
	id             TEXT PRIMARY KEY,
	position_id    INTEGER NOT NULL,
	owner          TEXT    NOT NULL,
	pool_address   TEXT    NOT NULL,
	old_token_id   TEXT    NOT NULL,
	new_token_id   TEXT    NOT NULL DEFAULT '0',
	reason         TEXT    NOT NULL,
	current_tick   INTEGER NOT NULL,
	old_tick_lower INTEGER NOT NULL,
	old_tick_upper INTEGER NOT NULL,
	new_tick_lower INTEGER NOT NULL DEFAULT 0,
	new_tick_upper INTEGER NOT NULL DEFAULT 0,
	withdrawn0     TEXT    NOT NULL DEFAULT '0',
	withdrawn1     TEXT    NOT NULL DEFAULT '0',
	deposited0     TEXT    NOT NULL DEFAULT '0',
	deposited1     TEXT    NOT NULL DEFAULT '0',
	tx_hashes      TEXT    NOT NULL DEFAULT '[]',
	dry_run        INTEGER NOT NULL DEFAULT 0,
	status         TEXT    NOT NULL,
	error          TEXT    NOT NULL DEFAULT '',
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_position ON rebalance_events(position_id, started_at DESC);
`

const positionColumns = `
	id, owner, token_id, pool_address, tick_lower, tick_upper, amount0, amount1,
	capital_usd, profile, check_interval_secs, active, created_at, updated_at, last_rebalance_at`

// Store is a single-file position store for local runs.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ storage.PositionStore = (*Store)(nil)
	_ storage.EventSink     = (*Store)(nil)
)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreatePosition inserts p and returns it with id and timestamps set.
func (s *Store) CreatePosition(ctx context.Context, p model.Position) (model.Position, error) {
	if err := storage.ValidatePosition(p); err != nil {
		return model.Position{}, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			owner, token_id, pool_address, tick_lower, tick_upper, amount0, amount1,
			capital_usd, profile, check_interval_secs, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Owner,
		strconv.FormatUint(p.TokenID, 10),
		p.PoolAddress,
		p.TickLower,
		p.TickUpper,
		p.Amount0.String(),
		p.Amount1.String(),
		p.CapitalUSD,
		p.Profile,
		int64(p.CheckInterval/time.Second),
		boolInt(p.Active),
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return model.Position{}, fmt.Errorf("insert position: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return model.Position{}, fmt.Errorf("insert position: %w", err)
	}
	return p, nil
}

// GetPosition loads one position.
func (s *Store) GetPosition(ctx context.Context, id int64) (model.Position, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, storage.ErrNotFound
	}
	return p, err
}

// ListPositions returns positions ordered by id.
func (s *Store) ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
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
	rebalanced := update.RebalancedAt.UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			token_id = ?,
			tick_lower = ?,
			tick_upper = ?,
			amount0 = ?,
			amount1 = ?,
			last_rebalance_at = max(coalesce(last_rebalance_at, ?), ?),
			updated_at = ?
		WHERE id = ?`,
		strconv.FormatUint(update.TokenID, 10),
		update.TickLower,
		update.TickUpper,
		update.Amount0.String(),
		update.Amount1.String(),
		rebalanced,
		rebalanced,
		s.now().UTC().UnixMilli(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update position range: %w", err)
	}
	return requireRow(res)
}

// SetPositionActive pauses or resumes monitoring of a position.
func (s *Store) SetPositionActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE positions SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), s.now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("set position active: %w", err)
	}
	return requireRow(res)
}

// RecordRebalance upserts an event by id.
func (s *Store) RecordRebalance(ctx context.Context, e model.RebalanceEvent) error {
	txHashes := e.TxHashes
	if txHashes == nil {
		txHashes = []string{}
	}
	hashes, err := json.Marshal(txHashes)
	if err != nil {
		return fmt.Errorf("marshal tx hashes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rebalance_events (
			id, position_id, owner, pool_address, old_token_id, new_token_id, reason, current_tick,
			old_tick_lower, old_tick_upper, new_tick_lower, new_tick_upper,
			withdrawn0, withdrawn1, deposited0, deposited1, tx_hashes, dry_run, status, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			new_token_id = excluded.new_token_id,
			new_tick_lower = excluded.new_tick_lower,
			new_tick_upper = excluded.new_tick_upper,
			deposited0 = excluded.deposited0,
			deposited1 = excluded.deposited1,
			tx_hashes = excluded.tx_hashes,
			status = excluded.status,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		e.ID,
		e.PositionID,
		e.Owner,
		e.PoolAddress,
		strconv.FormatUint(e.OldTokenID, 10),
		strconv.FormatUint(e.NewTokenID, 10),
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
		string(hashes),
		boolInt(e.DryRun),
		e.Status,
		e.Error,
		e.StartedAt.UTC().UnixMilli(),
		e.FinishedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert rebalance event: %w", err)
	}
	return nil
}

// ListRebalances returns a position's events, newest first.
func (s *Store) ListRebalances(ctx context.Context, positionID int64) ([]model.RebalanceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position_id, owner, pool_address, old_token_id, new_token_id, reason, current_tick,
			old_tick_lower, old_tick_upper, new_tick_lower, new_tick_upper,
			withdrawn0, withdrawn1, deposited0, deposited1, tx_hashes, dry_run, status, error,
			started_at, finished_at
		FROM rebalance_events WHERE position_id = ? ORDER BY started_at DESC`, positionID)
	if err != nil {
		return nil, fmt.Errorf("list rebalance events: %w", err)
	}
	defer rows.Close()

	var out []model.RebalanceEvent
	for rows.Next() {
		var (
			e                     model.RebalanceEvent
			oldToken, newToken    string
			w0, w1, d0, d1        string
			hashes                string
			dryRun                int
			startedAt, finishedAt int64
		)
		if err := rows.Scan(
			&e.ID, &e.PositionID, &e.Owner, &e.PoolAddress, &oldToken, &newToken, &e.Reason, &e.CurrentTick,
			&e.OldTickLower, &e.OldTickUpper, &e.NewTickLower, &e.NewTickUpper,
			&w0, &w1, &d0, &d1, &hashes, &dryRun, &e.Status, &e.Error,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rebalance event: %w", err)
		}
		if e.OldTokenID, err = strconv.ParseUint(oldToken, 10, 64); err != nil {
			return nil, fmt.Errorf("parse old token id: %w", err)
		}
		if e.NewTokenID, err = strconv.ParseUint(newToken, 10, 64); err != nil {
			return nil, fmt.Errorf("parse new token id: %w", err)
		}
		e.Withdrawn0 = decimal.RequireFromString(w0)
		e.Withdrawn1 = decimal.RequireFromString(w1)
		e.Deposited0 = decimal.RequireFromString(d0)
		e.Deposited1 = decimal.RequireFromString(d1)
		if err := json.Unmarshal([]byte(hashes), &e.TxHashes); err != nil {
			return nil, fmt.Errorf("decode tx hashes: %w", err)
		}
		e.DryRun = dryRun != 0
		e.StartedAt = time.UnixMilli(startedAt).UTC()
		e.FinishedAt = time.UnixMilli(finishedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (model.Position, error) {
	var (
		p                    model.Position
		tokenID              string
		amount0, amount1     string
		intervalSecs         int64
		active               int
		createdAt, updatedAt int64
		lastRebalance        sql.NullInt64
	)
	if err := row.Scan(
		&p.ID, &p.Owner, &tokenID, &p.PoolAddress, &p.TickLower, &p.TickUpper, &amount0, &amount1,
		&p.CapitalUSD, &p.Profile, &intervalSecs, &active, &createdAt, &updatedAt, &lastRebalance,
	); err != nil {
		return model.Position{}, err
	}
	var err error
	if p.TokenID, err = strconv.ParseUint(tokenID, 10, 64); err != nil {
		return model.Position{}, fmt.Errorf("parse token id %q: %w", tokenID, err)
	}
	if p.Amount0, err = decimal.NewFromString(amount0); err != nil {
		return model.Position{}, fmt.Errorf("parse amount0 %q: %w", amount0, err)
	}
	if p.Amount1, err = decimal.NewFromString(amount1); err != nil {
		return model.Position{}, fmt.Errorf("parse amount1 %q: %w", amount1, err)
	}
	p.CheckInterval = time.Duration(intervalSecs) * time.Second
	p.Active = active != 0
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if lastRebalance.Valid {
		p.LastRebalanceAt = time.UnixMilli(lastRebalance.Int64).UTC()
	}
	return p, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
