package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Every write is an upsert so retries after transient failures are safe.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id               TEXT PRIMARY KEY,
	player1          TEXT NOT NULL,
	player2          TEXT,
	status           TEXT NOT NULL,
	symbols          TEXT[] NOT NULL,
	initial_balance  NUMERIC NOT NULL,
	duration_minutes INT NOT NULL,
	winner           TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	started_at       TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ,
	end_reason       TEXT
);

CREATE INDEX IF NOT EXISTS idx_matches_status ON matches (status);
CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches (player1);
CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches (player2);

CREATE TABLE IF NOT EXISTS orders (
	id                 TEXT PRIMARY KEY,
	match_id           TEXT NOT NULL REFERENCES matches (id),
	player_id          TEXT NOT NULL,
	symbol             TEXT NOT NULL,
	type               TEXT NOT NULL,
	side               TEXT NOT NULL,
	quantity           NUMERIC NOT NULL,
	limit_price        NUMERIC,
	trigger_price      NUMERIC,
	status             TEXT NOT NULL,
	linked_position_id TEXT,
	fill_price         NUMERIC,
	created_at         TIMESTAMPTZ NOT NULL,
	filled_at          TIMESTAMPTZ,
	reject_reason      TEXT
);

CREATE INDEX IF NOT EXISTS idx_orders_match_player ON orders (match_id, player_id);

CREATE TABLE IF NOT EXISTS equity_samples (
	match_id  TEXT NOT NULL REFERENCES matches (id),
	player_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	equity    NUMERIC NOT NULL,
	PRIMARY KEY (match_id, player_id, timestamp)
);
`

// EnsureSchema creates the tables and indexes if they do not exist.
// Idempotent; run once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertMatch(ctx context.Context, m *model.Match) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, player1, player2, status, symbols, initial_balance,
		                      duration_minutes, winner, created_at, started_at, ended_at, end_reason)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   player2 = EXCLUDED.player2,
		   status = EXCLUDED.status,
		   winner = EXCLUDED.winner,
		   started_at = EXCLUDED.started_at,
		   ended_at = EXCLUDED.ended_at,
		   end_reason = EXCLUDED.end_reason`,
		m.ID, m.Player1, nullStr(m.Player2), string(m.Status), m.Symbols,
		m.InitialBalance.String(), m.DurationMinutes, nullStr(m.Winner),
		m.CreatedAt, m.StartedAt, m.EndedAt, nullStr(m.EndReason),
	)
	return err
}

const matchColumns = `id, player1, COALESCE(player2, ''), status, symbols,
	initial_balance::TEXT, duration_minutes, COALESCE(winner, ''),
	created_at, started_at, ended_at, COALESCE(end_reason, '')`

func scanMatch(row pgx.Row) (*model.Match, error) {
	var m model.Match
	var status, balance string
	if err := row.Scan(&m.ID, &m.Player1, &m.Player2, &status, &m.Symbols,
		&balance, &m.DurationMinutes, &m.Winner,
		&m.CreatedAt, &m.StartedAt, &m.EndedAt, &m.EndReason); err != nil {
		return nil, err
	}
	m.Status = model.MatchStatus(status)
	m.InitialBalance, _ = decimal.NewFromString(balance)
	return &m, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) listMatches(ctx context.Context, query string, args ...any) ([]model.Match, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) ListCompletedMatches(ctx context.Context) ([]model.Match, error) {
	return s.listMatches(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status = 'completed' ORDER BY ended_at, id`)
}

func (s *PostgresStore) ListOngoingMatchesByPlayer(ctx context.Context, playerID string) ([]model.Match, error) {
	return s.listMatches(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status <> 'completed' AND (player1 = $1 OR player2 = $1)
		 ORDER BY created_at, id`, playerID)
}

func (s *PostgresStore) UpsertOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, match_id, player_id, symbol, type, side, quantity,
		                     limit_price, trigger_price, status, linked_position_id,
		                     fill_price, created_at, filled_at, reject_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10, $11, $12::NUMERIC, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   fill_price = EXCLUDED.fill_price,
		   filled_at = EXCLUDED.filled_at,
		   reject_reason = EXCLUDED.reject_reason`,
		o.ID, o.MatchID, o.PlayerID, o.Symbol, string(o.Type), string(o.Side),
		o.Quantity.String(), decStr(o.LimitPrice), decStr(o.TriggerPrice),
		string(o.Status), nullStr(o.LinkedPositionID), decStr(o.FillPrice),
		o.CreatedAt, o.FilledAt, nullStr(o.RejectReason),
	)
	return err
}

const orderColumns = `id, match_id, player_id, symbol, type, side, quantity::TEXT,
	limit_price::TEXT, trigger_price::TEXT, status, COALESCE(linked_position_id, ''),
	fill_price::TEXT, created_at, filled_at, COALESCE(reject_reason, '')`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var typ, side, status, qty string
	var limitS, triggerS, fillS *string
	if err := row.Scan(&o.ID, &o.MatchID, &o.PlayerID, &o.Symbol, &typ, &side, &qty,
		&limitS, &triggerS, &status, &o.LinkedPositionID,
		&fillS, &o.CreatedAt, &o.FilledAt, &o.RejectReason); err != nil {
		return nil, err
	}
	o.Type = model.OrderType(typ)
	o.Side = model.OrderSide(side)
	o.Status = model.OrderStatus(status)
	o.Quantity, _ = decimal.NewFromString(qty)
	o.LimitPrice = strDec(limitS)
	o.TriggerPrice = strDec(triggerS)
	o.FillPrice = strDec(fillS)
	return &o, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, matchID, playerID string, status model.OrderStatus) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		 WHERE match_id = $1 AND player_id = $2`
	args := []any{matchID, playerID}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) UpsertEquitySample(ctx context.Context, sample model.EquitySample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO equity_samples (match_id, player_id, timestamp, equity)
		 VALUES ($1, $2, $3, $4::NUMERIC)
		 ON CONFLICT (match_id, player_id, timestamp) DO UPDATE SET
		   equity = EXCLUDED.equity`,
		sample.MatchID, sample.PlayerID, sample.Timestamp, sample.Equity.String(),
	)
	return err
}

func (s *PostgresStore) ListEquitySamples(ctx context.Context, matchID, playerID string) ([]model.EquitySample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT match_id, player_id, timestamp, equity::TEXT
		 FROM equity_samples
		 WHERE match_id = $1 AND player_id = $2
		 ORDER BY timestamp`, matchID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.EquitySample
	for rows.Next() {
		var sm model.EquitySample
		var eq string
		var ts time.Time
		if err := rows.Scan(&sm.MatchID, &sm.PlayerID, &ts, &eq); err != nil {
			return nil, err
		}
		sm.Timestamp = ts
		sm.Equity, _ = decimal.NewFromString(eq)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// --- null helpers ---

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func decStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func strDec(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
