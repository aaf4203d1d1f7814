package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpMonitor/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS position_snapshots (
	position_id       TEXT        NOT NULL,
	taken_at          TIMESTAMPTZ NOT NULL,
	name              TEXT        NOT NULL,
	protocol          TEXT        NOT NULL,
	tick              INTEGER     NOT NULL,
	tick_lower        INTEGER     NOT NULL,
	tick_upper        INTEGER     NOT NULL,
	price             DOUBLE PRECISION NOT NULL,
	in_range          BOOLEAN     NOT NULL,
	deviation_percent DOUBLE PRECISION NOT NULL,
	liquidity         NUMERIC     NOT NULL,
	amount0           NUMERIC     NOT NULL,
	amount1           NUMERIC     NOT NULL,
	value_usd         NUMERIC     NOT NULL,
	fees0             NUMERIC     NOT NULL,
	fees1             NUMERIC     NOT NULL,
	fees_pending_usd  NUMERIC     NOT NULL,
	roi               DOUBLE PRECISION,
	apr               DOUBLE PRECISION,
	breakeven_days    DOUBLE PRECISION,
	degraded          TEXT        NOT NULL DEFAULT '',
	PRIMARY KEY (position_id, taken_at)
);
CREATE TABLE IF NOT EXISTS automation_actions (
	id              BIGSERIAL   PRIMARY KEY,
	position_id     TEXT        NOT NULL,
	action          TEXT        NOT NULL,
	amount0         NUMERIC     NOT NULL,
	amount1         NUMERIC     NOT NULL,
	tx_ref          TEXT        NOT NULL,
	increase_tx_ref TEXT        NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for snapshots and actions.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertSnapshotSQL = `
	INSERT INTO position_snapshots (
		position_id, taken_at, name, protocol, tick, tick_lower, tick_upper, price, in_range,
		deviation_percent, liquidity, amount0, amount1, value_usd, fees0, fees1, fees_pending_usd,
		roi, apr, breakeven_days, degraded
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	ON CONFLICT (position_id, taken_at)
	DO UPDATE SET
		price = EXCLUDED.price,
		in_range = EXCLUDED.in_range,
		deviation_percent = EXCLUDED.deviation_percent,
		liquidity = EXCLUDED.liquidity,
		amount0 = EXCLUDED.amount0,
		amount1 = EXCLUDED.amount1,
		value_usd = EXCLUDED.value_usd,
		fees0 = EXCLUDED.fees0,
		fees1 = EXCLUDED.fees1,
		fees_pending_usd = EXCLUDED.fees_pending_usd,
		roi = EXCLUDED.roi,
		apr = EXCLUDED.apr,
		breakeven_days = EXCLUDED.breakeven_days,
		degraded = EXCLUDED.degraded
`

// snapshotArgs flattens a snapshot into upsertSnapshotSQL parameters.
func snapshotArgs(snap model.Snapshot) []interface{} {
	return []interface{}{
		snap.PositionID,
		snap.TakenAt.UTC().Truncate(time.Microsecond),
		snap.Name,
		string(snap.Protocol),
		snap.Tick,
		snap.TickLower,
		snap.TickUpper,
		snap.Price,
		snap.InRange,
		snap.DeviationPercent,
		snap.Liquidity,
		snap.Amount0.String(),
		snap.Amount1.String(),
		snap.ValueUSD.String(),
		snap.Fees0.String(),
		snap.Fees1.String(),
		snap.FeesPendingUSD.String(),
		snap.ROI,
		snap.APR,
		snap.BreakevenDays,
		strings.Join(snap.Degraded, "; "),
	}
}

// PutSnapshots upserts a cycle's snapshots in one batch.
func (s *Store) PutSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(upsertSnapshotSQL, snapshotArgs(snap)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
	}
	return nil
}

// PutAction records an executed automation action.
func (s *Store) PutAction(ctx context.Context, result model.ActionResult) error {
	if result.PositionID == "" {
		return fmt.Errorf("position id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO automation_actions (position_id, action, amount0, amount1, tx_ref, increase_tx_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`,
		result.PositionID,
		string(result.Action),
		result.Amount0.String(),
		result.Amount1.String(),
		result.TxRef,
		result.IncreaseTxRef,
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// RedactDSN hides credentials for logging.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
