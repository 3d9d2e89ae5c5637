package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stakerLedger/internal/model"
	"stakerLedger/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS staking_pools (
	pool_id BIGINT PRIMARY KEY,
	asset_class INTEGER NOT NULL,
	asset_address TEXT NOT NULL,
	asset_sub_id NUMERIC(78,0) NOT NULL,
	transferable BOOLEAN NOT NULL,
	lockup_seconds BIGINT NOT NULL,
	cooldown_seconds BIGINT NOT NULL,
	administrator TEXT NOT NULL,
	total_staked NUMERIC(78,0) NOT NULL,
	open_positions BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS staking_positions (
	position_id BIGINT PRIMARY KEY,
	pool_id BIGINT NOT NULL REFERENCES staking_pools (pool_id),
	amount_or_id NUMERIC(78,0) NOT NULL,
	stake_ts BIGINT NOT NULL,
	unstake_initiated_at BIGINT NOT NULL DEFAULT 0,
	burned BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS staking_positions_pool_idx ON staking_positions (pool_id, position_id);
CREATE TABLE IF NOT EXISTS position_owners (
	position_id BIGINT PRIMARY KEY REFERENCES staking_positions (position_id),
	owner TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for ledger state.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

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

// EnsureSchema creates the ledger tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// Load reads every pool, position and holder row.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	snap := storage.Snapshot{Owners: make(map[uint64]common.Address)}

	pools, err := s.loadPools(ctx)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("load pools: %w", err)
	}
	snap.Pools = pools

	positions, err := s.loadPositions(ctx)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("load positions: %w", err)
	}
	snap.Positions = positions

	rows, err := s.pool.Query(ctx, `SELECT position_id, owner FROM position_owners`)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("load owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			owner string
		)
		if err := rows.Scan(&id, &owner); err != nil {
			return storage.Snapshot{}, err
		}
		snap.Owners[uint64(id)] = common.HexToAddress(owner)
	}
	if err := rows.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, asset_class, asset_address, asset_sub_id::text, transferable,
			lockup_seconds, cooldown_seconds, administrator, total_staked::text, open_positions
		FROM staking_pools
		ORDER BY pool_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		var (
			id, lockup, cooldown, open int64
			class                      int32
			address, subID, admin      string
			total                      string
			transferable               bool
		)
		if err := rows.Scan(&id, &class, &address, &subID, &transferable, &lockup, &cooldown, &admin, &total, &open); err != nil {
			return nil, err
		}
		sub, err := parseNumeric(subID)
		if err != nil {
			return nil, fmt.Errorf("pool %d sub id: %w", id, err)
		}
		staked, err := parseNumeric(total)
		if err != nil {
			return nil, fmt.Errorf("pool %d total staked: %w", id, err)
		}
		out = append(out, model.Pool{
			ID:              uint64(id),
			AssetClass:      model.AssetClass(class),
			AssetAddress:    common.HexToAddress(address),
			AssetSubID:      sub,
			Transferable:    transferable,
			LockupSeconds:   uint64(lockup),
			CooldownSeconds: uint64(cooldown),
			Administrator:   common.HexToAddress(admin),
			TotalStaked:     staked,
			OpenPositions:   uint64(open),
		})
	}
	return out, rows.Err()
}

func (s *Store) loadPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position_id, pool_id, amount_or_id::text, stake_ts, unstake_initiated_at, burned
		FROM staking_positions
		ORDER BY position_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var (
			id, poolID, stakeTS, initiated int64
			amount                         string
			burned                         bool
		)
		if err := rows.Scan(&id, &poolID, &amount, &stakeTS, &initiated, &burned); err != nil {
			return nil, err
		}
		value, err := parseNumeric(amount)
		if err != nil {
			return nil, fmt.Errorf("position %d amount: %w", id, err)
		}
		out = append(out, model.Position{
			ID:                 uint64(id),
			PoolID:             uint64(poolID),
			AmountOrID:         value,
			StakeTimestamp:     uint64(stakeTS),
			UnstakeInitiatedAt: uint64(initiated),
			Burned:             burned,
		})
	}
	return out, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) PutPool(ctx context.Context, p model.Pool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO staking_pools (
			pool_id, asset_class, asset_address, asset_sub_id, transferable, lockup_seconds,
			cooldown_seconds, administrator, total_staked, open_positions, created_at, updated_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9::numeric, $10, now(), now())
		ON CONFLICT (pool_id)
		DO UPDATE SET
			transferable = EXCLUDED.transferable,
			lockup_seconds = EXCLUDED.lockup_seconds,
			cooldown_seconds = EXCLUDED.cooldown_seconds,
			administrator = EXCLUDED.administrator,
			total_staked = EXCLUDED.total_staked,
			open_positions = EXCLUDED.open_positions,
			updated_at = now()
	`,
		int64(p.ID),
		int32(p.AssetClass),
		p.AssetAddress.Hex(),
		numeric(p.AssetSubID),
		p.Transferable,
		int64(p.LockupSeconds),
		int64(p.CooldownSeconds),
		p.Administrator.Hex(),
		numeric(p.TotalStaked),
		int64(p.OpenPositions),
	)
	return err
}

func (t *pgTx) PutPosition(ctx context.Context, p model.Position) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO staking_positions (
			position_id, pool_id, amount_or_id, stake_ts, unstake_initiated_at, burned, created_at, updated_at
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, now(), now())
		ON CONFLICT (position_id)
		DO UPDATE SET
			unstake_initiated_at = EXCLUDED.unstake_initiated_at,
			burned = EXCLUDED.burned,
			updated_at = now()
	`,
		int64(p.ID),
		int64(p.PoolID),
		numeric(p.AmountOrID),
		int64(p.StakeTimestamp),
		int64(p.UnstakeInitiatedAt),
		p.Burned,
	)
	return err
}

func (t *pgTx) SetOwner(ctx context.Context, positionID uint64, owner common.Address) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO position_owners (position_id, owner, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (position_id) DO UPDATE
		SET owner = EXCLUDED.owner, updated_at = now()
	`, int64(positionID), owner.Hex())
	return err
}

func (t *pgTx) DeleteOwner(ctx context.Context, positionID uint64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM position_owners WHERE position_id=$1`, int64(positionID))
	return err
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", s)
	}
	return v, nil
}
