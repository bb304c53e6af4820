package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartpool/internal/model"
)

// Store provides Postgres persistence for pool records, events, snapshots and
// progress markers.
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

// Migrate creates the tables the store writes to when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertPool inserts or updates a smart pool registration record.
func (s *Store) UpsertPool(ctx context.Context, chainID uint64, record model.PoolRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO smart_pools (
			chain_id, pool_address, underlying, controller, swap_fee_setter, token_binder,
			name, symbol, cap, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET
			underlying = EXCLUDED.underlying,
			controller = EXCLUDED.controller,
			swap_fee_setter = EXCLUDED.swap_fee_setter,
			token_binder = EXCLUDED.token_binder,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			cap = EXCLUDED.cap,
			updated_at = now()
	`,
		int64(chainID),
		record.Address,
		record.Underlying,
		record.Controller,
		record.SwapFeeSetter,
		record.TokenBinder,
		record.Name,
		record.Symbol,
		record.Cap,
	)
	return err
}

// InsertEvents stores events, skipping ones already present.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		decoded, err := json.Marshal(ev.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		batch.Queue(`
			INSERT INTO pool_events (
				chain_id, address, block_number, tx_hash, log_index, seq,
				event_name, block_ts, decoded, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
			ON CONFLICT (chain_id, address, block_number, tx_hash, log_index, seq) DO NOTHING
		`,
			int64(ev.ChainID),
			ev.Address,
			int64(ev.BlockNumber),
			ev.TxHash,
			int64(ev.LogIndex),
			int64(ev.Seq),
			ev.EventName,
			int64(ev.Timestamp),
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch lets the store act as a storage sink.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	return s.InsertEvents(ctx, events)
}

// SaveSnapshot stores the engine snapshot under a name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO engine_snapshots (name, seq, block_number, state, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET seq = EXCLUDED.seq, block_number = EXCLUDED.block_number, state = EXCLUDED.state, updated_at = now()
	`, name, int64(snap.Seq), int64(snap.Block), data)
	return err
}

// LoadSnapshot returns the snapshot stored under a name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.Snapshot, bool, error) {
	if name == "" {
		return model.Snapshot{}, false, fmt.Errorf("snapshot name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT state FROM engine_snapshots WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// LoadState returns the last processed marker for a name: an event sequence
// for replays, a block number for the indexer.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM progress_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts the last processed marker for a name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}

// UpsertActivity inserts or replaces activity windows.
func (s *Store) UpsertActivity(ctx context.Context, windows []model.ActivityWindow) error {
	if len(windows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range windows {
		tokensIn, err := json.Marshal(w.TokensIn)
		if err != nil {
			return fmt.Errorf("marshal tokens in: %w", err)
		}
		tokensOut, err := json.Marshal(w.TokensOut)
		if err != nil {
			return fmt.Errorf("marshal tokens out: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_activity_windows (
				chain_id, address, window_start_block, window_end_block, first_block, last_block,
				swap_count, join_count, exit_count, transfer_count, tokens_in, tokens_out, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (chain_id, address, window_start_block)
			DO UPDATE SET
				window_end_block = EXCLUDED.window_end_block,
				first_block = EXCLUDED.first_block,
				last_block = EXCLUDED.last_block,
				swap_count = EXCLUDED.swap_count,
				join_count = EXCLUDED.join_count,
				exit_count = EXCLUDED.exit_count,
				transfer_count = EXCLUDED.transfer_count,
				tokens_in = EXCLUDED.tokens_in,
				tokens_out = EXCLUDED.tokens_out,
				updated_at = now()
		`,
			int64(w.ChainID),
			w.Address,
			int64(w.WindowStart),
			int64(w.WindowEnd),
			int64(w.FirstBlock),
			int64(w.LastBlock),
			int64(w.SwapCount),
			int64(w.JoinCount),
			int64(w.ExitCount),
			int64(w.TransferCount),
			tokensIn,
			tokensOut,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range windows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
