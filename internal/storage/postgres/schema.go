package postgres

const schema = `
CREATE TABLE IF NOT EXISTS smart_pools (
	chain_id        BIGINT NOT NULL,
	pool_address    TEXT NOT NULL,
	underlying      TEXT NOT NULL,
	controller      TEXT NOT NULL,
	swap_fee_setter TEXT NOT NULL,
	token_binder    TEXT NOT NULL,
	name            TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	cap             TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS pool_events (
	chain_id     BIGINT NOT NULL,
	address      TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash      TEXT NOT NULL DEFAULT '',
	log_index    BIGINT NOT NULL,
	seq          BIGINT NOT NULL DEFAULT 0,
	event_name   TEXT NOT NULL,
	block_ts     BIGINT NOT NULL DEFAULT 0,
	decoded      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, address, block_number, tx_hash, log_index, seq)
);

CREATE INDEX IF NOT EXISTS pool_events_name_idx ON pool_events (chain_id, address, event_name, block_number);

CREATE TABLE IF NOT EXISTS engine_snapshots (
	name         TEXT PRIMARY KEY,
	seq          BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	state        JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_activity_windows (
	chain_id           BIGINT NOT NULL,
	address            TEXT NOT NULL,
	window_start_block BIGINT NOT NULL,
	window_end_block   BIGINT NOT NULL,
	first_block        BIGINT NOT NULL,
	last_block         BIGINT NOT NULL,
	swap_count         BIGINT NOT NULL,
	join_count         BIGINT NOT NULL,
	exit_count         BIGINT NOT NULL,
	transfer_count     BIGINT NOT NULL,
	tokens_in          JSONB NOT NULL,
	tokens_out         JSONB NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, address, window_start_block)
);

CREATE TABLE IF NOT EXISTS progress_state (
	name           TEXT PRIMARY KEY,
	last_processed BIGINT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
`
