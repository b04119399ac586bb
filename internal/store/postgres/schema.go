package postgres

// Table creation is idempotent; dedicated migration tooling owns anything
// beyond this baseline.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		network TEXT NOT NULL,
		purpose TEXT NOT NULL,
		block_height BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (network, purpose)
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id BIGSERIAL PRIMARY KEY,
		network TEXT NOT NULL,
		address TEXT NOT NULL,
		symbol TEXT,
		decimals SMALLINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (network, address)
	)`,
	`CREATE TABLE IF NOT EXISTS raw_events (
		network TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		sub_index INTEGER NOT NULL,
		block_number BIGINT NOT NULL,
		block_time BIGINT NOT NULL,
		contract_role TEXT NOT NULL,
		event_name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		token_id BIGINT REFERENCES tokens (id),
		amount_raw TEXT NOT NULL,
		amount_norm DOUBLE PRECISION,
		relayer TEXT,
		from_addr TEXT,
		to_addr TEXT,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (network, tx_hash, log_index, sub_index)
	)`,
	`CREATE INDEX IF NOT EXISTS raw_events_network_time_idx
		ON raw_events (network, block_time)`,
	`CREATE INDEX IF NOT EXISTS raw_events_type_idx
		ON raw_events (event_type)`,
	`CREATE TABLE IF NOT EXISTS daily_flows (
		day DATE NOT NULL,
		network TEXT NOT NULL,
		token_id BIGINT NOT NULL,
		total_deposits DOUBLE PRECISION NOT NULL,
		total_withdrawals DOUBLE PRECISION NOT NULL,
		net_flow DOUBLE PRECISION NOT NULL,
		deposit_tx_count BIGINT NOT NULL,
		withdrawal_tx_count BIGINT NOT NULL,
		PRIMARY KEY (day, network, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS relayer_stats_daily (
		day DATE NOT NULL,
		network TEXT NOT NULL,
		active_relayers BIGINT NOT NULL,
		top5_share DOUBLE PRECISION NOT NULL,
		hhi DOUBLE PRECISION NOT NULL,
		total_txs BIGINT NOT NULL,
		PRIMARY KEY (day, network)
	)`,
	`CREATE TABLE IF NOT EXISTS relayer_fee_revenue_daily (
		day DATE NOT NULL,
		network TEXT NOT NULL,
		relayer TEXT NOT NULL,
		token_id BIGINT NOT NULL,
		total_fees DOUBLE PRECISION NOT NULL,
		avg_fee DOUBLE PRECISION NOT NULL,
		tx_count BIGINT NOT NULL,
		PRIMARY KEY (day, network, relayer, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_token_diversity (
		day DATE NOT NULL,
		network TEXT NOT NULL,
		token_count BIGINT NOT NULL,
		PRIMARY KEY (day, network)
	)`,
}
