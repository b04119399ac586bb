package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shieldscope/internal/model"
)

// Store provides Postgres persistence for the indexer and aggregator.
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
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// LoadCheckpoint returns the stored block height for (network, purpose).
func (s *Store) LoadCheckpoint(ctx context.Context, network, purpose string) (uint64, bool, error) {
	var height int64
	row := s.pool.QueryRow(ctx,
		`SELECT block_height FROM checkpoints WHERE network = $1 AND purpose = $2`,
		network, purpose)
	if err := row.Scan(&height); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(height), true, nil
}

// SaveCheckpoint upserts the block height for (network, purpose). The
// GREATEST guard keeps the stored height monotone even under a racing writer.
func (s *Store) SaveCheckpoint(ctx context.Context, network, purpose string, height uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (network, purpose, block_height, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (network, purpose) DO UPDATE
		SET block_height = GREATEST(checkpoints.block_height, EXCLUDED.block_height),
		    updated_at = now()
	`, network, purpose, int64(height))
	return err
}

// GetToken looks a token up by its canonical address.
func (s *Store) GetToken(ctx context.Context, network, address string) (model.Token, bool, error) {
	var token model.Token
	row := s.pool.QueryRow(ctx, `
		SELECT id, network, address, symbol, decimals
		FROM tokens WHERE network = $1 AND address = $2
	`, network, address)
	if err := row.Scan(&token.ID, &token.Network, &token.Address, &token.Symbol, &token.Decimals); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, false, nil
		}
		return model.Token{}, false, err
	}
	return token, true, nil
}

// InsertTokenIgnore inserts a token row; a duplicate insert is a no-op.
func (s *Store) InsertTokenIgnore(ctx context.Context, token model.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (network, address, symbol, decimals, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (network, address) DO NOTHING
	`, token.Network, token.Address, token.Symbol, token.Decimals)
	return err
}

// InsertRawEvents persists one batch atomically with insert-ignore
// semantics, so a replayed batch changes nothing.
func (s *Store) InsertRawEvents(ctx context.Context, events []model.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO raw_events (
				network, tx_hash, log_index, sub_index, block_number, block_time,
				contract_role, event_name, event_type, token_id, amount_raw,
				amount_norm, relayer, from_addr, to_addr, metadata, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
			ON CONFLICT (network, tx_hash, log_index, sub_index) DO NOTHING
		`,
			e.Network,
			e.TxHash,
			int64(e.LogIndex),
			int32(e.SubIndex),
			int64(e.BlockNumber),
			int64(e.BlockTime),
			e.ContractRole,
			e.EventName,
			string(e.Type),
			e.TokenID,
			e.AmountRaw,
			e.AmountNorm,
			e.Relayer,
			e.FromAddr,
			e.ToAddr,
			e.Metadata,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LoadEventFacts returns the aggregation projection of the raw event table.
// An empty network loads every network.
func (s *Store) LoadEventFacts(ctx context.Context, network string) ([]model.EventFact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			to_char(to_timestamp(e.block_time) AT TIME ZONE 'UTC', 'YYYY-MM-DD'),
			e.network, e.event_type, e.token_id, t.decimals,
			e.amount_norm, e.relayer, e.metadata
		FROM raw_events e
		LEFT JOIN tokens t ON t.id = e.token_id
		WHERE $1 = '' OR e.network = $1
	`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []model.EventFact
	for rows.Next() {
		var fact model.EventFact
		var eventType string
		if err := rows.Scan(
			&fact.Day, &fact.Network, &eventType, &fact.TokenID,
			&fact.TokenDecimals, &fact.AmountNorm, &fact.Relayer, &fact.Metadata,
		); err != nil {
			return nil, err
		}
		fact.Type = model.EventType(eventType)
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

// ReplaceDailyFlows atomically swaps the daily flow rows for a network
// (all networks when empty).
func (s *Store) ReplaceDailyFlows(ctx context.Context, network string, rows []model.DailyFlow) error {
	return s.replace(ctx, network, `DELETE FROM daily_flows WHERE $1 = '' OR network = $1`,
		len(rows), func(batch *pgx.Batch) {
			for _, r := range rows {
				batch.Queue(`
					INSERT INTO daily_flows (
						day, network, token_id, total_deposits, total_withdrawals,
						net_flow, deposit_tx_count, withdrawal_tx_count
					) VALUES ($1::date,$2,$3,$4,$5,$6,$7,$8)
				`, r.Day, r.Network, r.TokenID, r.TotalDeposits, r.TotalWithdrawals,
					r.NetFlow, r.DepositTxCount, r.WithdrawalTxCount)
			}
		})
}

// ReplaceRelayerStats atomically swaps the relayer stats rows.
func (s *Store) ReplaceRelayerStats(ctx context.Context, network string, rows []model.RelayerStatsDaily) error {
	return s.replace(ctx, network, `DELETE FROM relayer_stats_daily WHERE $1 = '' OR network = $1`,
		len(rows), func(batch *pgx.Batch) {
			for _, r := range rows {
				batch.Queue(`
					INSERT INTO relayer_stats_daily (
						day, network, active_relayers, top5_share, hhi, total_txs
					) VALUES ($1::date,$2,$3,$4,$5,$6)
				`, r.Day, r.Network, r.ActiveRelayers, r.Top5Share, r.HHI, r.TotalTxs)
			}
		})
}

// ReplaceFeeRevenue atomically swaps the relayer fee revenue rows.
func (s *Store) ReplaceFeeRevenue(ctx context.Context, network string, rows []model.RelayerFeeRevenueDaily) error {
	return s.replace(ctx, network, `DELETE FROM relayer_fee_revenue_daily WHERE $1 = '' OR network = $1`,
		len(rows), func(batch *pgx.Batch) {
			for _, r := range rows {
				batch.Queue(`
					INSERT INTO relayer_fee_revenue_daily (
						day, network, relayer, token_id, total_fees, avg_fee, tx_count
					) VALUES ($1::date,$2,$3,$4,$5,$6,$7)
				`, r.Day, r.Network, r.Relayer, r.TokenID, r.TotalFees, r.AvgFee, r.TxCount)
			}
		})
}

// ReplaceTokenDiversity atomically swaps the token diversity rows.
func (s *Store) ReplaceTokenDiversity(ctx context.Context, network string, rows []model.DailyTokenDiversity) error {
	return s.replace(ctx, network, `DELETE FROM daily_token_diversity WHERE $1 = '' OR network = $1`,
		len(rows), func(batch *pgx.Batch) {
			for _, r := range rows {
				batch.Queue(`
					INSERT INTO daily_token_diversity (day, network, token_count)
					VALUES ($1::date,$2,$3)
				`, r.Day, r.Network, r.TokenCount)
			}
		})
}

// replace runs one delete-then-insert transaction for an aggregate family.
func (s *Store) replace(ctx context.Context, network, deleteSQL string, rowCount int, queue func(*pgx.Batch)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteSQL, network); err != nil {
		return err
	}

	if rowCount > 0 {
		batch := &pgx.Batch{}
		queue(batch)
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < rowCount; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
