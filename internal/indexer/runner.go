package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"shieldscope/internal/config"
	"shieldscope/internal/decode"
	"shieldscope/internal/metrics"
	"shieldscope/internal/model"
)

// checkpointPurpose tags the ingestion checkpoint in the key-value table.
const checkpointPurpose = "event-scan"

// ChainSource is the slice of the chain client the loop depends on.
type ChainSource interface {
	HeadBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// Store is the persistence surface the loop depends on.
type Store interface {
	LoadCheckpoint(ctx context.Context, network, purpose string) (uint64, bool, error)
	SaveCheckpoint(ctx context.Context, network, purpose string, height uint64) error
	InsertRawEvents(ctx context.Context, events []model.RawEvent) error
}

// TokenResolver resolves token addresses with a batch-scoped cache.
type TokenResolver interface {
	Resolve(ctx context.Context, address string) (model.Token, error)
	ClearCache()
}

// Runner ingests one network: it scans logs in bounded ranges behind the
// confirmation margin, decodes and persists them, and advances the durable
// checkpoint only after each batch commits.
type Runner struct {
	profile      config.Network
	chain        ChainSource
	store        Store
	decoder      *decode.Chain
	resolver     TokenResolver
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration

	addresses []common.Address
	roles     map[common.Address]string
	senders   map[common.Hash]common.Address
}

// NewRunner builds a Runner for one network profile.
func NewRunner(
	profile config.Network,
	chain ChainSource,
	store Store,
	decoder *decode.Chain,
	resolver TokenResolver,
	maxRetries int,
	retryBackoff time.Duration,
	logger *zap.Logger,
) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	addresses := make([]common.Address, 0, len(profile.Contracts))
	roles := make(map[common.Address]string, len(profile.Contracts))
	for _, contract := range profile.Contracts {
		if !common.IsHexAddress(contract.Address) {
			return nil, fmt.Errorf("network %s: invalid contract address %s", profile.Name, contract.Address)
		}
		addr := common.HexToAddress(contract.Address)
		addresses = append(addresses, addr)
		roles[addr] = contract.Role
	}

	return &Runner{
		profile:      profile,
		chain:        chain,
		store:        store,
		decoder:      decoder,
		resolver:     resolver,
		logger:       logger.With(zap.String("network", profile.Name)),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		addresses:    addresses,
		roles:        roles,
		senders:      make(map[common.Hash]common.Address),
	}, nil
}

// Loop runs the scan repeatedly, re-arming after each caught-up completion.
// A batch-fatal error terminates the loop so supervision can restart the
// process with the checkpoint unadvanced.
func (r *Runner) Loop(ctx context.Context) error {
	for {
		if err := r.Run(ctx); err != nil {
			metrics.BatchFailures.WithLabelValues(r.profile.Name).Inc()
			return fmt.Errorf("network %s: %w", r.profile.Name, err)
		}

		timer := time.NewTimer(r.profile.ResumeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Run executes one scan from the checkpoint to the current safe head.
// Returning nil means caught up, not finished for good.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.store == nil {
		return fmt.Errorf("store is nil")
	}
	if r.profile.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.addresses) == 0 {
		return fmt.Errorf("at least one contract is required")
	}

	from := r.profile.StartBlock
	checkpoint, ok, err := r.store.LoadCheckpoint(ctx, r.profile.Name, checkpointPurpose)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		metrics.CheckpointHeight.WithLabelValues(r.profile.Name).Set(float64(checkpoint))
		if checkpoint+1 > from {
			from = checkpoint + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("checkpoint", checkpoint), zap.Uint64("from", from))
		}
	}

	head, err := r.headWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("head block: %w", err)
	}
	if head < r.profile.ConfirmationDepth {
		r.logger.Info("chain shorter than confirmation depth", zap.Uint64("head", head))
		return nil
	}
	safeHead := head - r.profile.ConfirmationDepth

	if from > safeHead {
		r.logger.Info("caught up", zap.Uint64("from", from), zap.Uint64("safe_head", safeHead))
		return nil
	}

	ranges, err := SplitRange(from, safeHead, r.profile.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.runBatch(ctx, blockRange); err != nil {
			return err
		}

		timer := time.NewTimer(r.profile.BatchDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

func (r *Runner) runBatch(ctx context.Context, blockRange BlockRange) error {
	start := time.Now()
	r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
	}
	metrics.LogsFetched.WithLabelValues(r.profile.Name).Add(float64(len(logs)))

	events, err := r.transformLogs(ctx, logs)
	if err != nil {
		return err
	}

	if err := r.insertWithRetry(ctx, events); err != nil {
		return fmt.Errorf("store events %d-%d: %w", blockRange.From, blockRange.To, err)
	}

	// Only a committed batch moves the checkpoint; a crash before this line
	// replays the same range, which the insert-ignore semantics absorb.
	if err := r.saveCheckpointWithRetry(ctx, blockRange.To); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", blockRange.To, err)
	}
	metrics.CheckpointHeight.WithLabelValues(r.profile.Name).Set(float64(blockRange.To))
	metrics.BatchesCommitted.WithLabelValues(r.profile.Name).Inc()
	metrics.BatchDuration.WithLabelValues(r.profile.Name).Observe(time.Since(start).Seconds())

	r.resolver.ClearCache()
	r.senders = make(map[common.Hash]common.Address)

	r.logger.Info("batch complete",
		zap.Int("logs", len(logs)),
		zap.Int("events", len(events)),
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
	)
	return nil
}

// transformLogs turns raw logs into raw event rows. Per-log decode misses are
// skipped; network and store failures inside the transform are batch-fatal.
func (r *Runner) transformLogs(ctx context.Context, logs []types.Log) ([]model.RawEvent, error) {
	events := make([]model.RawEvent, 0, len(logs))
	for _, log := range logs {
		decoded := r.decoder.Decode(log)
		if len(decoded) == 0 {
			metrics.LogsSkipped.WithLabelValues(r.profile.Name).Inc()
			continue
		}

		ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}

		for _, d := range decoded {
			event, err := r.buildRawEvent(ctx, log, ts, d)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
			metrics.EventsDecoded.WithLabelValues(r.profile.Name, string(d.Type)).Inc()
		}
	}
	return events, nil
}

func (r *Runner) buildRawEvent(ctx context.Context, log types.Log, ts uint64, d model.DecodedEvent) (model.RawEvent, error) {
	event := model.RawEvent{
		Network:      r.profile.Name,
		TxHash:       log.TxHash.Hex(),
		LogIndex:     uint64(log.Index),
		SubIndex:     d.SubIndex,
		BlockNumber:  log.BlockNumber,
		BlockTime:    ts,
		ContractRole: r.roles[log.Address],
		EventName:    d.EventName,
		Type:         d.Type,
		AmountRaw:    "0",
	}

	if d.Token != "" {
		token, err := r.resolver.Resolve(ctx, d.Token)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("resolve token %s: %w", d.Token, err)
		}
		event.TokenID = &token.ID

		if d.Amount != nil {
			event.AmountRaw = d.Amount.String()
			if token.Decimals != nil {
				norm := model.NormalizeAmount(d.Amount, *token.Decimals)
				event.AmountNorm = &norm
			}
		}
	} else if d.Amount != nil {
		event.AmountRaw = d.Amount.String()
	}

	if d.From != "" {
		from := d.From
		event.FromAddr = &from
	}
	if d.To != "" {
		to := d.To
		event.ToAddr = &to
	}

	switch {
	case d.Relayer != "":
		relayer := d.Relayer
		event.Relayer = &relayer
	case d.Type == model.EventWithdrawal:
		// The broadcaster submits the unshield transaction, so the tx sender
		// identifies the relayer.
		sender, err := r.transactionSenderWithRetry(ctx, log.TxHash)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("transaction sender %s: %w", log.TxHash.Hex(), err)
		}
		relayer := sender.Hex()
		event.Relayer = &relayer
	}

	meta := model.EventMetadata{Partial: d.Partial}
	if d.Fee != nil {
		meta.Fee = d.Fee.String()
	}
	if meta.Fee != "" || meta.Partial {
		blob, err := json.Marshal(meta)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("marshal metadata: %w", err)
		}
		event.Metadata = blob
	}

	return event, nil
}

func (r *Runner) headWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		var err error
		head, err = r.chain.HeadBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("head block fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.addresses)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) transactionSenderWithRetry(ctx context.Context, txHash common.Hash) (common.Address, error) {
	if sender, ok := r.senders[txHash]; ok {
		return sender, nil
	}
	var sender common.Address
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		var err error
		sender, err = r.chain.TransactionSender(ctx, txHash)
		if err != nil {
			r.logger.Warn("transaction sender fetch failed", zap.Error(err), zap.String("tx", txHash.Hex()))
		}
		return err
	})
	if err == nil {
		r.senders[txHash] = sender
	}
	return sender, err
}

func (r *Runner) insertWithRetry(ctx context.Context, events []model.RawEvent) error {
	return withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		err := r.store.InsertRawEvents(ctx, events)
		if err != nil {
			r.logger.Warn("insert events failed", zap.Error(err), zap.Int("events", len(events)))
		}
		return err
	})
}

func (r *Runner) saveCheckpointWithRetry(ctx context.Context, height uint64) error {
	return withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		err := r.store.SaveCheckpoint(ctx, r.profile.Name, checkpointPurpose, height)
		if err != nil {
			r.logger.Warn("save checkpoint failed", zap.Error(err), zap.Uint64("height", height))
		}
		return err
	})
}
