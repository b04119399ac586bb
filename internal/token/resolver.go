package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shieldscope/internal/model"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	GetToken(ctx context.Context, network, address string) (model.Token, bool, error)
	InsertTokenIgnore(ctx context.Context, token model.Token) error
}

// MetadataSource fetches symbol/decimals for an address, best effort.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, address common.Address) Metadata
}

// Resolver maps contract addresses to token rows for one network. The cache
// is batch-scoped: the ingestion loop clears it between batches so a long run
// cannot grow it without bound.
type Resolver struct {
	network  string
	store    Store
	metadata MetadataSource
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]model.Token
}

// NewResolver builds a resolver bound to one network.
func NewResolver(network string, store Store, metadata MetadataSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		network:  network,
		store:    store,
		metadata: metadata,
		logger:   logger,
		cache:    make(map[string]model.Token),
	}
}

// Resolve returns the token row for an address, creating it on first
// reference. A contract that does not answer the metadata calls is persisted
// with unknown metadata; it never blocks ingestion.
func (r *Resolver) Resolve(ctx context.Context, address string) (model.Token, error) {
	if !common.IsHexAddress(address) {
		return model.Token{}, fmt.Errorf("invalid token address: %s", address)
	}
	canonical := common.HexToAddress(address)
	key := canonical.Hex()

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	existing, found, err := r.store.GetToken(ctx, r.network, key)
	if err != nil {
		return model.Token{}, fmt.Errorf("get token %s: %w", key, err)
	}
	if found {
		r.remember(key, existing)
		return existing, nil
	}

	var meta Metadata
	if r.metadata != nil {
		meta = r.metadata.FetchMetadata(ctx, canonical)
	}
	if meta.Decimals == nil {
		r.logger.Warn("token decimals unknown", zap.String("network", r.network), zap.String("token", key))
	}

	row := model.Token{
		Network:  r.network,
		Address:  key,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
	}
	if err := r.store.InsertTokenIgnore(ctx, row); err != nil {
		return model.Token{}, fmt.Errorf("insert token %s: %w", key, err)
	}

	// Re-read for the authoritative row; a concurrent writer may have won the
	// insert race and that is fine.
	inserted, found, err := r.store.GetToken(ctx, r.network, key)
	if err != nil {
		return model.Token{}, fmt.Errorf("reread token %s: %w", key, err)
	}
	if !found {
		return model.Token{}, fmt.Errorf("token %s missing after insert", key)
	}

	r.remember(key, inserted)
	return inserted, nil
}

// ClearCache drops the batch-scoped cache.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]model.Token)
	r.mu.Unlock()
}

func (r *Resolver) remember(key string, row model.Token) {
	r.mu.Lock()
	r.cache[key] = row
	r.mu.Unlock()
}
