package token

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shieldscope/internal/model"
)

type fakeTokenStore struct {
	rows    map[string]model.Token
	nextID  int64
	gets    int
	inserts int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{rows: make(map[string]model.Token), nextID: 1}
}

func (s *fakeTokenStore) key(network, address string) string {
	return network + "/" + address
}

func (s *fakeTokenStore) GetToken(_ context.Context, network, address string) (model.Token, bool, error) {
	s.gets++
	row, ok := s.rows[s.key(network, address)]
	return row, ok, nil
}

func (s *fakeTokenStore) InsertTokenIgnore(_ context.Context, token model.Token) error {
	s.inserts++
	key := s.key(token.Network, token.Address)
	if _, ok := s.rows[key]; ok {
		return nil // duplicate insert is a no-op
	}
	token.ID = s.nextID
	s.nextID++
	s.rows[key] = token
	return nil
}

type fakeMetadata struct {
	meta Metadata
}

func (f *fakeMetadata) FetchMetadata(context.Context, common.Address) Metadata {
	return f.meta
}

func TestResolveCreatesAndCaches(t *testing.T) {
	store := newFakeTokenStore()
	decimals := int16(18)
	symbol := "WETH"
	resolver := NewResolver("A", store, &fakeMetadata{meta: Metadata{Symbol: &symbol, Decimals: &decimals}}, zap.NewNop())

	tok, err := resolver.Resolve(context.Background(), "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if tok.Decimals == nil || *tok.Decimals != 18 {
		t.Fatalf("decimals mismatch: %+v", tok)
	}

	gets := store.gets
	again, err := resolver.Resolve(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	if err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if again.ID != tok.ID {
		t.Fatalf("cache returned different id: %d != %d", again.ID, tok.ID)
	}
	if store.gets != gets {
		t.Fatalf("cached resolve must not hit the store")
	}
}

func TestResolveCanonicalizesAddress(t *testing.T) {
	store := newFakeTokenStore()
	resolver := NewResolver("A", store, &fakeMetadata{}, zap.NewNop())

	lower := "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	tok, err := resolver.Resolve(context.Background(), lower)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := common.HexToAddress(lower).Hex()
	if tok.Address != want {
		t.Fatalf("stored address not canonical: %s != %s", tok.Address, want)
	}
}

func TestResolveMetadataFailureDoesNotBlock(t *testing.T) {
	store := newFakeTokenStore()
	resolver := NewResolver("A", store, &fakeMetadata{}, zap.NewNop())

	tok, err := resolver.Resolve(context.Background(), "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok.Decimals != nil || tok.Symbol != nil {
		t.Fatalf("expected unknown metadata, got %+v", tok)
	}
	if tok.ID == 0 {
		t.Fatalf("token must still be persisted")
	}
}

func TestResolveSurvivesInsertRace(t *testing.T) {
	store := newFakeTokenStore()
	resolver := NewResolver("A", store, &fakeMetadata{}, zap.NewNop())

	address := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc").Hex()

	// Another writer creates the row between our miss and our insert.
	winner := model.Token{Network: "A", Address: address}
	if err := store.InsertTokenIgnore(context.Background(), winner); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	seeded := store.rows[store.key("A", address)]

	tok, err := resolver.Resolve(context.Background(), address)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok.ID != seeded.ID {
		t.Fatalf("resolver must adopt the winner's row: %d != %d", tok.ID, seeded.ID)
	}
}

func TestClearCacheDropsEntries(t *testing.T) {
	store := newFakeTokenStore()
	resolver := NewResolver("A", store, &fakeMetadata{}, zap.NewNop())

	address := "0xdddddddddddddddddddddddddddddddddddddddd"
	if _, err := resolver.Resolve(context.Background(), address); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	resolver.ClearCache()

	gets := store.gets
	if _, err := resolver.Resolve(context.Background(), address); err != nil {
		t.Fatalf("resolve after clear: %v", err)
	}
	if store.gets == gets {
		t.Fatalf("cleared cache should force a store lookup")
	}
}

func TestResolveRejectsInvalidAddress(t *testing.T) {
	resolver := NewResolver("A", newFakeTokenStore(), &fakeMetadata{}, zap.NewNop())
	if _, err := resolver.Resolve(context.Background(), "not-an-address"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}
