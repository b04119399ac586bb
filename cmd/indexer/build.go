package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shieldscope/internal/chain"
	"shieldscope/internal/config"
	"shieldscope/internal/decode"
	"shieldscope/internal/indexer"
	"shieldscope/internal/store/postgres"
	"shieldscope/internal/token"
)

// buildRunners wires one ingestion loop per network profile.
func buildRunners(ctx context.Context, cfg config.Config, store *postgres.Store, logger *zap.Logger) ([]*indexer.Runner, func(), error) {
	runners := make([]*indexer.Runner, 0, len(cfg.Networks))
	clients := make([]*chain.Client, 0, len(cfg.Networks))
	closeAll := func() {
		for _, client := range clients {
			client.Close()
		}
	}

	for _, network := range cfg.Networks {
		client, err := chain.NewClient(ctx, network.RPCURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect rpc for %s: %w", network.Name, err)
		}
		clients = append(clients, client)

		structured, err := decode.NewStructured(logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		legacyTopics := make([]common.Hash, 0, len(network.LegacyTopics))
		for _, topic := range network.LegacyTopics {
			legacyTopics = append(legacyTopics, common.HexToHash(topic))
		}
		decoder := decode.NewChain(logger, structured, decode.NewLegacy(legacyTopics))

		resolver := token.NewResolver(network.Name, store, token.NewFetcher(client, logger), logger)

		runner, err := indexer.NewRunner(
			network, client, store, decoder, resolver,
			cfg.MaxRetries, cfg.RetryBackoff, logger,
		)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		runners = append(runners, runner)
	}

	return runners, closeAll, nil
}
