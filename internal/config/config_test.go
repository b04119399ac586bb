package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesNetworkDefaults(t *testing.T) {
	path := writeConfig(t, `
pg-dsn: postgres://localhost/shieldscope
networks:
  - name: mainnet
    rpc: https://rpc.example.org
    start_block: 14737691
    contracts:
      - address: "0xfa7093cdd9eef260d004841c7a1054b105b6cceb"
        role: pool
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cfg.ValidateNetworks(); err != nil {
		t.Fatalf("validate networks: %v", err)
	}

	if len(cfg.Networks) != 1 {
		t.Fatalf("expected 1 network, got %d", len(cfg.Networks))
	}
	n := cfg.Networks[0]
	if n.BatchSize != 2000 {
		t.Fatalf("batch size default %d, want 2000", n.BatchSize)
	}
	if n.ConfirmationDepth != 12 {
		t.Fatalf("confirmation depth default %d, want 12", n.ConfirmationDepth)
	}
	if n.BatchDelay != 200*time.Millisecond {
		t.Fatalf("batch delay default %v", n.BatchDelay)
	}
	if n.ResumeDelay != 30*time.Second {
		t.Fatalf("resume delay default %v", n.ResumeDelay)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("max retries default %d, want 5", cfg.MaxRetries)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
pg-dsn: postgres://localhost/shieldscope
networks:
  - name: sepolia
    rpc: https://sepolia.example.org
    batch_size: 500
    confirmation_depth: 3
    contracts:
      - address: "0xfa7093cdd9eef260d004841c7a1054b105b6cceb"
        role: pool
    legacy_topics:
      - "0x0e3b8a74b71a30a2c9a316b0a3a43054a265d423ef1b7c26a0a84d8b4b57f4e0"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	n := cfg.Networks[0]
	if n.BatchSize != 500 {
		t.Fatalf("batch size %d, want 500", n.BatchSize)
	}
	if n.ConfirmationDepth != 3 {
		t.Fatalf("confirmation depth %d, want 3", n.ConfirmationDepth)
	}
	if len(n.LegacyTopics) != 1 {
		t.Fatalf("legacy topics %v", n.LegacyTopics)
	}
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("empty config must not validate")
	}

	cfg := Config{PostgresDSN: "postgres://localhost/x"}
	if err := cfg.ValidateNetworks(); err == nil {
		t.Fatalf("zero networks must not validate")
	}

	cfg.Networks = []Network{
		{Name: "mainnet", RPCURL: "https://a", Contracts: []Contract{{Address: "0x1"}}},
		{Name: "mainnet", RPCURL: "https://b", Contracts: []Contract{{Address: "0x2"}}},
	}
	if err := cfg.ValidateNetworks(); err == nil {
		t.Fatalf("duplicate network names must not validate")
	}
}
