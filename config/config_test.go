package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"revledger/crypto"
)

func testAddrString(last byte) string {
	var addr [20]byte
	addr[19] = last
	return crypto.NewAddress(crypto.LedgerPrefix, addr[:]).String()
}

func TestLoadParsesConfiguredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystorePath := filepath.Join(dir, "authorizer.keystore")
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
OpsAddress = "0.0.0.0:9100"
DataDir = "./data"
RegistryID = "pool-test"
Environment = "test"
PoolOwner = "%s"
FeeCollector = "%s"
PlatformFeePercentage = "100000000000000000"
AuthorizerKeystorePath = "%s"
`, testAddrString(0x01), testAddrString(0x02), keystorePath)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" || cfg.OpsAddress != "0.0.0.0:9100" {
		t.Fatalf("unexpected addresses %+v", cfg)
	}
	if cfg.RegistryID != "pool-test" {
		t.Fatalf("unexpected registry id %q", cfg.RegistryID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	owner, err := cfg.PoolOwnerAddress()
	if err != nil {
		t.Fatalf("pool owner: %v", err)
	}
	if owner[19] != 0x01 {
		t.Fatalf("unexpected pool owner %x", owner)
	}
	fee, err := cfg.PlatformFee()
	if err != nil {
		t.Fatalf("platform fee: %v", err)
	}
	if fee.Cmp(big.NewInt(0).Exp(big.NewInt(10), big.NewInt(17), nil)) != 0 {
		t.Fatalf("unexpected fee %s", fee)
	}

	// Load must have materialized the keystore it was pointed at.
	if _, err := os.Stat(keystorePath); err != nil {
		t.Fatalf("keystore not created: %v", err)
	}
	if _, err := crypto.LoadFromKeystore(keystorePath, ""); err != nil {
		t.Fatalf("keystore unreadable: %v", err)
	}
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RegistryID != "revledger-local" {
		t.Fatalf("unexpected registry id %q", cfg.RegistryID)
	}
	if cfg.AuthorizerKeystorePath == "" {
		t.Fatalf("default config must point at a keystore")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not persisted: %v", err)
	}
	if _, err := os.Stat(cfg.AuthorizerKeystorePath); err != nil {
		t.Fatalf("keystore not persisted: %v", err)
	}

	// The generated pool owner decodes back to an address.
	if _, err := cfg.PoolOwnerAddress(); err != nil {
		t.Fatalf("pool owner: %v", err)
	}

	// Reloading keeps the same keystore instead of regenerating it.
	first, err := crypto.LoadFromKeystore(cfg.AuthorizerKeystorePath, "")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	second, err := crypto.LoadFromKeystore(again.AuthorizerKeystorePath, "")
	if err != nil {
		t.Fatalf("reload keystore: %v", err)
	}
	if first.PubKey().Address().String() != second.PubKey().Address().String() {
		t.Fatalf("keystore regenerated across loads")
	}
}

func TestPlatformFeeValidation(t *testing.T) {
	cfg := &Config{PlatformFeePercentage: "not-a-number"}
	if _, err := cfg.PlatformFee(); err == nil {
		t.Fatalf("expected fee parse failure")
	}
	cfg = &Config{PlatformFeePercentage: ""}
	fee, err := cfg.PlatformFee()
	if err != nil || fee != nil {
		t.Fatalf("empty fee must disable the fee, got %v %v", fee, err)
	}
}
