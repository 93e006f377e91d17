package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"revledger/crypto"

	"github.com/BurntSushi/toml"
)

// JWTSecretEnv names the environment variable holding the HMAC secret that
// gates administrative RPC methods.
const JWTSecretEnv = "REVLEDGER_RPC_SECRET"

type Config struct {
	RPCAddress             string `toml:"RPCAddress"`
	OpsAddress             string `toml:"OpsAddress"`
	DataDir                string `toml:"DataDir"`
	RegistryID             string `toml:"RegistryID"`
	Environment            string `toml:"Environment"`
	PoolOwner              string `toml:"PoolOwner"`
	Authorizer             string `toml:"Authorizer"`
	FeeCollector           string `toml:"FeeCollector"`
	PlatformFeePercentage  string `toml:"PlatformFeePercentage"`
	AuthorizerKeystorePath string `toml:"AuthorizerKeystorePath"`
}

// Load loads the configuration from the given path, creating a default file
// with a fresh authorizer keystore when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RegistryID) == "" {
		cfg.RegistryID = "revledger-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.OpsAddress) == "" {
		cfg.OpsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./revledger-data"
	}

	return cfg, nil
}

// Validate checks the address and fee fields that Load cannot default.
func (c *Config) Validate() error {
	if _, err := c.PoolOwnerAddress(); err != nil {
		return fmt.Errorf("config: invalid PoolOwner: %w", err)
	}
	if strings.TrimSpace(c.FeeCollector) != "" {
		if _, err := c.FeeCollectorAddress(); err != nil {
			return fmt.Errorf("config: invalid FeeCollector: %w", err)
		}
	}
	if _, err := c.PlatformFee(); err != nil {
		return err
	}
	return nil
}

// PoolOwnerAddress decodes the configured pool owner.
func (c *Config) PoolOwnerAddress() ([20]byte, error) {
	return decodeAddress(c.PoolOwner)
}

// AuthorizerAddress decodes the configured authorizer. When the field is
// empty, the keystore key's address is the authorizer and the caller should
// derive it from the loaded key instead.
func (c *Config) AuthorizerAddress() ([20]byte, bool, error) {
	if strings.TrimSpace(c.Authorizer) == "" {
		return [20]byte{}, false, nil
	}
	addr, err := decodeAddress(c.Authorizer)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr, true, nil
}

// FeeCollectorAddress decodes the configured fee collector.
func (c *Config) FeeCollectorAddress() ([20]byte, error) {
	return decodeAddress(c.FeeCollector)
}

// PlatformFee parses the PercentBase-scaled platform fee; an empty field
// disables the fee.
func (c *Config) PlatformFee() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.PlatformFeePercentage)
	if trimmed == "" {
		return nil, nil
	}
	fee, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid PlatformFeePercentage %q", trimmed)
	}
	return fee, nil
}

// JWTSecret reads the RPC admin secret from the environment.
func JWTSecret() string {
	return strings.TrimSpace(os.Getenv(JWTSecretEnv))
}

func decodeAddress(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AuthorizerKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorizerKeystorePath != keystorePath {
		cfg.AuthorizerKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:  ":8080",
		OpsAddress:  ":9090",
		DataDir:     "./revledger-data",
		RegistryID:  "revledger-local",
		Environment: "local",
		PoolOwner:   key.PubKey().Address().String(),
	}
	cfg.AuthorizerKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authorizer.keystore")
}
