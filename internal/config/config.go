package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/address"
	"oracleScope/internal/model"
)

// Scan id store kinds.
const (
	ScanStoreFile     = "file"
	ScanStorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	NodeURL    string
	NodeAPIKey string

	OracleAddress                   string
	PoolNFT                         string
	ParticipantToken                string
	EpochPreparationContractAddress string
	LiveEpochContractAddress        string
	DatapointContractAddress        string
	PoolDepositContractAddress      string

	ScanStore    string
	ScanIDsPath  string
	PGDSN        string
	Out          string
	OutMaxBytes  int64
	Checkpoint   string
	Interval     time.Duration
	MetricsAddr  string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// keys lists every configuration key in its canonical kebab-case form.
var keys = []string{
	"node-url",
	"node-api-key",
	"oracle-address",
	"oracle-pool-nft",
	"oracle-pool-participant-token",
	"epoch-preparation-contract-address",
	"live-epoch-contract-address",
	"datapoint-contract-address",
	"pool-deposit-contract-address",
	"scan-store",
	"scan-ids-path",
	"pg-dsn",
	"out",
	"out-max-bytes",
	"checkpoint",
	"interval",
	"metrics-addr",
	"timeout",
	"max-retries",
	"retry-backoff",
	"log-level",
}

// Load merges config file, environment variables, and flags into Config.
// Keys are kebab-case; the snake_case spelling of every key is accepted too.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("scan-store", ScanStoreFile)
	v.SetDefault("scan-ids-path", "scanIDs.json")
	v.SetDefault("out", "./data/snapshots.jsonl")
	v.SetDefault("checkpoint", "./data/watch_checkpoint.json")
	v.SetDefault("interval", 30*time.Second)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("oracle-config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	registerSnakeCaseAliases(v)

	cfg := Config{
		NodeURL:    getString(v, "node-url"),
		NodeAPIKey: getString(v, "node-api-key"),

		OracleAddress:                   getString(v, "oracle-address"),
		PoolNFT:                         getString(v, "oracle-pool-nft"),
		ParticipantToken:                getString(v, "oracle-pool-participant-token"),
		EpochPreparationContractAddress: getString(v, "epoch-preparation-contract-address"),
		LiveEpochContractAddress:        getString(v, "live-epoch-contract-address"),
		DatapointContractAddress:        getString(v, "datapoint-contract-address"),
		PoolDepositContractAddress:      getString(v, "pool-deposit-contract-address"),

		ScanStore:    strings.ToLower(getString(v, "scan-store")),
		ScanIDsPath:  getString(v, "scan-ids-path"),
		PGDSN:        getString(v, "pg-dsn"),
		Out:          getString(v, "out"),
		OutMaxBytes:  v.GetInt64("out-max-bytes"),
		Checkpoint:   getString(v, "checkpoint"),
		Interval:     v.GetDuration("interval"),
		MetricsAddr:  getString(v, "metrics-addr"),
		Timeout:      v.GetDuration("timeout"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     getString(v, "log-level"),
	}

	return cfg, nil
}

// Protocol returns the protocol parameters of the configured deployment.
func (c Config) Protocol() model.Protocol {
	return model.Protocol{
		OracleAddress:                   c.OracleAddress,
		PoolNFT:                         c.PoolNFT,
		ParticipantToken:                c.ParticipantToken,
		EpochPreparationContractAddress: c.EpochPreparationContractAddress,
		LiveEpochContractAddress:        c.LiveEpochContractAddress,
		DatapointContractAddress:        c.DatapointContractAddress,
		PoolDepositContractAddress:      c.PoolDepositContractAddress,
	}
}

// Validate checks required fields and parses every configured address.
func (c Config) Validate() error {
	if c.NodeURL == "" {
		return fmt.Errorf("node-url is required")
	}
	if c.PoolNFT == "" {
		return fmt.Errorf("oracle-pool-nft is required")
	}
	if c.ParticipantToken == "" {
		return fmt.Errorf("oracle-pool-participant-token is required")
	}

	oracle, err := parseAddress("oracle-address", c.OracleAddress)
	if err != nil {
		return err
	}
	if _, err := oracle.PublicKey(); err != nil {
		return fmt.Errorf("oracle-address: %w", err)
	}

	contracts := []struct {
		key   string
		value string
	}{
		{"epoch-preparation-contract-address", c.EpochPreparationContractAddress},
		{"live-epoch-contract-address", c.LiveEpochContractAddress},
		{"datapoint-contract-address", c.DatapointContractAddress},
		{"pool-deposit-contract-address", c.PoolDepositContractAddress},
	}
	for _, contract := range contracts {
		addr, err := parseAddress(contract.key, contract.value)
		if err != nil {
			return err
		}
		if addr.Network != oracle.Network {
			return fmt.Errorf("%s: network does not match oracle-address", contract.key)
		}
	}

	switch c.ScanStore {
	case ScanStoreFile:
		if c.ScanIDsPath == "" {
			return fmt.Errorf("scan-ids-path is required for the file scan store")
		}
	case ScanStorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres scan store")
		}
	default:
		return fmt.Errorf("unsupported scan-store %q", c.ScanStore)
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.OutMaxBytes < 0 {
		return fmt.Errorf("out-max-bytes must not be negative")
	}
	return nil
}

func parseAddress(key, value string) (address.Address, error) {
	if value == "" {
		return address.Address{}, fmt.Errorf("%s is required", key)
	}
	addr, err := address.Parse(value)
	if err != nil {
		return address.Address{}, fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

// registerSnakeCaseAliases lets a config file spell keys in snake_case. It
// runs after the file is read so aliased values are moved onto the canonical
// key. A key present in both spellings keeps the kebab-case value.
func registerSnakeCaseAliases(v *viper.Viper) {
	for _, key := range keys {
		alias := strings.ReplaceAll(key, "-", "_")
		if alias == key || v.InConfig(key) {
			continue
		}
		v.RegisterAlias(alias, key)
	}
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}
