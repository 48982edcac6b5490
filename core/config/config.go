// Package config loads vault settings from an optional YAML file, a dotenv
// file and IYACARE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "IYACARE"

type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Vault   VaultConfig   `mapstructure:"vault"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

type VaultConfig struct {
	// EncryptionKey is a base64 or hex 32-byte key, or a passphrase.
	EncryptionKey string `mapstructure:"encryption_key"`
	// KeySalt is required when EncryptionKey is a passphrase.
	KeySalt string `mapstructure:"key_salt"`
}

type LedgerConfig struct {
	Network          string        `mapstructure:"network"`
	NetworkClass     string        `mapstructure:"network_class"`
	Endpoints        []string      `mapstructure:"endpoints"`
	ContractAddress  string        `mapstructure:"contract_address"`
	WriteCredentials string        `mapstructure:"write_credentials"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ReprobeInterval  time.Duration `mapstructure:"reprobe_interval"`
	WriteRate        float64       `mapstructure:"write_rate"`
	WriteBurst       int           `mapstructure:"write_burst"`
	CrossCheck       bool          `mapstructure:"cross_check"`
}

type AuditConfig struct {
	Capacity int `mapstructure:"capacity"`
	// Journal is the JSON-lines audit file; empty means <data_dir>/audit.jsonl.
	Journal string `mapstructure:"journal"`
}

type StorageConfig struct {
	MaxRecords   int    `mapstructure:"max_records"`
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// JWTSecret guards /status when set.
	JWTSecret   string `mapstructure:"jwt_secret"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

var defaults = map[string]any{
	"data_dir":                 "./data",
	"vault.encryption_key":     "",
	"vault.key_salt":           "",
	"ledger.network":           "",
	"ledger.network_class":     "test",
	"ledger.endpoints":         []string{},
	"ledger.contract_address":  "",
	"ledger.write_credentials": "",
	"ledger.probe_timeout":     "3s",
	"ledger.request_timeout":   "5s",
	"ledger.reprobe_interval":  "30s",
	"ledger.write_rate":        20,
	"ledger.write_burst":       40,
	"ledger.cross_check":       true,
	"audit.capacity":           1000,
	"audit.journal":            "",
	"storage.max_records":      0,
	"storage.min_free_bytes":   64 << 20,
	"log.level":                "info",
	"log.format":               "json",
	"http.addr":                ":8088",
	"http.jwt_secret":          "",
	"http.tls_cert_file":       "",
	"http.tls_key_file":        "",
}

// Load reads configuration. path may be empty. A .env file in the working
// directory is loaded first if present; variables already set win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Ledger.Endpoints = splitList(cfg.Ledger.Endpoints)
	return cfg, nil
}

// splitList flattens comma-separated entries, which is how a list arrives
// from a single environment variable.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings every command needs. Ledger endpoints are
// not required here: a vault without them runs local-only.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Vault.EncryptionKey) == "" {
		errs = append(errs, errors.New("vault.encryption_key is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch strings.ToLower(c.Ledger.NetworkClass) {
	case "", "test", "production":
	default:
		errs = append(errs, fmt.Errorf("ledger.network_class must be test or production, got %q", c.Ledger.NetworkClass))
	}
	if c.Audit.Capacity < 0 {
		errs = append(errs, errors.New("audit.capacity must not be negative"))
	}
	if c.Storage.MaxRecords < 0 {
		errs = append(errs, errors.New("storage.max_records must not be negative"))
	}
	if c.Ledger.WriteCredentials != "" && c.Ledger.ContractAddress == "" {
		errs = append(errs, errors.New("ledger.contract_address is required when write credentials are set"))
	}
	if (c.HTTP.TLSCertFile == "") != (c.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("http.tls_cert_file and http.tls_key_file must be set together"))
	}
	return errors.Join(errs...)
}

// StoreDir is where the record database lives.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "records")
}

// JournalPath is the audit journal file.
func (c *Config) JournalPath() string {
	if c.Audit.Journal != "" {
		return c.Audit.Journal
	}
	return filepath.Join(c.DataDir, "audit.jsonl")
}
