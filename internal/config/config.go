// Package config loads ephvault configuration from YAML with environment
// overrides, and validates the result against an embedded CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ephvault/internal/vault"
)

//go:embed schema.cue
var schemaCUE string

// Default values applied to fields left empty.
const (
	DefaultDBPath      = "ephvault.db"
	DefaultSweepCron   = "@every 1m"
	DefaultSweeperName = "sweeper"
	DefaultLogLevel    = "info"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"database" json:"database"`
	Vault struct {
		ExpiryThreshold  *int64  `yaml:"expiry_threshold" json:"expiry_threshold"`
		DelegationTTL    *int64  `yaml:"delegation_ttl" json:"delegation_ttl"`
		CleanerRewardBps *uint64 `yaml:"cleaner_reward_bps" json:"cleaner_reward_bps"`
	} `yaml:"vault" json:"vault"`
	Ledger struct {
		FeeCollector string `yaml:"fee_collector" json:"fee_collector"`
		Venue        string `yaml:"venue" json:"venue"`
	} `yaml:"ledger" json:"ledger"`
	Monitor struct {
		Cron    string `yaml:"cron" json:"cron"`
		Cleaner string `yaml:"cleaner" json:"cleaner"`
	} `yaml:"monitor" json:"monitor"`
	Log struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"log" json:"log"`
}

// FieldError is one schema violation.
type FieldError struct {
	Path    string
	Message string
}

// ValidationError lists every schema violation found in a config.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Message)
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults, and validates the result. A missing file is not
// an error; an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("EPHVAULT_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("EPHVAULT_EXPIRY"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EPHVAULT_EXPIRY: %w", err)
		}
		c.Vault.ExpiryThreshold = &n
	}
	if v := os.Getenv("EPHVAULT_DELEGATION_TTL"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EPHVAULT_DELEGATION_TTL: %w", err)
		}
		c.Vault.DelegationTTL = &n
	}
	if v := os.Getenv("EPHVAULT_CLEANER_REWARD_BPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EPHVAULT_CLEANER_REWARD_BPS: %w", err)
		}
		c.Vault.CleanerRewardBps = &n
	}
	if v := os.Getenv("EPHVAULT_SWEEP_CRON"); v != "" {
		c.Monitor.Cron = v
	}
	if v := os.Getenv("EPHVAULT_CLEANER"); v != "" {
		c.Monitor.Cleaner = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := vault.DefaultPolicy()
	if c.Database.Path == "" {
		c.Database.Path = DefaultDBPath
	}
	if c.Vault.ExpiryThreshold == nil {
		c.Vault.ExpiryThreshold = &def.ExpiryThreshold
	}
	if c.Vault.DelegationTTL == nil {
		c.Vault.DelegationTTL = &def.DelegationTTL
	}
	if c.Vault.CleanerRewardBps == nil {
		c.Vault.CleanerRewardBps = &def.CleanerRewardBps
	}
	if c.Ledger.FeeCollector == "" {
		c.Ledger.FeeCollector = string(def.FeeCollector)
	}
	if c.Ledger.Venue == "" {
		c.Ledger.Venue = string(def.Venue)
	}
	if c.Monitor.Cron == "" {
		c.Monitor.Cron = DefaultSweepCron
	}
	if c.Monitor.Cleaner == "" {
		c.Monitor.Cleaner = DefaultSweeperName
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(c))
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		verr.Fields = append(verr.Fields, FieldError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(verr.Fields) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	return verr
}

// Policy converts the vault and ledger sections to a vault.Policy.
// Load must have succeeded first.
func (c *Config) Policy() vault.Policy {
	return vault.Policy{
		ExpiryThreshold:  *c.Vault.ExpiryThreshold,
		DelegationTTL:    *c.Vault.DelegationTTL,
		CleanerRewardBps: *c.Vault.CleanerRewardBps,
		FeeCollector:     vault.Identity(c.Ledger.FeeCollector),
		Venue:            vault.Identity(c.Ledger.Venue),
	}
}

// LogLevel maps log.level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
