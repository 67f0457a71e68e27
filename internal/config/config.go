package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/refractlabs/refract-core/internal/domain"
)

// TaxComponentConfig declares one cut of the transfer tax.
type TaxComponentConfig struct {
	Name    string `yaml:"name"`
	RateBps uint64 `yaml:"rate_bps"`
	Kind    string `yaml:"kind"`
	Wallet  string `yaml:"wallet"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		AuthToken  string `yaml:"auth_token"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Journal struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"journal"`
	Genesis struct {
		Owner  string `yaml:"owner"`
		Supply string `yaml:"supply"`
		Pool   string `yaml:"pool"`
	} `yaml:"genesis"`
	Reflection struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"reflection"`
	Tax     []TaxComponentConfig `yaml:"tax"`
	Trigger struct {
		Mode             string `yaml:"mode"`
		ConfettiModulo   uint64 `yaml:"confetti_modulo"`
		ReverseDayModulo uint64 `yaml:"reverse_day_modulo"`
		LuckyDropModulo  uint64 `yaml:"lucky_drop_modulo"`
		LuckyPayoutBps   uint64 `yaml:"lucky_payout_bps"`
		LuckyMaxPayout   string `yaml:"lucky_max_payout"`
		LuckyNeedsWindow bool   `yaml:"lucky_needs_window"`
	} `yaml:"trigger"`
	Audit struct {
		Disabled bool   `yaml:"disabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"audit"`
	Metrics struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"metrics"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is fine, the environment and the
// defaults carry a full configuration on their own.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("REFRACT_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("REFRACT_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("REFRACT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REFRACT_JOURNAL_DRIVER"); v != "" {
		cfg.Journal.Driver = v
	}
	if v := os.Getenv("REFRACT_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("REFRACT_GENESIS_OWNER"); v != "" {
		cfg.Genesis.Owner = v
	}
	if v := os.Getenv("REFRACT_GENESIS_SUPPLY"); v != "" {
		cfg.Genesis.Supply = v
	}
	if v := os.Getenv("REFRACT_GENESIS_POOL"); v != "" {
		cfg.Genesis.Pool = v
	}
	if v := os.Getenv("REFRACT_AUDIT_SCHEDULE"); v != "" {
		cfg.Audit.Schedule = v
	}

	// Defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.AuthToken == "" {
		cfg.Server.AuthToken = "dev-token"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "sqlite"
	}
	if cfg.Journal.DSN == "" && cfg.Journal.Driver == "sqlite" {
		cfg.Journal.DSN = "data/refract.db"
	}
	if cfg.Genesis.Pool == "" {
		cfg.Genesis.Pool = "0x0000000000000000000000000000000000000001"
	}
	if cfg.Trigger.ConfettiModulo == 0 {
		cfg.Trigger.ConfettiModulo = 100
	}
	if cfg.Trigger.ReverseDayModulo == 0 {
		cfg.Trigger.ReverseDayModulo = 7
	}
	if cfg.Trigger.LuckyDropModulo == 0 {
		cfg.Trigger.LuckyDropModulo = 1000
	}
	if cfg.Trigger.LuckyPayoutBps == 0 {
		cfg.Trigger.LuckyPayoutBps = 100
	}
	if cfg.Trigger.LuckyMaxPayout == "" {
		cfg.Trigger.LuckyMaxPayout = "50000"
	}
	if cfg.Audit.Schedule == "" {
		cfg.Audit.Schedule = "0 0 * * * *"
	}

	return cfg, nil
}

// GenesisOwner parses the configured owner address.
func (c *Config) GenesisOwner() (domain.Address, error) {
	return domain.ParseAddress(c.Genesis.Owner)
}

// GenesisPool parses the configured self-pool account.
func (c *Config) GenesisPool() (domain.Address, error) {
	return domain.ParseAddress(c.Genesis.Pool)
}

// GenesisSupply parses the configured supply in base units.
func (c *Config) GenesisSupply() (*uint256.Int, error) {
	return uint256.FromDecimal(c.Genesis.Supply)
}

// TriggerMode returns the configured starting mode, normalized.
func (c *Config) TriggerMode() domain.TriggerMode {
	return domain.TriggerMode(strings.ToUpper(c.Trigger.Mode))
}

// TriggerParams assembles the trigger tuning from the config.
func (c *Config) TriggerParams() (domain.TriggerParams, error) {
	maxPayout, err := uint256.FromDecimal(c.Trigger.LuckyMaxPayout)
	if err != nil {
		return domain.TriggerParams{}, fmt.Errorf("trigger.lucky_max_payout: %w", err)
	}
	return domain.TriggerParams{
		ConfettiModulo:   c.Trigger.ConfettiModulo,
		ReverseDayModulo: c.Trigger.ReverseDayModulo,
		LuckyDropModulo:  c.Trigger.LuckyDropModulo,
		LuckyPayoutBps:   c.Trigger.LuckyPayoutBps,
		LuckyMaxPayout:   maxPayout,
		LuckyNeedsWindow: c.Trigger.LuckyNeedsWindow,
	}, nil
}

// TaxPolicy assembles the tax components from the config.
func (c *Config) TaxPolicy() (domain.TaxPolicy, error) {
	components := make([]domain.TaxComponent, 0, len(c.Tax))
	for _, tc := range c.Tax {
		component := domain.TaxComponent{
			Name:    tc.Name,
			RateBps: tc.RateBps,
			Kind:    domain.DestinationKind(strings.ToUpper(tc.Kind)),
		}
		if tc.Wallet != "" {
			wallet, err := domain.ParseAddress(tc.Wallet)
			if err != nil {
				return domain.TaxPolicy{}, fmt.Errorf("tax component %q wallet: %w", tc.Name, err)
			}
			component.Wallet = wallet
		}
		components = append(components, component)
	}
	return domain.TaxPolicy{Components: components}, nil
}

// Validate checks that all required fields are set and parse.
func (c *Config) Validate() error {
	if c.Genesis.Owner == "" {
		return fmt.Errorf("genesis.owner is required")
	}
	if _, err := c.GenesisOwner(); err != nil {
		return fmt.Errorf("genesis.owner: %w", err)
	}
	if c.Genesis.Supply == "" {
		return fmt.Errorf("genesis.supply is required")
	}
	supply, err := c.GenesisSupply()
	if err != nil {
		return fmt.Errorf("genesis.supply: %w", err)
	}
	if supply.IsZero() {
		return fmt.Errorf("genesis.supply must be positive")
	}
	pool, err := c.GenesisPool()
	if err != nil {
		return fmt.Errorf("genesis.pool: %w", err)
	}
	if pool.IsZero() {
		return fmt.Errorf("genesis.pool must not be the burn address")
	}

	switch c.Journal.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("journal.driver %q is not one of memory, sqlite, postgres", c.Journal.Driver)
	}
	if c.Journal.Driver != "memory" && c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required for driver %q", c.Journal.Driver)
	}

	if mode := c.TriggerMode(); mode != "" && !mode.Valid() {
		return fmt.Errorf("trigger.mode %q is not one of OFF, CONFETTI, REVERSE_DAY, LUCKY_DROP", c.Trigger.Mode)
	}
	params, err := c.TriggerParams()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}

	policy, err := c.TaxPolicy()
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("tax: %w", err)
	}
	if c.Reflection.Disabled && policy.HasReflection() {
		return fmt.Errorf("tax: a REFLECTION component needs reflection accounting enabled")
	}
	return nil
}
