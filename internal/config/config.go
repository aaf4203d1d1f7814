package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lpMonitor/internal/model"
)

// Fee sources for pending fee valuation.
const (
	FeeSourceAccumulator = "accumulator"
	FeeSourceCollect     = "collect"
)

// Contracts holds protocol-wide contract defaults applied to V4 positions.
type Contracts struct {
	V4StateView       string `mapstructure:"v4-state-view"`
	V4PositionManager string `mapstructure:"v4-position-manager"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	ChainID         uint64
	PrivateKey      string
	CheckInterval   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	CallTimeout     time.Duration
	LogLevel        string
	TelegramToken   string
	TelegramChatID  string
	PGDSN           string
	SnapshotOut     string
	ErrorAlertAfter int
	FeeSource       string
	TxDeadline      time.Duration
	SlippageBps     uint
	Contracts       Contracts
	Positions       []*model.PositionConfig
}

// legacyEnv maps config keys to the unprefixed variable names also accepted
// from the environment or a .env file.
var legacyEnv = map[string]string{
	"rpc":              "RPC_URL",
	"private-key":      "PRIVATE_KEY",
	"telegram-token":   "TG_BOT_TOKEN",
	"telegram-chat-id": "TG_CHAT_ID",
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load merges config file, environment variables, and flags into Config.
// The position list may only come from the config file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LPMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "LPMON_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("check-interval-minutes", 5.0)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("call-timeout", 20*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("error-alert-after", 3)
	v.SetDefault("fee-source", FeeSourceAccumulator)
	v.SetDefault("tx-deadline", 10*time.Minute)
	v.SetDefault("slippage-bps", 0)

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
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          strings.TrimSpace(v.GetString("rpc")),
		ChainID:         v.GetUint64("chain-id"),
		PrivateKey:      strings.TrimSpace(v.GetString("private-key")),
		CheckInterval:   time.Duration(v.GetFloat64("check-interval-minutes") * float64(time.Minute)),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		CallTimeout:     v.GetDuration("call-timeout"),
		LogLevel:        v.GetString("log-level"),
		TelegramToken:   strings.TrimSpace(v.GetString("telegram-token")),
		TelegramChatID:  strings.TrimSpace(v.GetString("telegram-chat-id")),
		PGDSN:           v.GetString("pg-dsn"),
		SnapshotOut:     v.GetString("snapshot-out"),
		ErrorAlertAfter: v.GetInt("error-alert-after"),
		FeeSource:       strings.ToLower(strings.TrimSpace(v.GetString("fee-source"))),
		TxDeadline:      v.GetDuration("tx-deadline"),
		SlippageBps:     v.GetUint("slippage-bps"),
		Contracts: Contracts{
			V4StateView:       v.GetString("contracts.v4-state-view"),
			V4PositionManager: v.GetString("contracts.v4-position-manager"),
		},
	}

	var entries []positionEntry
	if err := v.UnmarshalKey("positions", &entries); err != nil {
		return Config{}, fmt.Errorf("decode positions: %w", err)
	}
	positions, err := buildPositions(entries, cfg.ChainID, cfg.Contracts)
	if err != nil {
		return Config{}, err
	}
	cfg.Positions = positions

	return cfg, nil
}

// Validate checks global settings and every position.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check-interval-minutes must be greater than zero")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.ErrorAlertAfter < 0 {
		return fmt.Errorf("error-alert-after must not be negative")
	}
	switch c.FeeSource {
	case FeeSourceAccumulator, FeeSourceCollect:
	default:
		return fmt.Errorf("unsupported fee-source %q", c.FeeSource)
	}
	if c.SlippageBps >= 10_000 {
		return fmt.Errorf("slippage-bps must be below 10000")
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("telegram-token and telegram-chat-id must be set together")
	}
	if len(c.Positions) == 0 {
		return fmt.Errorf("at least one position is required")
	}

	seen := make(map[string]struct{}, len(c.Positions))
	for _, p := range c.Positions {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate position id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
