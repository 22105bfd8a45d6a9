package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Channels   ChannelsConfig   `mapstructure:"channels" json:"channels"`
	Auth       AuthConfig       `mapstructure:"auth" json:"auth"`
	Pagination PaginationConfig `mapstructure:"pagination" json:"pagination"`
	Storage    StorageConfig    `mapstructure:"storage" json:"storage"`
	Gateway    GatewayConfig    `mapstructure:"gateway" json:"gateway"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
}

// ChannelsConfig channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp" json:"whatsapp"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled" json:"enabled"`
	Token     string   `mapstructure:"token" json:"token"`
	ChatID    int64    `mapstructure:"chat_id" json:"chat_id"` // where WhatsApp messages are forwarded
	AllowFrom []string `mapstructure:"allow_from" json:"allow_from"`
	RateLimit float64  `mapstructure:"rate_limit" json:"rate_limit"` // requests per second
	RateBurst int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// WhatsAppConfig WhatsApp bridge settings
type WhatsAppConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	BridgeURL  string `mapstructure:"bridge_url" json:"bridge_url"`
	AckTimeout int    `mapstructure:"ack_timeout" json:"ack_timeout"` // seconds
}

// AuthConfig bot password settings. PasswordHash is a bcrypt hash and wins over Password.
type AuthConfig struct {
	Password     string `mapstructure:"password" json:"password"`
	PasswordHash string `mapstructure:"password_hash" json:"password_hash"`
}

// PaginationConfig list page sizes
type PaginationConfig struct {
	ContactsPerPage int `mapstructure:"contacts_per_page" json:"contacts_per_page"`
	SearchPerPage   int `mapstructure:"search_per_page" json:"search_per_page"`
}

// StorageConfig on-disk locations
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
	Token   string `mapstructure:"token" json:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

const (
	defaultContactsPerPage = 20
	defaultSearchPerPage   = 15
	defaultAckTimeout      = 10
	defaultRateLimit       = 25
	defaultRateBurst       = 5
)

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: []string{},
				RateLimit: defaultRateLimit,
				RateBurst: defaultRateBurst,
			},
			WhatsApp: WhatsAppConfig{
				Enabled:    false,
				BridgeURL:  "ws://127.0.0.1:3001",
				AckTimeout: defaultAckTimeout,
			},
		},
		Pagination: PaginationConfig{
			ContactsPerPage: defaultContactsPerPage,
			SearchPerPage:   defaultSearchPerPage,
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(homeDir, ".wabridge", "data"),
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    18791,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the wabridge config directory
func ConfigDir() string {
	if dir := strings.TrimSpace(os.Getenv("WABRIDGE_HOME")); dir != "" {
		return dir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".wabridge")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from configPath, creating it with defaults when missing.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("WABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to configPath
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	tg := &c.Channels.Telegram
	if tg.Enabled && strings.TrimSpace(tg.Token) == "" {
		return fmt.Errorf("channels.telegram.token is required when telegram is enabled")
	}
	if tg.RateLimit < 0 {
		return fmt.Errorf("channels.telegram.rate_limit must not be negative, got %f", tg.RateLimit)
	}
	if tg.RateLimit == 0 {
		tg.RateLimit = defaultRateLimit
	}
	if tg.RateBurst <= 0 {
		tg.RateBurst = defaultRateBurst
	}

	wa := &c.Channels.WhatsApp
	if wa.Enabled && strings.TrimSpace(wa.BridgeURL) == "" {
		return fmt.Errorf("channels.whatsapp.bridge_url is required when whatsapp is enabled")
	}
	if wa.AckTimeout < 0 {
		return fmt.Errorf("channels.whatsapp.ack_timeout must not be negative, got %d", wa.AckTimeout)
	}
	if wa.AckTimeout == 0 {
		wa.AckTimeout = defaultAckTimeout
	}

	if tg.Enabled && c.Auth.Password == "" && strings.TrimSpace(c.Auth.PasswordHash) == "" {
		return fmt.Errorf("auth.password or auth.password_hash is required when telegram is enabled")
	}

	p := &c.Pagination
	if p.ContactsPerPage < 0 || p.SearchPerPage < 0 {
		return fmt.Errorf("pagination page sizes must not be negative")
	}
	if p.ContactsPerPage == 0 {
		p.ContactsPerPage = defaultContactsPerPage
	}
	if p.SearchPerPage == 0 {
		p.SearchPerPage = defaultSearchPerPage
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = filepath.Join(ConfigDir(), "data")
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// DataDir returns the expanded data directory
func (c *Config) DataDir() string {
	dir := strings.TrimSpace(c.Storage.DataDir)
	if dir == "" {
		return filepath.Join(ConfigDir(), "data")
	}
	if dir[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(ConfigDir(), "data")
		}
		rest := strings.TrimPrefix(dir[1:], string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest)
	}
	return dir
}
