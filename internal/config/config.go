package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for Myrai Care
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Guardrails    GuardrailsConfig    `mapstructure:"guardrails" yaml:"guardrails"`
	Confirmations ConfirmationsConfig `mapstructure:"confirmations" yaml:"confirmations"`
	Memory        MemoryConfig        `mapstructure:"memory" yaml:"memory"`
	Security      SecurityConfig      `mapstructure:"security" yaml:"security"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler" yaml:"scheduler"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address" yaml:"address"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LLMConfig holds completion provider settings
type LLMConfig struct {
	DefaultProvider   string              `mapstructure:"default_provider" yaml:"default_provider"`
	FallbackProviders []string            `mapstructure:"fallback_providers" yaml:"fallback_providers"`
	RequestsPerMinute int                 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Providers         map[string]Provider `mapstructure:"providers" yaml:"providers"`
}

// Provider holds individual LLM provider configuration
type Provider struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// GuardrailsConfig holds action safety settings
type GuardrailsConfig struct {
	MinConfidence          float64  `mapstructure:"min_confidence" yaml:"min_confidence"`
	ExplicitActionKeywords []string `mapstructure:"explicit_action_keywords" yaml:"explicit_action_keywords"`
	BlockOnInjection       bool     `mapstructure:"block_on_injection" yaml:"block_on_injection"`
}

// ConfirmationsConfig selects where pending confirmations live
type ConfirmationsConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	TTLMinutes int    `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
}

// MemoryConfig holds context assembly and summary policy settings
type MemoryConfig struct {
	ShortTermTurns       int      `mapstructure:"short_term_turns" yaml:"short_term_turns"`
	SummaryAfterMessages int      `mapstructure:"summary_after_messages" yaml:"summary_after_messages"`
	MoodTrendDays        int      `mapstructure:"mood_trend_days" yaml:"mood_trend_days"`
	CrisisKeywords       []string `mapstructure:"crisis_keywords" yaml:"crisis_keywords"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	AllowOrigins   []string `mapstructure:"allow_origins" yaml:"allow_origins"`
	MaxInputLength int      `mapstructure:"max_input_length" yaml:"max_input_length"`
}

// SchedulerConfig holds the background job schedules. Specs are robfig/cron
// expressions and accept descriptors such as "@every 1m".
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	SweepSpec    string `mapstructure:"sweep_spec" yaml:"sweep_spec"`
	ReminderSpec string `mapstructure:"reminder_spec" yaml:"reminder_spec"`
	Timezone     string `mapstructure:"timezone" yaml:"timezone"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	dataDir = expandPath(dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "myrai-care.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "myrai-care.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MYRAI_SERVER_PORT, MYRAI_GUARDRAILS_MIN_CONFIDENCE, etc.)
	v.SetEnvPrefix("MYRAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper doesn't handle nested provider maps well with env vars
	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.openai.timeout", 60)
	v.SetDefault("llm.providers.openai.max_tokens", 1024)
	v.SetDefault("llm.providers.openai.temperature", 0.4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("guardrails.min_confidence", 0.7)
	v.SetDefault("guardrails.explicit_action_keywords", DefaultExplicitActionKeywords)
	v.SetDefault("guardrails.block_on_injection", true)

	v.SetDefault("confirmations.backend", "memory")
	v.SetDefault("confirmations.ttl_minutes", 30)

	v.SetDefault("memory.short_term_turns", 10)
	v.SetDefault("memory.summary_after_messages", 10)
	v.SetDefault("memory.mood_trend_days", 7)
	v.SetDefault("memory.crisis_keywords", DefaultCrisisKeywords)

	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.max_input_length", 4000)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.sweep_spec", "@every 1m")
	v.SetDefault("scheduler.reminder_spec", "@every 1m")
	v.SetDefault("scheduler.timezone", "Local")
}

// DefaultExplicitActionKeywords must appear in the user's message before a
// critical action is allowed.
var DefaultExplicitActionKeywords = []string{"log", "record", "save", "create", "add", "document", "note"}

// DefaultCrisisKeywords force a summary refresh and mark the turn as urgent.
var DefaultCrisisKeywords = []string{
	"chest pain", "can't breathe", "cannot breathe", "suicide", "kill myself",
	"overdose", "stroke", "unconscious", "emergency", "911",
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "myrai-care")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "myrai-care")
}

// loadEnvOverrides loads specific env vars that Viper doesn't handle well with nested maps
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := ResolveEnvWithAliases(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.LLM.DefaultProvider = getEnv("MYRAI_LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]Provider)
	}

	for _, name := range []string{"openai", "openrouter", "deepseek", "kimi"} {
		prefix := "MYRAI_LLM_PROVIDERS_" + strings.ToUpper(name) + "_"
		apiKey := getEnv(prefix+"API_KEY", "")
		if apiKey == "" {
			continue
		}
		p := cfg.LLM.Providers[name]
		p.APIKey = apiKey
		p.BaseURL = getEnv(prefix+"BASE_URL", p.BaseURL)
		p.Model = getEnv(prefix+"MODEL", p.Model)
		cfg.LLM.Providers[name] = p
	}

	cfg.Server.Address = getEnv("MYRAI_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("MYRAI_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.RedisAddr = getEnv("MYRAI_STORAGE_REDIS_ADDR", cfg.Storage.RedisAddr)
}

func validate(cfg *Config) error {
	if cfg.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider is required")
	}

	if cfg.Guardrails.MinConfidence < 0 || cfg.Guardrails.MinConfidence > 1 {
		return fmt.Errorf("guardrails.min_confidence must be between 0 and 1, got %v", cfg.Guardrails.MinConfidence)
	}

	switch cfg.Confirmations.Backend {
	case "memory", "badger", "sql":
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis confirmation backend")
		}
	default:
		return fmt.Errorf("unknown confirmations.backend %q", cfg.Confirmations.Backend)
	}

	if cfg.Confirmations.TTLMinutes <= 0 {
		cfg.Confirmations.TTLMinutes = 30
	}
	if cfg.Memory.SummaryAfterMessages <= 0 {
		cfg.Memory.SummaryAfterMessages = 10
	}
	if cfg.Memory.ShortTermTurns <= 0 {
		cfg.Memory.ShortTermTurns = 10
	}

	return nil
}

// GetProvider returns the provider configuration by name
func (c *Config) GetProvider(name string) (Provider, bool) {
	p, ok := c.LLM.Providers[name]
	return p, ok
}

// DefaultProvider returns the default provider configuration
func (c *Config) DefaultProvider() (Provider, error) {
	p, ok := c.LLM.Providers[c.LLM.DefaultProvider]
	if !ok {
		return Provider{}, fmt.Errorf("default provider %s not found", c.LLM.DefaultProvider)
	}
	if p.APIKey == "" {
		return Provider{}, fmt.Errorf("llm.providers.%s.api_key is required", c.LLM.DefaultProvider)
	}
	return p, nil
}
