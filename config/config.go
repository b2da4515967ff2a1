// Package config loads the vanna configuration from defaults, an optional
// YAML file, a .env file and VANNA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/vanna/agent"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VANNA_"

type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" envPrefix:"SERVER_"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm" envPrefix:"LLM_"`
	Agent   agent.Config  `yaml:"agent" mapstructure:"agent" envPrefix:"AGENT_"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage" envPrefix:"STORAGE_"`
	SQL     SQLConfig     `yaml:"sql" mapstructure:"sql" envPrefix:"SQL_"`
	Files   FilesConfig   `yaml:"files" mapstructure:"files" envPrefix:"FILES_"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth" envPrefix:"AUTH_"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics" envPrefix:"METRICS_"`
	Eval    EvalConfig    `yaml:"eval" mapstructure:"eval" envPrefix:"EVAL_"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" env:"ADDR" validate:"required"`
	CORS            bool          `yaml:"cors" mapstructure:"cors" env:"CORS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// LLMConfig selects the model backend. Provider "mock" needs no API key,
// "openai" and "azure" use the OpenAI client, anything else goes through
// gollm.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider" env:"PROVIDER" validate:"required"`
	Model       string  `yaml:"model" mapstructure:"model" env:"MODEL"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key" env:"API_KEY"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	APIVersion  string  `yaml:"api_version" mapstructure:"api_version" env:"API_VERSION"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens" env:"MAX_TOKENS" validate:"gte=0"`
	MockReply   string  `yaml:"mock_reply" mapstructure:"mock_reply" env:"MOCK_REPLY"`
}

type StorageConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend" env:"BACKEND" validate:"oneof=memory redis"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db" env:"REDIS_DB" validate:"gte=0"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl" env:"TTL" validate:"gte=0"`
}

type SQLConfig struct {
	// DSN is a SQLite path or file: URI. Empty disables run_sql.
	DSN string `yaml:"dsn" mapstructure:"dsn" env:"DSN"`
}

type FilesConfig struct {
	Root        string   `yaml:"root" mapstructure:"root" env:"ROOT" validate:"required"`
	EnableBash  bool     `yaml:"enable_bash" mapstructure:"enable_bash" env:"ENABLE_BASH"`
	BashGroups  []string `yaml:"bash_groups" mapstructure:"bash_groups" env:"BASH_GROUPS"`
	MemoryItems int      `yaml:"memory_items" mapstructure:"memory_items" env:"MEMORY_ITEMS" validate:"gte=0"`
}

type AuthConfig struct {
	CookieName    string   `yaml:"cookie_name" mapstructure:"cookie_name" env:"COOKIE_NAME" validate:"required"`
	DefaultGroups []string `yaml:"default_groups" mapstructure:"default_groups" env:"DEFAULT_GROUPS"`
	AdminEmails   []string `yaml:"admin_emails" mapstructure:"admin_emails" env:"ADMIN_EMAILS" validate:"dive,email"`
	AdminGroups   []string `yaml:"admin_groups" mapstructure:"admin_groups" env:"ADMIN_GROUPS"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`
}

type EvalConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" env:"MAX_CONCURRENCY" validate:"gt=0"`
}

// Default returns a configuration that runs locally with the mock LLM.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			CORS:            true,
			ShutdownTimeout: 5 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "mock",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent:   agent.DefaultConfig(),
		Storage: StorageConfig{Backend: "memory", TTL: 30 * 24 * time.Hour},
		Files: FilesConfig{
			Root:        "./vanna_data",
			BashGroups:  []string{"admin"},
			MemoryItems: 1000,
		},
		Auth: AuthConfig{
			CookieName:    "vanna_email",
			DefaultGroups: []string{"user"},
			AdminGroups:   []string{"admin"},
		},
		Eval: EvalConfig{MaxConcurrency: 10},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is a YAML file. Empty skips the file.
	Path string
	// EnvFile is loaded with godotenv. Empty means ".env"; a missing file is
	// ignored.
	EnvFile string
	// SkipEnv ignores the environment entirely.
	SkipEnv bool
}

// Load builds a validated Config.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", opts.Path, err)
		}
	}

	if !opts.SkipEnv {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
		if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
			return cfg, fmt.Errorf("parse environment: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// Decode merges YAML into cfg. Keys missing from data keep their current
// values; unknown keys are an error.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section. The agent section is checked with the same
// rules as agent.Config.Validate.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s must satisfy %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
