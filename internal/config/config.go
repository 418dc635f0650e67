package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendGemini    = "gemini"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendGrok      = "grok"
	BackendOpenAI    = "openai"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes environment overrides; "__" separates nested keys,
// e.g. INTERVIEW_ANALYSIS__MAX_ATTEMPTS=3
const EnvPrefix = "INTERVIEW_"

// Config holds application configuration
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Log          LogConfig          `koanf:"log"`
	Storage      StorageConfig      `koanf:"storage"`
	Session      SessionConfig      `koanf:"session"`
	Speech       SpeechConfig       `koanf:"speech"`
	Conversation ConversationConfig `koanf:"conversation"`
	Analysis     AnalysisConfig     `koanf:"analysis"`
	Backends     BackendsConfig     `koanf:"backends"`
}

type ServerConfig struct {
	Addr     string `koanf:"addr"`
	MediaDir string `koanf:"media_dir"` // root for mediaRefs on the analyze endpoint
}

type LogConfig struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level"`
	Debug bool   `koanf:"debug"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, redis
	SQLite SQLiteConfig `koanf:"sqlite"`
	Redis  RedisConfig  `koanf:"redis"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"` // abandoned sessions expire after this
}

type SessionConfig struct {
	IdleTimeout time.Duration `koanf:"idle_timeout"` // per-session writer retires after this
}

type SpeechConfig struct {
	RelayURL     string        `koanf:"relay_url"`
	RestartDelay time.Duration `koanf:"restart_delay"`
	MaxDuration  time.Duration `koanf:"max_duration"`
}

type ConversationConfig struct {
	Backend        string        `koanf:"backend"`
	HistoryTurns   int           `koanf:"history_turns"`
	TokenBudget    int           `koanf:"token_budget"`
	MaxSentences   int           `koanf:"max_sentences"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	StartupTimeout time.Duration `koanf:"startup_timeout"` // bounds the backend readiness check
}

type AnalysisConfig struct {
	Candidates     []string      `koanf:"candidates"` // priority order
	InlineBudget   int64         `koanf:"inline_budget"`
	HardLimit      int64         `koanf:"hard_limit"`
	MaxAttempts    int           `koanf:"max_attempts"`
	BaseDelay      time.Duration `koanf:"base_delay"`
	StartupTimeout time.Duration `koanf:"startup_timeout"`
}

type BackendsConfig struct {
	Gemini    ProviderConfig `koanf:"gemini"`
	OpenAI    ProviderConfig `koanf:"openai"`
	Grok      ProviderConfig `koanf:"grok"`
	Anthropic ProviderConfig `koanf:"anthropic"`
	Ollama    ProviderConfig `koanf:"ollama"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"` // Ollama uses the "model:version" form
}

var defaults = map[string]any{
	"server.addr":                  ":8080",
	"server.media_dir":             "media",
	"log.dir":                      "logs",
	"log.level":                    "info",
	"storage.type":                 StoreMemory,
	"storage.sqlite.path":          "interviewcoach.db",
	"storage.redis.addr":           "localhost:6379",
	"storage.redis.ttl":            "24h",
	"session.idle_timeout":         "5m",
	"speech.restart_delay":         "250ms",
	"speech.max_duration":          "3m",
	"conversation.backend":         BackendOpenAI,
	"conversation.history_turns":   6,
	"conversation.token_budget":    2048,
	"conversation.max_sentences":   3,
	"conversation.cache_ttl":       "10m",
	"conversation.startup_timeout": "10s",
	"analysis.candidates":          []string{BackendGemini, BackendOpenAI, BackendAnthropic},
	"analysis.inline_budget":       20 << 20,
	"analysis.hard_limit":          200 << 20,
	"analysis.max_attempts":        4,
	"analysis.base_delay":          "750ms",
	"analysis.startup_timeout":     "10s",
	"backends.gemini.model":        "gemini-2.5-flash",
	"backends.openai.model":        "gpt-4o-mini",
	"backends.grok.model":          "grok-3-mini",
	"backends.grok.base_url":       "https://api.x.ai/v1",
	"backends.anthropic.model":     "claude-sonnet-4-5",
	"backends.ollama.model":        "llama3.2:latest",
	"backends.ollama.base_url":     "http://localhost:11434",
}

// well-known vendor variables used when no key is configured
var keyEnv = map[string]string{
	BackendGemini:    "GEMINI_API_KEY",
	BackendOpenAI:    "OPENAI_API_KEY",
	BackendGrok:      "XAI_API_KEY",
	BackendAnthropic: "ANTHROPIC_API_KEY",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (missing is fine), then INTERVIEW_ environment overrides,
// then fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Backends.Gemini.APIKey = apiKey(cfg.Backends.Gemini.APIKey, BackendGemini)
	cfg.Backends.OpenAI.APIKey = apiKey(cfg.Backends.OpenAI.APIKey, BackendOpenAI)
	cfg.Backends.Grok.APIKey = apiKey(cfg.Backends.Grok.APIKey, BackendGrok)
	cfg.Backends.Anthropic.APIKey = apiKey(cfg.Backends.Anthropic.APIKey, BackendAnthropic)
	cfg.Storage.Redis.Password = substituteEnvVars(cfg.Storage.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	for _, name := range c.Analysis.Candidates {
		if !knownBackend(name) {
			return fmt.Errorf("unknown analysis backend %q", name)
		}
	}
	if !knownBackend(c.Conversation.Backend) {
		return fmt.Errorf("unknown conversation backend %q", c.Conversation.Backend)
	}
	if c.Analysis.InlineBudget <= 0 || c.Analysis.HardLimit < c.Analysis.InlineBudget {
		return fmt.Errorf("analysis hard_limit (%d) must be at least inline_budget (%d)", c.Analysis.HardLimit, c.Analysis.InlineBudget)
	}
	if c.Analysis.MaxAttempts < 1 {
		return fmt.Errorf("analysis max_attempts must be positive")
	}
	return nil
}

// Provider returns the settings for a named backend
func (c *Config) Provider(name string) ProviderConfig {
	switch name {
	case BackendGemini:
		return c.Backends.Gemini
	case BackendOpenAI:
		return c.Backends.OpenAI
	case BackendGrok:
		return c.Backends.Grok
	case BackendAnthropic:
		return c.Backends.Anthropic
	case BackendOllama:
		return c.Backends.Ollama
	}
	return ProviderConfig{}
}

func knownBackend(name string) bool {
	switch name {
	case BackendGemini, BackendOpenAI, BackendGrok, BackendAnthropic, BackendOllama:
		return true
	}
	return false
}

func apiKey(configured, backend string) string {
	if key := substituteEnvVars(configured); key != "" {
		return key
	}
	return os.Getenv(keyEnv[backend])
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
