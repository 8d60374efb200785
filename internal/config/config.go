package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	LLM    LLMConfig
	Safety SafetyConfig
	Queue  QueueConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	GeminiKey     string
	GeminiBaseURL string
	OllamaURL     string
	DefaultModel  string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// SafetyConfig is read by the guardrails and the engine; the safety core only
// sees Levels.
type SafetyConfig struct {
	Enabled           bool
	BiasDetection     bool
	ContentFiltering  bool
	ToxicityThreshold float64
	BiasThreshold     float64
	Levels            map[string]float64
	DefaultLevel      string
	MaxInputLength    int
}

type QueueConfig struct {
	ScreenOutputs bool
	Concurrency   int
}

type LogConfig struct {
	Level string
}

// fileConfig mirrors the YAML layout of the config file.
type fileConfig struct {
	Models struct {
		OpenAIKey    string   `yaml:"openai_api_key"`
		AnthropicKey string   `yaml:"anthropic_api_key"`
		GeminiKey    string   `yaml:"gemini_api_key"`
		OllamaURL    string   `yaml:"ollama_url"`
		DefaultModel string   `yaml:"default_model"`
		MaxTokens    *int     `yaml:"max_tokens"`
		Temperature  *float64 `yaml:"temperature"`
		Timeout      *int     `yaml:"timeout"`
	} `yaml:"models"`
	Safety struct {
		Enabled           *bool              `yaml:"enabled"`
		BiasDetection     *bool              `yaml:"bias_detection"`
		ContentFiltering  *bool              `yaml:"content_filtering"`
		ToxicityThreshold *float64           `yaml:"toxicity_threshold"`
		BiasThreshold     *float64           `yaml:"bias_threshold"`
		SafetyLevels      map[string]float64 `yaml:"safety_levels"`
		DefaultLevel      string             `yaml:"default_level"`
	} `yaml:"safety"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		LLM: LLMConfig{
			OllamaURL:    "http://localhost:11434",
			DefaultModel: "gpt-4",
			MaxTokens:    1024,
			Temperature:  0.7,
			Timeout:      30 * time.Second,
		},
		Safety: SafetyConfig{
			Enabled:           true,
			BiasDetection:     true,
			ContentFiltering:  true,
			ToxicityThreshold: 0.8,
			BiasThreshold:     0.7,
			Levels: map[string]float64{
				"strict":     0.9,
				"standard":   0.7,
				"permissive": 0.5,
			},
			DefaultLevel:   "standard",
			MaxInputLength: 50000,
		},
		Queue: QueueConfig{Concurrency: 10},
		Log:   LogConfig{Level: "info"},
	}
}

// DefaultPath is $HOME/.meta-prompt/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".meta-prompt", "config.yaml")
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_PATH (or DefaultPath), then environment variables.
func Load() (*Config, error) {
	return LoadFile(getEnv("CONFIG_PATH", DefaultPath()))
}

// LoadFile is Load with an explicit file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	m := fc.Models
	setString(&c.LLM.OpenAIKey, m.OpenAIKey)
	setString(&c.LLM.AnthropicKey, m.AnthropicKey)
	setString(&c.LLM.GeminiKey, m.GeminiKey)
	setString(&c.LLM.OllamaURL, m.OllamaURL)
	setString(&c.LLM.DefaultModel, m.DefaultModel)
	if m.MaxTokens != nil {
		c.LLM.MaxTokens = *m.MaxTokens
	}
	if m.Temperature != nil {
		c.LLM.Temperature = *m.Temperature
	}
	if m.Timeout != nil {
		c.LLM.Timeout = time.Duration(*m.Timeout) * time.Second
	}

	s := fc.Safety
	if s.Enabled != nil {
		c.Safety.Enabled = *s.Enabled
	}
	if s.BiasDetection != nil {
		c.Safety.BiasDetection = *s.BiasDetection
	}
	if s.ContentFiltering != nil {
		c.Safety.ContentFiltering = *s.ContentFiltering
	}
	if s.ToxicityThreshold != nil {
		c.Safety.ToxicityThreshold = *s.ToxicityThreshold
	}
	if s.BiasThreshold != nil {
		c.Safety.BiasThreshold = *s.BiasThreshold
	}
	for level, v := range s.SafetyLevels {
		c.Safety.Levels[level] = v
	}
	setString(&c.Safety.DefaultLevel, s.DefaultLevel)

	slog.Info("configuration loaded", "path", path)
	return nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	if c.Server.Port, err = getEnvInt("SERVER_PORT", c.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	c.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIKey)
	c.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.LLM.OpenAIBaseURL)
	c.LLM.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.LLM.AnthropicKey)
	c.LLM.GeminiKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiKey)
	c.LLM.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.LLM.GeminiBaseURL)
	c.LLM.OllamaURL = getEnv("OLLAMA_URL", c.LLM.OllamaURL)
	c.LLM.DefaultModel = getEnv("DEFAULT_MODEL", c.LLM.DefaultModel)
	if c.LLM.MaxTokens, err = getEnvInt("MAX_TOKENS", c.LLM.MaxTokens); err != nil {
		return fmt.Errorf("invalid MAX_TOKENS: %w", err)
	}
	if c.LLM.Temperature, err = getEnvFloat("TEMPERATURE", c.LLM.Temperature); err != nil {
		return fmt.Errorf("invalid TEMPERATURE: %w", err)
	}
	timeoutSec, err := getEnvInt("LLM_TIMEOUT_SEC", int(c.LLM.Timeout/time.Second))
	if err != nil {
		return fmt.Errorf("invalid LLM_TIMEOUT_SEC: %w", err)
	}
	c.LLM.Timeout = time.Duration(timeoutSec) * time.Second

	c.Safety.Enabled = getEnvBool("SAFETY_ENABLED", c.Safety.Enabled)
	c.Safety.BiasDetection = getEnvBool("BIAS_DETECTION", c.Safety.BiasDetection)
	c.Safety.ContentFiltering = getEnvBool("CONTENT_FILTERING", c.Safety.ContentFiltering)
	if c.Safety.ToxicityThreshold, err = getEnvFloat("TOXICITY_THRESHOLD", c.Safety.ToxicityThreshold); err != nil {
		return fmt.Errorf("invalid TOXICITY_THRESHOLD: %w", err)
	}
	if c.Safety.BiasThreshold, err = getEnvFloat("BIAS_THRESHOLD", c.Safety.BiasThreshold); err != nil {
		return fmt.Errorf("invalid BIAS_THRESHOLD: %w", err)
	}
	c.Safety.DefaultLevel = getEnv("SAFETY_DEFAULT_LEVEL", c.Safety.DefaultLevel)
	if c.Safety.MaxInputLength, err = getEnvInt("SAFETY_MAX_INPUT_LENGTH", c.Safety.MaxInputLength); err != nil {
		return fmt.Errorf("invalid SAFETY_MAX_INPUT_LENGTH: %w", err)
	}

	c.Queue.ScreenOutputs = getEnvBool("SCREEN_OUTPUTS", c.Queue.ScreenOutputs)
	if c.Queue.Concurrency, err = getEnvInt("WORKER_CONCURRENCY", c.Queue.Concurrency); err != nil {
		return fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "max tokens must be positive")
	}
	if !inUnit(c.Safety.ToxicityThreshold) {
		problems = append(problems, "toxicity threshold must be between 0 and 1")
	}
	if !inUnit(c.Safety.BiasThreshold) {
		problems = append(problems, "bias threshold must be between 0 and 1")
	}
	for level, v := range c.Safety.Levels {
		if !inUnit(v) {
			problems = append(problems, fmt.Sprintf("safety level %q must be between 0 and 1", level))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel maps Log.Level onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
