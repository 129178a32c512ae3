package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal container images

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "NEWS_CONSENSUS_CONFIG"

const (
	defaultTimezone   = "UTC"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	redisAddrEnv      = "REDIS_ADDR"
	httpAddrEnv       = "HTTP_ADDR"
)

// Provider names accepted in the evaluators section.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderHTTP      = "http"
	ProviderStatic    = "static"
)

// Tracker backends.
const (
	TrackerDatabase = "database"
	TrackerRedis    = "redis"
	TrackerMemory   = "memory"
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Tracker       TrackerConfig      `yaml:"tracker"`
	Sources       []SourceConfig     `yaml:"sources" validate:"dive"`
	Evaluators    []EvaluatorConfig  `yaml:"evaluators" validate:"required,min=1,unique=Name,dive"`
	Consensus     ConsensusConfig    `yaml:"consensus"`
	ContentGate   ContentGateConfig  `yaml:"contentGate"`
	Notifications NotificationConfig `yaml:"notifications"`
	Console       ConsoleConfig      `yaml:"console"`
	HTTP          HTTPConfig         `yaml:"http"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// DatabaseConfig selects the SQL driver for reports and the usage tracker.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// SchedulerConfig defines how often the pipeline runs in serve mode.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval" validate:"gt=0"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// TrackerConfig picks where rationale usage counters live.
type TrackerConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=database redis memory"`
	RedisAddr string `yaml:"redisAddr" validate:"required_if=Backend redis"`
	RedisDB   int    `yaml:"redisDb" validate:"gte=0"`
	RedisKey  string `yaml:"redisKey"`
}

// SourceConfig describes one upstream news API.
type SourceConfig struct {
	Name      string   `yaml:"name" validate:"required"`
	Kind      string   `yaml:"kind" validate:"oneof=newsapi newsdata"`
	Endpoint  string   `yaml:"endpoint" validate:"omitempty,url"`
	APIKey    string   `yaml:"apiKey"`
	APIKeyEnv string   `yaml:"apiKeyEnv"`
	Queries   []string `yaml:"queries"`
	Language  string   `yaml:"language"`
	Category  string   `yaml:"category"`
	PageSize  int      `yaml:"pageSize" validate:"gte=0"`
}

// EvaluatorConfig describes one scoring source.
type EvaluatorConfig struct {
	Name      string        `yaml:"name" validate:"required"`
	Provider  string        `yaml:"provider" validate:"oneof=openai anthropic gemini http static"`
	Endpoint  string        `yaml:"endpoint" validate:"omitempty,url"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"apiKey"`
	APIKeyEnv string        `yaml:"apiKeyEnv"`
	Weight    *float64      `yaml:"weight" validate:"omitempty,gte=0"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	Retries   int           `yaml:"retries" validate:"gte=0,lte=5"`
	MaxTokens int           `yaml:"maxTokens" validate:"gte=0"`
	Score     float64       `yaml:"score" validate:"gte=0,lte=100"`
}

// WeightFor returns the configured weight, or 2.0 for the arbiter and 1.0 otherwise.
func (e EvaluatorConfig) WeightFor(arbiter string) float64 {
	if e.Weight != nil {
		return *e.Weight
	}
	if e.Name == arbiter {
		return 2.0
	}
	return 1.0
}

// ConsensusConfig tunes the consensus, verification, pairing and rationale steps.
type ConsensusConfig struct {
	Arbiter            string  `yaml:"arbiter"`
	TrimThreshold      int     `yaml:"trimThreshold" validate:"gte=3"`
	AgreementThreshold float64 `yaml:"agreementThreshold" validate:"gte=0"`
	RationaleMinLength int     `yaml:"rationaleMinLength" validate:"gte=0"`
	FallbackEvaluator  string  `yaml:"fallbackEvaluator"`
	MaxPeerReviews     int     `yaml:"maxPeerReviews" validate:"gte=0"`
	ArticleLimit       int     `yaml:"articleLimit" validate:"gt=0"`
	Seed               uint64  `yaml:"seed"`
}

// ContentGateConfig controls paywall and thin-content detection.
type ContentGateConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Penalty        float64       `yaml:"penalty" validate:"gte=0,lte=100"`
	MinWords       int           `yaml:"minWords" validate:"gte=0"`
	PaywallDomains []string      `yaml:"paywallDomains"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent      string        `yaml:"userAgent"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Load reads defaults, then the YAML file at path (or $NEWS_CONSENSUS_CONFIG),
// then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEvaluatorDefaults()
	cfg.applySourceDefaults()
	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, e := range c.Evaluators {
		if e.Provider != ProviderStatic && e.Endpoint == "" {
			return fmt.Errorf("%w: evaluator %s needs an endpoint", ErrInvalid, e.Name)
		}
	}
	if c.Consensus.Arbiter != "" && !c.hasEvaluator(c.Consensus.Arbiter) {
		return fmt.Errorf("%w: arbiter %s is not a configured evaluator", ErrInvalid, c.Consensus.Arbiter)
	}
	return nil
}

func (c Config) hasEvaluator(name string) bool {
	for _, e := range c.Evaluators {
		if e.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Tracker.RedisAddr = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	for i := range c.Evaluators {
		if env := c.Evaluators[i].APIKeyEnv; env != "" {
			if v := os.Getenv(env); v != "" {
				c.Evaluators[i].APIKey = v
			}
		}
	}

	for i := range c.Sources {
		if env := c.Sources[i].APIKeyEnv; env != "" {
			if v := os.Getenv(env); v != "" {
				c.Sources[i].APIKey = v
			}
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// applyEvaluatorDefaults fills endpoints, models and key variables for well-known
// evaluators so a file may list just name and provider.
func (c *Config) applyEvaluatorDefaults() {
	for i := range c.Evaluators {
		e := &c.Evaluators[i]
		known, ok := knownEvaluators[strings.ToLower(e.Name)]
		if e.Provider == "" && ok {
			e.Provider = known.Provider
		}
		if ok && e.Provider == known.Provider {
			if e.Endpoint == "" {
				e.Endpoint = known.Endpoint
			}
			if e.Model == "" {
				e.Model = known.Model
			}
			if e.APIKeyEnv == "" {
				e.APIKeyEnv = known.APIKeyEnv
			}
		}
		if e.Timeout == 0 && e.Provider != ProviderStatic {
			e.Timeout = 30 * time.Second
		}
	}
}

func (c *Config) applySourceDefaults() {
	for i := range c.Sources {
		s := &c.Sources[i]
		known, ok := knownSources[s.Kind]
		if !ok {
			continue
		}
		if s.Endpoint == "" {
			s.Endpoint = known.Endpoint
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = known.APIKeyEnv
		}
		if len(s.Queries) == 0 {
			s.Queries = known.Queries
		}
		if s.Language == "" {
			s.Language = known.Language
		}
		if s.Category == "" {
			s.Category = known.Category
		}
		if s.PageSize == 0 {
			s.PageSize = known.PageSize
		}
	}
}

var knownEvaluators = map[string]EvaluatorConfig{
	"chatgpt": {
		Provider:  ProviderOpenAI,
		Endpoint:  "https://api.openai.com/v1/chat/completions",
		Model:     "gpt-4o-mini",
		APIKeyEnv: "OPENAI_API_KEY",
	},
	"claude": {
		Provider:  ProviderAnthropic,
		Endpoint:  "https://api.anthropic.com/v1/messages",
		Model:     "claude-3-haiku-20240307",
		APIKeyEnv: "ANTHROPIC_API_KEY",
	},
	"gemini": {
		Provider:  ProviderGemini,
		Endpoint:  "https://generativelanguage.googleapis.com/v1beta/models",
		Model:     "gemini-2.0-flash",
		APIKeyEnv: "GOOGLE_API_KEY",
	},
	"grok": {
		Provider:  ProviderOpenAI,
		Endpoint:  "https://api.x.ai/v1/chat/completions",
		Model:     "grok-3-mini",
		APIKeyEnv: "XAI_API_KEY",
	},
	"perplexity": {
		Provider:  ProviderOpenAI,
		Endpoint:  "https://api.perplexity.ai/chat/completions",
		Model:     "sonar",
		APIKeyEnv: "PERPLEXITY_API_KEY",
	},
	"newsapi":  {Provider: ProviderStatic},
	"newsdata": {Provider: ProviderStatic},
}

var knownSources = map[string]SourceConfig{
	"newsapi": {
		Endpoint:  "https://newsapi.org/v2/everything",
		APIKeyEnv: "NEWSAPI_KEY",
		Queries:   []string{"artificial intelligence", "AI technology"},
		Language:  "en",
		PageSize:  10,
	},
	"newsdata": {
		Endpoint:  "https://newsdata.io/api/1/news",
		APIKeyEnv: "NEWSDATA_KEY",
		Queries:   []string{"artificial intelligence"},
		Language:  "en",
		Category:  "technology",
		PageSize:  10,
	},
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:newsconsensus.db?_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Tracker:   TrackerConfig{Backend: TrackerDatabase, RedisKey: "newsconsensus:rationale_usage"},
		Sources: []SourceConfig{
			{Name: "NewsAPI", Kind: "newsapi"},
			{Name: "NewsData", Kind: "newsdata"},
		},
		Evaluators: []EvaluatorConfig{
			{Name: "ChatGPT"},
			{Name: "Claude"},
			{Name: "Gemini"},
			{Name: "Grok"},
			{Name: "Perplexity"},
			{Name: "NewsAPI", Score: 85},
			{Name: "NewsData", Score: 85},
		},
		Consensus: ConsensusConfig{
			Arbiter:            "Perplexity",
			TrimThreshold:      4,
			AgreementThreshold: 1,
			RationaleMinLength: 20,
			FallbackEvaluator:  "ChatGPT",
			MaxPeerReviews:     1,
			ArticleLimit:       10,
		},
		ContentGate: ContentGateConfig{
			Enabled:  true,
			Penalty:  30,
			MinWords: 300,
			PaywallDomains: []string{
				"wsj.com", "ft.com", "nytimes.com", "bloomberg.com", "economist.com",
				"washingtonpost.com", "theathletic.com", "barrons.com", "businessinsider.com",
			},
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; NewsConsensus/1.0)",
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Endpoint: "https://api.telegram.org"},
		},
		Console: ConsoleConfig{Enabled: true},
		HTTP:    HTTPConfig{Addr: ":8080"},
	}
}
