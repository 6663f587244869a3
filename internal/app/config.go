package app

import "time"

// Defaults shared by flags, file config and validation.
const (
	DefaultModel          = "gpt-4o-mini"
	DefaultTemperature    = 0.7
	DefaultLLMTimeout     = 60 * time.Second
	DefaultTwitterHistory = "twitter_reply_history_fixed.json"
	DefaultYamapHistory   = "yamap_reply_history.json"
	DefaultNamesPath      = "user_names.json"
	DefaultLogPath        = "reply_log.txt"
	DefaultTimezone       = "Asia/Tokyo"
	DefaultMaxExamples    = 5
	DefaultCacheBackend   = "memory"
	DefaultServerAddr     = "0.0.0.0:8080"
	DefaultServerRPS      = 5.0
	DefaultServerBurst    = 10
	DefaultBreakerFails   = 3
)

// Config holds runtime configuration for the application.
type Config struct {
	// LLM
	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	Temperature     float64
	LLMTimeout      time.Duration
	BreakerFailures int

	// History corpus
	TwitterHistory string
	YamapHistory   string
	NamesPath      string

	// Interaction log
	LogPath string

	// Pipeline
	Timezone     string
	MaxExamples  int
	DisableTone  bool
	DisableStyle bool
	StyleSource  string

	// Session cache
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// JSON API
	ServerAddr  string
	ServerRPS   float64
	ServerBurst int

	Verbose bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		LLMModel:        DefaultModel,
		Temperature:     DefaultTemperature,
		LLMTimeout:      DefaultLLMTimeout,
		BreakerFailures: DefaultBreakerFails,
		TwitterHistory:  DefaultTwitterHistory,
		YamapHistory:    DefaultYamapHistory,
		NamesPath:       DefaultNamesPath,
		LogPath:         DefaultLogPath,
		Timezone:        DefaultTimezone,
		MaxExamples:     DefaultMaxExamples,
		StyleSource:     "comment",
		CacheBackend:    DefaultCacheBackend,
		ServerAddr:      DefaultServerAddr,
		ServerRPS:       DefaultServerRPS,
		ServerBurst:     DefaultServerBurst,
	}
}
