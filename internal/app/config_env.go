package app

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// ApplyEnvOverrides overrides cfg fields with environment variables when they
// are set. Env takes precedence over the config file; flags stay highest.
func ApplyEnvOverrides(cfg *Config) {
    if cfg == nil { return }

    if v := os.Getenv("LLM_BASE_URL"); v != "" { cfg.LLMBaseURL = v }
    if v := os.Getenv("LLM_MODEL"); v != "" { cfg.LLMModel = v }
    // OPENAI_API_KEY is what existing .env files carry; LLM_API_KEY wins when both are set.
    if v := os.Getenv("OPENAI_API_KEY"); v != "" { cfg.LLMAPIKey = v }
    if v := os.Getenv("LLM_API_KEY"); v != "" { cfg.LLMAPIKey = v }
    if s := os.Getenv("LLM_TEMPERATURE"); s != "" {
        if f, err := strconv.ParseFloat(s, 64); err == nil { cfg.Temperature = f }
    }
    if s := os.Getenv("LLM_TIMEOUT"); s != "" {
        if d, err := time.ParseDuration(s); err == nil { cfg.LLMTimeout = d }
    }

    if v := os.Getenv("TWITTER_HISTORY"); v != "" { cfg.TwitterHistory = v }
    if v := os.Getenv("YAMAP_HISTORY"); v != "" { cfg.YamapHistory = v }
    if v := os.Getenv("USER_NAMES_FILE"); v != "" { cfg.NamesPath = v }
    if v := os.Getenv("REPLY_LOG"); v != "" { cfg.LogPath = v }
    if v := os.Getenv("REPLY_TIMEZONE"); v != "" { cfg.Timezone = v }
    if s := os.Getenv("MAX_EXAMPLES"); s != "" {
        if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 0 { cfg.MaxExamples = n }
    }

    if v := os.Getenv("CACHE_BACKEND"); v != "" { cfg.CacheBackend = strings.ToLower(v) }
    if s := os.Getenv("CACHE_TTL"); s != "" {
        if d, err := time.ParseDuration(s); err == nil { cfg.CacheTTL = d }
    }
    if v := os.Getenv("REDIS_ADDR"); v != "" { cfg.RedisAddr = v }
    if v := os.Getenv("REDIS_PASSWORD"); v != "" { cfg.RedisPassword = v }
    if v := os.Getenv("SERVER_ADDR"); v != "" { cfg.ServerAddr = v }

    // Booleans override when env present and truthy/falsey
    setBool := func(dst *bool, envKey string) {
        if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
            switch s {
            case "1", "true", "yes", "on":
                *dst = true
            case "0", "false", "no", "off":
                *dst = false
            }
        }
    }
    setBool(&cfg.Verbose, "VERBOSE")
    setBool(&cfg.DisableTone, "PROMPT_DISABLE_TONE")
    setBool(&cfg.DisableStyle, "PROMPT_DISABLE_STYLE")
}
