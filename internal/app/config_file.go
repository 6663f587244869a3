package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to the dotted flag names.
type FileConfig struct {
    LLM struct {
        BaseURL     string        `yaml:"base" json:"base"`
        Model       string        `yaml:"model" json:"model"`
        APIKey      string        `yaml:"key" json:"key"`
        Temperature float64       `yaml:"temperature" json:"temperature"`
        Timeout     time.Duration `yaml:"timeout" json:"timeout"`
        BreakerFailures int       `yaml:"breakerFailures" json:"breakerFailures"`
    } `yaml:"llm" json:"llm"`

    History struct {
        Twitter string `yaml:"twitter" json:"twitter"`
        Yamap   string `yaml:"yamap" json:"yamap"`
        Names   string `yaml:"names" json:"names"`
    } `yaml:"history" json:"history"`

    Log struct {
        Path string `yaml:"path" json:"path"`
    } `yaml:"log" json:"log"`

    Timezone    string `yaml:"timezone" json:"timezone"`
    MaxExamples int    `yaml:"maxExamples" json:"maxExamples"`
    Verbose     bool   `yaml:"verbose" json:"verbose"`

    Prompt *struct {
        Tone  *bool `yaml:"tone" json:"tone"`
        Style *bool `yaml:"style" json:"style"`
    } `yaml:"prompt" json:"prompt"`

    Style struct {
        Source string `yaml:"source" json:"source"`
    } `yaml:"style" json:"style"`

    Cache struct {
        Backend       string        `yaml:"backend" json:"backend"`
        TTL           time.Duration `yaml:"ttl" json:"ttl"`
        MaxEntries    int           `yaml:"maxEntries" json:"maxEntries"`
        RedisAddr     string        `yaml:"redisAddr" json:"redisAddr"`
        RedisPassword string        `yaml:"redisPassword" json:"redisPassword"`
        RedisDB       int           `yaml:"redisDB" json:"redisDB"`
    } `yaml:"cache" json:"cache"`

    Server struct {
        Addr  string  `yaml:"addr" json:"addr"`
        RPS   float64 `yaml:"rps" json:"rps"`
        Burst int     `yaml:"burst" json:"burst"`
    } `yaml:"server" json:"server"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := filepath.Ext(path); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. It runs before
// env and flag overrides, so file values only replace defaults.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    if fc.LLM.BaseURL != "" { cfg.LLMBaseURL = fc.LLM.BaseURL }
    if fc.LLM.Model != "" { cfg.LLMModel = fc.LLM.Model }
    if fc.LLM.APIKey != "" { cfg.LLMAPIKey = fc.LLM.APIKey }
    if fc.LLM.Temperature > 0 { cfg.Temperature = fc.LLM.Temperature }
    if fc.LLM.Timeout > 0 { cfg.LLMTimeout = fc.LLM.Timeout }
    if fc.LLM.BreakerFailures > 0 { cfg.BreakerFailures = fc.LLM.BreakerFailures }

    if fc.History.Twitter != "" { cfg.TwitterHistory = fc.History.Twitter }
    if fc.History.Yamap != "" { cfg.YamapHistory = fc.History.Yamap }
    if fc.History.Names != "" { cfg.NamesPath = fc.History.Names }
    if fc.Log.Path != "" { cfg.LogPath = fc.Log.Path }

    if fc.Timezone != "" { cfg.Timezone = fc.Timezone }
    if fc.MaxExamples > 0 { cfg.MaxExamples = fc.MaxExamples }
    if fc.Verbose { cfg.Verbose = true }
    // Prompt variant toggles default on; the file may switch either off.
    if fc.Prompt != nil {
        if fc.Prompt.Tone != nil { cfg.DisableTone = !*fc.Prompt.Tone }
        if fc.Prompt.Style != nil { cfg.DisableStyle = !*fc.Prompt.Style }
    }
    if fc.Style.Source != "" { cfg.StyleSource = fc.Style.Source }

    if fc.Cache.Backend != "" { cfg.CacheBackend = strings.ToLower(strings.TrimSpace(fc.Cache.Backend)) }
    if fc.Cache.TTL > 0 { cfg.CacheTTL = fc.Cache.TTL }
    if fc.Cache.MaxEntries > 0 { cfg.CacheMaxEntries = fc.Cache.MaxEntries }
    if fc.Cache.RedisAddr != "" { cfg.RedisAddr = fc.Cache.RedisAddr }
    if fc.Cache.RedisPassword != "" { cfg.RedisPassword = fc.Cache.RedisPassword }
    if fc.Cache.RedisDB > 0 { cfg.RedisDB = fc.Cache.RedisDB }

    if fc.Server.Addr != "" { cfg.ServerAddr = fc.Server.Addr }
    if fc.Server.RPS > 0 { cfg.ServerRPS = fc.Server.RPS }
    if fc.Server.Burst > 0 { cfg.ServerBurst = fc.Server.Burst }
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
    if strings.TrimSpace(cfg.LLMModel) == "" {
        return errors.New("config: llm.model is required (or set LLM_MODEL)")
    }
    if strings.TrimSpace(cfg.LLMAPIKey) == "" && strings.TrimSpace(cfg.LLMBaseURL) == "" {
        return errors.New("config: llm.key is required for the hosted API (or set OPENAI_API_KEY)")
    }
    if cfg.MaxExamples < 0 || cfg.CacheMaxEntries < 0 || cfg.CacheTTL < 0 || cfg.LLMTimeout < 0 {
        return errors.New("config: negative limits are not allowed")
    }
    if cfg.Temperature < 0 || cfg.Temperature > 2 {
        return fmt.Errorf("config: temperature %v out of range [0,2]", cfg.Temperature)
    }
    switch cfg.CacheBackend {
    case "memory", "":
    case "redis":
        if strings.TrimSpace(cfg.RedisAddr) == "" {
            return errors.New("config: cache.redisAddr is required for the redis backend")
        }
    default:
        return fmt.Errorf("config: unknown cache backend %q", cfg.CacheBackend)
    }
    if strings.TrimSpace(cfg.LogPath) == "" {
        return errors.New("config: log.path is required")
    }
    return nil
}
