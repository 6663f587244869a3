package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goreply/internal/annotate"
	"github.com/hyperifyio/goreply/internal/cache"
	"github.com/hyperifyio/goreply/internal/corpus"
	"github.com/hyperifyio/goreply/internal/interaction"
	"github.com/hyperifyio/goreply/internal/llm"
	"github.com/hyperifyio/goreply/internal/prompt"
	"github.com/hyperifyio/goreply/internal/reply"
	"github.com/hyperifyio/goreply/internal/sample"
	"github.com/hyperifyio/goreply/internal/style"
	"github.com/hyperifyio/goreply/internal/suggest"
)

// App owns the long-lived pieces: the loaded corpus, the backend client, the
// session cache and the interaction log.
type App struct {
	cfg    Config
	ai     llm.Client
	engine *suggest.Engine
	logger *interaction.Logger
	redis  *cache.RedisStore
	store  *cache.MemoryStore
}

// New builds the app against the configured OpenAI-compatible backend.
func New(ctx context.Context, cfg Config) (*App, error) {
	provider := llm.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, func(c *openai.ClientConfig) {
		c.HTTPClient = newLLMHTTPClient(cfg.LLMTimeout)
	})
	a, err := NewWithClient(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}
	preflight(ctx, provider)
	return a, nil
}

// NewWithClient builds the app with an explicit backend client. History files
// are loaded here, once; a malformed corpus aborts startup.
func NewWithClient(ctx context.Context, cfg Config, client llm.Client) (*App, error) {
	names, err := corpus.LoadNames(cfg.NamesPath)
	if err != nil {
		return nil, err
	}
	lib, err := corpus.LoadLibrary(map[corpus.Platform]string{
		corpus.Twitter: cfg.TwitterHistory,
		corpus.Yamap:   cfg.YamapHistory,
	}, names)
	if err != nil {
		return nil, err
	}

	ann, err := annotate.NewAnnotator(cfg.Timezone, !cfg.DisableTone)
	if err != nil {
		return nil, err
	}

	completer := llm.NewCompleter(client, cfg.LLMModel, float32(cfg.Temperature), cfg.LLMTimeout)
	if cfg.BreakerFailures > 0 {
		completer.WithBreaker(llm.BreakerSettings{MaxFailures: uint32(cfg.BreakerFailures)})
	}

	a := &App{cfg: cfg, ai: client}
	policy := cache.Policy{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries}
	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		a.redis = cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, policy)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := a.redis.Ping(pctx); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("redis cache at %s: %w", cfg.RedisAddr, err)
		}
		store = a.redis
	default:
		a.store = cache.NewMemoryStore(policy)
		store = a.store
	}

	replyCache := cache.New(store)
	replyCache.LockTTL = cfg.LLMTimeout + 30*time.Second

	a.logger, err = interaction.Open(cfg.LogPath, ann.Location)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = suggest.New(suggest.Deps{
		Library:   lib,
		Annotator: ann,
		Sampler:   sample.New(),
		Composer:  prompt.Composer{Options: prompt.Options{ToneClause: !cfg.DisableTone, StyleBlock: !cfg.DisableStyle}},
		Completer: completer,
		Parser:    reply.LineParser{},
		Cache:     replyCache,
		Log:       a.logger,
	}, suggest.Options{MaxExamples: cfg.MaxExamples, StyleSource: style.ParseSource(cfg.StyleSource)})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// preflight lists models to surface misconfiguration early. It never fails
// startup; completion errors are reported per request.
func preflight(ctx context.Context, client llm.Client) {
	lister, ok := client.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	log.Info().Int("count", len(models.Models)).Msg("LLM models available")
}

// Engine exposes the reply pipeline.
func (a *App) Engine() *suggest.Engine { return a.engine }

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// Close releases the log file and any cache connection.
func (a *App) Close() {
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			log.Warn().Err(err).Msg("close interaction log")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// PurgeExpired runs the memory cache's TTL sweep until ctx ends. It is a
// no-op for redis, which expires keys itself, and when no TTL is set.
func (a *App) PurgeExpired(ctx context.Context, every time.Duration) {
	if a.store == nil || a.cfg.CacheTTL <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.store.PurgeExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("expired cache entries purged")
			}
		}
	}
}
