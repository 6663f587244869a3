package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goreply/internal/app"
	"github.com/hyperifyio/goreply/internal/corpus"
	"github.com/hyperifyio/goreply/internal/interaction"
	"github.com/hyperifyio/goreply/internal/style"
	"github.com/hyperifyio/goreply/internal/suggest"
)

// newApp builds the application; tests replace it to inject a fake backend.
var newApp = app.New

// options holds the raw flag values. Only flags the user changed are applied
// on top of file and env configuration.
type options struct {
	configPath string
	envFile    string

	llmBase    string
	llmModel   string
	llmKey     string
	llmTemp    float64
	llmTimeout time.Duration

	twitter string
	yamap   string
	names   string
	logPath string

	timezone    string
	maxExamples int
	noTone      bool
	noStyle     bool
	styleSource string

	cacheBackend string
	cacheTTL     time.Duration
	redisAddr    string

	serverAddr string
	verbose    bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("goreply failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "goreply",
		Short:         "Suggest replies to social media comments in the operator's own voice",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Path to YAML or JSON config file")
	f.StringVar(&opts.envFile, "env", app.DefaultEnvFile, "Dotenv file to load before reading the environment")
	f.StringVar(&opts.llmBase, "llm.base", "", "OpenAI-compatible base URL")
	f.StringVar(&opts.llmModel, "llm.model", app.DefaultModel, "Model name")
	f.StringVar(&opts.llmKey, "llm.key", "", "API key for the completion backend")
	f.Float64Var(&opts.llmTemp, "llm.temperature", app.DefaultTemperature, "Sampling temperature")
	f.DurationVar(&opts.llmTimeout, "llm.timeout", app.DefaultLLMTimeout, "Per-call completion timeout")
	f.StringVar(&opts.twitter, "history.twitter", app.DefaultTwitterHistory, "Twitter reply history JSON")
	f.StringVar(&opts.yamap, "history.yamap", app.DefaultYamapHistory, "YAMAP reply history JSON")
	f.StringVar(&opts.names, "history.names", app.DefaultNamesPath, "Display name mapping JSON")
	f.StringVar(&opts.logPath, "log", app.DefaultLogPath, "Interaction log file")
	f.StringVar(&opts.timezone, "timezone", app.DefaultTimezone, "Timezone for greetings and log timestamps")
	f.IntVar(&opts.maxExamples, "max.examples", app.DefaultMaxExamples, "Maximum exemplar pairs per prompt")
	f.BoolVar(&opts.noTone, "prompt.noTone", false, "Leave the tone clause out of prompts")
	f.BoolVar(&opts.noStyle, "prompt.noStyle", false, "Leave the style block out of prompts")
	f.StringVar(&opts.styleSource, "style.source", "comment", "Text the style profile is built from: comment or reply")
	f.StringVar(&opts.cacheBackend, "cache.backend", app.DefaultCacheBackend, "Session cache backend: memory or redis")
	f.DurationVar(&opts.cacheTTL, "cache.ttl", 0, "Expire cached replies after this long (0 keeps them for the session)")
	f.StringVar(&opts.redisAddr, "cache.redis", "", "Redis address for the redis cache backend")
	f.StringVar(&opts.serverAddr, "server.addr", app.DefaultServerAddr, "Listen address for serve")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		newSuggestCmd(opts),
		newRenameCmd(opts),
		newUsersCmd(opts),
		newProfileCmd(opts),
		newLogCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves configuration as defaults, then file, then env, then
// explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options, needLLM bool) (app.Config, error) {
	if err := app.LoadEnvFiles(opts.envFile); err != nil {
		return app.Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg := app.DefaultConfig()
	if opts.configPath != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("llm.base", func() { cfg.LLMBaseURL = opts.llmBase })
	set("llm.model", func() { cfg.LLMModel = opts.llmModel })
	set("llm.key", func() { cfg.LLMAPIKey = opts.llmKey })
	set("llm.temperature", func() { cfg.Temperature = opts.llmTemp })
	set("llm.timeout", func() { cfg.LLMTimeout = opts.llmTimeout })
	set("history.twitter", func() { cfg.TwitterHistory = opts.twitter })
	set("history.yamap", func() { cfg.YamapHistory = opts.yamap })
	set("history.names", func() { cfg.NamesPath = opts.names })
	set("log", func() { cfg.LogPath = opts.logPath })
	set("timezone", func() { cfg.Timezone = opts.timezone })
	set("max.examples", func() { cfg.MaxExamples = opts.maxExamples })
	set("prompt.noTone", func() { cfg.DisableTone = opts.noTone })
	set("prompt.noStyle", func() { cfg.DisableStyle = opts.noStyle })
	set("style.source", func() { cfg.StyleSource = opts.styleSource })
	set("cache.backend", func() { cfg.CacheBackend = strings.ToLower(opts.cacheBackend) })
	set("cache.ttl", func() { cfg.CacheTTL = opts.cacheTTL })
	set("cache.redis", func() { cfg.RedisAddr = opts.redisAddr })
	set("server.addr", func() { cfg.ServerAddr = opts.serverAddr })
	set("verbose", func() { cfg.Verbose = opts.verbose })

	if needLLM {
		if err := app.ValidateConfig(cfg); err != nil {
			return app.Config{}, err
		}
	}
	return cfg, nil
}

// loadLibrary opens the corpora without touching the backend or the log.
func loadLibrary(cfg app.Config) (*corpus.Library, error) {
	names, err := corpus.LoadNames(cfg.NamesPath)
	if err != nil {
		return nil, err
	}
	return corpus.LoadLibrary(map[corpus.Platform]string{
		corpus.Twitter: cfg.TwitterHistory,
		corpus.Yamap:   cfg.YamapHistory,
	}, names)
}

func newSuggestCmd(opts *options) *cobra.Command {
	var (
		platform string
		userID   string
		comment  string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "suggest [comment]",
		Short: "Suggest replies to one comment (reads stdin when the comment is -)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if comment == "" {
				comment = strings.Join(args, " ")
			}
			if comment == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				comment = string(b)
			}
			p, err := corpus.ParsePlatform(platform)
			if err != nil {
				return err
			}
			if strings.TrimSpace(userID) == "" && p != corpus.Generic {
				return fmt.Errorf("--user is required on %s", p)
			}
			cfg, err := loadConfig(cmd, opts, true)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Engine().Suggest(cmd.Context(), suggest.Request{
				Session:  uuid.NewString(),
				Platform: p,
				UserID:   userID,
				Comment:  comment,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), a.Engine().DisplayName(userID), res, asJSON)
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", string(corpus.Twitter), "Platform: twitter, yamap or generic")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Commenter user id (optional on generic)")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Comment text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(w io.Writer, displayName string, res suggest.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"display_name": displayName,
			"emotion":      res.Context.Emotion,
			"tone":         res.Context.Tone,
			"greeting":     res.Context.GreetingInstruction,
			"candidates":   res.Candidates,
			"cached":       res.Cached,
		})
	}
	fmt.Fprintf(w, "%s (%s)\n", displayName, res.Context.Platform)
	if res.Context.Emotion != "" {
		fmt.Fprintf(w, "emotion: %s\n", res.Context.Emotion)
	}
	if res.Context.Tone != "" {
		fmt.Fprintf(w, "tone: %s\n", res.Context.Tone)
	}
	if len(res.Candidates) == 0 {
		fmt.Fprintln(w, "(no candidates)")
	}
	for i, c := range res.Candidates {
		fmt.Fprintf(w, "%d. %s\n", i+1, c)
	}
	if res.LogErr != nil {
		fmt.Fprintf(w, "warning: reply not logged: %v\n", res.LogErr)
	}
	return nil
}

func newRenameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <user-id> <display-name>",
		Short: "Register a display name for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			names, err := corpus.LoadNames(cfg.NamesPath)
			if err != nil {
				return err
			}
			if err := names.Rename(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], names.Display(args[0]))
			return nil
		},
	}
}

func newUsersCmd(opts *options) *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users with history on a platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := corpus.ParsePlatform(platform)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, rec := range lib.Corpus(p).All() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", rec.UserID, lib.Names().Display(rec.UserID), len(rec.Comments))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", string(corpus.Twitter), "Platform: twitter, yamap or generic")
	return cmd
}

func newProfileCmd(opts *options) *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the writing style profile of a platform's history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := corpus.ParsePlatform(platform)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg)
			if err != nil {
				return err
			}
			prof := style.Compute(lib.Corpus(p), style.ParseSource(cfg.StyleSource))
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "emojis: %s\n", strings.Join(prof.TopEmojis, " "))
			fmt.Fprintf(w, "phrases: %s\n", strings.Join(prof.TopPhrases, ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", string(corpus.Twitter), "Platform: twitter, yamap or generic")
	return cmd
}

func newLogCmd(opts *options) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the most recent logged interactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			recs, err := interaction.Tail(cfg.LogPath, n)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			defer w.Flush()
			for _, r := range recs {
				fmt.Fprintf(w, "%s  %s\n  > %s\n  < %s\n", r.Timestamp.Format(time.RFC3339), corpus.MaskID(r.UserID), r.Comment, r.Reply)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "tail", "n", 10, "Number of records to show")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "goreply "+app.VersionString())
		},
	}
}
