// Package suggest runs the reply-suggestion pipeline: annotate the comment,
// sample exemplars, compose the prompt, complete, parse, log and cache.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreply/internal/annotate"
	"github.com/hyperifyio/goreply/internal/cache"
	"github.com/hyperifyio/goreply/internal/corpus"
	"github.com/hyperifyio/goreply/internal/prompt"
	"github.com/hyperifyio/goreply/internal/reply"
	"github.com/hyperifyio/goreply/internal/sample"
	"github.com/hyperifyio/goreply/internal/style"
)

// DefaultMaxExamples is used when the engine is given a negative MaxExamples.
const DefaultMaxExamples = 5

// ErrEmptyComment rejects requests without comment text.
var ErrEmptyComment = errors.New("comment is required")

// Completer is the blocking backend call. Failures must wrap llm.ErrCompletion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// InteractionLog receives one record per generated reply.
type InteractionLog interface {
	Log(userID, comment, reply string) error
}

// Deps are the collaborators of an Engine. Library, Annotator, Completer,
// Cache and Log are required.
type Deps struct {
	Library   *corpus.Library
	Annotator *annotate.Annotator
	Sampler   *sample.Sampler
	Composer  prompt.Composer
	Completer Completer
	Parser    reply.Parser
	Cache     *cache.Cache
	Log       InteractionLog
}

// Options tune the pipeline.
type Options struct {
	// MaxExamples bounds exemplars per prompt. Zero sends none, so every
	// request takes the no-history path; negative means DefaultMaxExamples.
	MaxExamples int
	StyleSource style.Source
}

// Engine is safe for concurrent use.
type Engine struct {
	deps      Deps
	opts      Options
	profilers map[corpus.Platform]*style.Profiler
}

// New validates deps and prepares one memoized profiler per platform.
func New(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Library == nil:
		return nil, errors.New("suggest: library is required")
	case deps.Annotator == nil:
		return nil, errors.New("suggest: annotator is required")
	case deps.Completer == nil:
		return nil, errors.New("suggest: completer is required")
	case deps.Cache == nil:
		return nil, errors.New("suggest: cache is required")
	case deps.Log == nil:
		return nil, errors.New("suggest: interaction log is required")
	}
	if deps.Sampler == nil {
		deps.Sampler = sample.New()
	}
	if deps.Parser == nil {
		deps.Parser = reply.LineParser{}
	}
	if opts.MaxExamples < 0 {
		opts.MaxExamples = DefaultMaxExamples
	}
	e := &Engine{deps: deps, opts: opts, profilers: map[corpus.Platform]*style.Profiler{}}
	for _, p := range corpus.Platforms {
		e.profilers[p] = style.NewProfiler(deps.Library.Corpus(p), opts.StyleSource)
	}
	return e, nil
}

// Request is one incoming comment to reply to.
type Request struct {
	Session  string
	Platform corpus.Platform
	UserID   string
	Comment  string
	// MaxExamples overrides the engine default when positive.
	MaxExamples int
}

// Result is what the operator sees. Exemplars and Prompt are only set when
// the backend was called.
type Result struct {
	Context    annotate.Context
	Exemplars  []corpus.ExemplarPair
	Prompt     string
	Raw        string
	Candidates []string
	Cached     bool
	// LogErr is a secondary failure: the reply is valid but was not logged.
	LogErr error
}

// Suggest returns candidate replies. A completion failure is returned as an
// error; a log failure is reported in Result.LogErr.
func (e *Engine) Suggest(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Comment) == "" {
		return Result{}, ErrEmptyComment
	}
	k := e.opts.MaxExamples
	if req.MaxExamples > 0 {
		k = req.MaxExamples
	}

	res := Result{Context: e.deps.Annotator.Annotate(req.Platform, req.UserID, req.Comment)}
	fp := cache.Fingerprint(req.UserID, req.Comment, string(req.Platform))

	raw, hit, err := e.deps.Cache.GetOrCompute(ctx, req.Session, fp, func(ctx context.Context) (string, error) {
		c := e.deps.Library.Corpus(req.Platform)
		res.Exemplars = e.deps.Sampler.Sample(c, req.UserID, k)
		var profile style.Profile
		if len(res.Exemplars) > 0 {
			profile = e.Profile(req.Platform)
		}
		res.Prompt = e.deps.Composer.Compose(res.Context, res.Exemplars, profile)
		log.Debug().Str("platform", string(req.Platform)).Int("exemplars", len(res.Exemplars)).Int("prompt_len", len(res.Prompt)).Msg("prompt composed")

		out, err := e.deps.Completer.Complete(ctx, res.Prompt)
		if err != nil {
			return "", err
		}
		if lerr := e.deps.Log.Log(req.UserID, req.Comment, out); lerr != nil {
			res.LogErr = lerr
			log.Error().Err(lerr).Str("user", corpus.MaskID(req.UserID)).Msg("interaction log write failed")
		}
		return out, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("suggest: %w", err)
	}
	res.Raw = raw
	res.Cached = hit
	res.Candidates = e.deps.Parser.Parse(raw)
	log.Info().
		Str("platform", string(req.Platform)).
		Str("user", corpus.MaskID(req.UserID)).
		Str("emotion", string(res.Context.Emotion)).
		Bool("cached", hit).
		Int("candidates", len(res.Candidates)).
		Msg("reply suggested")
	return res, nil
}

// Profile returns the memoized style profile of a platform corpus.
func (e *Engine) Profile(p corpus.Platform) style.Profile {
	if pr, ok := e.profilers[p]; ok {
		return pr.Profile()
	}
	return style.Profile{}
}

// Users lists the records of a platform corpus with display names applied.
func (e *Engine) Users(p corpus.Platform) []corpus.Record {
	return e.deps.Library.Corpus(p).All()
}

// Rename sets a display name. Repeating a rename is a no-op.
func (e *Engine) Rename(userID, name string) error {
	return e.deps.Library.Names().Rename(userID, name)
}

// DisplayName returns the registered name of a user, or the masked id.
func (e *Engine) DisplayName(userID string) string {
	return e.deps.Library.Names().Display(userID)
}

// EndSession drops the cached replies of a session.
func (e *Engine) EndSession(ctx context.Context, session string) error {
	return e.deps.Cache.EndSession(ctx, session)
}
