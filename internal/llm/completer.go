// Package llm adapts an OpenAI-compatible chat endpoint to the single
// complete(prompt) operation the reply engine needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	// DefaultModel matches what the account tooling has always used.
	DefaultModel = "gpt-4o-mini"
	// DefaultTemperature gives varied phrasing across calls.
	DefaultTemperature float32 = 0.7
	// DefaultTimeout bounds one backend call.
	DefaultTimeout = 60 * time.Second
)

// ErrCompletion marks every backend failure: transport errors, timeouts,
// error responses, an open breaker or a response without choices.
var ErrCompletion = errors.New("completion failure")

// CompletionError carries the underlying cause of a completion failure.
type CompletionError struct {
	Model string
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failure (model %s): %v", e.Model, e.Err)
}

func (e *CompletionError) Unwrap() []error { return []error{ErrCompletion, e.Err} }

// Completer sends one user message per call at a fixed temperature. It does
// not retry; retry policy belongs to the caller.
type Completer struct {
	Client      Client
	Model       string
	Temperature float32
	Timeout     time.Duration
	// Breaker is optional. When set, repeated failures short-circuit further
	// calls until the breaker half-opens.
	Breaker *gobreaker.CircuitBreaker
}

// NewCompleter fills zero values with defaults.
func NewCompleter(client Client, model string, temperature float32, timeout time.Duration) *Completer {
	if model == "" {
		model = DefaultModel
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Completer{Client: client, Model: model, Temperature: temperature, Timeout: timeout}
}

// BreakerSettings configures the optional circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32
	OpenFor     time.Duration
}

// WithBreaker installs a circuit breaker that trips after MaxFailures
// consecutive failures and stays open for OpenFor.
func (c *Completer) WithBreaker(s BreakerSettings) *Completer {
	if s.MaxFailures == 0 {
		s.MaxFailures = 3
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	c.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completion",
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		// A caller abandoning the request says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("completion breaker state change")
		},
	})
	return c
}

// Complete returns the raw text of the first choice.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.Client == nil {
		return "", &CompletionError{Err: errors.New("completer not configured")}
	}
	call := func() (interface{}, error) { return c.call(ctx, prompt) }
	var (
		out interface{}
		err error
	)
	if c.Breaker != nil {
		out, err = c.Breaker.Execute(call)
	} else {
		out, err = call()
	}
	if err != nil {
		return "", &CompletionError{Model: c.Model, Err: err}
	}
	return out.(string), nil
}

func (c *Completer) call(ctx context.Context, prompt string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	log.Debug().Str("stage", "completion").Str("model", c.Model).Int("prompt_len", len(prompt)).Msg("completion request")
	resp, err := c.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.Temperature,
		N:           1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
