package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

type capturingClient struct {
	lastReq openai.ChatCompletionRequest
	calls   int
	content string
	err     error
	empty   bool
	delay   time.Duration
}

func (c *capturingClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.lastReq = req
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	if c.empty {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.content},
		}},
	}, nil
}

func TestComplete_SingleUserMessageAtFixedTemperature(t *testing.T) {
	cc := &capturingClient{content: "- a\n- b"}
	c := NewCompleter(cc, "", 0, 0)
	out, err := c.Complete(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "- a\n- b" {
		t.Fatalf("got %q", out)
	}
	if len(cc.lastReq.Messages) != 1 || cc.lastReq.Messages[0].Role != openai.ChatMessageRoleUser || cc.lastReq.Messages[0].Content != "prompt text" {
		t.Fatalf("unexpected messages: %+v", cc.lastReq.Messages)
	}
	if cc.lastReq.Temperature != DefaultTemperature || cc.lastReq.Model != DefaultModel {
		t.Fatalf("unexpected sampling params: model=%s temp=%v", cc.lastReq.Model, cc.lastReq.Temperature)
	}
}

func TestComplete_FailuresAreCompletionErrors(t *testing.T) {
	backendErr := errors.New("502 bad gateway")
	cases := map[string]*capturingClient{
		"backend error": {err: backendErr},
		"no choices":    {empty: true},
	}
	for name, cc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCompleter(cc, "m", 0.7, time.Second).Complete(context.Background(), "p")
			if !errors.Is(err, ErrCompletion) {
				t.Fatalf("expected ErrCompletion, got %v", err)
			}
			var ce *CompletionError
			if !errors.As(err, &ce) || ce.Model != "m" {
				t.Fatalf("expected *CompletionError with model, got %v", err)
			}
			if cc.calls != 1 {
				t.Fatalf("expected exactly one call (no retries), got %d", cc.calls)
			}
		})
	}
	_, err := NewCompleter(&capturingClient{err: backendErr}, "m", 0.7, time.Second).Complete(context.Background(), "p")
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestComplete_TimeoutIsCompletionError(t *testing.T) {
	cc := &capturingClient{delay: time.Second, content: "late"}
	_, err := NewCompleter(cc, "m", 0.7, 20*time.Millisecond).Complete(context.Background(), "p")
	if !errors.Is(err, ErrCompletion) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline completion failure, got %v", err)
	}
}

func TestComplete_BreakerOpens(t *testing.T) {
	cc := &capturingClient{err: errors.New("down")}
	c := NewCompleter(cc, "m", 0.7, time.Second).WithBreaker(BreakerSettings{MaxFailures: 2, OpenFor: time.Minute})
	for i := 0; i < 4; i++ {
		if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, ErrCompletion) {
			t.Fatalf("call %d: expected completion failure, got %v", i, err)
		}
	}
	if cc.calls != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", cc.calls)
	}
}

func TestComplete_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	cc := &capturingClient{content: "ok", delay: 10 * time.Millisecond}
	c := NewCompleter(cc, "m", 0.7, time.Second).WithBreaker(BreakerSettings{MaxFailures: 3, OpenFor: time.Minute})
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.Complete(ctx, "p"); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected canceled, got %v", i, err)
		}
	}
	out, err := c.Complete(context.Background(), "p")
	if err != nil || out != "ok" {
		t.Fatalf("after cancellations got %q, %v; breaker should stay closed", out, err)
	}
	if st := c.Breaker.State(); st != gobreaker.StateClosed {
		t.Fatalf("breaker state=%v", st)
	}
}

func TestComplete_Unconfigured(t *testing.T) {
	var c *Completer
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, ErrCompletion) {
		t.Fatalf("expected ErrCompletion, got %v", err)
	}
}
