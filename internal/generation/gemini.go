package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"
)

const promptText = `You are a staff writer for a technical blog.
Write an original, well structured blog post about: {{.Topic}}

Respond with a single JSON object and nothing else, using exactly these keys:
  "title":   a catchy title between 5 and 200 characters
  "summary": one or two sentences, at most 400 characters
  "content": the article body in Markdown, at least 600 words
  "tags":    3 to 6 short lowercase tags
`

type promptData struct {
	Topic string
}

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

// callFunc sends one prompt to the model.
type callFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// GeminiGenerator implements Generator using Google's Gemini API.
type GeminiGenerator struct {
	log        *slog.Logger
	prompt     *template.Template
	call       callFunc
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewGeminiGenerator creates a GeminiGenerator talking to the Gemini API.
func NewGeminiGenerator(ctx context.Context, log *slog.Logger, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.9),
	}
	call := func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, cfg.Model, genai.Text(prompt), genConfig)
	}

	return newGeminiGenerator(log, call, cfg.MaxRetries, cfg.RetryDelay), nil
}

func newGeminiGenerator(log *slog.Logger, call callFunc, maxRetries int, baseDelay time.Duration) *GeminiGenerator {
	if maxRetries < 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &GeminiGenerator{
		log:        log,
		prompt:     template.Must(template.New("post").Parse(promptText)),
		call:       call,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepCtx,
	}
}

// GeneratePost asks the model for a post about topic.
func (g *GeminiGenerator) GeneratePost(ctx context.Context, topic string) (*Draft, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic cannot be empty", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, promptData{Topic: topic}); err != nil {
		return nil, fmt.Errorf("failed to execute prompt template: %w", err)
	}

	draft, err := g.callWithRetry(ctx, buf.String())
	if err != nil {
		return nil, err
	}
	if err := draft.normalize(); err != nil {
		return nil, err
	}
	return draft, nil
}

// callWithRetry calls the model with exponential backoff and jitter on
// transient errors. Blocked or malformed output is returned immediately.
func (g *GeminiGenerator) callWithRetry(ctx context.Context, prompt string) (*Draft, error) {
	for attempt := 0; ; attempt++ {
		g.log.DebugContext(ctx, "calling gemini", "attempt", attempt+1, "max_attempts", g.maxRetries+1)

		resp, err := g.call(ctx, prompt)
		if err == nil {
			draft, perr := parseResponse(resp)
			if perr == nil {
				return draft, nil
			}
			g.log.WarnContext(ctx, "unusable gemini response", "attempt", attempt+1, "error", perr)
			return nil, perr
		}

		if !isTransient(err) {
			return nil, fmt.Errorf("gemini call failed: %w", err)
		}
		if attempt >= g.maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v", ErrTransientFailure, g.maxRetries, err)
		}

		// delay = base * 2^attempt * [0.5, 1.0)
		backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		g.log.InfoContext(ctx, "retrying gemini call", "attempt", attempt+1, "delay", delay, "error", err)

		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
}

func parseResponse(resp *genai.GenerateContentResponse) (*Draft, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if cand.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var draft Draft
	if err := json.Unmarshal([]byte(stripFence(text.String())), &draft); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	return &draft, nil
}

// stripFence removes a Markdown code fence the model sometimes wraps JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// isTransient reports whether err is worth retrying: rate limiting, server
// side failures and network errors. Cancellation is never retried.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
