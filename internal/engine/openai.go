package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Options configures the OpenAI-backed engine.
type Options struct {
	Model           string
	APIKey          string
	BaseURL         string // Optional, for OpenAI-compatible backends
	Temperature     float64
	Timeout         time.Duration
	VerifyMaxTurns  int
	AnalyzeMaxTurns int
}

// OpenAI implements Engine against the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	opts   Options
}

// NewOpenAI creates an engine for the given options.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.VerifyMaxTurns <= 0 {
		opts.VerifyMaxTurns = 3
	}
	if opts.AnalyzeMaxTurns <= 0 {
		opts.AnalyzeMaxTurns = 5
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		option.WithMaxRetries(2),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}, nil
}

// Verify asks the verifier for a structured judgment of the document,
// validating the JSON locally and allowing a bounded number of repair turns.
func (o *OpenAI) Verify(ctx context.Context, document string) (*Verification, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(verifierSystemPrompt),
		openai.UserMessage(verifierUserPrompt(document)),
	}

	var lastErr error
	for turn := 0; turn < o.opts.VerifyMaxTurns; turn++ {
		content, _, _, err := o.complete(ctx, messages)
		if err != nil {
			return nil, &Failure{Stage: "verify", Err: err}
		}

		parsed, err := parseStructuredJSON(content)
		if err == nil {
			err = validateStructuredJSON(json.RawMessage(verificationSchema), parsed)
		}
		if err == nil {
			var v Verification
			if uErr := json.Unmarshal(parsed, &v); uErr == nil {
				return &v, nil
			} else {
				err = uErr
			}
		}

		lastErr = err
		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage(structuredRepairPrompt(verificationSchema, content, err)),
		)
	}

	return nil, &Failure{Stage: "verify", Err: fmt.Errorf("no valid verification after %d turns: %w", o.opts.VerifyMaxTurns, lastErr)}
}

// Analyze runs the analyst over the document, continuing across turns
// when the model stops for length, up to AnalyzeMaxTurns.
func (o *OpenAI) Analyze(ctx context.Context, query, document string) (*Analysis, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(analystSystemPrompt),
		openai.UserMessage(analystUserPrompt(query, document)),
	}

	result := &Analysis{}
	var text strings.Builder

	for turn := 0; turn < o.opts.AnalyzeMaxTurns; turn++ {
		content, finishReason, usage, err := o.complete(ctx, messages)
		if err != nil {
			return nil, &Failure{Stage: "analyze", Err: err}
		}
		result.PromptTokens += usage.PromptTokens
		result.CompletionTokens += usage.CompletionTokens

		if content != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(content)
		}

		if finishReason != "length" {
			break
		}
		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage("Continue the analysis from where you stopped."),
		)
	}

	result.Text = strings.TrimSpace(text.String())
	if result.Text == "" {
		return nil, &Failure{Stage: "analyze", Err: fmt.Errorf("model returned no analysis")}
	}
	return result, nil
}

// complete runs one chat completion and returns content, finish reason
// and token usage.
func (o *OpenAI) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, string, openai.CompletionUsage, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.opts.Model),
		Messages:    messages,
		Temperature: openai.Float(o.opts.Temperature),
	})
	if err != nil {
		return "", "", openai.CompletionUsage{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", resp.Usage, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	return choice.Message.Content, choice.FinishReason, resp.Usage, nil
}
