package reply

import (
	"context"
	"fmt"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	// DefaultSystemPrompt is the persona injected into the conversational
	// model when the config does not override it.
	DefaultSystemPrompt = "You are Listener, a calm companion."

	defaultResponderModel   = "gpt-4o-mini"
	defaultResponderTimeout = 20 * time.Second
)

// Compile-time assertion that OpenAIResponder implements Responder.
var _ Responder = (*OpenAIResponder)(nil)

// ResponderOption is a functional option for configuring an
// [OpenAIResponder].
type ResponderOption func(*OpenAIResponder)

// WithResponderModel overrides the default conversational model.
func WithResponderModel(model string) ResponderOption {
	return func(r *OpenAIResponder) {
		if model != "" {
			r.model = model
		}
	}
}

// WithSystemPrompt overrides [DefaultSystemPrompt].
func WithSystemPrompt(prompt string) ResponderOption {
	return func(r *OpenAIResponder) {
		if prompt != "" {
			r.systemPrompt = prompt
		}
	}
}

// WithResponderBaseURL overrides the default OpenAI API base URL.
func WithResponderBaseURL(url string) ResponderOption {
	return func(r *OpenAIResponder) {
		r.baseURL = url
	}
}

// OpenAIResponder implements [Responder] with an OpenAI chat completion.
// Errors are returned to the caller; the [Selector] degrades them to the
// static companion line.
type OpenAIResponder struct {
	client       oai.Client
	model        string
	systemPrompt string
	baseURL      string
	timeout      time.Duration
}

// NewOpenAIResponder constructs a responder. apiKey must be non-empty.
func NewOpenAIResponder(apiKey string, opts ...ResponderOption) (*OpenAIResponder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reply: responder apiKey must not be empty")
	}
	r := &OpenAIResponder{
		model:        defaultResponderModel,
		systemPrompt: DefaultSystemPrompt,
		timeout:      defaultResponderTimeout,
	}
	for _, o := range opts {
		o(r)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if r.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(r.baseURL))
	}
	r.client = oai.NewClient(reqOpts...)
	return r, nil
}

// Reply implements [Responder].
func (r *OpenAIResponder) Reply(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(r.systemPrompt),
			oai.UserMessage(transcript),
		},
		MaxCompletionTokens: param.NewOpt(int64(200)),
	})
	if err != nil {
		return "", fmt.Errorf("reply: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("reply: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
