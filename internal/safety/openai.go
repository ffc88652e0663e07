package safety

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// defaultGraderModel is the lightweight model used for remote grading when
// the config does not name one.
const defaultGraderModel = "gpt-4o-mini"

// graderPrompt instructs the model to answer from the closed level
// vocabulary as a JSON object.
const graderPrompt = "Rate this text as ok, elevated, or blocked based on " +
	"self-harm/violence risk. Return a JSON object with level and reasons."

// Compile-time assertion that OpenAIGrader implements Grader.
var _ Grader = (*OpenAIGrader)(nil)

// GraderOption is a functional option for configuring an [OpenAIGrader].
type GraderOption func(*OpenAIGrader)

// WithGraderModel overrides the default grading model.
func WithGraderModel(model string) GraderOption {
	return func(g *OpenAIGrader) {
		if model != "" {
			g.model = model
		}
	}
}

// WithGraderBaseURL overrides the default OpenAI API base URL.
func WithGraderBaseURL(url string) GraderOption {
	return func(g *OpenAIGrader) {
		g.baseURL = url
	}
}

// OpenAIGrader implements [Grader] using the OpenAI chat completions API
// with a JSON-object response format.
type OpenAIGrader struct {
	client  oai.Client
	model   string
	baseURL string
}

// NewOpenAIGrader constructs a grader. apiKey must be non-empty.
func NewOpenAIGrader(apiKey string, opts ...GraderOption) (*OpenAIGrader, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("safety: grader apiKey must not be empty")
	}
	g := &OpenAIGrader{model: defaultGraderModel}
	for _, o := range opts {
		o(g)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if g.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(g.baseURL))
	}
	g.client = oai.NewClient(reqOpts...)
	return g, nil
}

// gradePayload is the JSON object the model is asked to produce.
type gradePayload struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}

// Grade implements [Grader]. It returns an error for every condition the
// classifier must not trust: transport failures, empty choices, and
// response bodies that do not decode into the expected object. Level
// vocabulary enforcement is left to the caller.
func (g *OpenAIGrader) Grade(ctx context.Context, transcript string) (Result, error) {
	userContent := fmt.Sprintf("Text: %s\nRespond with {\"level\":..., \"reasons\":[...]}", transcript)

	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(graderPrompt),
			oai.UserMessage(userContent),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("safety: grade request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("safety: grade response has no choices")
	}

	var payload gradePayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return Result{}, fmt.Errorf("safety: decode grade payload: %w", err)
	}
	return Result{Level: Level(payload.Level), Reasons: payload.Reasons}, nil
}
