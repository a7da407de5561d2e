// Package safety screens rendered prompt text before it reaches an
// upstream provider. Classification is delegated to a small chat
// model; the acceptance rules live here.
package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// A fixed seed keeps classification reproducible across retries of the
// same prompt.
const seed int64 = 420

type Filter struct {
	client *openai.Client
}

func NewFilter(apiKey string) (*Filter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &Filter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// RejectionError reports that the prompt itself was refused, as
// opposed to the classifier being unreachable.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("prompt rejected by safety filter: %s", e.Reason)
}

type classification struct {
	SexualizeChild bool     `json:"sexualize_child"`
	Child          bool     `json:"child"`
	Nudity         bool     `json:"nudity"`
	Sexual         bool     `json:"sexual"`
	Violence       bool     `json:"violence"`
	Disturbing     bool     `json:"disturbing"`
	Persons        []person `json:"persons"`
}

type person struct {
	Name       string `json:"name"`
	RealPerson bool   `json:"real_person"`
}

// Check classifies the text and returns a RejectionError when it
// violates the acceptance rules. A classifier outage fails the check;
// running unscreened is not an option once the filter is enabled.
func (f *Filter) Check(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	result, err := f.classify(ctx, text)
	if err != nil {
		return fmt.Errorf("safety filter unavailable: %w", err)
	}

	if reason := evaluate(result); reason != "" {
		return &RejectionError{Reason: reason}
	}

	return nil
}

func (f *Filter) classify(ctx context.Context, text string) (*classification, error) {
	completion, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierPrompt),
			openai.UserMessage(fmt.Sprintf("Prompt: %s", text)),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
		Seed:        openai.F(seed),
		Model:       openai.F(openai.ChatModelGPT4oMini),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return nil, err
	}

	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.Content) == 0 {
		return nil, fmt.Errorf("could not classify prompt")
	}

	var result classification
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("could not parse classifier response: %w", err)
	}

	return &result, nil
}

func evaluate(c *classification) string {
	if c.SexualizeChild || (c.Child && (c.Sexual || c.Nudity)) {
		return "contains child sexual content"
	}
	if c.Child && (c.Violence || c.Disturbing) {
		return "contains children and violent or disturbing content"
	}
	if (c.Sexual || c.Nudity) && hasRealPerson(c.Persons) {
		return "contains non-consensual sexual or nude content of a real person"
	}

	return ""
}

func hasRealPerson(persons []person) bool {
	for _, p := range persons {
		if p.RealPerson {
			return true
		}
	}
	return false
}
