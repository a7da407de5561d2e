// Package openai implements the chat, transcription and speech
// adapters backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/internal/utils/jsonutil"
)

const defaultChatModel = openai.GPT4o

type ChatAdapter struct {
	client *openai.Client
}

func NewChatAdapter(apiKey string) *ChatAdapter {
	return &ChatAdapter{client: openai.NewClient(apiKey)}
}

func (a *ChatAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultChatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.Prompt.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Prompt.SystemPrompt,
		})
	}
	messages = append(messages, userMessage(req))

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	tools, err := buildTools(req.Prompt.Tools)
	if err != nil {
		return nil, err
	}
	chatReq.Tools = tools

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	response := map[string]any{
		"id":            resp.ID,
		"model":         resp.Model,
		"content":       choice.Message.Content,
		"finish_reason": string(choice.FinishReason),
	}
	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(choice.Message.ToolCalls))
		for _, call := range choice.Message.ToolCalls {
			calls = append(calls, map[string]any{
				"id":        call.ID,
				"name":      call.Function.Name,
				"arguments": call.Function.Arguments,
			})
		}
		response["tool_calls"] = calls
	}

	return &providers.StepResult{
		Response:   response,
		Text:       choice.Message.Content,
		OutputType: types.OutputTypeText,
		Usage: &providers.TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

// userMessage builds the user turn. Steps with image input switch to
// multi-part content so the model can see the attachments.
func userMessage(req *providers.StepRequest) openai.ChatCompletionMessage {
	imageURLs := make([]string, 0, len(req.AttachmentURLs)+1)
	if req.InputImageURL != "" {
		imageURLs = append(imageURLs, req.InputImageURL)
	}
	for _, url := range req.AttachmentURLs {
		if url != "" && url != req.InputImageURL {
			imageURLs = append(imageURLs, url)
		}
	}

	if len(imageURLs) == 0 {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Run.Message,
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(imageURLs)+1)
	if req.Run.Message != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Run.Message,
		})
	}
	for _, url := range imageURLs {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    url,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

func buildTools(defs []map[string]any) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		var tool openai.Tool
		if err := jsonutil.MapToStruct(def, &tool); err != nil {
			return nil, fmt.Errorf("invalid tool definition: %w", err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}
