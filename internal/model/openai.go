package model

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jmorand/pyforge/internal/errors"
)

// lmStudioModel is the placeholder model id sent to LM Studio, which serves
// whatever model is loaded regardless of the id in the request.
const lmStudioModel = "local-model"

// openAIClient drives any OpenAI-compatible chat completion endpoint,
// covering both the hosted API and a local LM Studio server.
type openAIClient struct {
	api   *openai.Client
	model string
	name  string
}

func newLMStudio(host string, port int, model string) *openAIClient {
	cfg := openai.DefaultConfig("lm-studio")
	cfg.BaseURL = fmt.Sprintf("http://%s:%d/v1", host, port)
	if model == "" {
		model = lmStudioModel
	}
	return &openAIClient{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
		name:  "lmstudio",
	}
}

func newOpenAI(apiKey, model string) *openAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIClient{
		api:   openai.NewClient(apiKey),
		model: model,
		name:  "openai",
	}
}

func (c *openAIClient) Name() string { return c.name }

func (c *openAIClient) Close() error { return nil }

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(req, false))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("%s: %w", c.name, err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewInternal(fmt.Errorf("%s returned no choices", c.name))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) GenerateStream(ctx context.Context, req Request, emit StreamFunc) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.chatRequest(req, true))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("%s: %w", c.name, err))
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("%s stream: %w", c.name, err))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if emit != nil {
			emit(chunk)
		}
	}
	return full.String(), nil
}

func (c *openAIClient) chatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.Turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
	}
}
