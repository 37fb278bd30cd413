package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jmorand/pyforge/internal/errors"
)

// geminiClient drives the Gemini API.
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, apiKey, model string) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("gemini: %w", err))
	}
	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Name() string { return "gemini" }

func (c *geminiClient) Close() error { return c.client.Close() }

func (c *geminiClient) Generate(ctx context.Context, req Request) (string, error) {
	session, prompt, err := c.session(req)
	if err != nil {
		return "", err
	}
	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("gemini: %w", err))
	}
	return responseText(resp), nil
}

func (c *geminiClient) GenerateStream(ctx context.Context, req Request, emit StreamFunc) (string, error) {
	session, prompt, err := c.session(req)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	iter := session.SendMessageStream(ctx, genai.Text(prompt))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("gemini stream: %w", err))
		}
		chunk := responseText(resp)
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

// session prepares a chat session with the conversation history loaded and
// returns the trailing user message to send.
func (c *geminiClient) session(req Request) (*genai.ChatSession, string, error) {
	prompt, err := lastUserTurn(req)
	if err != nil {
		return nil, "", err
	}

	m := c.client.GenerativeModel(c.model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	session := m.StartChat()
	for _, turn := range req.Turns[:len(req.Turns)-1] {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return session, prompt, nil
}

// responseText flattens the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
