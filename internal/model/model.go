// Package model talks to the configured LLM backend. All backends expose the
// same Client interface; the rest of the application never imports an SDK
// directly.
package model

import (
	"context"
	"fmt"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/errors"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// Request is a complete prompt: an optional system instruction plus the
// conversation so far. The last turn must be from the user.
type Request struct {
	System string
	Turns  []Turn
}

// StreamFunc receives raw response chunks as the backend produces them.
type StreamFunc func(chunk string)

// Client generates text from a model backend.
type Client interface {
	// Name identifies the backend for logging.
	Name() string

	// Generate returns the full response text for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream streams response chunks to emit and returns the
	// assembled full text. emit may be nil.
	GenerateStream(ctx context.Context, req Request, emit StreamFunc) (string, error)

	// Close releases backend resources.
	Close() error
}

// NewClient builds the client selected by cfg.Backend.
func NewClient(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (Client, error) {
	switch cfg.Backend {
	case config.BackendLMStudio:
		return newLMStudio(cfg.LMStudioHost, cfg.LMStudioPort, cfg.OpenAIModel), nil
	case config.BackendOpenAI:
		if secrets.OpenAIAPIKey == "" {
			return nil, errors.NewInvalidRequest("backend openai requires OPENAI_API_KEY")
		}
		return newOpenAI(secrets.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.BackendGemini:
		if secrets.GeminiAPIKey == "" {
			return nil, errors.NewInvalidRequest("backend gemini requires GEMINI_API_KEY")
		}
		return newGemini(ctx, secrets.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

// lastUserTurn returns the content of the trailing user turn, or an error if
// the request is malformed.
func lastUserTurn(req Request) (string, error) {
	if len(req.Turns) == 0 {
		return "", errors.NewInvalidRequest("request has no turns")
	}
	last := req.Turns[len(req.Turns)-1]
	if last.Role != RoleUser {
		return "", errors.NewInvalidRequest("last turn must be from the user")
	}
	return last.Content, nil
}
