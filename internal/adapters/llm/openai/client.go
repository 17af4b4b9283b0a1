// Package openai implements the classifier, generator and embedder
// capabilities on any OpenAI-compatible endpoint (OpenAI, Ollama, vLLM).
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/devbrain/devbrain/internal/core/state"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// ErrEmptyResponse is returned when the endpoint answers without content.
var ErrEmptyResponse = errors.New("empty response from model")

// Config configures the client.
type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	ClassifierModel string
	EmbeddingModel  string
	RequestTimeout  time.Duration // zero relies on the caller's deadline
	Temperature     float32
}

// Client wraps the OpenAI client with the prompts devbrain needs
type Client struct {
	client *openai.Client
	cfg    Config
}

// NewClient creates a new OpenAI client wrapper
func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = cfg.ChatModel
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

const routerPrompt = `You are a router. Your job is to classify if a query needs INTERNAL DOCUMENTATION or not.

REPLY 'WIKI' IF:
- The user asks for specific data, locations, logic, or "how-to" within our company/project.
- Examples: "Where is the checkout flow?", "Affiliate logic", "Optimization data", "Project structure".

REPLY 'GENERAL' IF:
- The user is greeting you, asking about general coding (e.g. "What is React?"), or non-project specific questions.
- Examples: "Hi", "How are you?", "What is a vector DB?".

QUERY: "%s"
REPLY ONLY WITH THE WORD 'WIKI' OR 'GENERAL'.`

// Classify returns the model's raw routing label for text.
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	label, err := c.complete(ctx, c.cfg.ClassifierModel, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(routerPrompt, text)},
	}, 0)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	logx.Debug().Str("label", label).Msg("query classified")
	return label, nil
}

// Generate answers the conversation with system as the system message.
func (c *Client) Generate(ctx context.Context, system string, history []state.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	reply, err := c.complete(ctx, c.cfg.ChatModel, messages, c.cfg.Temperature)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return reply, nil
}

// Embed returns the embedding of one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one request, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("mismatch between input texts (%d) and returned embeddings (%d)", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// HealthCheck verifies the endpoint with a minimal embedding request.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Embed(ctx, "health check")
	return err
}

func (c *Client) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature float32) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func chatRole(r state.Role) string {
	switch r {
	case state.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case state.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
