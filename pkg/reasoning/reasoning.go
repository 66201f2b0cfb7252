// Package reasoning wraps the OpenAI-compatible embedding and chat-
// completion client used by the Embed, Evaluate, and Extract stages. It
// generalizes the teacher's pkg/ai/openai driver: the teacher's Summarize/
// Chunk methods get structured output via tool-calls, but the Evaluate and
// Extract stages' contracts (spec §4.8, §4.9) are free-text JSON with a
// three-fallback lenient parser, so this package replaces tool-calls with
// plain chat completions plus ParseLenientJSON.
package reasoning

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ironvale-labs/dtcforge/pkg/errors"
)

// Client embeds text and runs reasoning prompts against an OpenAI-
// compatible endpoint (also used for local/self-hosted model servers that
// speak the same wire protocol, per the teacher's own BaseURL override).
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int
}

type Option func(*Client)

func WithEmbeddingDim(dim int) Option {
	return func(c *Client) { c.embeddingDim = dim }
}

// New builds a Client. baseURL may be empty to use the default OpenAI API,
// or point at a self-hosted/compatible endpoint, exactly as the teacher's
// openai.New does with its proxy argument.
func New(apiKey, baseURL, chatModel, embeddingModel string, opts ...Option) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	if embeddingModel == "" {
		embeddingModel = string(openai.LargeEmbedding3)
	}

	c := &Client{
		client:         openai.NewClientWithConfig(cfg),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		embeddingDim:   768,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns one fixed-dimensional vector per input text (spec §4.7).
// Requests are batched to respect typical provider batch-size limits,
// mirroring the teacher's embedding() batching of 6 inputs per call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const batchMax = 6

	var groups [][]string
	for i, t := range texts {
		if i%batchMax == 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], t)
	}

	var result [][]float32
	for _, group := range groups {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(c.embeddingModel),
			Input:      group,
			Dimensions: c.embeddingDim,
		})
		if err != nil {
			return nil, errors.Wrap(err, "reasoning.Embed", "embedding request failed")
		}
		for _, d := range resp.Data {
			result = append(result, d.Embedding)
		}
	}
	return result, nil
}

// CompleteJSON runs a system+user chat completion and returns the raw
// response text. Callers apply ParseLenientJSON themselves so the parse
// failure policy (spec §4.8) stays visible at the call site.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userContent string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", errors.Wrap(err, "reasoning.CompleteJSON", "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("reasoning.CompleteJSON", "empty completion response", nil)
	}

	slog.Debug("reasoning completion", slog.String("model", c.chatModel), slog.Int("prompt_tokens", resp.Usage.PromptTokens))
	return resp.Choices[0].Message.Content, nil
}

// ModelName reports the chat model in use, recorded on ChunkEvaluation
// rows as the evaluating model.
func (c *Client) ModelName() string {
	return c.chatModel
}
