package rewrite

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/stickies/internal/models"
)

// Instructions is the system prompt sent with every rewrite.
const Instructions = "You are a text assistant inside a sticky notes app where users keep short notes or code. " +
	"Only modify the note. Do not add comments or explanations and do not wrap the result in code blocks; " +
	"respond with the modified note text only."

// OpenAIConfig configures the OpenAI completer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI streams rewrites from an OpenAI-compatible chat completion API.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI creates a completer from cfg.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (o *OpenAI) Stream(ctx context.Context, prompt string, note models.Note) (DeltaStream, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Instructions},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(prompt, note)},
		},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Stream:      true,
	}
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rewrite: openai: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

func userPrompt(prompt string, note models.Note) string {
	return fmt.Sprintf("Requested change: %s\n\nNote title: %s\nNote language: %s\n\nNote:\n%s",
		prompt, note.DisplayTitle(), note.Language.Name(), note.Text.String())
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("rewrite: openai stream: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
