package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/logger"
)

// CloudBackend talks to Mistral's OpenAI-compatible chat completion API.
type CloudBackend struct {
	client *openai.Client
	model  string
	logger logger.Logger
}

// NewCloudBackend creates a cloud backend. A missing API key is a
// configuration error and no client is built.
func NewCloudBackend(cfg Config, l logger.Logger) (*CloudBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.Errorf(errs.Configuration, "create cloud backend", "MISTRAL_API_KEY is not set")
	}
	if l == nil {
		l = logger.NewNullLogger()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.endpoint()
	clientCfg.HTTPClient = cfg.httpClient()

	return &CloudBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.model(),
		logger: l.WithField("backend", "cloud").WithField("model", cfg.model()),
	}, nil
}

func (c *CloudBackend) Name() string {
	return fmt.Sprintf("cloud (%s)", c.model)
}

// Generate streams a chat completion and returns the concatenated reply.
func (c *CloudBackend) Generate(ctx context.Context, req Request, tick func()) (*Response, error) {
	if tick == nil {
		tick = func() {}
	}
	raw, err := withConnRetry(ctx, c.Name(), c.logger, func() (string, error) {
		return c.complete(ctx, req, tick)
	})
	if err != nil {
		return nil, err
	}
	return &Response{RawText: raw}, nil
}

func (c *CloudBackend) complete(ctx context.Context, req Request, tick func()) (string, error) {
	c.logger.Debug("opening chat completion stream")
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: getSystemPrompt(req.Language),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt(),
			},
		},
		Stream: true,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunks++
		b.WriteString(resp.Choices[0].Delta.Content)
		tick()
	}

	if chunks == 0 {
		return "", errs.Errorf(errs.MalformedResponse, "generate", "no choices returned from %s", c.model)
	}
	c.logger.WithField("chunks", chunks).Debug("chat completion stream finished")
	return b.String(), nil
}
