package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/logger"
)

// LocalBackend talks to a locally running Ollama daemon. It assumes the
// daemon is up and the model is already pulled.
type LocalBackend struct {
	client *api.Client
	model  string
	logger logger.Logger
}

func NewLocalBackend(cfg Config, l logger.Logger) (*LocalBackend, error) {
	base, err := url.Parse(cfg.endpoint())
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errs.Errorf(errs.Configuration, "create local backend", "invalid endpoint %q", cfg.endpoint())
	}
	if l == nil {
		l = logger.NewNullLogger()
	}

	return &LocalBackend{
		client: api.NewClient(base, cfg.httpClient()),
		model:  cfg.model(),
		logger: l.WithField("backend", "local").WithField("model", cfg.model()),
	}, nil
}

func (b *LocalBackend) Name() string {
	return fmt.Sprintf("local (%s)", b.model)
}

// Generate streams /api/generate and returns the concatenated reply.
func (b *LocalBackend) Generate(ctx context.Context, req Request, tick func()) (*Response, error) {
	if tick == nil {
		tick = func() {}
	}
	raw, err := withConnRetry(ctx, b.Name(), b.logger, func() (string, error) {
		return b.complete(ctx, req, tick)
	})
	if err != nil {
		return nil, err
	}
	return &Response{RawText: raw}, nil
}

func (b *LocalBackend) complete(ctx context.Context, req Request, tick func()) (string, error) {
	stream := true
	genReq := &api.GenerateRequest{
		Model:  b.model,
		Prompt: req.Prompt(),
		System: getSystemPrompt(req.Language),
		Stream: &stream,
	}

	var sb strings.Builder
	done := false
	b.logger.Debug("sending generate request")
	err := b.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		if resp.Done {
			done = true
		}
		tick()
		return nil
	})
	if err != nil {
		return "", err
	}
	if !done {
		return "", errs.Errorf(errs.MalformedResponse, "generate", "stream from %s ended before completion", b.model)
	}
	return sb.String(), nil
}
