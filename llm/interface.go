package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/logger"
)

// Backend turns one Request into one Response through a specific provider.
type Backend interface {
	// Generate runs a single completion. tick, when non-nil, is called each
	// time the provider makes progress; it never receives content.
	Generate(ctx context.Context, req Request, tick func()) (*Response, error)
	// Name identifies the backend in diagnostics.
	Name() string
}

// Request is one code-generation request, built once and consumed by one Generate call.
type Request struct {
	SourceText  string // existing code; empty when generating from scratch
	Instruction string // never empty once built
	Language    string // optional hint, e.g. "python"
}

// HasSource reports whether the request carries existing code.
func (r Request) HasSource() bool {
	return r.SourceText != ""
}

// Response holds the provider's reply. Backends fill RawText only;
// ExtractedCode is derived from it by the pipeline.
type Response struct {
	RawText       string
	ExtractedCode string
}

// Provider selects a backend variant.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderCloud Provider = "cloud"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderLocal, ProviderCloud:
		return p, nil
	default:
		return "", errs.Errorf(errs.Configuration, "parse provider", "unknown backend %q (supported: local, cloud)", s)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	if p == ProviderLocal {
		return "qwen2.5-coder"
	}
	return "codestral-latest"
}

// DefaultEndpoint returns the endpoint used when none is configured.
func DefaultEndpoint(p Provider) string {
	if p == ProviderLocal {
		return "http://localhost:11434"
	}
	return "https://api.mistral.ai/v1"
}

// Config holds backend client configuration.
type Config struct {
	Provider Provider
	APIKey   string // required for ProviderCloud
	Model    string
	Endpoint string

	// HTTPClient overrides the per-invocation client. Tests use it to inject transports.
	HTTPClient *http.Client
}

func (cfg Config) model() string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return DefaultModel(cfg.Provider)
}

func (cfg Config) endpoint() string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/")
	}
	return DefaultEndpoint(cfg.Provider)
}

func (cfg Config) httpClient() *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return &http.Client{}
}

// New builds the Backend selected by cfg.Provider. There is no fallback
// between providers.
func New(cfg Config, l logger.Logger) (Backend, error) {
	if l == nil {
		l = logger.NewNullLogger()
	}
	switch cfg.Provider {
	case ProviderLocal:
		b, err := NewLocalBackend(cfg, l)
		if err != nil {
			return nil, err
		}
		return b, nil
	case ProviderCloud:
		b, err := NewCloudBackend(cfg, l)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errs.E(errs.Configuration, "create backend", fmt.Errorf("unsupported provider %q", cfg.Provider))
	}
}
