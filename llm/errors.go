package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"syscall"

	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/logger"
)

// classify maps a provider or transport failure onto an errs.Kind.
func classify(ctx context.Context, backend string, err error) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		if e.Backend == "" {
			return e.WithBackend(backend)
		}
		return err
	}

	kind := kindOf(ctx, err)
	return errs.E(kind, "generate", err).WithBackend(backend)
}

func kindOf(ctx context.Context, err error) errs.Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.Timeout
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return errs.Cancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Timeout
	}
	if isConnectionError(err) {
		return errs.Connection
	}

	if status := statusCode(err); status != 0 {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errs.Auth
		default:
			return errs.Provider
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, openai.ErrTooManyEmptyStreamMessages) {
		return errs.MalformedResponse
	}
	return errs.Provider
}

// isConnectionError reports resets and refused or failed dials.
func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// withConnRetry runs attempt, and runs it once more only when the first
// failure is connection-level. Every other failure is returned as is.
func withConnRetry(ctx context.Context, backend string, l logger.Logger, attempt func() (string, error)) (string, error) {
	raw, err := attempt()
	if err == nil {
		return raw, nil
	}

	err = classify(ctx, backend, err)
	if !errs.Is(err, errs.Connection) {
		return "", err
	}

	l.WithField("error", err.Error()).Warn("connection failed, retrying once")
	raw, err = attempt()
	if err != nil {
		return "", classify(ctx, backend, err)
	}
	return raw, nil
}
