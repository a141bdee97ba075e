// Package clients implements HTTP adapters for the collaborator services:
// the users/follow-graph service, the feed ranking service and the metrics service.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/observability"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const maxErrorBody = 64 << 10

// Signer mints a bearer token that lets this service act as the caller.
type Signer interface {
	Sign(id models.Identity) (string, error)
}

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Field      string
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Service, e.Operation, e.StatusCode)
}

// errorBody accepts both the plain {field, detail} shape and problem details.
type errorBody struct {
	Field       string `json:"field"`
	CustomField string `json:"custom-field"`
	Detail      string `json:"detail"`
}

// baseClient performs JSON requests against one collaborator.
type baseClient struct {
	service string
	baseURL string
	http    *http.Client
	signer  Signer
}

func newBaseClient(service, baseURL string, timeout time.Duration, signer Signer) baseClient {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return baseClient{service: service, baseURL: baseURL, http: hc, signer: signer}
}

// do sends body as JSON and decodes a 2xx response into out. When as is set the
// request carries a token signed for that identity.
func (c *baseClient) do(ctx context.Context, op, method, path string, as *models.Identity, body, out interface{}) (err error) {
	span, ctx := observability.NewClientSpan(ctx, c.service, op)
	defer span.End()
	done := observability.TrackDownstream(c.service, op)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.SetError(err)
		}
		done(outcome)
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil && c.signer != nil {
		token, err := c.signer.Sign(*as)
		if err != nil {
			return fmt.Errorf("sign %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.AddAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Service: c.service, Operation: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&eb) == nil {
			statusErr.Field = eb.Field
			if statusErr.Field == "" {
				statusErr.Field = eb.CustomField
			}
			statusErr.Detail = eb.Detail
		}
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// translate maps a collaborator failure onto the application's error types.
// notFound is returned for 404 responses; nil falls back to a service error.
func translate(ctx context.Context, err error, notFound error) error {
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		middleware.Logger.WarnContext(ctx, "collaborator unreachable", slog.String("error", err.Error()))
		return models.NewServiceUnavailableError(err)
	}

	switch statusErr.StatusCode {
	case http.StatusBadRequest:
		return models.NewValidationError(statusErr.Field, statusErr.Detail)
	case http.StatusUnauthorized:
		return models.NewUnauthorizedError()
	case http.StatusForbidden:
		return models.NewBlockedError()
	case http.StatusNotFound:
		if notFound != nil {
			return notFound
		}
	}

	middleware.Logger.WarnContext(ctx, "collaborator request failed",
		slog.String("service", statusErr.Service),
		slog.String("operation", statusErr.Operation),
		slog.Int("status", statusErr.StatusCode),
	)
	return models.NewServiceUnavailableError(err)
}
