package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultAttempts = 3
	AttemptTimeout  = 5 * time.Second

	maxResponseBytes = 1 << 20
)

var (
	ErrMalformedResponse = errors.New("malformed transcode response")
	ErrAttemptsExhausted = errors.New("transcode request failed")
)

// TranscodeResponse is the body of a ProcessCosMedia reply.
type TranscodeResponse struct {
	Code      int    `json:"code"`
	CodeDesc  string `json:"codeDesc,omitempty"`
	Message   string `json:"message,omitempty"`
	VodTaskID string `json:"vodTaskId,omitempty"`
}

// APIError is a well-formed reply with a non-zero code.
type APIError struct {
	Code     int
	CodeDesc string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcode API returned code %d (%s): %s", e.Code, e.CodeDesc, e.Message)
}

// Dispatcher sends a signed request and reports the final outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, signedURL string) (*TranscodeResponse, error)
}

// NewHTTPClient returns a client with the per-attempt timeout. An empty proxy
// falls back to the proxy environment variables.
func NewHTTPClient(proxy string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   AttemptTimeout,
		Transport: otelhttp.NewTransport(transport),
	}, nil
}

// HTTPDispatcher calls the transcode API with a fixed number of attempts and
// no delay between them.
type HTTPDispatcher struct {
	HTTPClient *http.Client
	API        *API
	Logger     *zap.Logger
	Metrics    *Metrics
	// Attempts defaults to DefaultAttempts.
	Attempts int
}

// Dispatch returns the first successful reply. When every attempt fails the
// error wraps ErrAttemptsExhausted and the last attempt's error.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, signedURL string) (*TranscodeResponse, error) {
	attempts := d.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	logger := d.logger()
	start := time.Now()
	defer func() { d.Metrics.observeDispatch(time.Since(start)) }()

	var lastErr error
	for i := 1; i <= attempts; i++ {
		logger.Debug("sending transcode request", zap.Int("attempt", i), zap.String("url", signedURL))
		resp, err := d.attempt(ctx, signedURL)
		if err == nil {
			d.Metrics.attempt(AttemptSuccess)
			return resp, nil
		}
		lastErr = err
		d.Metrics.attempt(attemptResult(err))
		logger.Warn("transcode request failed",
			zap.Int("attempt", i),
			zap.Int("maxAttempts", attempts),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

func (d *HTTPDispatcher) attempt(ctx context.Context, signedURL string) (*TranscodeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcode request: %w", err)
	}

	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: AttemptTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send transcode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcode response: %w", err)
	}
	return d.decode(body)
}

func (d *HTTPDispatcher) decode(body []byte) (*TranscodeResponse, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)
	}
	if d.API != nil {
		if err := d.API.Validate(SchemaTranscodeResponse, raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}

	var out TranscodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out.Code != 0 {
		return nil, &APIError{Code: out.Code, CodeDesc: out.CodeDesc, Message: out.Message}
	}
	return &out, nil
}

func (d *HTTPDispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func attemptResult(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return AttemptAPIError
	case errors.Is(err, ErrMalformedResponse):
		return AttemptBadResponse
	default:
		return AttemptTransport
	}
}
