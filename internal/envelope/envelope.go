// Package envelope wraps outbound calls to the MedAI backend with timeout,
// bounded retries, exponential backoff, and status classification.
package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/griff-web/medai-client/internal/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxJitter   = 300 * time.Millisecond

	maxResponseBytes = 4 << 20
)

// FilePayload is a binary body serialized as one multipart form file part.
type FilePayload struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

// Request describes one logical outbound call.
type Request struct {
	Method string
	URL    string
	// Token, when non-empty, is sent as an Authorization bearer header.
	Token string
	// JSON, when non-nil, is marshalled as an application/json body.
	JSON any
	// File, when non-nil, is sent as multipart/form-data together with Fields.
	File   *FilePayload
	Fields map[string]string
}

// Envelope issues requests with a per-attempt deadline and retries transient
// failures with exponential backoff. The zero value is not usable; call New.
type Envelope struct {
	client       *http.Client
	logger       *slog.Logger
	timeout      time.Duration
	maxAttempts  int
	baseDelay    time.Duration
	maxJitter    time.Duration
	sleep        func(context.Context, time.Duration) error
	onAuthReject func()
}

// Option adjusts envelope construction.
type Option func(*Envelope)

// WithTransport replaces the underlying round tripper. Used by tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Envelope) { e.client = &http.Client{Transport: rt} }
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Envelope) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetryPolicy sets attempt count and backoff constants. A zero maxJitter
// disables jitter.
func WithRetryPolicy(maxAttempts int, baseDelay, maxJitter time.Duration) Option {
	return func(e *Envelope) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			e.baseDelay = baseDelay
		}
		e.maxJitter = maxJitter
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Envelope) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuthRejectHook registers the callback fired exactly once per logical
// request when the backend answers 401 or 403. Callers wire this to the
// session store's Clear.
func WithAuthRejectHook(fn func()) Option {
	return func(e *Envelope) { e.onAuthReject = fn }
}

// WithSleep replaces the backoff sleeper. Used by tests to observe delays
// without waiting.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Envelope) { e.sleep = fn }
}

// New constructs an Envelope with the default policy (30s timeout, three
// attempts, 500ms base delay, up to 300ms jitter).
func New(opts ...Option) *Envelope {
	e := &Envelope{
		client:      &http.Client{},
		logger:      slog.Default(),
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxJitter:   defaultMaxJitter,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do performs one logical request and returns the raw JSON body on success.
// Failures come back as *Error; caller cancellation comes back as the bare
// context error and must not be shown to the user.
func (e *Envelope) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	requestID := uuid.NewString()

	var last *Error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt - 1)
			e.logger.Debug("retrying request",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := e.sleep(ctx, delay); err != nil {
				return nil, classifyContextErr(err)
			}
		}

		body, envErr := e.attempt(ctx, req, requestID)
		if envErr == nil {
			metrics.ObserveAttempt(metrics.OutcomeSuccess)
			return body, nil
		}

		var classified *Error
		if !errors.As(envErr, &classified) {
			// Caller cancelled: not a failure, nothing to surface.
			metrics.ObserveAttempt(metrics.OutcomeCancelled)
			return nil, envErr
		}

		if classified.Kind == KindAuthRejected {
			metrics.ObserveAttempt(metrics.OutcomeError)
			if e.onAuthReject != nil {
				e.onAuthReject()
			}
			return nil, classified
		}

		retryable := isRetryable(classified)
		e.logger.Warn("request attempt failed",
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.String("kind", string(classified.Kind)),
			slog.Int("status", classified.Status),
			slog.Bool("retryable", retryable))
		if !retryable || attempt == e.maxAttempts-1 {
			metrics.ObserveAttempt(metrics.OutcomeError)
			return nil, classified
		}
		metrics.ObserveAttempt(metrics.OutcomeRetry)
		last = classified
	}

	return nil, last
}

func (e *Envelope) attempt(ctx context.Context, req Request, requestID string) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := e.buildRequest(attemptCtx, req, requestID)
	if err != nil {
		return nil, NewError(KindNetworkError, err)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// The parent context ended, not the attempt deadline.
			return nil, classifyContextErr(ctx.Err())
		case attemptCtx.Err() == context.DeadlineExceeded:
			return nil, NewError(KindTimeout, err)
		default:
			return nil, NewError(KindNetworkError, err)
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewStatusError(KindAuthRejected, resp.StatusCode, nil)
	case resp.StatusCode >= 500:
		return nil, NewStatusError(KindServerError, resp.StatusCode, nil)
	case resp.StatusCode >= 400:
		return nil, NewStatusError(KindServerError, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContextErr(ctx.Err())
		}
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, NewError(KindTimeout, err)
		}
		return nil, NewError(KindNetworkError, err)
	}
	if !json.Valid(body) {
		return nil, NewError(KindInvalidSchema, fmt.Errorf("response body is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

func (e *Envelope) buildRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.File != nil:
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		part, err := writer.CreatePart(filePartHeader(req.File))
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(req.File.Data); err != nil {
			return nil, fmt.Errorf("write form file: %w", err)
		}
		for name, value := range req.Fields {
			if err := writer.WriteField(name, value); err != nil {
				return nil, fmt.Errorf("write form field %s: %w", name, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("finalise form: %w", err)
		}
		body = buf
		contentType = writer.FormDataContentType()
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	return httpReq, nil
}

func filePartHeader(file *FilePayload) textproto.MIMEHeader {
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, file.FieldName, file.Filename))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	return header
}

func (e *Envelope) backoff(failedAttempt int) time.Duration {
	delay := e.baseDelay << uint(failedAttempt)
	if e.maxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(e.maxJitter)))
	}
	return delay
}

func isRetryable(err *Error) bool {
	switch err.Kind {
	case KindTimeout, KindNetworkError:
		return true
	case KindServerError:
		return err.Status >= 500
	default:
		return false
	}
}

// classifyContextErr maps a context error to the surfaced form: deadline
// exhaustion is a Timeout failure, caller cancellation passes through bare.
func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// JoinURL resolves an endpoint path against the configured base URL.
func JoinURL(baseURL, endpointPath string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpointPath, "/")
}
