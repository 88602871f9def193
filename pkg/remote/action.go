// Package remote calls an HTTP endpoint as a pipeline action.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

var (
	ErrInvalidSpec = errors.New("invalid remote spec")
	ErrHTTPStatus  = errors.New("unexpected http status")
)

// StatusError is returned when the endpoint answers with a non 2xx status.
type StatusError struct {
	Body string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d body=%s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Option configures a remote action.
type Option func(o *options)

type options struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithCircuitBreaker runs every attempt through breaker.
func WithCircuitBreaker(breaker *gobreaker.CircuitBreaker) Option {
	return func(o *options) {
		o.breaker = breaker
	}
}

// WithRateLimiter waits on limiter before every attempt.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Action sends the context value to an endpoint and replaces it with the decoded response.
type Action[C any] struct {
	codec Codec[C]
	opts  options
	spec  Spec
}

// New validates spec and returns the action calling it.
func New[C any](spec Spec, codec Codec[C], opts ...Option) (*Action[C], error) {
	if spec.Endpoint == "" {
		return nil, errors.Wrap(ErrInvalidSpec, "endpoint must be set")
	}

	if codec == nil {
		return nil, errors.Wrap(ErrInvalidSpec, "codec must be set")
	}

	if spec.Retries < 0 {
		return nil, errors.Wrapf(ErrInvalidSpec, "retries must be >= 0, got %d", spec.Retries)
	}

	spec.Method = strings.ToUpper(spec.Method)
	if spec.Method == "" {
		spec.Method = DefaultMethod
	}

	if spec.Method != http.MethodGet && spec.Method != http.MethodPost {
		return nil, errors.Wrapf(ErrInvalidSpec, "unsupported method %s", spec.Method)
	}

	if spec.Timeout <= 0 {
		spec.Timeout = DefaultTimeout
	}

	o := options{client: http.DefaultClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Action[C]{spec: spec, codec: codec, opts: o}, nil
}

// Post is New with the POST method.
func Post[C any](spec Spec, codec Codec[C], opts ...Option) (*Action[C], error) {
	spec.Method = http.MethodPost

	return New(spec, codec, opts...)
}

// Get is New with the GET method, the encoded value is sent as the query string.
func Get[C any](spec Spec, codec Codec[C], opts ...Option) (*Action[C], error) {
	spec.Method = http.MethodGet

	return New(spec, codec, opts...)
}

func (a *Action[C]) Spec() Spec {
	return a.spec
}

func (a *Action[C]) Apply(ctx context.Context, in C, _ *pipeline.StepControl) pipeline.Outcome[C] {
	out, err := a.Invoke(ctx, in)
	if err != nil {
		return pipeline.Fail[C](err)
	}

	return pipeline.Continue(out)
}

// Invoke calls the endpoint up to Retries+1 times, waiting attempt*Backoff between
// attempts. On failure it returns in unchanged with the last error.
func (a *Action[C]) Invoke(ctx context.Context, in C) (C, error) {
	body, err := a.codec.Encode(in)
	if err != nil {
		return in, errors.Wrap(err, "unable to encode request")
	}

	var lastErr error

	attempts := a.spec.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			err = sleep(ctx, time.Duration(attempt)*a.spec.Backoff)
			if err != nil {
				lastErr = err
				break
			}
		}

		out, attemptErr := a.attempt(ctx, in, body)
		if attemptErr == nil {
			return out, nil
		}

		lastErr = attemptErr
		a.opts.logger.Debug("remote attempt failed",
			zap.String("endpoint", a.spec.Endpoint), zap.Int("attempt", attempt+1), zap.Error(attemptErr))

		if ctx.Err() != nil {
			break
		}
	}

	a.opts.logger.Warn("remote call failed", zap.String("endpoint", a.spec.Endpoint), zap.Error(lastErr))

	return in, errors.Wrapf(lastErr, "%s %s", a.spec.Method, a.spec.Endpoint)
}

func (a *Action[C]) attempt(ctx context.Context, in C, body []byte) (C, error) {
	if a.opts.limiter != nil {
		err := a.opts.limiter.Wait(ctx)
		if err != nil {
			return in, errors.Wrap(err, "rate limited")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.spec.Timeout)
	defer cancel()

	var (
		resp []byte
		err  error
	)

	if a.opts.breaker != nil {
		var res interface{}

		res, err = a.opts.breaker.Execute(func() (interface{}, error) {
			return a.do(ctx, body)
		})
		if err == nil {
			resp, _ = res.([]byte)
		}
	} else {
		resp, err = a.do(ctx, body)
	}

	if err != nil {
		return in, err
	}

	return a.codec.Decode(in, resp)
}

func (a *Action[C]) do(ctx context.Context, body []byte) ([]byte, error) {
	endpoint := a.spec.Endpoint

	var reqBody io.Reader
	if a.spec.Method == http.MethodGet {
		endpoint = withQuery(endpoint, string(body))
	} else {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, a.spec.Method, endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create request")
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range a.spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.opts.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "unable to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

func withQuery(endpoint, query string) string {
	switch {
	case query == "":
		return endpoint
	case strings.Contains(endpoint, "?"):
		return endpoint + "&" + query
	default:
		return endpoint + "?" + query
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ pipeline.Action[string] = (*Action[string])(nil)
