package remote

import (
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = time.Second
	DefaultMethod  = http.MethodPost
)

// Spec describes a single remote endpoint.
type Spec struct {
	Headers  map[string]string
	Endpoint string
	Method   string
	Timeout  time.Duration
	Backoff  time.Duration
	Retries  int
}

// Defaults are shared by every remote step built from them.
type Defaults struct {
	Headers map[string]string
	BaseURL string
	Method  string
	Timeout time.Duration
	Backoff time.Duration
	Retries int
}

func NewDefaults() Defaults {
	return Defaults{
		Headers: map[string]string{},
		Method:  DefaultMethod,
		Timeout: DefaultTimeout,
	}
}

// ResolveEndpoint joins endpointOrPath to the base URL unless it is already absolute.
func (d Defaults) ResolveEndpoint(endpointOrPath string) string {
	if strings.HasPrefix(endpointOrPath, "http://") || strings.HasPrefix(endpointOrPath, "https://") {
		return endpointOrPath
	}

	if d.BaseURL == "" {
		return endpointOrPath
	}

	baseSlash := strings.HasSuffix(d.BaseURL, "/")
	pathSlash := strings.HasPrefix(endpointOrPath, "/")

	switch {
	case baseSlash && pathSlash:
		return d.BaseURL + endpointOrPath[1:]
	case !baseSlash && !pathSlash:
		return d.BaseURL + "/" + endpointOrPath
	default:
		return d.BaseURL + endpointOrPath
	}
}

// MergeHeaders returns a copy of the default headers overridden by overrides.
func (d Defaults) MergeHeaders(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(d.Headers)+len(overrides))
	for k, v := range d.Headers {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return merged
}

// Spec returns the spec of endpointOrPath filled with the defaults.
func (d Defaults) Spec(endpointOrPath string) Spec {
	return Spec{
		Endpoint: d.ResolveEndpoint(endpointOrPath),
		Method:   d.Method,
		Timeout:  d.Timeout,
		Retries:  d.Retries,
		Headers:  d.MergeHeaders(nil),
		Backoff:  d.Backoff,
	}
}
