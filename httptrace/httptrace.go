// Package httptrace traces net/http servers and clients with linkz.
//
// Middleware records incoming requests as incoming web request tracers and
// continues the caller's trace from the X-dynaTrace header. Transport records
// outgoing requests and adds the header for the next hop.
package httptrace

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/zoobzio/linkz"
)

// Option configures Middleware and Transport.
type Option func(*config)

type config struct {
	headers map[string]bool
}

// WithCapturedHeaders records the named request and response headers.
// Header values are not recorded otherwise.
func WithCapturedHeaders(names ...string) Option {
	return func(c *config) {
		for _, name := range names {
			c.headers[http.CanonicalHeaderKey(name)] = true
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{headers: make(map[string]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// captured returns the recorded subset of h, ordered by name.
func (c *config) captured(h http.Header) []linkz.Header {
	if len(c.headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.headers))
	for name := range h {
		if c.headers[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []linkz.Header
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, linkz.Header{Name: name, Value: v})
		}
	}
	return out
}

// Middleware traces each request served by the wrapped handler as an
// incoming web request of app.
func Middleware(sdk *linkz.SDK, app linkz.WebApplicationInfoHandle, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := sdk.CreateIncomingWebRequestTracer(app, requestURL(r), r.Method)
			if h == linkz.TracerHandle(linkz.InvalidHandle) {
				next.ServeHTTP(w, r)
				return
			}
			defer sdk.End(h)

			if tag := r.Header.Get(linkz.HTTPHeaderName); tag != "" {
				sdk.SetIncomingStringTag(h, tag)
			}
			if r.RemoteAddr != "" {
				sdk.SetRemoteAddress(h, r.RemoteAddr)
			}
			if headers := cfg.captured(r.Header); len(headers) > 0 {
				sdk.AddRequestHeaders(h, headers...)
			}
			if query := r.URL.Query(); len(query) > 0 {
				sdk.AddParameters(h, parameters(query)...)
			}
			sdk.Start(h)

			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					sdk.Error(h, "panic", fmt.Sprint(p))
					sdk.SetStatusCode(h, http.StatusInternalServerError)
					panic(p)
				}
				sdk.SetStatusCode(h, int32(rw.status))
				if headers := cfg.captured(rw.Header()); len(headers) > 0 {
					sdk.AddResponseHeaders(h, headers...)
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return r.URL.RequestURI()
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// parameters flattens query values, ordered by name. The body is never read.
func parameters(values url.Values) []linkz.Header {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []linkz.Header
	for _, name := range names {
		for _, v := range values[name] {
			out = append(out, linkz.Header{Name: name, Value: v})
		}
	}
	return out
}

// statusRecorder remembers the status written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
