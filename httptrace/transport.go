package httptrace

import (
	"fmt"
	"net/http"

	"github.com/zoobzio/linkz"
)

// Transport is an http.RoundTripper that traces each request as an outgoing
// web request. The tracer ends when the response headers arrive.
//
// A request must be sent from the goroutine that traces the surrounding
// operation for the outgoing tracer to be linked to it.
type Transport struct {
	sdk  *linkz.SDK
	base http.RoundTripper
	cfg  *config
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(sdk *linkz.SDK, base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{sdk: sdk, base: base, cfg: newConfig(opts)}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	h := t.sdk.CreateOutgoingWebRequestTracer(req.URL.String(), req.Method)
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		return t.base.RoundTrip(req)
	}
	defer t.sdk.End(h)

	if headers := t.cfg.captured(req.Header); len(headers) > 0 {
		t.sdk.AddRequestHeaders(h, headers...)
	}
	t.sdk.Start(h)

	// RoundTrippers must not modify the caller's request.
	if tag := t.sdk.OutgoingStringTag(h); tag != "" {
		req = req.Clone(req.Context())
		req.Header.Set(linkz.HTTPHeaderName, tag)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.sdk.Error(h, fmt.Sprintf("%T", err), err.Error())
		return nil, err
	}

	t.sdk.SetStatusCode(h, int32(resp.StatusCode))
	if headers := t.cfg.captured(resp.Header); len(headers) > 0 {
		t.sdk.AddResponseHeaders(h, headers...)
	}
	return resp, nil
}
