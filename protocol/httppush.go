package protocol

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c360/twinbridge/client"
	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/consumer"
	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/publisher"
)

// HTTPPushFactory is the client.Factory for HTTP_PUSH connections,
// grounded on output/httppost.Output's POST-with-retry shape. HTTP_PUSH is
// publish-only in this core: Subscribe always fails, since an outbound
// HTTP endpoint has no stream for this core to consume from (spec.md §3
// describes Sources and Targets generically, but no example repo or the
// original implementation models an inbound HTTP source for this
// connection type).
type HTTPPushFactory struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURI    string
}

// NewHTTPPushFactory builds a Factory that posts to addresses resolved
// relative to (or overriding) conn.URI, using a client.Timeout of 30s as
// the teacher's DefaultConfig does.
func NewHTTPPushFactory(conn connection.Connection, logger *slog.Logger) *HTTPPushFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPPushFactory{
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURI:    conn.URI,
	}
}

// NewPublishHandle returns a handle that POSTs to address, resolved
// against the connection's base URI when address is not already absolute.
func (f *HTTPPushFactory) NewPublishHandle(_ context.Context, address string) (publisher.Handle, error) {
	target := address
	if u, err := url.Parse(address); err != nil || !u.IsAbs() {
		base, err := url.Parse(f.baseURI)
		if err != nil {
			return nil, errors.WrapInvalid(err, "protocol.HTTPPushFactory", "NewPublishHandle", "parse base uri")
		}
		rel, err := url.Parse(address)
		if err != nil {
			return nil, errors.WrapInvalid(err, "protocol.HTTPPushFactory", "NewPublishHandle", "parse address")
		}
		target = base.ResolveReference(rel).String()
	}
	return &httpHandle{client: f.httpClient, url: target}, nil
}

// Subscribe is unsupported for HTTP_PUSH connections.
func (f *HTTPPushFactory) Subscribe(context.Context, connection.Source, int, func(consumer.RawMessage)) (client.Subscription, error) {
	return nil, errors.WrapInvalid(
		errors.ErrConnectionConfigurationInvalid, "protocol.HTTPPushFactory", "Subscribe",
		"http-push connections do not support sources")
}

// Close releases the shared *http.Client's idle connections.
func (f *HTTPPushFactory) Close() error {
	f.httpClient.CloseIdleConnections()
	return nil
}

type httpHandle struct {
	client *http.Client
	url    string
}

// Send POSTs msg.Bytes to the handle's URL, copying every string header
// verbatim (spec.md §4.7 step 3 "copy string headers"), retrying the send
// once after 100 ms when the request fails or the response status is not
// 2xx, mirroring httppost.Output's
// attempt-then-retry loop scaled down for a single in-line attempt (the
// publisher worker's own handle-recreation backoff covers sustained
// failures, per spec.md §4.7).
func (h *httpHandle) Send(ctx context.Context, msg external.Message) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(msg.Bytes))
		if err != nil {
			return errors.WrapInvalid(err, "protocol.httpHandle", "Send", "build request")
		}
		if msg.ContentType != "" {
			req.Header.Set("Content-Type", msg.ContentType)
		}
		for k, v := range msg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = errors.WrapTransient(
				errBadStatus(resp.StatusCode), "protocol.httpHandle", "Send", "post to "+h.url)
			continue
		}
		return nil
	}
	return lastErr
}

func (h *httpHandle) Close() error { return nil }

type statusError int

func (s statusError) Error() string {
	return "http status " + http.StatusText(int(s))
}

func errBadStatus(code int) error { return statusError(code) }
