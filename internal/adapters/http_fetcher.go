package adapters

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/shared"
)

const (
	fetcherUserAgent = "devkit-installer/1.0"
	fetcherRedirects = 10
	errorBodyLimit   = 512
)

// HTTPFetcher implements ports.FetchPort over net/http. Request
// lifetimes are bounded by the caller's context, not a client-level
// timeout, so a slow large artifact is not cut off mid-stream.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= fetcherRedirects {
					return errbuilder.New().
						WithCode(errbuilder.CodeInternal).
						WithMsg("too many redirects")
				}
				return nil
			},
		},
	}
}

// Get opens a streaming response for the artifact URL. Any non-2xx
// status is an error; the caller owns the returned body.
func (f *HTTPFetcher) Get(ctx context.Context, url string) (ports.FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.FetchResponse{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid download url").
			WithCause(err)
	}
	req.Header.Set("User-Agent", fetcherUserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return ports.FetchResponse{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("request failed").
			WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return ports.FetchResponse{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected response status").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, url, string(body)))
	}
	return ports.FetchResponse{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
	}, nil
}

// Probe checks reachability with a HEAD request, falling back to a GET
// whose body is discarded for servers that reject HEAD.
func (f *HTTPFetcher) Probe(ctx context.Context, url string) error {
	err := f.probeOnce(ctx, http.MethodHead, url)
	if err == nil {
		return nil
	}
	return f.probeOnce(ctx, http.MethodGet, url)
}

func (f *HTTPFetcher) probeOnce(ctx context.Context, method string, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid probe url").
			WithCause(err)
	}
	req.Header.Set("User-Agent", fetcherUserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("probe failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
	if resp.StatusCode >= 400 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("probe rejected").
			WithCause(shared.HTTPStatusError(resp.StatusCode, url))
	}
	return nil
}
