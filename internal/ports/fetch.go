package ports

import (
	"context"
	"io"
)

// FetchResponse is an open artifact stream. ContentLength is -1 when
// the server did not announce one. The caller owns Body and must close
// it.
type FetchResponse struct {
	Body          io.ReadCloser
	ContentLength int64
}

// FetchPort retrieves artifact bytes over the network. Get returns an
// error for any non-2xx status; transient classification happens above
// this port.
type FetchPort interface {
	Get(ctx context.Context, url string) (FetchResponse, error)

	// Probe checks reachability of a URL without transferring the
	// artifact body. Diagnostics only.
	Probe(ctx context.Context, url string) error
}
