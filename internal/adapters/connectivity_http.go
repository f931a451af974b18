package adapters

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"devkit-installer/internal/ports"
)

const defaultConnectivityTimeout = 5 * time.Second

// defaultProbeURLs are consulted when the caller has no batch-specific
// hosts to check. Both serve tiny, uncached responses.
var defaultProbeURLs = []string{
	"https://connectivitycheck.gstatic.com/generate_204",
	"https://www.cloudflare.com/cdn-cgi/trace",
}

// HTTPConnectivityAdapter decides whether the network is usable by
// probing a small set of URLs in parallel. One reachable endpoint is
// enough; the remaining probes are cancelled as soon as any answers.
type HTTPConnectivityAdapter struct {
	Fetcher   ports.FetchPort
	ProbeURLs []string
	Timeout   time.Duration
}

func NewHTTPConnectivityAdapter(fetcher ports.FetchPort, probeURLs []string) HTTPConnectivityAdapter {
	return HTTPConnectivityAdapter{
		Fetcher:   fetcher,
		ProbeURLs: probeURLs,
		Timeout:   defaultConnectivityTimeout,
	}
}

func (a HTTPConnectivityAdapter) IsOnline(ctx context.Context) bool {
	urls := a.ProbeURLs
	if len(urls) == 0 {
		urls = defaultProbeURLs
	}
	probeCtx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	var online atomic.Bool
	group, groupCtx := errgroup.WithContext(probeCtx)
	for _, url := range urls {
		group.Go(func() error {
			if err := a.Fetcher.Probe(groupCtx, url); err == nil {
				online.Store(true)
				cancel()
			}
			return nil
		})
	}
	_ = group.Wait()

	if !online.Load() {
		log.Ctx(ctx).Warn().
			Strs("probed", urls).
			Msg("no connectivity probe answered, treating host as offline")
	}
	return online.Load()
}

func (a HTTPConnectivityAdapter) timeout() time.Duration {
	if a.Timeout <= 0 {
		return defaultConnectivityTimeout
	}
	return a.Timeout
}
