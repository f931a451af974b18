package app

import (
	"time"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/ports"
)

// Service wires the process-wide collaborators. Directory-scoped
// adapters (cache, state ledger, mirror map) are built per request from
// the resolved settings, so one Service can serve requests against
// different catalogs and directories. A nil Connectivity means each
// batch probes its own download hosts.
type Service struct {
	Catalog      ports.CatalogPort
	Fetcher      ports.FetchPort
	Runner       ports.InstallerPort
	Extractor    ports.ExtractorPort
	Connectivity ports.ConnectivityPort
	Notifier     ports.NotifierPort
	Clock        func() time.Time
}

func NewService() Service {
	return Service{
		Catalog:   adapters.NewCatalogFileAdapter(),
		Fetcher:   adapters.NewHTTPFetcher(),
		Runner:    adapters.NewExecInstallerAdapter(),
		Extractor: adapters.NewArchiveExtractorAdapter(),
		Clock:     time.Now,
	}
}

func timeNow(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
