package types

import "time"

// DownloadOutcome reports one component's download as an immutable
// value. Success and failure travel through the same shape so callers
// aggregate outcomes instead of unwinding on the first error.
type DownloadOutcome struct {
	Component      string
	URL            string
	Path           string
	Success        bool
	FromCache      bool
	Verified       bool
	Bytes          int64
	Elapsed        time.Duration
	Attempts       int
	Retries        int
	Failure        FailureKind
	Message        string
	AttemptedURLs  []string
	ExpectedDigest string
	ActualDigest   string
}

// ProgressSnapshot is a point-in-time view of an in-flight download.
// BytesTotal is zero when the server did not announce a length, in
// which case Percent and ETA stay zero.
type ProgressSnapshot struct {
	Component  string
	URL        string
	BytesDone  int64
	BytesTotal int64
	Percent    float64
	Speed      float64
	AvgSpeed   float64
	ETA        time.Duration
	Elapsed    time.Duration
}
