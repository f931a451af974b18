package adapters

import (
	"sync"

	"github.com/rs/zerolog"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

const notifierBufferSize = 256

// LogNotifierAdapter turns batch events into structured log lines. A
// buffered channel decouples it from the install workers: when the
// buffer is full the event is dropped, never the install slowed down.
type LogNotifierAdapter struct {
	logger zerolog.Logger
	events chan func()
	done   chan struct{}
	once   sync.Once
}

func NewLogNotifierAdapter(logger zerolog.Logger) *LogNotifierAdapter {
	a := &LogNotifierAdapter{
		logger: logger,
		events: make(chan func(), notifierBufferSize),
		done:   make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *LogNotifierAdapter) Outcome(outcome types.DownloadOutcome) {
	a.enqueue(func() {
		event := a.logger.Info()
		if !outcome.Success {
			event = a.logger.Warn()
		}
		event = event.
			Str("component", outcome.Component).
			Bool("success", outcome.Success).
			Bool("from_cache", outcome.FromCache).
			Int("attempts", outcome.Attempts).
			Int64("bytes", outcome.Bytes).
			Dur("elapsed", outcome.Elapsed)
		if outcome.URL != "" {
			event = event.Str("url", outcome.URL)
		}
		if outcome.Failure != types.FailureKindNone {
			event = event.Str("failure", string(outcome.Failure)).Str("reason", outcome.Message)
		}
		event.Msg("download finished")
	})
}

func (a *LogNotifierAdapter) Progress(snapshot types.ProgressSnapshot) {
	a.enqueue(func() {
		a.logger.Debug().
			Str("component", snapshot.Component).
			Int64("bytes_done", snapshot.BytesDone).
			Int64("bytes_total", snapshot.BytesTotal).
			Float64("percent", snapshot.Percent).
			Float64("speed", snapshot.Speed).
			Dur("eta", snapshot.ETA).
			Msg("download progress")
	})
}

func (a *LogNotifierAdapter) Installed(record types.InstallationRecord) {
	a.enqueue(func() {
		event := a.logger.Info()
		if record.Status != types.RecordStatusCompleted {
			event = a.logger.Warn()
		}
		event = event.
			Str("component", record.Component).
			Str("version", record.Version).
			Str("status", string(record.Status)).
			Int("effects", len(record.Effects))
		if record.Error != "" {
			event = event.Str("error", record.Error)
		}
		event.Msg("install finished")
	})
}

// Close flushes buffered events and stops the drain goroutine. Events
// sent after Close are logged synchronously on the caller's goroutine.
func (a *LogNotifierAdapter) Close() {
	a.once.Do(func() {
		close(a.events)
		<-a.done
	})
}

func (a *LogNotifierAdapter) enqueue(emit func()) {
	defer func() {
		// Sending on the closed channel after Close: log inline.
		if recover() != nil {
			emit()
		}
	}()
	select {
	case a.events <- emit:
	default:
	}
}

func (a *LogNotifierAdapter) drain() {
	defer close(a.done)
	for emit := range a.events {
		emit()
	}
}

var _ ports.NotifierPort = (*LogNotifierAdapter)(nil)
