package app

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/core"
	"devkit-installer/internal/policies"
	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// Install runs one batch through the planning, download and install
// phases. Component-level failures are reported inside the BatchResult;
// the returned error is reserved for planning problems (bad catalog,
// cycles, conflicts, offline) that stop the batch before any work.
func (s Service) Install(ctx context.Context, req InstallRequest) (types.BatchResult, error) {
	plan, err := s.planBatch(ctx, req)
	if err != nil {
		return types.BatchResult{}, err
	}
	settings := plan.settings

	if !s.connectivityFor(plan.selected).IsOnline(ctx) {
		return types.BatchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("offline: no download host is reachable; connect to a network and retry")
	}

	state := adapters.NewDirStateAdapter(settings.StateDir)
	installed, err := state.List()
	if err != nil {
		return types.BatchResult{}, err
	}
	if err := policies.CheckConflicts(plan.selected, installed); err != nil {
		return types.BatchResult{}, err
	}

	cache := adapters.NewDirCacheAdapter(settings.CacheDir)
	resolver := core.NewMirrorResolver(adapters.NewMirrorMapFileAdapter(settings.MirrorMap), s.Fetcher)
	coordinator := core.NewRetryCoordinator(core.NewDownloadEngine(s.Fetcher), resolver)
	coordinator.MaxAttempts = settings.MaxAttempts
	if req.DownloadTimeout > 0 {
		coordinator.AttemptTimeout = req.DownloadTimeout
	}
	executor := core.NewInstallationExecutor(s.Runner, s.Extractor, state)
	if req.InstallTimeout > 0 {
		executor.Timeout = req.InstallTimeout
	}

	run := newBatchRun(plan, policies.NewRollbackPolicy(req.StrictRollback), s.Notifier, s.Clock)
	workdir := adapters.NewWorkDirAdapter(settings.WorkDir)
	downloadDir, err := workdir.EnsureBatchDir(run.result.ID)
	if err != nil {
		return types.BatchResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("batch", run.result.ID).
		Int("components", len(plan.selected)).
		Int("groups", len(plan.groups)).
		Int("concurrency", settings.Concurrency).
		Msg("starting install batch")

	for _, group := range plan.groups {
		if ctx.Err() != nil || run.halted() {
			break
		}
		run.setBatchStatus(types.BatchStatusDownloading)
		s.downloadGroup(ctx, run, group, coordinator, cache, downloadDir, settings.Concurrency)
		if ctx.Err() != nil || run.halted() {
			break
		}
		run.setBatchStatus(types.BatchStatusInstalling)
		s.installGroup(ctx, run, group, executor, settings.Concurrency)
		if run.strictTriggered() {
			s.cascadeRollback(ctx, run, executor)
		}
	}

	result := run.finish(ctx)
	if result.Status == types.BatchStatusCompleted {
		if err := workdir.Cleanup(result.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("batch", result.ID).Msg("could not remove batch staging directory")
		}
	} else {
		log.Ctx(ctx).Debug().
			Str("dir", filepath.Join(settings.WorkDir, result.ID)).
			Msg("keeping batch staging directory for inspection")
	}
	log.Ctx(ctx).Info().
		Str("batch", result.ID).
		Str("status", string(result.Status)).
		Dur("elapsed", result.Elapsed).
		Msg("install batch finished")
	return result, nil
}

// batchPlan is the outcome of the planning phase: the validated
// selection, its install order and parallel groups, and the resolved
// settings.
type batchPlan struct {
	catalog  types.Catalog
	settings batchSettings
	graph    *core.DependencyGraph
	selected []types.ComponentSpec
	order    []string
	groups   [][]string
}

// planBatch validates the catalog, expands the requested set to its
// dependency closure, and proves the result installable. Any cycle
// reachable from the selection fails here, before any network or
// filesystem work.
func (s Service) planBatch(ctx context.Context, req InstallRequest) (batchPlan, error) {
	catalogPath := strings.TrimSpace(req.CatalogPath)
	if catalogPath == "" {
		return batchPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog path is required")
	}
	catalog, err := s.Catalog.LoadCatalog(catalogPath)
	if err != nil {
		return batchPlan{}, err
	}
	if err := core.NewCatalogValidator().Validate(ctx, catalog); err != nil {
		return batchPlan{}, err
	}
	settings := resolveSettings(req, catalog.Defaults)
	emitHints(checkInstallDefaultsHints(req, catalog.Defaults))

	full, err := core.BuildGraph(catalog.Components)
	if err != nil {
		return batchPlan{}, err
	}
	selected, err := full.Closure(req.Components)
	if err != nil {
		return batchPlan{}, err
	}
	graph, err := core.BuildGraph(selected)
	if err != nil {
		return batchPlan{}, err
	}
	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return batchPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("dependency cycle: %s; resolve the cycle in the catalog before installing", core.FormatCycle(cycles[0])))
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return batchPlan{}, err
	}
	groups, err := graph.IndependentGroups()
	if err != nil {
		return batchPlan{}, err
	}
	return batchPlan{
		catalog:  catalog,
		settings: settings,
		graph:    graph,
		selected: selected,
		order:    order,
		groups:   groups,
	}, nil
}

// connectivityFor returns the configured connectivity prober, or one
// aimed at the batch's own download hosts.
func (s Service) connectivityFor(selected []types.ComponentSpec) ports.ConnectivityPort {
	if s.Connectivity != nil {
		return s.Connectivity
	}
	return adapters.NewHTTPConnectivityAdapter(s.Fetcher, originsOf(selected))
}

// originsOf lists the distinct scheme://host origins of the selection's
// primary URLs, capped to keep the probe cheap.
func originsOf(selected []types.ComponentSpec) []string {
	const maxOrigins = 5
	seen := map[string]struct{}{}
	var origins []string
	for _, spec := range selected {
		parsed, err := url.Parse(strings.TrimSpace(spec.URL))
		if err != nil || parsed.Host == "" {
			continue
		}
		origin := parsed.Scheme + "://" + parsed.Host
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
		if len(origins) == maxOrigins {
			break
		}
	}
	return origins
}

func (s Service) downloadGroup(ctx context.Context, run *batchRun, group []string, coordinator *core.RetryCoordinator, cache ports.ArtifactCachePort, downloadDir string, concurrency int) {
	eg := new(errgroup.Group)
	eg.SetLimit(concurrency)
	for _, name := range group {
		eg.Go(func() error {
			if !run.claimForDownload(name) {
				return nil
			}
			if ctx.Err() != nil {
				run.markCancelled(name, "batch cancelled before download started")
				return nil
			}
			s.downloadComponent(ctx, run, name, coordinator, cache, downloadDir)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s Service) downloadComponent(ctx context.Context, run *batchRun, name string, coordinator *core.RetryCoordinator, cache ports.ArtifactCachePort, downloadDir string) {
	spec, _ := run.spec(name)

	// Components without an artifact (grouping or command-only
	// actions) go straight to the install phase.
	if strings.TrimSpace(spec.URL) == "" {
		run.downloadSucceeded(name, types.DownloadOutcome{
			Component: name,
			Success:   true,
			Message:   "no artifact to download",
		})
		return
	}

	if entry, hit, err := cache.Lookup(spec); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("component", name).Msg("cache lookup failed, downloading")
	} else if hit {
		run.downloadSucceeded(name, types.DownloadOutcome{
			Component:      name,
			Success:        true,
			FromCache:      true,
			Verified:       true,
			Path:           entry.Path,
			Bytes:          entry.Size,
			ExpectedDigest: spec.Digest.String(),
			ActualDigest:   string(entry.Algorithm) + ":" + entry.Digest,
			Message:        "served from cache",
		})
		return
	}

	dest := filepath.Join(downloadDir, name, remoteFileName(spec.URL, name))
	outcome := coordinator.Download(ctx, spec, dest, run.progress)
	if !outcome.Success {
		run.downloadFailed(name, outcome)
		return
	}
	if entry, err := cache.Put(spec, dest); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("component", name).Msg("verified artifact could not be cached, continuing")
	} else {
		outcome.Path = entry.Path
	}
	run.downloadSucceeded(name, outcome)
}

func (s Service) installGroup(ctx context.Context, run *batchRun, group []string, executor core.InstallationExecutor, concurrency int) {
	eg := new(errgroup.Group)
	eg.SetLimit(concurrency)
	for _, name := range group {
		eg.Go(func() error {
			if !run.claimForInstall(name) {
				return nil
			}
			if run.halted() {
				run.markSkipped(name, "skipped: strict rollback engaged")
				return nil
			}
			if ctx.Err() != nil {
				run.markCancelled(name, "batch cancelled before install started")
				return nil
			}
			spec, _ := run.spec(name)
			// The component install itself runs detached so
			// cancellation never tears a half-applied action; its own
			// timeout still bounds it.
			record := executor.Install(context.WithoutCancel(ctx), spec, run.artifactPath(name))
			run.installFinished(name, record)
			return nil
		})
	}
	_ = eg.Wait()
}

// cascadeRollback undoes every component this batch completed, newest
// first. Engaged only by the strict rollback policy.
func (s Service) cascadeRollback(ctx context.Context, run *batchRun, executor core.InstallationExecutor) {
	completed := run.completedComponents()
	if len(completed) == 0 {
		return
	}
	log.Ctx(ctx).Warn().
		Strs("components", completed).
		Msg("strict rollback: undoing components completed by this batch")
	rollbackCtx := context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		name := completed[i]
		record := run.recordOf(name)
		if record == nil {
			continue
		}
		if err := executor.Rollback.Rollback(rollbackCtx, record); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", name).Msg("strict rollback bookkeeping failed")
		}
		run.markRolledBack(name, *record)
	}
}

// remoteFileName keeps the artifact's own file name for staging so
// format detection and diagnostics stay readable.
func remoteFileName(rawURL string, fallback string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil {
		if base := filepath.Base(parsed.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return fallback + ".artifact"
}

// batchRun is the mutable state of one Install call. All mutations go
// through its mutex; the worker pools only touch it via these methods.
type batchRun struct {
	mu             sync.Mutex
	result         types.BatchResult
	graph          *core.DependencyGraph
	notifier       ports.NotifierPort
	rollback       policies.RollbackPolicy
	halt           bool
	artifacts      map[string]string
	completedOrder []string
	clock          func() time.Time
	startedAt      time.Time
}

func newBatchRun(plan batchPlan, rollback policies.RollbackPolicy, notifier ports.NotifierPort, clock func() time.Time) *batchRun {
	now := timeNow(clock)
	results := make(map[string]*types.ComponentResult, len(plan.selected))
	for _, spec := range plan.selected {
		results[spec.Name] = &types.ComponentResult{
			Name:   spec.Name,
			Status: types.ComponentStatusPending,
		}
	}
	return &batchRun{
		result: types.BatchResult{
			ID:        uuid.NewString(),
			Order:     plan.order,
			Groups:    plan.groups,
			Results:   results,
			Status:    types.BatchStatusPlanning,
			StartedAt: now,
		},
		graph:     plan.graph,
		notifier:  notifier,
		rollback:  rollback,
		artifacts: map[string]string{},
		clock:     clock,
		startedAt: now,
	}
}

func (r *batchRun) spec(name string) (types.ComponentSpec, bool) {
	return r.graph.Component(name)
}

func (r *batchRun) setBatchStatus(status types.BatchStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Status = status
}

// claimForDownload moves a pending component into the downloading
// state. Returns false when the component already reached a terminal
// state (skipped after an upstream failure).
func (r *batchRun) claimForDownload(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.result.Results[name]
	if result == nil || result.Status != types.ComponentStatusPending {
		return false
	}
	result.Status = types.ComponentStatusDownloading
	return true
}

// claimForInstall moves a component whose artifact is ready into the
// installing state.
func (r *batchRun) claimForInstall(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.result.Results[name]
	if result == nil || result.Status != types.ComponentStatusDownloading {
		return false
	}
	result.Status = types.ComponentStatusInstalling
	return true
}

func (r *batchRun) downloadSucceeded(name string, outcome types.DownloadOutcome) {
	r.mu.Lock()
	result := r.result.Results[name]
	if result != nil {
		copied := outcome
		result.Download = &copied
		r.artifacts[name] = outcome.Path
	}
	r.mu.Unlock()
	r.notifyOutcome(outcome)
}

// downloadFailed marks the component failed (or cancelled) and skips
// every transitive dependent that has not started yet.
func (r *batchRun) downloadFailed(name string, outcome types.DownloadOutcome) {
	r.mu.Lock()
	result := r.result.Results[name]
	if result != nil {
		copied := outcome
		result.Download = &copied
		result.Message = outcome.Message
		if outcome.Failure == types.FailureKindCancelled {
			result.Status = types.ComponentStatusCancelled
		} else {
			result.Status = types.ComponentStatusFailed
			r.skipDependentsLocked(name)
		}
	}
	r.mu.Unlock()
	r.notifyOutcome(outcome)
}

func (r *batchRun) installFinished(name string, record types.InstallationRecord) {
	r.mu.Lock()
	result := r.result.Results[name]
	if result != nil {
		copied := record
		result.Record = &copied
		if record.Status == types.RecordStatusCompleted {
			result.Status = types.ComponentStatusCompleted
			r.completedOrder = append(r.completedOrder, name)
		} else {
			result.Status = types.ComponentStatusFailed
			result.Message = record.Error
			r.skipDependentsLocked(name)
			if r.rollback.Cascade() {
				r.halt = true
			}
		}
	}
	r.mu.Unlock()
	r.notifyInstalled(record)
}

func (r *batchRun) markCancelled(name string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markTerminalLocked(name, types.ComponentStatusCancelled, message)
}

func (r *batchRun) markSkipped(name string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markTerminalLocked(name, types.ComponentStatusSkipped, message)
}

// markRolledBack records the outcome of a strict-rollback sweep on a
// component that had completed earlier in the batch.
func (r *batchRun) markRolledBack(name string, record types.InstallationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.result.Results[name]
	if result == nil {
		return
	}
	copied := record
	result.Record = &copied
	result.Status = types.ComponentStatusFailed
	result.Message = "rolled back: strict rollback engaged after a later component failed"
}

func (r *batchRun) markTerminalLocked(name string, status types.ComponentStatus, message string) {
	result := r.result.Results[name]
	if result == nil {
		return
	}
	switch result.Status {
	case types.ComponentStatusCompleted, types.ComponentStatusFailed,
		types.ComponentStatusSkipped, types.ComponentStatusCancelled:
		return
	}
	result.Status = status
	result.Message = message
}

// skipDependentsLocked marks every not-yet-started transitive dependent
// of a failed component as skipped. Callers hold the mutex.
func (r *batchRun) skipDependentsLocked(failed string) {
	for _, dependent := range r.graph.Dependents(failed) {
		result := r.result.Results[dependent]
		if result == nil || result.Status != types.ComponentStatusPending {
			continue
		}
		result.Status = types.ComponentStatusSkipped
		result.Message = fmt.Sprintf("skipped: dependency %s failed", failed)
	}
}

func (r *batchRun) artifactPath(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifacts[name]
}

func (r *batchRun) recordOf(name string) *types.InstallationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.result.Results[name]
	if result == nil {
		return nil
	}
	return result.Record
}

func (r *batchRun) completedComponents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.completedOrder...)
}

func (r *batchRun) halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halt
}

func (r *batchRun) strictTriggered() bool {
	return r.halted()
}

func (r *batchRun) progress(snapshot types.ProgressSnapshot) {
	if r.notifier != nil {
		r.notifier.Progress(snapshot)
	}
}

func (r *batchRun) notifyOutcome(outcome types.DownloadOutcome) {
	if r.notifier != nil {
		r.notifier.Outcome(outcome)
	}
}

func (r *batchRun) notifyInstalled(record types.InstallationRecord) {
	if r.notifier != nil {
		r.notifier.Installed(record)
	}
}

// finish resolves every still-pending component and computes the
// terminal batch status.
func (r *batchRun) finish(ctx context.Context) types.BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, result := range r.result.Results {
		if result.Status != types.ComponentStatusPending &&
			result.Status != types.ComponentStatusDownloading &&
			result.Status != types.ComponentStatusInstalling {
			continue
		}
		switch {
		case r.halt:
			result.Status = types.ComponentStatusSkipped
			result.Message = "skipped: strict rollback engaged"
		case ctx.Err() != nil:
			result.Status = types.ComponentStatusCancelled
			result.Message = "batch cancelled"
		default:
			result.Status = types.ComponentStatusCancelled
			result.Message = "batch stopped before this component started"
		}
	}

	completed, _, _, _ := r.result.Counts()
	switch {
	case completed == len(r.result.Results) && completed > 0:
		r.result.Status = types.BatchStatusCompleted
	case completed == 0:
		r.result.Status = types.BatchStatusFailed
	default:
		r.result.Status = types.BatchStatusPartial
	}
	if len(r.result.Results) == 0 {
		r.result.Status = types.BatchStatusCompleted
	}
	r.result.Elapsed = timeNow(r.clock).Sub(r.startedAt)
	return r.result
}
