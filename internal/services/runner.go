package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/analytics"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/ingest"
	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/metrics"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/notify"
	"github.com/Wikid82/wafwatch/internal/pipeline"
	"github.com/Wikid82/wafwatch/internal/statistics"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeHourly Mode = "hourly"
	ModeDaily  Mode = "daily"
)

var ErrUnknownMode = errors.New("unknown run mode")

// ParseMode accepts auto, hourly or daily.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeHourly, ModeDaily:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// IsDailyRun reports whether the wall clock in loc reads at (HH:MM).
func IsDailyRun(now time.Time, loc *time.Location, at string) bool {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("15:04") == at
}

type LogSource interface {
	Fetch(ctx context.Context, now time.Time) (*ingest.Batch, error)
}

type BlacklistSyncer interface {
	Sync(ctx context.Context, candidates []models.BlacklistEntry, now time.Time) (*blacklist.SyncResult, error)
}

// GroupRepository stores hourly findings and the reports derived from them.
type GroupRepository interface {
	SaveFindings(ctx context.Context, now time.Time, groups models.FindingGroups) (string, error)
	SaveStatistics(ctx context.Context, now time.Time, stats models.Statistics) (string, error)
	SaveAnalytics(ctx context.Context, now time.Time, summary models.AnalyticsSummary) (string, error)
	LoadRecentFindings(ctx context.Context, now time.Time, count int) ([]models.FindingGroups, error)
}

// RunnerDeps wires a Runner. History may be nil.
type RunnerDeps struct {
	Logs       LogSource
	Pipeline   *pipeline.Engine
	Statistics *statistics.Engine
	Blacklist  BlacklistSyncer
	Ledger     blacklist.Repository
	Reports    GroupRepository
	Aggregator *analytics.Aggregator
	Messages   *notify.Builder
	Notifier   notify.Notifier
	History    *RunHistoryService

	UploadResults bool
	ReportsCount  int
	DailyAt       string
	Location      *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes one hourly or daily monitoring run.
type Runner struct {
	deps   RunnerDeps
	logger *logrus.Logger
	log    *logrus.Entry
	now    func() time.Time
}

func NewRunner(deps RunnerDeps, log *logrus.Logger) *Runner {
	if deps.ReportsCount <= 0 {
		deps.ReportsCount = analytics.DefaultReports
	}
	if deps.DailyAt == "" {
		deps.DailyAt = "09:30"
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(log)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps, logger: log, log: logger.For(log, "runner"), now: deps.Now}
}

// Resolve turns ModeAuto into the mode due at now.
func (r *Runner) Resolve(mode Mode, now time.Time) Mode {
	if mode != ModeAuto {
		return mode
	}
	if IsDailyRun(now, r.deps.Location, r.deps.DailyAt) {
		return ModeDaily
	}
	return ModeHourly
}

// Run executes mode and records it in the run history. Step failures that
// leave other outputs intact mark the run partial; the returned error is
// only set when the run failed outright.
func (r *Runner) Run(ctx context.Context, mode Mode) (*models.RunRecord, error) {
	now := r.now().UTC()
	mode = r.Resolve(mode, now)

	rec := &models.RunRecord{Mode: string(mode), Status: models.RunStatusRunning, StartedAt: now}
	if r.deps.History != nil {
		started, err := r.deps.History.Start(string(mode), now)
		if err != nil {
			r.log.WithError(err).Warn("failed to record run start")
		} else {
			rec = started
		}
	}
	log := r.log.WithFields(logrus.Fields{"mode": mode, "run": rec.UUID})
	log.Info("run started")

	var err error
	switch mode {
	case ModeHourly:
		err = r.runHourly(ctx, now, rec, log)
	case ModeDaily:
		err = r.runDaily(ctx, now, rec, log)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if err != nil {
		rec.Status = models.RunStatusFailed
		rec.Error = err.Error()
	} else if rec.Status == models.RunStatusRunning {
		rec.Status = models.RunStatusSuccess
	}
	finished := r.now().UTC()
	metrics.ObserveRun(string(mode), finished.Sub(now), rec.Status == models.RunStatusSuccess)
	if r.deps.History != nil && rec.ID != 0 {
		if herr := r.deps.History.Finish(rec, finished); herr != nil {
			log.WithError(herr).Warn("failed to record run result")
		}
	}

	entry := log.WithFields(logrus.Fields{"status": rec.Status, "duration": finished.Sub(now).String()})
	if err != nil {
		entry.WithError(err).Error("run failed")
	} else {
		entry.Info("run finished")
	}
	return rec, err
}

func partial(rec *models.RunRecord, err error) {
	rec.Status = models.RunStatusPartial
	if rec.Error == "" {
		rec.Error = err.Error()
	} else {
		rec.Error += "; " + err.Error()
	}
}

func (r *Runner) runHourly(ctx context.Context, now time.Time, rec *models.RunRecord, log *logrus.Entry) error {
	batch, err := r.deps.Logs.Fetch(ctx, now)
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}

	res, err := r.deps.Pipeline.Process(ctx, batch.Lines)
	if err != nil {
		return fmt.Errorf("process logs: %w", err)
	}
	rec.RecordsParsed = res.Parsed
	rec.RecordsMalformed = res.Malformed
	rec.Findings = res.Groups.Total()
	rec.FailedChunks = len(res.FailedChunks)
	metrics.AddRecords("parsed", res.Parsed)
	metrics.AddRecords("malformed", res.Malformed)
	metrics.AddRecords("unclassified", res.Unclassified)
	metrics.AddChunkFailures(len(res.FailedChunks))
	for _, c := range models.Categories {
		metrics.AddFindings(c.String(), len(res.Groups[c]))
	}
	if len(res.FailedChunks) > 0 {
		partial(rec, fmt.Errorf("%d chunks failed", len(res.FailedChunks)))
	}

	if r.deps.UploadResults {
		if _, err := r.deps.Reports.SaveFindings(ctx, now, res.Groups); err != nil {
			log.WithError(err).Error("failed to upload findings report")
			partial(rec, fmt.Errorf("upload findings: %w", err))
		}
	}

	stats := r.deps.Statistics.ForGroups(res.Groups, now)

	if err := notify.SendAll(ctx, r.deps.Notifier, r.deps.Messages.Hourly(stats), r.logger); err != nil {
		partial(rec, fmt.Errorf("notify: %w", err))
	}

	if r.deps.UploadResults {
		if _, err := r.deps.Reports.SaveStatistics(ctx, now, stats); err != nil {
			log.WithError(err).Error("failed to upload statistics report")
			partial(rec, fmt.Errorf("upload statistics: %w", err))
		}
	}

	sync, err := r.deps.Blacklist.Sync(ctx, stats.Candidates(), now)
	if sync != nil {
		metrics.AddIPSetConflicts(sync.Conflicts)
	}
	if err != nil {
		log.WithError(err).Error("blacklist update failed")
		partial(rec, fmt.Errorf("blacklist: %w", err))
		return nil
	}
	rec.BlacklistAdded = len(sync.Added)
	rec.BlacklistExpired = len(sync.Expired)
	metrics.AddBlacklistChanges("added", len(sync.Added))
	metrics.AddBlacklistChanges("expired", len(sync.Expired))
	metrics.AddBlacklistChanges("adopted", len(sync.Adopted))
	metrics.AddBlacklistChanges("dropped", len(sync.Dropped))
	return nil
}

func (r *Runner) runDaily(ctx context.Context, now time.Time, rec *models.RunRecord, log *logrus.Entry) error {
	runs, err := r.deps.Reports.LoadRecentFindings(ctx, now, r.deps.ReportsCount)
	if err != nil {
		return fmt.Errorf("load hourly reports: %w", err)
	}

	summary := r.deps.Aggregator.Aggregate(runs)
	for _, g := range runs {
		rec.Findings += g.Total()
	}

	if r.deps.UploadResults {
		if _, err := r.deps.Reports.SaveAnalytics(ctx, now, summary); err != nil {
			log.WithError(err).Error("failed to upload analytics summary")
			partial(rec, fmt.Errorf("upload analytics: %w", err))
		}
	}

	msgs := r.deps.Messages.Daily(summary, now.In(r.deps.Location))

	ledger, err := r.deps.Ledger.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load blacklist ledger")
		partial(rec, fmt.Errorf("load ledger: %w", err))
	}
	if msg, ok := r.deps.Messages.RecentlyBlacklisted(analytics.RecentlyBlacklisted(ledger, now, analytics.RecentWindow)); ok {
		msgs = append(msgs, msg)
	}

	if err := notify.SendAll(ctx, r.deps.Notifier, msgs, r.logger); err != nil {
		partial(rec, fmt.Errorf("notify: %w", err))
	}
	return nil
}
