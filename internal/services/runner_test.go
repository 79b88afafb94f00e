package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/wafwatch/internal/analytics"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/classifier"
	"github.com/Wikid82/wafwatch/internal/database"
	"github.com/Wikid82/wafwatch/internal/ingest"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/notify"
	"github.com/Wikid82/wafwatch/internal/pipeline"
	"github.com/Wikid82/wafwatch/internal/statistics"
	"github.com/Wikid82/wafwatch/internal/storage"
)

func wafLine(ruleID, ip, uri string) []byte {
	return []byte(fmt.Sprintf(`{"timestamp":1,"terminatingRuleId":%q,"action":"BLOCK","terminatingRuleMatchDetails":[],
"httpRequest":{"clientIp":%q,"country":"GB","headers":[],"uri":%q,"args":"","httpVersion":"HTTP/1.1","httpMethod":"GET"}}`, ruleID, ip, uri))
}

type staticLogs struct {
	lines [][]byte
	err   error
}

func (s *staticLogs) Fetch(ctx context.Context, now time.Time) (*ingest.Batch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ingest.Batch{Lines: s.lines}, nil
}

type recordingSyncer struct {
	candidates []models.BlacklistEntry
	err        error
	calls      int
}

func (r *recordingSyncer) Sync(ctx context.Context, candidates []models.BlacklistEntry, now time.Time) (*blacklist.SyncResult, error) {
	r.calls++
	r.candidates = candidates
	if r.err != nil {
		return &blacklist.SyncResult{Conflicts: 1}, r.err
	}
	added := make([]string, 0, len(candidates))
	for _, c := range candidates {
		added = append(added, c.IP)
	}
	return &blacklist.SyncResult{Added: added, Committed: true}, nil
}

type recordingNotifier struct {
	sent []notify.Message
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type fixture struct {
	runner   *Runner
	logs     *staticLogs
	syncer   *recordingSyncer
	notifier *recordingNotifier
	store    *storage.MemoryStore
	ledger   *storage.BlobBlacklistRepository
	reports  *storage.ReportRepository
	history  *RunHistoryService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)

	layout := storage.Layout{AccountID: "123456789012", LogsFolder: "WAFLogs/", UploadFolder: "reports"}
	store := storage.NewMemoryStore()
	f := &fixture{
		logs:     &staticLogs{},
		syncer:   &recordingSyncer{},
		notifier: &recordingNotifier{},
		store:    store,
		ledger:   storage.NewBlobBlacklistRepository(store, layout.LedgerKey()),
		reports:  storage.NewReportRepository(store, layout, nil),
		history:  NewRunHistoryService(db),
	}
	f.runner = NewRunner(RunnerDeps{
		Logs:          f.logs,
		Pipeline:      pipeline.NewEngine(classifier.New(nil, nil), nil),
		Statistics:    statistics.NewEngine(5, 1, nil),
		Blacklist:     f.syncer,
		Ledger:        f.ledger,
		Reports:       f.reports,
		Aggregator:    analytics.NewAggregator(5, 3000, nil),
		Messages:      notify.NewBuilder("Test", 3000, 5, 5),
		Notifier:      f.notifier,
		History:       f.history,
		UploadResults: true,
		Location:      time.UTC,
		Now:           func() time.Time { return now },
	}, nil)
	return f
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "hourly": ModeHourly, "daily": ModeDaily} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("weekly")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestIsDailyRun(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	// 08:30 UTC is 09:30 in London during summer time.
	assert.True(t, IsDailyRun(time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC), london, "09:30"))
	assert.False(t, IsDailyRun(time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC), london, "09:30"))
	assert.True(t, IsDailyRun(time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), london, "09:30"))
	assert.True(t, IsDailyRun(time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), nil, "09:30"))
}

func TestRunner_ResolveAuto(t *testing.T) {
	f := newFixture(t, time.Now())
	assert.Equal(t, ModeDaily, f.runner.Resolve(ModeAuto, time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, ModeHourly, f.runner.Resolve(ModeAuto, time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, ModeHourly, f.runner.Resolve(ModeHourly, time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)))
}

func TestRunner_Hourly(t *testing.T) {
	now := time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.logs.lines = [][]byte{
		wafLine(classifier.RuleXSS, "9.9.9.9", "/a"),
		wafLine(classifier.RuleXSS, "9.9.9.9", "/b"),
		wafLine(classifier.RuleXSS, "8.8.8.8", "/c"),
		[]byte("garbage"),
	}

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, rec.Status)
	assert.Equal(t, 3, rec.RecordsParsed)
	assert.Equal(t, 1, rec.RecordsMalformed)
	assert.Equal(t, 3, rec.Findings)
	assert.Equal(t, 1, rec.BlacklistAdded)

	require.Len(t, f.syncer.candidates, 1)
	assert.Equal(t, "9.9.9.9", f.syncer.candidates[0].IP)
	assert.NotEmpty(t, f.notifier.sent)

	objects, err := f.store.List(context.Background(), "reports/2026/06/01/14/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	stored, err := f.history.Get(rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, stored.Status)
	require.NotNil(t, stored.FinishedAt)
}

func TestRunner_HourlyWithoutUpload(t *testing.T) {
	now := time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.runner.deps.UploadResults = false

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, rec.Status)

	objects, err := f.store.List(context.Background(), "reports/")
	require.NoError(t, err)
	assert.Empty(t, objects)

	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].Text(), notify.NoDetectionsText)
	assert.Equal(t, 1, f.syncer.calls)
}

func TestRunner_FetchFailureFailsRun(t *testing.T) {
	f := newFixture(t, time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC))
	f.logs.err = errors.New("cancelled")

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "fetch logs")
	assert.Equal(t, 0, f.syncer.calls)
}

func TestRunner_BlacklistFailureIsPartial(t *testing.T) {
	f := newFixture(t, time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC))
	f.syncer.err = blacklist.ErrConflict

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, rec.Status)
	assert.Contains(t, rec.Error, "blacklist")
}

func TestRunner_NotifyFailureIsPartial(t *testing.T) {
	f := newFixture(t, time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC))
	f.notifier.err = errors.New("webhook down")

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, rec.Status)
	assert.Equal(t, 1, f.syncer.calls)
}

func TestRunner_Daily(t *testing.T) {
	now := time.Date(2026, 6, 2, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	for h := 1; h <= 3; h++ {
		g := models.NewFindingGroups()
		g.Add(models.XSS, models.Finding{
			RuleID:         classifier.RuleXSS,
			SourceIP:       models.NewSourceIP("7.7.7.7", "GB"),
			FullRequestURL: fmt.Sprintf("GET /h%d", h),
		})
		_, err := f.reports.SaveFindings(ctx, now.Add(-time.Duration(h)*time.Hour), g)
		require.NoError(t, err)
	}
	require.NoError(t, f.ledger.Save(ctx, []models.BlacklistEntry{
		{IP: "7.7.7.7", Reasons: []string{"XSS attack attempts"}, StartDate: now.Add(-2 * time.Hour)},
		{IP: "1.1.1.1", Reasons: []string{"XSS attack attempts"}, StartDate: now.Add(-48 * time.Hour)},
	}))

	rec, err := f.runner.Run(ctx, ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, string(ModeDaily), rec.Mode)
	assert.Equal(t, models.RunStatusSuccess, rec.Status)
	assert.Equal(t, 3, rec.Findings)
	assert.Equal(t, 0, f.syncer.calls)

	_, err = f.store.Get(ctx, "reports/2026/06/02/09/"+storage.AnalyticsFile)
	assert.NoError(t, err)

	require.NotEmpty(t, f.notifier.sent)
	last := f.notifier.sent[len(f.notifier.sent)-1].Text()
	assert.Contains(t, last, "7.7.7.7")
	assert.NotContains(t, last, "1.1.1.1")
}

func TestRunner_WithoutHistory(t *testing.T) {
	f := newFixture(t, time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC))
	f.runner.deps.History = nil

	rec, err := f.runner.Run(context.Background(), ModeHourly)
	require.NoError(t, err)
	assert.Empty(t, rec.UUID)
	assert.Equal(t, models.RunStatusSuccess, rec.Status)
}
