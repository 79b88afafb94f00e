package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
)

// BlobBlacklistRepository keeps the ledger as a JSON array in one blob.
type BlobBlacklistRepository struct {
	store BlobStore
	key   string
}

func NewBlobBlacklistRepository(store BlobStore, key string) *BlobBlacklistRepository {
	return &BlobBlacklistRepository{store: store, key: key}
}

func (r *BlobBlacklistRepository) Load(ctx context.Context) ([]models.BlacklistEntry, error) {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return []models.BlacklistEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blacklist ledger: %w", err)
	}
	entries := []models.BlacklistEntry{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode blacklist ledger: %w", err)
	}
	return entries, nil
}

func (r *BlobBlacklistRepository) Save(ctx context.Context, entries []models.BlacklistEntry) error {
	if entries == nil {
		entries = []models.BlacklistEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blacklist ledger: %w", err)
	}
	return r.store.Put(ctx, r.key, data)
}

// ReportRepository stores the hourly findings and statistics reports and the
// daily analytics summary.
type ReportRepository struct {
	store  BlobStore
	layout Layout
	log    *logrus.Entry
}

func NewReportRepository(store BlobStore, layout Layout, log *logrus.Logger) *ReportRepository {
	return &ReportRepository{store: store, layout: layout, log: logger.For(log, "reports")}
}

func (r *ReportRepository) put(ctx context.Context, key string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return "", err
	}
	r.log.WithFields(logrus.Fields{"key": key, "size": len(data)}).Info("uploaded report")
	return key, nil
}

func (r *ReportRepository) SaveFindings(ctx context.Context, now time.Time, groups models.FindingGroups) (string, error) {
	return r.put(ctx, r.layout.ReportKey(now, FindingsFile), groups)
}

func (r *ReportRepository) SaveStatistics(ctx context.Context, now time.Time, stats models.Statistics) (string, error) {
	return r.put(ctx, r.layout.ReportKey(now, StatisticsFile), stats)
}

func (r *ReportRepository) SaveAnalytics(ctx context.Context, now time.Time, summary models.AnalyticsSummary) (string, error) {
	return r.put(ctx, r.layout.ReportKey(now, AnalyticsFile), summary)
}

// LoadRecentFindings returns the findings reports of the count hours ending
// at now, newest first. Hours without a readable report are skipped.
func (r *ReportRepository) LoadRecentFindings(ctx context.Context, now time.Time, count int) ([]models.FindingGroups, error) {
	var out []models.FindingGroups
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		prefix := r.layout.ReportPrefix(now, i)
		objects, err := r.store.List(ctx, prefix)
		if err != nil {
			r.log.WithError(err).WithField("prefix", prefix).Warn("failed to list hourly reports")
			continue
		}
		for _, obj := range objects {
			if !strings.Contains(obj.Key, FindingsFile) {
				continue
			}
			groups, err := r.loadFindings(ctx, obj.Key)
			if err != nil {
				r.log.WithError(err).WithField("key", obj.Key).Warn("skipping unreadable findings report")
				break
			}
			out = append(out, groups)
			break
		}
	}
	return out, nil
}

func (r *ReportRepository) loadFindings(ctx context.Context, key string) (models.FindingGroups, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	groups := models.NewFindingGroups()
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return groups, nil
}
