package storage

import (
	"fmt"
	"strings"
	"time"
)

// Report and ledger object names.
const (
	FindingsFile   = "processedAWSWAFLogRecords.json"
	StatisticsFile = "processedRecordsStatistics.json"
	LedgerFile     = "blacklistedIPs.json"
	AnalyticsFile  = "analyticsSummaryReport.json"
)

// Layout derives object keys. All dates are rendered in UTC.
type Layout struct {
	AccountID    string
	LogsFolder   string // e.g. WAFLogs/us-east-1/AWSWAFSecurityAutomations/
	UploadFolder string
}

func hourPath(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%02d", t.Year(), t.Month(), t.Day(), t.Hour())
}

func joinKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// LogsPrefix is the folder holding the WAF logs of the hour before now.
func (l Layout) LogsPrefix(now time.Time) string {
	return joinKey("AWSLogs", l.AccountID, l.LogsFolder, hourPath(now.Add(-time.Hour))) + "/"
}

// ReportKey is where a report produced at now is uploaded.
func (l Layout) ReportKey(now time.Time, name string) string {
	return joinKey(l.UploadFolder, hourPath(now), name)
}

// ReportPrefix is the folder of the reports uploaded hoursAgo hours before now.
func (l Layout) ReportPrefix(now time.Time, hoursAgo int) string {
	return joinKey(l.UploadFolder, hourPath(now.Add(-time.Duration(hoursAgo)*time.Hour))) + "/"
}

func (l Layout) LedgerKey() string {
	return joinKey(l.UploadFolder, LedgerFile)
}
