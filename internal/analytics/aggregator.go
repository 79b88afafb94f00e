// Package analytics summarises the findings of several hourly runs.
package analytics

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/statistics"
)

const (
	DefaultTopRecords = 5
	// DefaultReports is the number of hourly reports covered by a daily summary.
	DefaultReports = 12
	// RecentWindow bounds the "recently blacklisted" list of the daily report.
	RecentWindow = 24 * time.Hour
)

type Aggregator struct {
	TopRecords    int
	SectionLength int
	log           *logrus.Entry
}

func NewAggregator(topRecords, sectionLength int, log *logrus.Logger) *Aggregator {
	if topRecords <= 0 {
		topRecords = DefaultTopRecords
	}
	if sectionLength <= 0 {
		sectionLength = statistics.DefaultSectionLength
	}
	return &Aggregator{TopRecords: topRecords, SectionLength: sectionLength, log: logger.For(log, "analytics")}
}

// Aggregate merges runs per group, counts requests per IP and attaches the
// longest distinct URLs and threat-intel links of every IP.
func (a *Aggregator) Aggregate(runs []models.FindingGroups) models.AnalyticsSummary {
	merged := models.NewFindingGroups()
	for _, run := range runs {
		merged.Merge(run)
	}

	summary := countIPs(merged)
	a.attachURLs(merged, summary)
	attachThreatInfo(merged, summary)

	a.log.WithFields(logrus.Fields{
		"reports":  len(runs),
		"findings": merged.Total(),
	}).Info("aggregated hourly reports")
	return summary
}

func countIPs(groups models.FindingGroups) models.AnalyticsSummary {
	summary := make(models.AnalyticsSummary, len(models.Categories))
	for _, c := range models.Categories {
		findings := groups[c]
		ca := models.CategoryAnalytics{IPs: []models.IPAnalytics{}}
		if len(findings) > 0 {
			ca.RuleID = findings[0].RuleID
		}
		for _, ip := range statistics.TopIPs(findings, len(findings)) {
			ca.IPs = append(ca.IPs, models.IPAnalytics{IP: ip.IP, Count: ip.Count})
		}
		summary[c] = ca
	}
	return summary
}

// attachURLs needs the per IP counts of countIPs. Categories without them
// get no URL lists.
func (a *Aggregator) attachURLs(groups models.FindingGroups, summary models.AnalyticsSummary) {
	for _, c := range models.Categories {
		ca, ok := summary[c]
		if !ok || ca.IPs == nil {
			a.log.WithField("category", c.String()).Warn("ip analytics missing, skipping url enrichment")
			ca.IPs = []models.IPAnalytics{}
			summary[c] = ca
			continue
		}
		byIP := findingsByIP(groups[c])
		for i := range ca.IPs {
			urls := []string{}
			for _, s := range statistics.TopURLs(byIP[ca.IPs[i].IP], a.TopRecords) {
				urls = append(urls, FormatURL(s, a.TopRecords, a.SectionLength))
			}
			ca.IPs[i].URLs = urls
		}
		summary[c] = ca
	}
}

func attachThreatInfo(groups models.FindingGroups, summary models.AnalyticsSummary) {
	for _, c := range models.Categories {
		ca := summary[c]
		first := make(map[string]models.SourceIP)
		for _, f := range groups[c] {
			if _, ok := first[f.SourceIP.IP]; !ok {
				first[f.SourceIP.IP] = f.SourceIP
			}
		}
		for i := range ca.IPs {
			src, ok := first[ca.IPs[i].IP]
			if !ok {
				src = models.NewSourceIP(ca.IPs[i].IP, "")
			}
			ca.IPs[i].ThreatInfo = models.ThreatInfo{
				Country:    src.Country,
				AbuseIPDB:  src.AbuseIPDB,
				ThreatBook: src.ThreatBook,
				VirusTotal: src.VirusTotal,
			}
		}
		summary[c] = ca
	}
}

func findingsByIP(findings []models.Finding) map[string][]models.Finding {
	out := make(map[string][]models.Finding)
	for _, f := range findings {
		out[f.SourceIP.IP] = append(out[f.SourceIP.IP], f)
	}
	return out
}

// FormatURL renders a ranked URL for a message section with its source IP.
func FormatURL(s models.Sample, n, sectionLength int) string {
	return fmt.Sprintf("%s [ip: %s]", statistics.FormatForSection(s.Value, n, sectionLength), s.IP)
}

// RecentlyBlacklisted returns the ledger entries started within window before now.
func RecentlyBlacklisted(ledger []models.BlacklistEntry, now time.Time, window time.Duration) []models.BlacklistEntry {
	cutoff := now.Add(-window)
	out := []models.BlacklistEntry{}
	for _, e := range ledger {
		if e.StartDate.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
