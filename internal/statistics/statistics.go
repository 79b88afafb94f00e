// Package statistics ranks the findings of a run and selects blacklist candidates.
package statistics

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
)

const (
	DefaultTopItems    = 5
	DefaultMinRequests = 1
	// DefaultSectionLength is the longest text a single message section may hold.
	DefaultSectionLength = 3000

	TruncationMarker = "[...rest of string]"
	// reserved for the truncation marker and the " [ip: x]" suffix
	sectionReserve = 40
)

// TopIPs counts findings per source IP and returns the n most frequent. Ties
// keep first-seen order.
func TopIPs(findings []models.Finding, n int) []models.IPCount {
	index := make(map[string]int)
	var counts []models.IPCount
	for _, f := range findings {
		if i, ok := index[f.SourceIP.IP]; ok {
			counts[i].Count++
			continue
		}
		index[f.SourceIP.IP] = len(counts)
		counts = append(counts, models.IPCount{IP: f.SourceIP.IP, Count: 1, Details: f.SourceIP})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return head(counts, n)
}

// TopURLs returns the n longest distinct request URLs.
func TopURLs(findings []models.Finding, n int) []models.Sample {
	return topByLength(findings, n, func(f models.Finding) string { return f.FullRequestURL })
}

// TopPayloads returns the n longest distinct matched payloads.
func TopPayloads(findings []models.Finding, n int) []models.Sample {
	return topByLength(findings, n, func(f models.Finding) string { return f.MatchedPayload })
}

func topByLength(findings []models.Finding, n int, key func(models.Finding) string) []models.Sample {
	seen := make(map[string]struct{})
	var samples []models.Sample
	for _, f := range findings {
		v := key(f)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		samples = append(samples, models.Sample{Value: v, IP: f.SourceIP.IP})
	}
	sort.SliceStable(samples, func(i, j int) bool { return len(samples[i].Value) > len(samples[j].Value) })
	return head(samples, n)
}

func head[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}

// FormatForSection truncates s so that n items fit in one message section of
// maxSectionLen characters. Lengths are counted in runes.
func FormatForSection(s string, n, maxSectionLen int) string {
	if n <= 0 {
		n = 1
	}
	limit := maxSectionLen/n - sectionReserve
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + TruncationMarker
}

// HasPayload reports whether a payload is worth displaying.
func HasPayload(payload string) bool {
	return len(payload) > 1
}

// BlacklistCandidates selects IPs whose malicious finding count is strictly
// greater than minRequests. Findings of the static blacklist and IP
// reputation rules never produce candidates.
func BlacklistCandidates(findings []models.Finding, category models.Category, minRequests int, now time.Time) []models.BlacklistEntry {
	if !Blacklistable(category) {
		return []models.BlacklistEntry{}
	}

	type tally struct {
		sample  models.SourceIP
		count   int
		reasons []string
	}
	index := make(map[string]int)
	var tallies []*tally
	for _, f := range findings {
		if !f.IsMalicious {
			continue
		}
		i, ok := index[f.SourceIP.IP]
		if !ok {
			i = len(tallies)
			index[f.SourceIP.IP] = i
			tallies = append(tallies, &tally{sample: f.SourceIP})
		}
		tallies[i].count++
		tallies[i].reasons = models.UnionReasons(tallies[i].reasons, f.Reasons)
	}

	out := []models.BlacklistEntry{}
	for _, t := range tallies {
		if t.count <= minRequests {
			continue
		}
		details := models.DetailsFrom(t.sample)
		details.Country = strings.ToLower(details.Country)
		out = append(out, models.BlacklistEntry{
			IP:        t.sample.IP,
			Reasons:   t.reasons,
			StartDate: now,
			IPDetails: details,
		})
	}
	return out
}

// Blacklistable reports whether findings of c may produce blacklist candidates.
func Blacklistable(c models.Category) bool {
	return c.Valid() && c != models.BlacklistRule && c != models.IPReputation
}

type Engine struct {
	TopItems    int
	MinRequests int
	log         *logrus.Entry
}

func NewEngine(topItems, minRequests int, log *logrus.Logger) *Engine {
	if topItems <= 0 {
		topItems = DefaultTopItems
	}
	if minRequests < 0 {
		minRequests = DefaultMinRequests
	}
	return &Engine{TopItems: topItems, MinRequests: minRequests, log: logger.For(log, "statistics")}
}

// ForRule computes the statistics of one group.
func (e *Engine) ForRule(category models.Category, findings []models.Finding, now time.Time) models.RuleStatistics {
	stats := models.RuleStatistics{
		Total:               len(findings),
		TopIPs:              TopIPs(findings, e.TopItems),
		TopURLs:             TopURLs(findings, e.TopItems),
		TopPayloads:         TopPayloads(findings, e.TopItems),
		BlacklistCandidates: BlacklistCandidates(findings, category, e.MinRequests, now),
	}
	if len(findings) > 0 {
		stats.RuleID = findings[0].RuleID
		stats.Action = findings[0].Action
	}
	return stats
}

// ForGroups computes statistics for every group.
func (e *Engine) ForGroups(groups models.FindingGroups, now time.Time) models.Statistics {
	out := make(models.Statistics, len(models.Categories))
	for _, c := range models.Categories {
		stats := e.ForRule(c, groups[c], now)
		out[c] = stats
		if stats.Total > 0 {
			e.log.WithFields(logrus.Fields{
				"category":   c.String(),
				"findings":   stats.Total,
				"top_ips":    len(stats.TopIPs),
				"candidates": len(stats.BlacklistCandidates),
			}).Info("computed rule statistics")
		}
	}
	return out
}
