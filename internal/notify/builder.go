package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Wikid82/wafwatch/internal/analytics"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/statistics"
)

const (
	NoDetectionsText = "Not detected any malicious traffic during the last hour"
	NoPayloadsText   = "no payloads detected"
)

// Builder renders statistics, analytics and the blacklist as messages.
type Builder struct {
	Env          string
	MaxLength    int
	TopItems     int
	AnalyticsTop int
}

func NewBuilder(env string, maxLength, topItems, analyticsTop int) *Builder {
	if maxLength <= 0 {
		maxLength = statistics.DefaultSectionLength
	}
	if topItems <= 0 {
		topItems = statistics.DefaultTopItems
	}
	if analyticsTop <= 0 {
		analyticsTop = analytics.DefaultTopRecords
	}
	return &Builder{Env: env, MaxLength: maxLength, TopItems: topItems, AnalyticsTop: analyticsTop}
}

// Flag renders a country as a Slack flag emoji.
func Flag(country string) string {
	if country == "" || country == models.NeutralFlag {
		return models.NeutralFlag
	}
	return fmt.Sprintf(":flag-%s:", strings.ToLower(country))
}

// Links renders the three threat-intel links of an IP.
func Links(abuseIPDB, threatBook, virusTotal string) string {
	return fmt.Sprintf("<%s|AbuseIPDb> | <%s|Threat Book Info> | <%s|VirusTotal>", abuseIPDB, threatBook, virusTotal)
}

// NoDetections is sent when an hourly run found nothing.
func NoDetections() Message {
	return Message{Blocks: []Block{{Type: BlockSection, Text: NoDetectionsText, Plain: true}}}
}

// Hourly returns one message per rule with findings, or the no detections
// message.
func (b *Builder) Hourly(stats models.Statistics) []Message {
	var out []Message
	for _, c := range models.Categories {
		rs, ok := stats[c]
		if !ok || rs.Total == 0 {
			continue
		}
		out = append(out, b.HourlyRule(rs))
	}
	if len(out) == 0 {
		return []Message{NoDetections()}
	}
	return out
}

func (b *Builder) HourlyRule(rs models.RuleStatistics) Message {
	blocks := []Block{{Type: BlockHeader, Text: fmt.Sprintf("[%s] %s rule results", b.Env, rs.RuleID)}}
	blocks = append(blocks, Block{Type: BlockSection, Text: "*Rule action*\n" + rs.Action})

	ips := make([]string, 0, len(rs.TopIPs))
	for _, ip := range rs.TopIPs {
		ips = append(ips, fmt.Sprintf("IP: %s %s; Captured requests: %d\n%s\n",
			ip.IP, Flag(ip.Details.Country), ip.Count,
			Links(ip.Details.AbuseIPDB, ip.Details.ThreatBook, ip.Details.VirusTotal)))
	}
	blocks = append(blocks, sections("*Top IPs list*\n", strings.Join(ips, "\n\n"), false, b.MaxLength)...)

	urls := make([]string, 0, len(rs.TopURLs))
	for _, u := range rs.TopURLs {
		urls = append(urls, analytics.FormatURL(u, b.TopItems, b.MaxLength))
	}
	blocks = append(blocks, sections("*Top requested URLs*\n", strings.Join(urls, "\n\n"), true, b.MaxLength)...)

	payloads := make([]string, 0, len(rs.TopPayloads))
	for _, p := range rs.TopPayloads {
		if statistics.HasPayload(p.Value) {
			payloads = append(payloads, analytics.FormatURL(p, b.TopItems, b.MaxLength))
		} else {
			payloads = append(payloads, p.Value)
		}
	}
	payloadText := strings.Join(payloads, "\n\n")
	if payloadText == "" {
		payloadText = NoPayloadsText
	}
	blocks = append(blocks, sections("*Top payloads*\n", payloadText, true, b.MaxLength)...)

	if len(rs.BlacklistCandidates) > 0 {
		candidates := make([]string, 0, len(rs.BlacklistCandidates))
		for _, e := range rs.BlacklistCandidates {
			candidates = append(candidates, fmt.Sprintf("IP: %s %s\n%s\nReasons for blacklisting: %s",
				e.IP, Flag(e.IPDetails.Country),
				Links(e.IPDetails.AbuseIPDB, e.IPDetails.ThreatBook, e.IPDetails.VirusTotal),
				strings.Join(e.Reasons, ", ")))
		}
		blocks = append(blocks, sections("*Blacklisted IP addresses*\n", strings.Join(candidates, "\n\n"), false, b.MaxLength)...)
	}
	return Message{Blocks: blocks}
}

// Daily renders the analytics summary, one message per category. The first
// category carries the report header. Messages with fewer than two blocks
// are left out.
func (b *Builder) Daily(summary models.AnalyticsSummary, date time.Time) []Message {
	var out []Message
	for i, c := range models.Categories {
		var blocks []Block
		if i == 0 {
			blocks = append(blocks,
				Block{Type: BlockHeader, Text: fmt.Sprintf("[%s] AWS WAF monitoring lambda analytics report %s", b.Env, date.Format("1/2/2006"))},
				Block{Type: BlockDivider},
			)
		}

		ca := summary[c]
		if len(ca.IPs) > 0 {
			blocks = append(blocks, sections(fmt.Sprintf("*%s rule summary* :bar_chart:", ca.RuleID), "", false, b.MaxLength)...)
			for n, rec := range ca.IPs {
				if n >= b.AnalyticsTop {
					break
				}
				ti := rec.ThreatInfo
				formatted := fmt.Sprintf("*IP*: %s %s; %s\n", rec.IP, Flag(ti.Country), Links(ti.AbuseIPDB, ti.ThreatBook, ti.VirusTotal))
				blocks = append(blocks, sections("", formatted, false, b.MaxLength)...)
				blocks = append(blocks, sections(fmt.Sprintf("*Total count of requests: %d*", rec.Count), "", false, b.MaxLength)...)
				blocks = append(blocks, sections("*Top requested URLs*\n", strings.Join(rec.URLs, "\n\n"), true, b.MaxLength)...)
			}
		}

		if len(blocks) >= 2 {
			out = append(out, Message{Blocks: blocks})
		}
	}
	return out
}

// RecentlyBlacklisted renders ledger entries for the daily report. ok is
// false when there is nothing to report.
func (b *Builder) RecentlyBlacklisted(entries []models.BlacklistEntry) (msg Message, ok bool) {
	if len(entries) == 0 {
		return Message{}, false
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "IP: %s %s\n%s\nReasons for blacklisting: %s\n\n",
			e.IP, Flag(e.IPDetails.Country),
			Links(e.IPDetails.AbuseIPDB, e.IPDetails.ThreatBook, e.IPDetails.VirusTotal),
			strings.Join(e.Reasons, ", "))
	}
	return Message{Blocks: sections("*Blacklisted IP addresses (last 24 hours)*\n", sb.String(), false, b.MaxLength)}, true
}
