package models

import "fmt"

// SourceIP describes the client that issued a logged request together with
// lookup links on public threat-intel services.
type SourceIP struct {
	IP         string `json:"ip"`
	Country    string `json:"country"`
	AbuseIPDB  string `json:"abuseIpDBInfo"`
	ThreatBook string `json:"threatBookInfo"`
	VirusTotal string `json:"virusTotalInfo"`
}

// NewSourceIP fills in the threat-intel links for ip.
func NewSourceIP(ip, country string) SourceIP {
	return SourceIP{
		IP:         ip,
		Country:    country,
		AbuseIPDB:  fmt.Sprintf("https://www.abuseipdb.com/check/%s", ip),
		ThreatBook: fmt.Sprintf("https://threatbook.io/ip/%s", ip),
		VirusTotal: fmt.Sprintf("https://www.virustotal.com/gui/ip-address/%s/detection", ip),
	}
}

// RuleMatch is a non-terminating rule that also matched a request.
type RuleMatch struct {
	RuleID string `json:"ruleId"`
	Action string `json:"action"`
}

// RateBasedRule is carried through from the raw log for diagnostics only.
type RateBasedRule struct {
	RateBasedRuleID   string `json:"rateBasedRuleId,omitempty"`
	RateBasedRuleName string `json:"rateBasedRuleName,omitempty"`
	LimitKey          string `json:"limitKey,omitempty"`
	MaxRateAllowed    int64  `json:"maxRateAllowed,omitempty"`
}

// Finding is one normalized, analyzed WAF log event.
//
// IsMalicious is always equal to len(Reasons) > 0. The JSON names match the
// hourly findings report so older reports stay readable.
type Finding struct {
	RuleID              string          `json:"ruleId"`
	Action              string          `json:"action"`
	SourceIP            SourceIP        `json:"srcIpDetails"`
	RawRequest          string          `json:"fullCapturedRequest"`
	FullRequestURL      string          `json:"fullRequestUrl"`
	MatchedPayload      string          `json:"matchDetails"`
	NonTerminatingRules []RuleMatch     `json:"nonTerminatingMatchingRules"`
	RateBasedRules      []RateBasedRule `json:"rateBasedRuleList"`
	Timestamp           int64           `json:"timestamp"`
	IsMalicious         bool            `json:"isRequestMalicious"`
	Reasons             []string        `json:"reasonsForBlacklisting"`
}

// Clone returns a copy of f that shares no slices with it.
func (f Finding) Clone() Finding {
	out := f
	out.NonTerminatingRules = append([]RuleMatch(nil), f.NonTerminatingRules...)
	out.RateBasedRules = append([]RateBasedRule(nil), f.RateBasedRules...)
	out.Reasons = append([]string(nil), f.Reasons...)
	return out
}
