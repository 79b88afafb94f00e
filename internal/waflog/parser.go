// Package waflog decodes AWS WAF JSON log lines into findings.
package waflog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/util"
)

// ErrMalformedRecord is returned for lines that are not usable WAF records.
var ErrMalformedRecord = errors.New("malformed waf log record")

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type httpRequest struct {
	ClientIP    string   `json:"clientIp"`
	Country     string   `json:"country"`
	Headers     []header `json:"headers"`
	URI         string   `json:"uri"`
	Args        string   `json:"args"`
	HTTPVersion string   `json:"httpVersion"`
	HTTPMethod  string   `json:"httpMethod"`
}

type matchDetail struct {
	ConditionType string   `json:"conditionType"`
	Location      string   `json:"location"`
	MatchedData   []string `json:"matchedData"`
}

type record struct {
	Timestamp                   int64                  `json:"timestamp"`
	TerminatingRuleID           string                 `json:"terminatingRuleId"`
	Action                      string                 `json:"action"`
	TerminatingRuleMatchDetails []matchDetail          `json:"terminatingRuleMatchDetails"`
	NonTerminatingMatchingRules []models.RuleMatch     `json:"nonTerminatingMatchingRules"`
	RateBasedRuleList           []models.RateBasedRule `json:"rateBasedRuleList"`
	HTTPRequest                 *httpRequest           `json:"httpRequest"`
}

// Parse decodes one raw log line. The returned Finding is not yet analyzed.
func Parse(line []byte) (models.Finding, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.Finding{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.HTTPRequest == nil {
		return models.Finding{}, fmt.Errorf("%w: missing httpRequest", ErrMalformedRecord)
	}
	if rec.HTTPRequest.ClientIP == "" {
		return models.Finding{}, fmt.Errorf("%w: missing clientIp", ErrMalformedRecord)
	}
	if rec.TerminatingRuleID == "" {
		return models.Finding{}, fmt.Errorf("%w: missing terminatingRuleId", ErrMalformedRecord)
	}

	req := rec.HTTPRequest
	url := FullRequestURL(req.HTTPMethod, req.URI, req.Args)

	nonTerminating := rec.NonTerminatingMatchingRules
	if nonTerminating == nil {
		nonTerminating = []models.RuleMatch{}
	}
	rateBased := rec.RateBasedRuleList
	if rateBased == nil {
		rateBased = []models.RateBasedRule{}
	}

	return models.Finding{
		RuleID:              rec.TerminatingRuleID,
		Action:              rec.Action,
		SourceIP:            models.NewSourceIP(req.ClientIP, req.Country),
		RawRequest:          rawRequest(url, req),
		FullRequestURL:      url,
		MatchedPayload:      matchedPayload(rec.TerminatingRuleMatchDetails),
		NonTerminatingRules: nonTerminating,
		RateBasedRules:      rateBased,
		Timestamp:           rec.Timestamp,
		Reasons:             []string{},
	}, nil
}

// FullRequestURL builds "METHOD uri[?args]" with links defanged.
func FullRequestURL(method, uri, args string) string {
	url := method + " " + util.SanitizeLinks(uri)
	if args != "" {
		url += "?" + util.SanitizeLinks(args)
	}
	return url
}

func matchedPayload(details []matchDetail) string {
	if len(details) == 0 {
		return ""
	}
	lines := make([]string, 0, len(details))
	for _, d := range details {
		data := make([]string, 0, len(d.MatchedData))
		for _, item := range d.MatchedData {
			data = append(data, util.SanitizeLinks(item))
		}
		lines = append(lines, fmt.Sprintf("%s::%s::[Matched payload]::%s", d.ConditionType, d.Location, strings.Join(data, " ")))
	}
	return strings.Join(lines, "\n")
}

func rawRequest(url string, req *httpRequest) string {
	headers := make([]string, 0, len(req.Headers))
	for _, h := range req.Headers {
		headers = append(headers, h.Name+": "+h.Value)
	}
	return url + " " + req.HTTPVersion + "\n" + strings.Join(headers, "\n")
}
