// Package analyzer tags findings as malicious based on the rule that matched them.
package analyzer

import (
	"strings"

	"github.com/Wikid82/wafwatch/internal/models"
)

const (
	ReasonXSS          = "XSS attack attempts"
	ReasonSQLInjection = "SQL injection attack attempts"
)

// Predicate contributes Reason when Match returns true.
type Predicate struct {
	Name   string
	Reason string
	Match  func(models.Finding) bool
}

// RuleIDContains matches findings whose rule id contains marker.
func RuleIDContains(name, marker, reason string) Predicate {
	return Predicate{
		Name:   name,
		Reason: reason,
		Match: func(f models.Finding) bool {
			return strings.Contains(f.RuleID, marker)
		},
	}
}

// DefaultPredicates returns the XSS and SQL injection rule checks.
func DefaultPredicates() []Predicate {
	return []Predicate{
		RuleIDContains("xss", "XSSRule", ReasonXSS),
		RuleIDContains("sqli", "SqlInjectionRule", ReasonSQLInjection),
	}
}

type Analyzer struct {
	predicates []Predicate
}

// New returns an Analyzer with the default predicates followed by extra.
func New(extra ...Predicate) *Analyzer {
	return &Analyzer{predicates: append(DefaultPredicates(), extra...)}
}

// Analyze evaluates every predicate against f and returns a copy with Reasons
// and IsMalicious set. Reasons already present on f are discarded.
func (a *Analyzer) Analyze(f models.Finding) models.Finding {
	out := f.Clone()
	reasons := make([]string, 0, len(a.predicates))
	for _, p := range a.predicates {
		if p.Match != nil && p.Match(f) {
			reasons = models.UnionReasons(reasons, []string{p.Reason})
		}
	}
	out.Reasons = reasons
	out.IsMalicious = len(reasons) > 0
	return out
}
