// Package classifier routes analyzed findings into their rule groups.
package classifier

import (
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/analyzer"
	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/util"
)

// Rule ids emitted by the AWS WAF Security Automations stack.
const (
	RuleIPReputation     = "AWSWAFSecurityAutomationsIPReputationListsRule"
	RuleSQLInjection     = "AWSWAFSecurityAutomationsSqlInjectionRule"
	RuleXSS              = "AWSWAFSecurityAutomationsXSSRule"
	RuleScannersAndProbe = "AWSWAFSecurityAutomationsScannersAndProbesRule"
	RuleBlacklist        = "AWSWAFSecurityAutomationsBlacklistRule"

	// DefaultAction terminates requests that no rule blocked; the rules that
	// only counted the request are listed as non-terminating matches.
	DefaultAction = "Default_Action"
)

var ruleCategories = map[string]models.Category{
	RuleIPReputation:     models.IPReputation,
	RuleSQLInjection:     models.SQLInjection,
	RuleXSS:              models.XSS,
	RuleScannersAndProbe: models.ScannersAndProbes,
	RuleBlacklist:        models.BlacklistRule,
}

// CategoryFor maps a raw rule id to its group, or Unclassified.
func CategoryFor(ruleID string) models.Category {
	if c, ok := ruleCategories[ruleID]; ok {
		return c
	}
	return models.Unclassified
}

// Outcome reports what happened to one raw finding.
type Outcome struct {
	Classified   int
	Unclassified int
	UnknownRules []string
}

func (o *Outcome) add(other Outcome) {
	o.Classified += other.Classified
	o.Unclassified += other.Unclassified
	o.UnknownRules = append(o.UnknownRules, other.UnknownRules...)
}

type Classifier struct {
	analyzer *analyzer.Analyzer
	log      *logrus.Entry
}

func New(a *analyzer.Analyzer, log *logrus.Logger) *Classifier {
	if a == nil {
		a = analyzer.New()
	}
	return &Classifier{analyzer: a, log: logger.For(log, "classifier")}
}

// Classify analyzes f and files it in groups. A Default_Action finding fans
// out into one independent finding per non-terminating rule, each with that
// rule's id and action. Findings with unknown rule ids land in no group and
// are counted as unclassified.
func (c *Classifier) Classify(f models.Finding, groups models.FindingGroups) Outcome {
	if f.RuleID != DefaultAction {
		return c.classifyOne(f, groups)
	}

	var out Outcome
	for _, rule := range f.NonTerminatingRules {
		derived := f.Clone()
		derived.RuleID = rule.RuleID
		derived.Action = rule.Action
		out.add(c.classifyOne(derived, groups))
	}
	return out
}

func (c *Classifier) classifyOne(f models.Finding, groups models.FindingGroups) Outcome {
	category := CategoryFor(f.RuleID)
	if category == models.Unclassified {
		c.log.WithFields(logrus.Fields{
			"rule_id": util.SanitizeForLog(f.RuleID),
			"ip":      f.SourceIP.IP,
		}).Debug("dropping finding with unknown rule id")
		return Outcome{Unclassified: 1, UnknownRules: []string{f.RuleID}}
	}
	groups.Add(category, c.analyzer.Analyze(f))
	return Outcome{Classified: 1}
}
