package classifier

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/wafwatch/internal/analyzer"
	"github.com/Wikid82/wafwatch/internal/models"
)

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, models.IPReputation, CategoryFor(RuleIPReputation))
	assert.Equal(t, models.SQLInjection, CategoryFor(RuleSQLInjection))
	assert.Equal(t, models.XSS, CategoryFor(RuleXSS))
	assert.Equal(t, models.ScannersAndProbes, CategoryFor(RuleScannersAndProbe))
	assert.Equal(t, models.BlacklistRule, CategoryFor(RuleBlacklist))
	assert.Equal(t, models.Unclassified, CategoryFor(DefaultAction))
	assert.Equal(t, models.Unclassified, CategoryFor("SomeCustomRule"))
}

func TestClassify_KnownRule(t *testing.T) {
	c := New(analyzer.New(), nil)
	groups := models.NewFindingGroups()

	out := c.Classify(models.Finding{RuleID: RuleXSS, SourceIP: models.SourceIP{IP: "1.1.1.1"}}, groups)

	assert.Equal(t, Outcome{Classified: 1}, out)
	require.Len(t, groups[models.XSS], 1)
	assert.True(t, groups[models.XSS][0].IsMalicious)
	assert.Equal(t, []string{analyzer.ReasonXSS}, groups[models.XSS][0].Reasons)
}

func TestClassify_UnknownRuleIsDroppedButCounted(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	c := New(nil, log)
	groups := models.NewFindingGroups()

	out := c.Classify(models.Finding{RuleID: "RateLimitRule"}, groups)

	assert.Equal(t, 0, groups.Total())
	assert.Equal(t, 1, out.Unclassified)
	assert.Equal(t, []string{"RateLimitRule"}, out.UnknownRules)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "classifier", hook.LastEntry().Data["component"])
}

func TestClassify_DefaultActionFansOut(t *testing.T) {
	c := New(nil, nil)
	groups := models.NewFindingGroups()
	f := models.Finding{
		RuleID: DefaultAction,
		Action: "ALLOW",
		NonTerminatingRules: []models.RuleMatch{
			{RuleID: RuleXSS, Action: "COUNT"},
			{RuleID: RuleSQLInjection, Action: "COUNT"},
			{RuleID: "Unknown", Action: "COUNT"},
		},
		Reasons: []string{},
	}

	out := c.Classify(f, groups)

	assert.Equal(t, 2, out.Classified)
	assert.Equal(t, 1, out.Unclassified)
	require.Len(t, groups[models.XSS], 1)
	require.Len(t, groups[models.SQLInjection], 1)

	xss := groups[models.XSS][0]
	sqli := groups[models.SQLInjection][0]
	assert.Equal(t, RuleXSS, xss.RuleID)
	assert.Equal(t, "COUNT", xss.Action)
	assert.Equal(t, []string{analyzer.ReasonXSS}, xss.Reasons)
	assert.Equal(t, RuleSQLInjection, sqli.RuleID)
	assert.Equal(t, []string{analyzer.ReasonSQLInjection}, sqli.Reasons)

	// derived findings do not alias each other or the source
	xss.NonTerminatingRules[0].RuleID = "mutated"
	assert.Equal(t, RuleXSS, sqli.NonTerminatingRules[0].RuleID)
	assert.Equal(t, RuleXSS, f.NonTerminatingRules[0].RuleID)
	assert.Equal(t, DefaultAction, f.RuleID)
}

func TestClassify_DefaultActionWithoutMatches(t *testing.T) {
	c := New(nil, nil)
	groups := models.NewFindingGroups()

	out := c.Classify(models.Finding{RuleID: DefaultAction}, groups)
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, 0, groups.Total())
}
