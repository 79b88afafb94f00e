package waflog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXSS = `{"timestamp":1679497200000,"terminatingRuleId":"AWSWAFSecurityAutomationsXSSRule","action":"BLOCK",
"terminatingRuleMatchDetails":[{"conditionType":"XSS","location":"QUERY_STRING","matchedData":["<script>","http://evil.example"]}],
"nonTerminatingMatchingRules":[],"rateBasedRuleList":[],
"httpRequest":{"clientIp":"203.0.113.7","country":"DE","headers":[{"name":"Host","value":"shop.example.com"},{"name":"User-Agent","value":"curl/8"}],
"uri":"/search","args":"q=<script>&next=https://evil.example","httpVersion":"HTTP/1.1","httpMethod":"GET"}}`

func TestParse_FullRecord(t *testing.T) {
	f, err := Parse([]byte(sampleXSS))
	require.NoError(t, err)

	assert.Equal(t, "AWSWAFSecurityAutomationsXSSRule", f.RuleID)
	assert.Equal(t, "BLOCK", f.Action)
	assert.Equal(t, int64(1679497200000), f.Timestamp)
	assert.Equal(t, "203.0.113.7", f.SourceIP.IP)
	assert.Equal(t, "DE", f.SourceIP.Country)
	assert.Equal(t, "https://www.abuseipdb.com/check/203.0.113.7", f.SourceIP.AbuseIPDB)
	assert.Equal(t, "GET /search?q=<script>&next=https[:]//evil.example", f.FullRequestURL)
	assert.Equal(t, "XSS::QUERY_STRING::[Matched payload]::<script> http[:]//evil.example", f.MatchedPayload)
	assert.Equal(t, "GET /search?q=<script>&next=https[:]//evil.example HTTP/1.1\nHost: shop.example.com\nUser-Agent: curl/8", f.RawRequest)
	assert.False(t, f.IsMalicious)
	assert.Empty(t, f.Reasons)
}

func TestParse_NullMatchDetails(t *testing.T) {
	line := `{"terminatingRuleId":"AWSWAFSecurityAutomationsScannersAndProbesRule","action":"BLOCK","terminatingRuleMatchDetails":null,
"httpRequest":{"clientIp":"198.51.100.1","country":"US","headers":[],"uri":"/wp-login.php","args":"","httpVersion":"HTTP/2.0","httpMethod":"POST"}}`

	f, err := Parse([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, "", f.MatchedPayload)
	assert.Equal(t, "POST /wp-login.php", f.FullRequestURL)
	assert.NotNil(t, f.NonTerminatingRules)
	assert.NotNil(t, f.RateBasedRules)
}

func TestParse_MultipleMatchDetails(t *testing.T) {
	line := `{"terminatingRuleId":"AWSWAFSecurityAutomationsSqlInjectionRule","action":"BLOCK",
"terminatingRuleMatchDetails":[{"conditionType":"SQL_INJECTION","location":"BODY","matchedData":["1","OR","1=1"]},{"conditionType":"SQL_INJECTION","location":"HEADER","matchedData":[]}],
"httpRequest":{"clientIp":"192.0.2.2","country":"FR","headers":[],"uri":"/login","args":"","httpVersion":"HTTP/1.1","httpMethod":"POST"}}`

	f, err := Parse([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, "SQL_INJECTION::BODY::[Matched payload]::1 OR 1=1\nSQL_INJECTION::HEADER::[Matched payload]::", f.MatchedPayload)
}

func TestParse_DefaultActionKeepsNonTerminating(t *testing.T) {
	line := `{"terminatingRuleId":"Default_Action","action":"ALLOW",
"nonTerminatingMatchingRules":[{"ruleId":"AWSWAFSecurityAutomationsXSSRule","action":"COUNT"}],
"httpRequest":{"clientIp":"192.0.2.9","country":"GB","headers":[],"uri":"/","args":"","httpVersion":"HTTP/1.1","httpMethod":"GET"}}`

	f, err := Parse([]byte(line))
	require.NoError(t, err)
	require.Len(t, f.NonTerminatingRules, 1)
	assert.Equal(t, "AWSWAFSecurityAutomationsXSSRule", f.NonTerminatingRules[0].RuleID)
	assert.Equal(t, "COUNT", f.NonTerminatingRules[0].Action)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"terminatingRuleId":`,
		"no httpRequest": `{"terminatingRuleId":"AWSWAFSecurityAutomationsXSSRule"}`,
		"no client ip":   `{"terminatingRuleId":"x","httpRequest":{"uri":"/"}}`,
		"no rule id":     `{"httpRequest":{"clientIp":"1.1.1.1"}}`,
		"array":          `[1,2,3]`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(line))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestFullRequestURL(t *testing.T) {
	assert.Equal(t, "GET /a", FullRequestURL("GET", "/a", ""))
	assert.Equal(t, "GET /r?to=http[:]//x&b=ftp[:]//y", FullRequestURL("GET", "/r", "to=http://x&b=ftp://y"))
}
