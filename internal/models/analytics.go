package models

// ThreatInfo carries the intel links for one IP in the analytics summary.
type ThreatInfo struct {
	Country    string `json:"country"`
	AbuseIPDB  string `json:"abuseIpDBInfo"`
	ThreatBook string `json:"threatBookInfo"`
	VirusTotal string `json:"virusTotalInfo"`
}

type IPAnalytics struct {
	IP         string     `json:"ip"`
	Count      int        `json:"count"`
	URLs       []string   `json:"urlsList"`
	ThreatInfo ThreatInfo `json:"threatInfo"`
}

type CategoryAnalytics struct {
	RuleID string        `json:"ruleId"`
	IPs    []IPAnalytics `json:"ipAnalyticsResults"`
}

// AnalyticsSummary is the cross-run report keyed like the findings report.
type AnalyticsSummary map[Category]CategoryAnalytics

func (a AnalyticsSummary) MarshalJSON() ([]byte, error) {
	filled := make(map[Category]CategoryAnalytics, len(Categories))
	for _, c := range Categories {
		ca := a[c]
		if ca.IPs == nil {
			ca.IPs = []IPAnalytics{}
		}
		filled[c] = ca
	}
	return marshalByCategory(filled, Category.FindingsKey)
}

func (a *AnalyticsSummary) UnmarshalJSON(data []byte) error {
	decoded, err := unmarshalByCategory[CategoryAnalytics](data)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}
