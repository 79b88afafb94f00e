package models

// IPCount is one entry of a top IPs list.
type IPCount struct {
	IP      string   `json:"ip"`
	Count   int      `json:"count"`
	Details SourceIP `json:"details"`
}

// Sample is a ranked URL or payload together with the IP that sent it.
type Sample struct {
	Value string `json:"value"`
	IP    string `json:"ip"`
}

// RuleStatistics summarises one category of a run.
type RuleStatistics struct {
	RuleID              string           `json:"ruleId,omitempty"`
	Action              string           `json:"action,omitempty"`
	Total               int              `json:"total"`
	TopIPs              []IPCount        `json:"topIps"`
	TopURLs             []Sample         `json:"topUrls"`
	TopPayloads         []Sample         `json:"topPayloads"`
	BlacklistCandidates []BlacklistEntry `json:"ipsForBlacklist"`
}

// Statistics holds the per category statistics of a run.
type Statistics map[Category]RuleStatistics

// Candidates flattens the blacklist candidates of every category. An IP that
// qualifies in several categories appears once with the union of reasons.
func (s Statistics) Candidates() []BlacklistEntry {
	var out []BlacklistEntry
	index := make(map[string]int)
	for _, c := range Categories {
		for _, entry := range s[c].BlacklistCandidates {
			if i, ok := index[entry.IP]; ok {
				out[i].Reasons = UnionReasons(out[i].Reasons, entry.Reasons)
				continue
			}
			index[entry.IP] = len(out)
			entry.Reasons = append([]string(nil), entry.Reasons...)
			out = append(out, entry)
		}
	}
	return out
}

func (s Statistics) MarshalJSON() ([]byte, error) {
	return marshalByCategory(s, Category.StatisticsKey)
}

func (s *Statistics) UnmarshalJSON(data []byte) error {
	decoded, err := unmarshalByCategory[RuleStatistics](data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// UnionReasons appends the reasons of b missing from a, keeping first-seen order.
func UnionReasons(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, r := range list {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
