package models

import (
	"encoding/json"
	"fmt"
)

// Category is the detection rule group a Finding is filed under.
type Category int

const (
	Unclassified Category = iota
	ScannersAndProbes
	XSS
	SQLInjection
	BlacklistRule
	IPReputation
)

// Categories lists every group key in report order.
var Categories = []Category{ScannersAndProbes, XSS, SQLInjection, BlacklistRule, IPReputation}

var categoryNames = map[Category]string{
	Unclassified:      "unclassified",
	ScannersAndProbes: "scannersAndProbes",
	XSS:               "xss",
	SQLInjection:      "sqlInjection",
	BlacklistRule:     "blackListRule",
	IPReputation:      "ipReputationRule",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// FindingsKey is the field name used for the group in the findings report.
func (c Category) FindingsKey() string { return c.String() + "Findings" }

// StatisticsKey is the field name used for the group in the statistics report.
func (c Category) StatisticsKey() string { return c.String() + "Statistics" }

// Valid reports whether c is one of the five group keys.
func (c Category) Valid() bool { return c > Unclassified && c <= IPReputation }

// CategoryFromKey resolves a findings, statistics or bare group key.
func CategoryFromKey(key string) (Category, bool) {
	for _, c := range Categories {
		if key == c.FindingsKey() || key == c.StatisticsKey() || key == c.String() {
			return c, true
		}
	}
	return Unclassified, false
}

func marshalByCategory[T any](m map[Category]T, key func(Category) string) ([]byte, error) {
	out := make(map[string]T, len(Categories))
	for _, c := range Categories {
		out[key(c)] = m[c]
	}
	return json.Marshal(out)
}

func unmarshalByCategory[T any](data []byte) (map[Category]T, error) {
	var raw map[string]T
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[Category]T, len(Categories))
	for k, v := range raw {
		if c, ok := CategoryFromKey(k); ok {
			out[c] = v
		}
	}
	return out, nil
}
