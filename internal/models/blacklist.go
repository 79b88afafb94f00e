package models

import (
	"encoding/json"
	"time"
)

// NeutralFlag is shown instead of a country flag when the country is unknown.
const NeutralFlag = ":white_small_square:"

// ReasonMaliciousActivity is attached to addresses found only in the remote IP set.
const ReasonMaliciousActivity = "Malicious activity"

// IPDetails is the display metadata kept with a blacklisted IP.
type IPDetails struct {
	Country    string `json:"country"`
	AbuseIPDB  string `json:"abuseIpDBInfo"`
	ThreatBook string `json:"threatBookInfo"`
	VirusTotal string `json:"virusTotalInfo"`
}

// DetailsFrom converts finding source details into ledger metadata.
func DetailsFrom(src SourceIP) IPDetails {
	return IPDetails{
		Country:    src.Country,
		AbuseIPDB:  src.AbuseIPDB,
		ThreatBook: src.ThreatBook,
		VirusTotal: src.VirusTotal,
	}
}

// BlacklistEntry is one IP in the blacklist ledger. IP is unique across the ledger.
type BlacklistEntry struct {
	IP        string    `json:"ip"`
	Reasons   []string  `json:"reasonsForBlacklisting"`
	StartDate time.Time `json:"startDate"`
	IPDetails IPDetails `json:"ipDetails"`
}

// Expired reports whether the entry has been listed for longer than ttl.
// An entry exactly ttl old is still active.
func (e BlacklistEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StartDate) > ttl
}

// UnmarshalJSON also accepts the candidate shape of older statistics reports,
// where details were nested in sampleIpRecord.srcIpDetails.
func (e *BlacklistEntry) UnmarshalJSON(data []byte) error {
	type plain BlacklistEntry
	var aux struct {
		plain
		SampleIPRecord *struct {
			SourceIP SourceIP `json:"srcIpDetails"`
		} `json:"sampleIpRecord,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = BlacklistEntry(aux.plain)
	if e.IPDetails == (IPDetails{}) && aux.SampleIPRecord != nil {
		e.IPDetails = DetailsFrom(aux.SampleIPRecord.SourceIP)
	}
	return nil
}

// IPSetSummary identifies a remote IP set.
type IPSetSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IPSetSnapshot is the remote IP set at the time it was read. LockToken must
// be presented unchanged when writing the set back.
type IPSetSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Addresses   []string `json:"addresses"`

	// AddressVersion is IPV4 or IPV6. Empty accepts both families.
	AddressVersion string `json:"address_version,omitempty"`
	LockToken      string `json:"-"`
}

const (
	IPAddressVersionIPv4 = "IPV4"
	IPAddressVersionIPv6 = "IPV6"
)
