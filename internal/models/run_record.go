package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// RunRecord is the persisted history of one scheduled or manual job run.
type RunRecord struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	UUID             string     `json:"uuid" gorm:"uniqueIndex"`
	Mode             string     `json:"mode"` // hourly, daily
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	RecordsParsed    int        `json:"records_parsed"`
	RecordsMalformed int        `json:"records_malformed"`
	Findings         int        `json:"findings"`
	FailedChunks     int        `json:"failed_chunks"`
	BlacklistAdded   int        `json:"blacklist_added"`
	BlacklistExpired int        `json:"blacklist_expired"`
	Error            string     `json:"error" gorm:"type:text"`
}

func (r *RunRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	return
}

// BlacklistRecord is the SQLite row behind a BlacklistEntry.
type BlacklistRecord struct {
	IP         string    `json:"ip" gorm:"primaryKey"`
	Reasons    string    `json:"reasons" gorm:"type:text"` // JSON array
	StartDate  time.Time `json:"start_date" gorm:"index"`
	Country    string    `json:"country"`
	AbuseIPDB  string    `json:"abuse_ipdb"`
	ThreatBook string    `json:"threat_book"`
	VirusTotal string    `json:"virus_total"`
	UpdatedAt  time.Time `json:"updated_at"`
}
