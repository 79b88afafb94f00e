package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/Wikid82/wafwatch/internal/models"
)

// SQLiteBlacklistRepository keeps the ledger in the blacklist_records table.
type SQLiteBlacklistRepository struct {
	db *gorm.DB
}

func NewSQLiteBlacklistRepository(db *gorm.DB) *SQLiteBlacklistRepository {
	return &SQLiteBlacklistRepository{db: db}
}

func (r *SQLiteBlacklistRepository) Load(ctx context.Context) ([]models.BlacklistEntry, error) {
	var records []models.BlacklistRecord
	if err := r.db.WithContext(ctx).Order("start_date, ip").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load blacklist records: %w", err)
	}

	entries := make([]models.BlacklistEntry, 0, len(records))
	for _, rec := range records {
		var reasons []string
		if rec.Reasons != "" {
			if err := json.Unmarshal([]byte(rec.Reasons), &reasons); err != nil {
				return nil, fmt.Errorf("decode reasons for %s: %w", rec.IP, err)
			}
		}
		entries = append(entries, models.BlacklistEntry{
			IP:        rec.IP,
			Reasons:   reasons,
			StartDate: rec.StartDate.UTC(),
			IPDetails: models.IPDetails{
				Country:    rec.Country,
				AbuseIPDB:  rec.AbuseIPDB,
				ThreatBook: rec.ThreatBook,
				VirusTotal: rec.VirusTotal,
			},
		})
	}
	return entries, nil
}

// Save replaces the stored ledger in one transaction.
func (r *SQLiteBlacklistRepository) Save(ctx context.Context, entries []models.BlacklistEntry) error {
	records := make([]models.BlacklistRecord, 0, len(entries))
	for _, e := range entries {
		reasons, err := json.Marshal(e.Reasons)
		if err != nil {
			return fmt.Errorf("encode reasons for %s: %w", e.IP, err)
		}
		records = append(records, models.BlacklistRecord{
			IP:         e.IP,
			Reasons:    string(reasons),
			StartDate:  e.StartDate,
			Country:    e.IPDetails.Country,
			AbuseIPDB:  e.IPDetails.AbuseIPDB,
			ThreatBook: e.IPDetails.ThreatBook,
			VirusTotal: e.IPDetails.VirusTotal,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.BlacklistRecord{}).Error; err != nil {
			return fmt.Errorf("clear blacklist records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("insert blacklist records: %w", err)
		}
		return nil
	})
}
