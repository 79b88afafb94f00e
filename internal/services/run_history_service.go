package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wikid82/wafwatch/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

// RunHistoryService persists one RunRecord per job execution.
type RunHistoryService struct {
	db *gorm.DB
}

func NewRunHistoryService(db *gorm.DB) *RunHistoryService {
	return &RunHistoryService{db: db}
}

// Start stores a running record for mode.
func (s *RunHistoryService) Start(mode string, startedAt time.Time) (*models.RunRecord, error) {
	rec := &models.RunRecord{
		UUID:      uuid.NewString(),
		Mode:      mode,
		Status:    models.RunStatusRunning,
		StartedAt: startedAt,
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Finish stamps the finish time and saves the final counters.
func (s *RunHistoryService) Finish(rec *models.RunRecord, finishedAt time.Time) error {
	if rec == nil {
		return nil
	}
	rec.FinishedAt = &finishedAt
	return s.db.Save(rec).Error
}

// List returns recent runs, newest first.
func (s *RunHistoryService) List(limit int) ([]models.RunRecord, error) {
	var res []models.RunRecord
	q := s.db.Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

func (s *RunHistoryService) Get(id string) (*models.RunRecord, error) {
	var rec models.RunRecord
	err := s.db.Where("uuid = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
