package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"replay-director/internal/domain/race"
)

type OverlayRepository struct {
	db *gorm.DB
}

func NewOverlayRepository(db *gorm.DB) *OverlayRepository {
	return &OverlayRepository{db: db}
}

type DirectorRun struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TrackName       string         `gorm:"not null"`
	Status          string         `gorm:"not null"`
	Error           *string
	Samples         int            `gorm:"not null"`
	CapturedVersion *string
	Overlay         datatypes.JSON `gorm:"type:jsonb"`
	StartedAt       time.Time      `gorm:"not null"`
	FinishedAt      time.Time      `gorm:"not null"`
	CreatedAt       time.Time
}

// RunIncident and RunMarker copy the overlay's incidents and markers into
// rows the editing stage can query by time. Times are session milliseconds.
type RunIncident struct {
	ID         int64     `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CarIdx     int       `gorm:"not null"`
	CarNumber  string
	DriverName string
	LapNumber  int
	StartMs    int64     `gorm:"not null"`
	EndMs      int64     `gorm:"not null"`
}

type RunMarker struct {
	ID      int64     `gorm:"primaryKey"`
	RunID   uuid.UUID `gorm:"type:uuid;not null;index"`
	State   string    `gorm:"not null"`
	Subject int
	StartMs int64     `gorm:"not null"`
	StopMs  int64     `gorm:"not null"`
}

const insertBatchSize = 200

func (r *OverlayRepository) SaveRun(ctx context.Context, run race.RunResult) error {
	dbRun, incidents, markers, err := toRecords(run)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dbRun).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if len(incidents) > 0 {
			if err := tx.CreateInBatches(incidents, insertBatchSize).Error; err != nil {
				return fmt.Errorf("create run incidents: %w", err)
			}
		}
		if len(markers) > 0 {
			if err := tx.CreateInBatches(markers, insertBatchSize).Error; err != nil {
				return fmt.Errorf("create run markers: %w", err)
			}
		}
		return nil
	})
}

// FindRun returns nil when no run with the id was stored.
func (r *OverlayRepository) FindRun(ctx context.Context, id uuid.UUID) (*race.RunResult, error) {
	var dbRun DirectorRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbRun).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(dbRun)
}

// FindMarkers lists a run's markers of one state, earliest first.
func (r *OverlayRepository) FindMarkers(ctx context.Context, id uuid.UUID, state race.InterestState) ([]RunMarker, error) {
	var markers []RunMarker
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND state = ?", id, state.String()).
		Order("start_ms ASC").
		Find(&markers).Error
	return markers, err
}

// DeleteOldRuns removes runs finished more than the given number of days ago.
func (r *OverlayRepository) DeleteOldRuns(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&DirectorRun{}).Select("id").Where("finished_at < ?", cutoff)
		if err := tx.Where("run_id IN (?)", old).Delete(&RunIncident{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id IN (?)", old).Delete(&RunMarker{}).Error; err != nil {
			return err
		}
		res := tx.Where("finished_at < ?", cutoff).Delete(&DirectorRun{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func toRecords(run race.RunResult) (DirectorRun, []RunIncident, []RunMarker, error) {
	overlay, err := json.Marshal(run.Overlay)
	if err != nil {
		return DirectorRun{}, nil, nil, fmt.Errorf("encode overlay: %w", err)
	}

	dbRun := DirectorRun{
		ID:         run.ID,
		TrackName:  run.TrackName,
		Status:     string(run.Status),
		Samples:    run.Samples,
		Overlay:    datatypes.JSON(overlay),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		CreatedAt:  time.Now(),
	}
	if run.Error != "" {
		dbRun.Error = &run.Error
	}
	if run.Overlay.CapturedVersion != "" {
		dbRun.CapturedVersion = &run.Overlay.CapturedVersion
	}

	incidents := make([]RunIncident, 0, len(run.Overlay.Incidents))
	for _, inc := range run.Overlay.Incidents {
		incidents = append(incidents, RunIncident{
			RunID:      run.ID,
			CarIdx:     inc.CarIdx,
			CarNumber:  inc.CarNumber,
			DriverName: inc.DriverName,
			LapNumber:  inc.LapNumber,
			StartMs:    inc.Start.Milliseconds(),
			EndMs:      inc.End.Milliseconds(),
		})
	}

	markers := make([]RunMarker, 0, len(run.Overlay.Markers))
	for _, m := range run.Overlay.Markers {
		markers = append(markers, RunMarker{
			RunID:   run.ID,
			State:   m.State.String(),
			Subject: m.Subject,
			StartMs: m.Start.Milliseconds(),
			StopMs:  m.Stop.Milliseconds(),
		})
	}
	return dbRun, incidents, markers, nil
}

func fromRecord(dbRun DirectorRun) (*race.RunResult, error) {
	run := &race.RunResult{
		ID:         dbRun.ID,
		TrackName:  dbRun.TrackName,
		Status:     race.RunStatus(dbRun.Status),
		Samples:    dbRun.Samples,
		StartedAt:  dbRun.StartedAt,
		FinishedAt: dbRun.FinishedAt,
	}
	if dbRun.Error != nil {
		run.Error = *dbRun.Error
	}
	if len(dbRun.Overlay) > 0 {
		if err := json.Unmarshal(dbRun.Overlay, &run.Overlay); err != nil {
			return nil, fmt.Errorf("decode overlay: %w", err)
		}
	}
	return run, nil
}
