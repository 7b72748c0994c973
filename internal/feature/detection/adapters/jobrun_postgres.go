// Package adapters implements detection-side persistence on GORM.
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"crossmarket_backend/internal/feature/detection/domain/entity"
	"crossmarket_backend/internal/feature/detection/usecase"
)

// JobRunModel is the GORM model mapped to the job_runs table.
type JobRunModel struct {
	ID         uint      `gorm:"primaryKey"`
	Name       string    `gorm:"size:64;not null;index"`
	Status     string    `gorm:"size:16;not null"`
	Error      string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
}

// TableName overrides the default table name used by GORM.
func (JobRunModel) TableName() string { return "job_runs" }

func (m JobRunModel) toEntity() entity.JobRun {
	return entity.JobRun{
		ID:         m.ID,
		Name:       m.Name,
		Status:     entity.JobStatus(m.Status),
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// JobRunRepository persists batch-run records using GORM.
type JobRunRepository struct {
	db *gorm.DB
}

var _ usecase.JobRunRepository = (*JobRunRepository)(nil)

// NewJobRunRepository creates a new JobRunRepository.
func NewJobRunRepository(db *gorm.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Start records the beginning of a run and returns its id.
func (r *JobRunRepository) Start(ctx context.Context, name string) (uint, error) {
	m := JobRunModel{
		Name:      name,
		Status:    string(entity.JobRunning),
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Finish closes a run. A nil runErr marks success, anything else marks failure
// and stores the message.
func (r *JobRunRepository) Finish(ctx context.Context, id uint, runErr error) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      string(entity.JobSucceeded),
		"finished_at": now,
	}
	if runErr != nil {
		updates["status"] = string(entity.JobFailed)
		updates["error"] = runErr.Error()
	}
	return r.db.WithContext(ctx).
		Model(&JobRunModel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Latest returns the most recent run of the named job, or nil when the job has
// never run.
func (r *JobRunRepository) Latest(ctx context.Context, name string) (*entity.JobRun, error) {
	var m JobRunModel
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("started_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := m.toEntity()
	return &e, nil
}

// FailStale marks runs still "running" past the cutoff as failed. A run that
// old lost its process; the watchdog closes it so the status surface does not
// report a phantom run forever.
func (r *JobRunRepository) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&JobRunModel{}).
		Where("status = ? AND started_at < ?", string(entity.JobRunning), olderThan).
		Updates(map[string]interface{}{
			"status":      string(entity.JobFailed),
			"error":       "stale run closed by watchdog",
			"finished_at": now,
		})
	return res.RowsAffected, res.Error
}
