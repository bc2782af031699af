// Package history persists an audit trail of schedule submissions and
// their outcomes so operators can review past dispatch activity for a
// run.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Outcome enumerates where a recorded submission ended up.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeBlob      Outcome = "blob"
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeRejected  Outcome = "rejected"
)

// Record is one schedule submission attempt.
type Record struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID            string     `gorm:"index;not null" json:"run_id"`
	RequestID        string     `gorm:"index" json:"request_id"`
	WorkcellID       string     `gorm:"not null" json:"workcell_id"`
	SessionID        string     `json:"session_id,omitempty"`
	InstructionCount int        `gorm:"not null" json:"instruction_count"`
	Forced           bool       `gorm:"not null" json:"forced"`
	Outcome          Outcome    `gorm:"type:text;index;not null" json:"outcome"`
	Message          string     `json:"message,omitempty"`
	SubmittedAt      time.Time  `gorm:"not null" json:"submitted_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Store wraps the sqlite-backed audit table.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the history database at path. An empty path
// opens a shared in-memory database, which is what tests and
// ephemeral console sessions use.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate history schema")
	}

	return &Store{db: db}, nil
}

// Append inserts a record, assigning an id and submission time when
// missing.
func (s *Store) Append(rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}

	if err := s.db.Create(&rec).Error; err != nil {
		return errors.Wrap(err, "failed to append history record")
	}

	return nil
}

// Resolve stamps the terminal outcome onto the submitted record for a
// request id.
func (s *Store) Resolve(requestID string, outcome Outcome, message, sessionID string) error {
	now := time.Now().UTC()

	result := s.db.Model(&Record{}).
		Where("request_id = ? AND completed_at IS NULL", requestID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"message":      message,
			"session_id":   sessionID,
			"completed_at": now,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to resolve history record")
	}

	return nil
}

// List returns the records for a run, most recent first.
func (s *Store) List(runID string) ([]Record, error) {
	var records []Record
	err := s.db.
		Where("run_id = ?", runID).
		Order("submitted_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list history records")
	}

	return records, nil
}
