package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenlms/pocketsync/internal/models"
)

// Derived-status payloads arrive as loose JSON from the server; each tagged
// kind is validated against its schema before the row is written so malformed
// blobs never reach the store.
const attemptStatusSchema = `{
	"type": "object",
	"properties": {
		"attempt_count": {"type": "integer", "minimum": 0},
		"last_attempt_at": {"type": "string"},
		"best_score": {"type": "number"}
	},
	"required": ["attempt_count"]
}`

const submissionStatusSchema = `{
	"type": "object",
	"properties": {
		"has_file": {"type": "boolean"},
		"submitted_at": {"type": "string"},
		"status": {"type": "string"}
	},
	"required": ["has_file", "status"]
}`

// StatusRepository defines persistence operations for server-derived
// assessment status blobs.
type StatusRepository interface {
	Get(ctx context.Context, userEmail string, assessmentID uint) (models.AssessmentStatus, error)
	Put(ctx context.Context, status *models.AssessmentStatus) error
}

type statusRepository struct {
	db      *gorm.DB
	schemas map[string]*jsonschema.Schema
}

// NewStatusRepository instantiates a GORM-backed repository with compiled
// payload schemas.
func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepository{
		db: db,
		schemas: map[string]*jsonschema.Schema{
			models.StatusKindAttempt:    jsonschema.MustCompileString("attempt_status.json", attemptStatusSchema),
			models.StatusKindSubmission: jsonschema.MustCompileString("submission_status.json", submissionStatusSchema),
		},
	}
}

func (r *statusRepository) Get(ctx context.Context, userEmail string, assessmentID uint) (models.AssessmentStatus, error) {
	var status models.AssessmentStatus
	err := r.db.WithContext(ctx).
		First(&status, "user_email = ? AND assessment_id = ?", userEmail, assessmentID).Error
	if err != nil {
		return models.AssessmentStatus{}, err
	}

	return status, nil
}

func (r *statusRepository) Put(ctx context.Context, status *models.AssessmentStatus) error {
	if err := r.validate(status); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}, {Name: "assessment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "payload", "updated_at"}),
	}).Create(status).Error
}

func (r *statusRepository) validate(status *models.AssessmentStatus) error {
	schema, ok := r.schemas[status.Kind]
	if !ok {
		return fmt.Errorf("unknown status kind %q", status.Kind)
	}

	var decoded interface{}
	if err := json.Unmarshal(status.Payload, &decoded); err != nil {
		return fmt.Errorf("invalid status payload: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("status payload rejected by schema: %w", err)
	}

	return nil
}
