package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
)

func TestUploadRepositoryQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUploadRepository(db)
	ctx := context.Background()

	later := models.PendingUpload{
		UserEmail:        "student@example.com",
		AssessmentID:     7,
		FilePath:         "/data/files/essay-v2.pdf",
		OriginalFilename: "essay-v2.pdf",
		SubmittedAt:      time.Now(),
	}
	earlier := models.PendingUpload{
		UserEmail:        "student@example.com",
		AssessmentID:     8,
		FilePath:         "/data/files/report.pdf",
		OriginalFilename: "report.pdf",
		SubmittedAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Enqueue(ctx, &later))
	require.NoError(t, repo.Enqueue(ctx, &earlier))

	queued, err := repo.List(ctx, "student@example.com")
	require.NoError(t, err)
	require.Len(t, queued, 2)
	require.Equal(t, "report.pdf", queued[0].OriginalFilename, "expected oldest submission first")

	found, err := repo.FindByAssessment(ctx, "student@example.com", 7)
	require.NoError(t, err)
	require.Equal(t, "essay-v2.pdf", found.OriginalFilename)

	require.NoError(t, repo.Delete(ctx, found.ID))
	_, err = repo.FindByAssessment(ctx, "student@example.com", 7)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUploadRepositorySaveRecordsFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUploadRepository(db)
	ctx := context.Background()

	upload := models.PendingUpload{
		UserEmail:        "student@example.com",
		AssessmentID:     7,
		FilePath:         "/data/files/essay.pdf",
		OriginalFilename: "essay.pdf",
		SubmittedAt:      time.Now(),
	}
	require.NoError(t, repo.Enqueue(ctx, &upload))

	upload.UploadAttempts = 3
	upload.LastError = "entity too large"
	require.NoError(t, repo.Save(ctx, &upload))

	found, err := repo.FindByAssessment(ctx, "student@example.com", 7)
	require.NoError(t, err)
	require.Equal(t, 3, found.UploadAttempts)
	require.Equal(t, "entity too large", found.LastError)
}

func TestUploadRepositoryDeleteMissingRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUploadRepository(db)

	err := repo.Delete(context.Background(), 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
