package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/database"
	"github.com/lumenlms/pocketsync/internal/models"
)

func TestAttemptRepositoryFindUnsynced(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	pending := models.AttemptRecord{
		ID:           "pending",
		UserEmail:    "student@example.com",
		AssessmentID: 42,
		State:        models.AttemptStatePendingSync,
		StartedAt:    time.Now().Add(-time.Hour),
		Answers:      []byte("{}"),
	}
	require.NoError(t, repo.Create(ctx, &pending))

	found, err := repo.FindUnsynced(ctx, "student@example.com", 42)
	require.NoError(t, err)
	require.Equal(t, "pending", found.ID)

	// Other assessments and other users do not match.
	_, err = repo.FindUnsynced(ctx, "student@example.com", 43)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindUnsynced(ctx, "other@example.com", 42)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAttemptRepositoryListByStateOrdersByStart(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	newer := models.AttemptRecord{
		ID: "newer", UserEmail: "student@example.com", AssessmentID: 2,
		State: models.AttemptStatePendingSync, StartedAt: time.Now(), Answers: []byte("{}"),
	}
	older := models.AttemptRecord{
		ID: "older", UserEmail: "student@example.com", AssessmentID: 1,
		State: models.AttemptStatePendingSync, StartedAt: time.Now().Add(-time.Hour), Answers: []byte("{}"),
	}
	inProgress := models.AttemptRecord{
		ID: "active", UserEmail: "student@example.com", AssessmentID: 3,
		State: models.AttemptStateInProgress, StartedAt: time.Now(), Answers: []byte("{}"),
	}
	require.NoError(t, repo.Create(ctx, &newer))
	require.NoError(t, repo.Create(ctx, &older))
	require.NoError(t, repo.Create(ctx, &inProgress))

	records, err := repo.ListByState(ctx, "student@example.com", models.AttemptStatePendingSync)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "older", records[0].ID)
	require.Equal(t, "newer", records[1].ID)
}

func TestAttemptRepositoryDeleteMissingRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPendingAttemptSurvivesStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pocketsync.db")
	ctx := context.Background()

	first := database.NewStore()
	require.NoError(t, first.Open(path))
	db, err := first.DB()
	require.NoError(t, err)

	finalizedAt := time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	record := models.AttemptRecord{
		ID:             "survivor",
		UserEmail:      "student@example.com",
		AssessmentID:   42,
		State:          models.AttemptStatePendingSync,
		StartedAt:      finalizedAt.Add(-20 * time.Minute),
		FinalizedAt:    &finalizedAt,
		FinalizeReason: models.FinalizeReasonTimeUp,
		Answers:        []byte(`{"1":{"selected_option_ids":[7],"dirty":true}}`),
	}
	require.NoError(t, NewAttemptRepository(db).Create(ctx, &record))

	// A fresh handle on the same file models a process restart.
	second := database.NewStore()
	require.NoError(t, second.Open(path))
	db2, err := second.DB()
	require.NoError(t, err)

	reloaded, err := NewAttemptRepository(db2).Get(ctx, "survivor")
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatePendingSync, reloaded.State)
	require.Equal(t, models.FinalizeReasonTimeUp, reloaded.FinalizeReason)

	answers, err := reloaded.DecodeAnswers()
	require.NoError(t, err)
	require.Equal(t, []uint{7}, answers["1"].SelectedOptionIDs)
}
