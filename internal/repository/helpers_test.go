package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
)

// setupTestDB opens a uniquely-named shared in-memory database so parallel
// tests never see each other's rows.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserClockState{},
		&models.Course{},
		&models.CourseDetail{},
		&models.Material{},
		&models.Assessment{},
		&models.AssessmentStatus{},
		&models.AttemptRecord{},
		&models.PendingUpload{},
		&models.SyncCheckpoint{},
	))
	return db
}
