package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumenlms/pocketsync/internal/models"
)

// State describes the lifecycle of the local store handle.
type State int

const (
	// StateUninitialized means Open has not been called yet.
	StateUninitialized State = iota
	// StateInitializing means the store is being opened and migrated.
	StateInitializing
	// StateReady means the store accepts reads and writes.
	StateReady
	// StateFailed means initialization failed; the handle is unusable.
	StateFailed
)

// Store owns the durable SQLite handle shared by every repository. It is
// constructed once at startup and injected, never reached through a package
// global, so tests can substitute an in-memory instance.
type Store struct {
	mu    sync.Mutex
	state State
	db    *gorm.DB
}

// NewStore returns an uninitialized store handle.
func NewStore() *Store {
	return &Store{state: StateUninitialized}
}

// Open connects to the SQLite file at path and migrates the schema. Calling
// Open on a ready store is a no-op; calling it concurrently is safe.
func (s *Store) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateInitializing:
		return fmt.Errorf("store initialization already in progress")
	}

	if path == "" {
		return fmt.Errorf("store path must not be empty")
	}

	s.state = StateInitializing

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.AutoMigrate(
		&models.UserClockState{},
		&models.Course{},
		&models.CourseDetail{},
		&models.Material{},
		&models.Assessment{},
		&models.AssessmentStatus{},
		&models.AttemptRecord{},
		&models.PendingUpload{},
		&models.SyncCheckpoint{},
	); err != nil {
		s.state = StateFailed
		return fmt.Errorf("failed to migrate local store: %w", err)
	}

	s.db = db
	s.state = StateReady
	return nil
}

// DB returns the underlying handle. It returns an error until Open succeeds.
func (s *Store) DB() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, fmt.Errorf("local store is not ready")
	}

	return s.db, nil
}

// State reports the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// String renders the state for logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
