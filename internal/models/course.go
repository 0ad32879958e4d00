package models

import (
	"time"

	"gorm.io/datatypes"
)

// Course is a cached snapshot of an enrolled course.
type Course struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserEmail  string     `gorm:"size:255;not null;uniqueIndex:idx_course_user" json:"user_email"`
	CourseID   uint       `gorm:"not null;uniqueIndex:idx_course_user" json:"course_id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Code       string     `gorm:"size:64" json:"code"`
	Teacher    string     `gorm:"size:255" json:"teacher"`
	EnrolledAt *time.Time `json:"enrolled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CourseDetail caches the full course payload (nested topics, materials and
// assessment references) as returned by the server.
type CourseDetail struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserEmail string         `gorm:"size:255;not null;uniqueIndex:idx_detail_user" json:"user_email"`
	CourseID  uint           `gorm:"not null;uniqueIndex:idx_detail_user" json:"course_id"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Material is a downloadable course resource reference.
type Material struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserEmail string    `gorm:"size:255;not null;index" json:"user_email"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	FileURL   string    `gorm:"size:512" json:"file_url"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
