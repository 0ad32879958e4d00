package models

import "time"

// UserClockState is the per-account clock-integrity baseline. The offset is
// serverTime minus deviceTime at the last trusted sync; the watermark is the
// last device reading that passed an integrity check and must never decrease.
type UserClockState struct {
	UserEmail               string `gorm:"primaryKey;size:255" json:"user_email"`
	ServerTimeOffsetMs      int64  `json:"server_time_offset_ms"`
	LastCheckedDeviceTimeMs int64  `json:"last_checked_device_time_ms"`
	CheckSequence           int64  `json:"check_sequence"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// HasBaseline reports whether at least one integrity observation exists.
func (s UserClockState) HasBaseline() bool {
	return s.LastCheckedDeviceTimeMs > 0
}
