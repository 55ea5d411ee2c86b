package models

import "time"

// DeviceRecord is the session metadata captured at login.
type DeviceRecord struct {
	ID                string    `json:"id" db:"id"`
	AssessmentID      string    `json:"assessment_id" db:"assessment_id"`
	ParticipantID     string    `json:"participant_id" db:"participant_id"`
	AttemptID         string    `json:"attempt_id,omitempty" db:"attempt_id"`
	NetworkOrigin     string    `json:"network_origin" db:"network_origin"`
	ClientFingerprint string    `json:"client_fingerprint" db:"client_fingerprint"`
	UserAgent         string    `json:"user_agent,omitempty" db:"user_agent"`
	LoginAt           time.Time `json:"login_at" db:"login_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
