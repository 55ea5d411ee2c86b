package models

import "time"

// Data Transfer Objects

type RecordSessionRequest struct {
	AssessmentID      string     `json:"assessment_id"`
	ParticipantID     string     `json:"participant_id"`
	AttemptID         string     `json:"attempt_id,omitempty"`
	NetworkOrigin     string     `json:"network_origin"`
	ClientFingerprint string     `json:"client_fingerprint"`
	UserAgent         string     `json:"user_agent,omitempty"`
	LoginAt           *time.Time `json:"login_at,omitempty"`
}

type AnalyzeRequest struct {
	AnswerID string        `json:"answer_id,omitempty"`
	Text     string        `json:"text"`
	Corpus   []CorpusEntry `json:"corpus"`
}

type ReviewAnalysisRequest struct {
	Decision ReviewDecision `json:"decision"`
	Notes    string         `json:"notes,omitempty"`
}

type ResolveSignalRequest struct {
	Status ResolutionStatus `json:"status"`
	Notes  string           `json:"notes,omitempty"`
}

// PipelineResult is returned for every processed answer. Skipped names the
// checks or writes that degraded.
type PipelineResult struct {
	AnswerID         string                `json:"answer_id"`
	Signals          []CollaborationSignal `json:"signals"`
	Analysis         *PlagiarismAnalysis   `json:"analysis,omitempty"`
	Skipped          []string              `json:"skipped,omitempty"`
	ProcessingTimeMs int                   `json:"processing_time_ms"`
}

type IntegritySummary struct {
	AssessmentID           string             `json:"assessment_id,omitempty"`
	SignalsToday           int64              `json:"signals_today"`
	SignalsTodayBySeverity map[Severity]int64 `json:"signals_today_by_severity"`
	FlaggedPendingReview   int64              `json:"flagged_pending_review"`
	GeneratedAt            time.Time          `json:"generated_at"`
}

type ListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

type ServiceStatus struct {
	Status    string                 `json:"status"`
	Database  bool                   `json:"database"`
	Cache     bool                   `json:"cache"`
	RabbitMQ  bool                   `json:"rabbitmq"`
	Workers   map[string]interface{} `json:"workers,omitempty"`
	Consumer  interface{}            `json:"consumer,omitempty"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
}
