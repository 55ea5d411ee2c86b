package service

import "errors"

// Sentinel errors mapped to HTTP codes in the delivery layer.
var (
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrInvalidSession    = errors.New("invalid session record")
	ErrInvalidDecision   = errors.New("decision must be accepted or rejected")
	ErrInvalidResolution = errors.New("resolution status must be open, confirmed or dismissed")
	ErrMissingFilter     = errors.New("at least one of attempt_id, question_id, answer_id is required")

	ErrAnalysisNotFound = errors.New("plagiarism analysis not found")
	ErrSignalNotFound   = errors.New("collaboration signal not found")
	ErrAlreadyReviewed  = errors.New("analysis already reviewed")

	// An upstream read failed and no verdict could be produced.
	ErrDetectorUnavailable = errors.New("detector unavailable")
)
