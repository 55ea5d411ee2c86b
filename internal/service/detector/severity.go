package detector

import "github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"

// Severity lower bounds, inclusive.
const (
	DefaultHighSeverityThreshold = 0.9
	DefaultWarnSeverityThreshold = 0.7
)

// SeverityFor maps a signal score to its tier. Every check uses it.
func SeverityFor(score float64) models.Severity {
	switch {
	case score >= DefaultHighSeverityThreshold:
		return models.SeverityHigh
	case score >= DefaultWarnSeverityThreshold:
		return models.SeverityWarn
	default:
		return models.SeverityInfo
	}
}
