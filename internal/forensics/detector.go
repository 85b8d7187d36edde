package forensics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/gema-proctor/internal/models"
)

// ErrDetectorFailure marks a detector that failed while scanning a timeline.
var ErrDetectorFailure = errors.New("forensics: detector failure")

// Scope controls which part of a log the IP and inactivity detectors read.
type Scope string

const (
	// ScopeAttempt only considers events between a test start and its submission.
	ScopeAttempt Scope = "attempt"
	// ScopeWholeLog considers every event in the log.
	ScopeWholeLog Scope = "log"
)

// ParseScope returns the scope named by value, defaulting to ScopeAttempt.
func ParseScope(value string) Scope {
	if Scope(value) == ScopeWholeLog {
		return ScopeWholeLog
	}
	return ScopeAttempt
}

// Finding is a single detector result before it is bound to a student.
type Finding struct {
	Type        models.SuggestionType
	Description string
}

// Detector is a read-only scan over a normalized timeline.
type Detector interface {
	Name() string
	Detect(timeline Timeline) ([]Finding, error)
}

// Config tunes the detector thresholds.
type Config struct {
	Scope                  Scope
	ShortAnswerThreshold   time.Duration
	RapidSubmissionMaximum time.Duration
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		Scope:                  ScopeAttempt,
		ShortAnswerThreshold:   5 * time.Second,
		RapidSubmissionMaximum: 30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Scope == "" {
		c.Scope = defaults.Scope
	}
	if c.ShortAnswerThreshold <= 0 {
		c.ShortAnswerThreshold = defaults.ShortAnswerThreshold
	}
	if c.RapidSubmissionMaximum <= 0 {
		c.RapidSubmissionMaximum = defaults.RapidSubmissionMaximum
	}
	return c
}

// NewSuite returns the four detectors in the order they run.
func NewSuite(cfg Config) []Detector {
	cfg = cfg.withDefaults()
	return []Detector{
		NewDifferentIPDetector(cfg.Scope),
		NewScreenActivityDetector(cfg.Scope),
		NewShortIntervalDetector(cfg.ShortAnswerThreshold),
		NewRapidSubmissionDetector(cfg.RapidSubmissionMaximum),
	}
}

// Run executes a detector and converts a panic into an ErrDetectorFailure.
func Run(detector Detector, timeline Timeline) (findings []Finding, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			findings = nil
			err = fmt.Errorf("%w: %s panicked: %v", ErrDetectorFailure, detector.Name(), recovered)
		}
	}()

	findings, err = detector.Detect(timeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDetectorFailure, detector.Name(), err)
	}
	return findings, nil
}

// FormatDuration renders d as "Ns" below one minute and "Hh Mm Ss" otherwise.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds%60)
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
