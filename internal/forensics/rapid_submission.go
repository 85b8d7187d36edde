package forensics

import (
	"fmt"
	"time"

	"github.com/noah-isme/gema-proctor/internal/models"
)

// RapidSubmissionDetector flags attempts submitted faster than maximum after
// the test was started.
type RapidSubmissionDetector struct {
	maximum time.Duration
}

// NewRapidSubmissionDetector constructs the detector.
func NewRapidSubmissionDetector(maximum time.Duration) *RapidSubmissionDetector {
	return &RapidSubmissionDetector{maximum: maximum}
}

func (d *RapidSubmissionDetector) Name() string {
	return string(models.SuggestionRapidSubmission)
}

func (d *RapidSubmissionDetector) Detect(timeline Timeline) ([]Finding, error) {
	var (
		findings []Finding
		started  *time.Time
	)

	for _, entry := range timeline.Entries {
		switch entry.Event.Kind {
		case EventStartTest:
			at := entry.At
			started = &at
		case EventSubmitConfirm:
			if started == nil {
				continue
			}
			duration := entry.At.Sub(*started)
			started = nil
			if duration >= 0 && duration < d.maximum {
				findings = append(findings, Finding{
					Type: models.SuggestionRapidSubmission,
					Description: fmt.Sprintf("Test submitted %s after it was started, below the %.0f minute threshold",
						FormatDuration(duration), d.maximum.Minutes()),
				})
			}
		}
	}

	return findings, nil
}
