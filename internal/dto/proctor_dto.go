package dto

import (
	"github.com/noah-isme/gema-proctor/internal/models"
)

// IngestActivityRequest is the payload posted by the test client for every event.
// Field names follow the client's wire format.
type IngestActivityRequest struct {
	TestSession string           `json:"Test_Session" validate:"required,max=128,excludesall=/"`
	StudentID   string           `json:"Student_ID" validate:"required,max=128,excludesall=/"`
	Name        string           `json:"Name" validate:"omitempty,max=256"`
	Surname     string           `json:"Surname" validate:"omitempty,max=256"`
	Status      string           `json:"Status" validate:"required,max=512"`
	Timestamp   models.Timestamp `json:"Timestamp" validate:"required"`
	IP          string           `json:"IP" validate:"omitempty,max=64"`
}

// IngestActivityResponse acknowledges a stored activity.
type IngestActivityResponse struct {
	Key        string `json:"key"`
	Activities int    `json:"activities"`
}

// ActivityLogResponse serializes a student's activity log.
type ActivityLogResponse struct {
	TestSession string            `json:"Test_Session"`
	StudentID   string            `json:"Student_ID"`
	Name        string            `json:"Name"`
	Surname     string            `json:"Surname,omitempty"`
	Activities  []models.Activity `json:"Activities"`
}

// NewActivityLogResponse converts a stored log into its response shape.
func NewActivityLogResponse(session, student string, log models.ActivityLog) ActivityLogResponse {
	activities := log.Activities
	if activities == nil {
		activities = []models.Activity{}
	}
	return ActivityLogResponse{
		TestSession: session,
		StudentID:   student,
		Name:        log.Name,
		Surname:     log.Surname,
		Activities:  activities,
	}
}

// StudentAnalysisResponse reports the outcome of analysing one student.
type StudentAnalysisResponse struct {
	TestSession     string              `json:"test_session"`
	StudentID       string              `json:"student_id"`
	Name            string              `json:"name"`
	Suggestions     []models.Suggestion `json:"suggestions"`
	FailedDetectors []string            `json:"failed_detectors,omitempty"`
	DroppedEvents   int                 `json:"dropped_events"`
	Cleared         int                 `json:"cleared"`
}

// StudentFailure records a student whose analysis could not complete.
type StudentFailure struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

// SessionAnalysisResponse reports the outcome of analysing every student in a session.
type SessionAnalysisResponse struct {
	TestSession      string                    `json:"test_session"`
	Students         []StudentAnalysisResponse `json:"students"`
	Failed           []StudentFailure          `json:"failed,omitempty"`
	TotalSuggestions int                       `json:"total_suggestions"`
}
