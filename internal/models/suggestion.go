package models

// SuggestionType identifies the detector that produced a suggestion.
type SuggestionType string

const (
	SuggestionDifferentIP     SuggestionType = "DifferentIP"
	SuggestionScreenActivity  SuggestionType = "Screen_Activity"
	SuggestionShortInterval   SuggestionType = "Short_Interval_between_Answers"
	SuggestionRapidSubmission SuggestionType = "Rapid_Response_Submission"
)

// Suggestion is a finding emitted for one student. The full set for a student
// is regenerated on every analysis run.
type Suggestion struct {
	StudentID   string         `json:"Student_ID"`
	Name        string         `json:"Name"`
	Type        SuggestionType `json:"Type"`
	Description string         `json:"Description"`
}
