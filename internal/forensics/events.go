// Package forensics scans a student's test activity log and reports behaviour
// that suggests academic dishonesty or a technical irregularity.
package forensics

import (
	"regexp"
	"strconv"
	"strings"
)

// EventKind is the closed set of activity kinds the detectors understand.
type EventKind string

const (
	EventOther            EventKind = "other"
	EventStartTest        EventKind = "start_test"
	EventSubmitConfirm    EventKind = "submit_confirm"
	EventTabInactive      EventKind = "tab_inactive"
	EventTabActive        EventKind = "tab_active"
	EventGoToQuestion     EventKind = "go_to_question"
	EventGoToPart         EventKind = "go_to_part"
	EventNextQuestion     EventKind = "next_question"
	EventPreviousQuestion EventKind = "previous_question"
	EventFirstQuestion    EventKind = "first_question"
	EventLastQuestion     EventKind = "last_question"
	EventSubmit           EventKind = "submit"
	EventFinishButton     EventKind = "finish_button"
	EventSaveAndClose     EventKind = "save_and_close"
)

// Event is the parsed form of an activity status.
type Event struct {
	Kind EventKind
	// Question holds the numeral for EventGoToQuestion.
	Question string
	// Part holds the section title for EventGoToPart.
	Part string
}

// IsNavigation reports whether the event moves the student to another question.
func (e Event) IsNavigation() bool {
	switch e.Kind {
	case EventGoToQuestion, EventGoToPart, EventNextQuestion, EventPreviousQuestion, EventFirstQuestion, EventLastQuestion:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event ends work on the current question.
func (e Event) IsTerminal() bool {
	switch e.Kind {
	case EventSubmit, EventFinishButton, EventSaveAndClose:
		return true
	default:
		return false
	}
}

var goToQuestionPattern = regexp.MustCompile(`^go to question\s+(\d+)\b`)

// ParseStatus maps a free-text status reported by the test client to an Event.
// Unknown statuses are EventOther.
func ParseStatus(status string) Event {
	trimmed := strings.Join(strings.Fields(status), " ")
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "":
		return Event{Kind: EventOther}
	case strings.Contains(lower, "start test"):
		return Event{Kind: EventStartTest}
	case strings.Contains(lower, "submission confirm"):
		return Event{Kind: EventSubmitConfirm}
	case lower == "inactive tab" || strings.Contains(lower, "tab inactive"):
		return Event{Kind: EventTabInactive}
	case lower == "active tab" || strings.Contains(lower, "tab active"):
		return Event{Kind: EventTabActive}
	}

	if match := goToQuestionPattern.FindStringSubmatch(lower); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			return Event{Kind: EventGoToQuestion, Question: strconv.Itoa(n)}
		}
	}
	if strings.HasPrefix(lower, "go to ") {
		part := strings.TrimSpace(trimmed[len("go to "):])
		if part != "" {
			return Event{Kind: EventGoToPart, Part: part}
		}
	}

	switch lower {
	case "next question":
		return Event{Kind: EventNextQuestion}
	case "previous question", "prev question":
		return Event{Kind: EventPreviousQuestion}
	case "first question":
		return Event{Kind: EventFirstQuestion}
	case "last question":
		return Event{Kind: EventLastQuestion}
	case "submit":
		return Event{Kind: EventSubmit}
	case "finish button", "finish":
		return Event{Kind: EventFinishButton}
	case "save and close":
		return Event{Kind: EventSaveAndClose}
	}

	return Event{Kind: EventOther}
}
