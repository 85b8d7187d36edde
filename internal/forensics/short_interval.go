package forensics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/gema-proctor/internal/models"
)

type questionKey struct {
	part     string
	question string
}

func (k questionKey) String() string {
	if k.part == "" {
		return "question " + k.question
	}
	return fmt.Sprintf("%s question %s", k.part, k.question)
}

type questionPhase int

const (
	questionIdle questionPhase = iota
	questionOpen
	questionAnswered
)

// questionState is Idle, OnQuestion(key, since), or Answered(key).
type questionState struct {
	phase questionPhase
	key   questionKey
	since time.Time
}

// dwellTotals accumulates time per question in first-visit order.
type dwellTotals struct {
	order  []questionKey
	totals map[questionKey]time.Duration
}

func newDwellTotals() *dwellTotals {
	return &dwellTotals{totals: make(map[questionKey]time.Duration)}
}

func (t *dwellTotals) add(key questionKey, elapsed time.Duration) {
	if _, ok := t.totals[key]; !ok {
		t.order = append(t.order, key)
	}
	t.totals[key] += elapsed
}

// ShortIntervalDetector flags questions answered implausibly fast after the
// student navigated to them.
type ShortIntervalDetector struct {
	threshold time.Duration
}

// NewShortIntervalDetector constructs the detector. Totals strictly below
// threshold are flagged.
func NewShortIntervalDetector(threshold time.Duration) *ShortIntervalDetector {
	return &ShortIntervalDetector{threshold: threshold}
}

func (d *ShortIntervalDetector) Name() string {
	return string(models.SuggestionShortInterval)
}

func (d *ShortIntervalDetector) Detect(timeline Timeline) ([]Finding, error) {
	state := questionState{phase: questionIdle}
	totals := newDwellTotals()
	var flagged []string

	closeAttempt := func() {
		for _, key := range totals.order {
			total := totals.totals[key]
			if total < d.threshold {
				flagged = append(flagged, fmt.Sprintf("%s (%.2fs)", key, roundSeconds(total)))
			}
		}
		totals = newDwellTotals()
	}

	for _, entry := range timeline.Entries {
		if entry.Event.Kind == EventStartTest {
			closeAttempt()
			state = questionState{phase: questionIdle}
			continue
		}
		state = d.step(state, entry, totals)
	}
	closeAttempt()

	if len(flagged) == 0 {
		return nil, nil
	}

	return []Finding{{
		Type: models.SuggestionShortInterval,
		Description: fmt.Sprintf("%d answer(s) submitted less than %s after opening the question: %s",
			len(flagged), FormatDuration(d.threshold), strings.Join(flagged, ", ")),
	}}, nil
}

func (d *ShortIntervalDetector) step(state questionState, entry Entry, totals *dwellTotals) questionState {
	event := entry.Event

	if event.IsTerminal() {
		if state.phase == questionOpen {
			totals.add(state.key, entry.At.Sub(state.since))
			return questionState{phase: questionAnswered, key: state.key}
		}
		return state
	}

	if !event.IsNavigation() {
		return state
	}

	next, ok := navigate(state, event)
	if !ok {
		return state
	}
	if state.phase == questionOpen {
		if next == state.key {
			return state
		}
		totals.add(state.key, entry.At.Sub(state.since))
	}
	return questionState{phase: questionOpen, key: next, since: entry.At}
}

// navigate resolves the question a navigation event leads to. It reports false
// when the target cannot be determined from the current state.
func navigate(state questionState, event Event) (questionKey, bool) {
	current := state.key
	hasCurrent := state.phase != questionIdle

	switch event.Kind {
	case EventGoToPart:
		return questionKey{part: event.Part, question: "1"}, true
	case EventGoToQuestion:
		return questionKey{part: current.part, question: event.Question}, true
	case EventFirstQuestion:
		return questionKey{part: current.part, question: "1"}, true
	case EventLastQuestion:
		return questionKey{part: current.part, question: "last"}, true
	case EventNextQuestion, EventPreviousQuestion:
		if !hasCurrent {
			return questionKey{}, false
		}
		number, err := strconv.Atoi(current.question)
		if err != nil {
			return current, true
		}
		if event.Kind == EventNextQuestion {
			number++
		} else if number > 1 {
			number--
		}
		return questionKey{part: current.part, question: strconv.Itoa(number)}, true
	}
	return questionKey{}, false
}
