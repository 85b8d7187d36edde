package forensics

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/gema-proctor/internal/models"
)

type screenPhase int

const (
	screenIdle screenPhase = iota
	screenInAttempt
	screenAway
)

// screenState is Idle, InAttempt, or AwayFrom(since).
type screenState struct {
	phase screenPhase
	since time.Time
}

// ScreenActivityDetector measures how long the test tab stayed in the background.
type ScreenActivityDetector struct {
	scope Scope
}

// NewScreenActivityDetector constructs the detector for the given scope.
func NewScreenActivityDetector(scope Scope) *ScreenActivityDetector {
	return &ScreenActivityDetector{scope: scope}
}

func (d *ScreenActivityDetector) Name() string {
	return string(models.SuggestionScreenActivity)
}

func (d *ScreenActivityDetector) Detect(timeline Timeline) ([]Finding, error) {
	state := screenState{phase: screenIdle}
	if d.scope == ScopeWholeLog {
		state.phase = screenInAttempt
	}

	var periods []time.Duration
	for _, entry := range timeline.Entries {
		state, periods = d.step(state, entry, periods)
	}

	if len(periods) == 0 {
		return nil, nil
	}

	rendered := make([]string, 0, len(periods))
	for _, period := range periods {
		rendered = append(rendered, FormatDuration(period))
	}

	return []Finding{{
		Type: models.SuggestionScreenActivity,
		Description: fmt.Sprintf("Test tab was inactive %d time(s) during the test: %s",
			len(periods), strings.Join(rendered, ", ")),
	}}, nil
}

func (d *ScreenActivityDetector) step(state screenState, entry Entry, periods []time.Duration) (screenState, []time.Duration) {
	switch entry.Event.Kind {
	case EventStartTest:
		return screenState{phase: screenInAttempt}, periods
	case EventSubmitConfirm:
		if d.scope == ScopeWholeLog {
			return state, periods
		}
		return screenState{phase: screenIdle}, periods
	case EventTabInactive:
		// A repeated inactive event restarts the away period.
		if state.phase == screenInAttempt || state.phase == screenAway {
			return screenState{phase: screenAway, since: entry.At}, periods
		}
	case EventTabActive:
		if state.phase == screenAway {
			return screenState{phase: screenInAttempt}, append(periods, entry.At.Sub(state.since))
		}
	}
	return state, periods
}
