package forensics

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-proctor/internal/models"
)

// DifferentIPDetector flags a student whose address changed during an attempt.
type DifferentIPDetector struct {
	scope Scope
}

// NewDifferentIPDetector constructs the detector for the given scope.
func NewDifferentIPDetector(scope Scope) *DifferentIPDetector {
	return &DifferentIPDetector{scope: scope}
}

func (d *DifferentIPDetector) Name() string {
	return string(models.SuggestionDifferentIP)
}

func (d *DifferentIPDetector) Detect(timeline Timeline) ([]Finding, error) {
	flagged := newOrderedSet()
	current := newOrderedSet()
	collecting := d.scope == ScopeWholeLog

	closeAttempt := func() {
		if current.Len() > 1 {
			flagged.Add(current.Items()...)
		}
		current = newOrderedSet()
	}

	for _, entry := range timeline.Entries {
		if d.scope == ScopeAttempt && entry.Event.Kind == EventStartTest {
			closeAttempt()
			collecting = true
		}

		if collecting && entry.IP != models.UnknownIP {
			current.Add(entry.IP)
		}

		if d.scope == ScopeAttempt && entry.Event.Kind == EventSubmitConfirm && collecting {
			closeAttempt()
			collecting = false
		}
	}
	closeAttempt()

	if flagged.Len() < 2 {
		return nil, nil
	}

	return []Finding{{
		Type: models.SuggestionDifferentIP,
		Description: fmt.Sprintf("IP address changed during the test: %s (%d distinct addresses)",
			strings.Join(flagged.Items(), ", "), flagged.Len()),
	}}, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) Add(values ...string) {
	for _, value := range values {
		if _, ok := s.seen[value]; ok {
			continue
		}
		s.seen[value] = struct{}{}
		s.items = append(s.items, value)
	}
}

func (s *orderedSet) Len() int {
	return len(s.items)
}

func (s *orderedSet) Items() []string {
	return s.items
}
