package identifier

import (
	"fmt"
	"strings"
	"time"
)

// Component names a structural level of a position number as it is classified
// by change detection.
type Component string

const (
	ComponentLG                 Component = "lg"
	ComponentULG                Component = "ulg"
	ComponentPosition           Component = "position"
	ComponentUngeteiltePosition Component = "ungeteilteposition"
	ComponentFolgeposition      Component = "folgeposition"
)

// componentOrder fixes the classification precedence. Earlier entries
// describe shallower structure; a change report lists components in this
// order regardless of detection order.
var componentOrder = []Component{
	ComponentLG,
	ComponentULG,
	ComponentPosition,
	ComponentUngeteiltePosition,
	ComponentFolgeposition,
}

// ChangeRecord describes one observed transition between two identifiers.
type ChangeRecord struct {
	From       Components
	To         Components
	Components []Component
	At         time.Time
}

// Changed reports whether the record carries any component change.
func (r ChangeRecord) Changed() bool { return len(r.Components) > 0 }

// Has reports whether the record classified a change at the given component.
func (r ChangeRecord) Has(c Component) bool {
	for _, got := range r.Components {
		if got == c {
			return true
		}
	}
	return false
}

// Summary renders one line per classified component. An absent old value
// prints as a dash.
func (r ChangeRecord) Summary() []string {
	return summaryLines(r.From, r.To, r.Components)
}

// DetectChanges compares two identifiers component-wise and classifies every
// difference. The base-number level is reported as an undivided position when
// the new identifier carries no variant letter, and as a follow-up position
// when it does; a variant-letter change alone is always a follow-up change.
// A sub-group change on a group-level identifier that still names a
// sub-group additionally implies a position change, since every item number
// below the old sub-group is now stale.
func DetectChanges(from, to Components) ChangeRecord {
	rec := ChangeRecord{From: from, To: to, At: time.Now().UTC()}
	if from == to {
		return rec
	}

	mark := func(c Component) {
		if !rec.Has(c) {
			rec.Components = append(rec.Components, c)
		}
	}

	if from.LG != to.LG {
		mark(ComponentLG)
	}
	if from.ULG != to.ULG {
		mark(ComponentULG)
		// A bare-group identifier addresses no positions, so dropping the
		// sub-group cannot stale any item numbers.
		if to.ULG != "" && to.IsGroupLevel() {
			mark(ComponentPosition)
		}
	}
	if from.BaseNr != to.BaseNr || from.FTNr != to.FTNr {
		// The two item classifications are mutually exclusive within a
		// record; the variant letter of the new value decides which one.
		if to.FTNr != "" {
			mark(ComponentFolgeposition)
		} else {
			mark(ComponentUngeteiltePosition)
		}
	}

	rec.Components = sortComponents(rec.Components)
	return rec
}

// DetectRawChanges parses both identifiers before classifying. Editors hold
// the value under edit as text, so this is the form typing-time detection
// calls.
func DetectRawChanges(previous, current string) (ChangeRecord, error) {
	from, err := Parse(previous)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("previous identifier: %w", err)
	}
	to, err := Parse(current)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("current identifier: %w", err)
	}
	return DetectChanges(from, to), nil
}

// Session accumulates change records over a sequence of identifier edits and
// keeps a deduplicated component set. The undivided-position and follow-up
// classifications are mutually exclusive within a session: whichever was
// observed later evicts the other.
type Session struct {
	records    []ChangeRecord
	components []Component
}

// Apply folds one transition into the session and returns the updated
// session. The receiver is not modified.
func (s Session) Apply(from, to Components) Session {
	return s.record(DetectChanges(from, to))
}

func (s Session) record(rec ChangeRecord) Session {
	if !rec.Changed() {
		return s
	}
	next := Session{
		records:    append(append([]ChangeRecord(nil), s.records...), rec),
		components: append([]Component(nil), s.components...),
	}
	for _, c := range rec.Components {
		next.components = evict(next.components, exclusiveWith(c))
		if !containsComponent(next.components, c) {
			next.components = append(next.components, c)
		}
	}
	next.components = sortComponents(next.components)
	return next
}

// Components returns the session's accumulated component set in
// classification order.
func (s Session) Components() []Component {
	return append([]Component(nil), s.components...)
}

// Records returns the individual transitions in application order.
func (s Session) Records() []ChangeRecord {
	return append([]ChangeRecord(nil), s.records...)
}

// Summary renders one line per accumulated component, comparing the first
// and last identifier of the session. An absent old value prints as a dash.
func (s Session) Summary() []string {
	if len(s.records) == 0 {
		return nil
	}
	return summaryLines(s.records[0].From, s.records[len(s.records)-1].To, s.components)
}

func summaryLines(from, to Components, components []Component) []string {
	lines := make([]string, 0, len(components))
	for _, c := range components {
		oldVal, newVal := componentValue(from, c), componentValue(to, c)
		if oldVal == "" {
			oldVal = "–"
		}
		lines = append(lines, fmt.Sprintf("%s changed from %s to %s", strings.ToUpper(string(c)), oldVal, newVal))
	}
	return lines
}

func componentValue(c Components, at Component) string {
	switch at {
	case ComponentLG:
		return c.LG
	case ComponentULG:
		return c.ULG
	case ComponentPosition, ComponentUngeteiltePosition:
		return c.BaseNr
	case ComponentFolgeposition:
		if c.BaseNr == "" {
			return c.FTNr
		}
		return c.BaseNr + c.FTNr
	default:
		return ""
	}
}

func exclusiveWith(c Component) Component {
	switch c {
	case ComponentUngeteiltePosition:
		return ComponentFolgeposition
	case ComponentFolgeposition:
		return ComponentUngeteiltePosition
	default:
		return ""
	}
}

func evict(set []Component, c Component) []Component {
	if c == "" {
		return set
	}
	out := set[:0]
	for _, got := range set {
		if got != c {
			out = append(out, got)
		}
	}
	return out
}

func containsComponent(set []Component, c Component) bool {
	for _, got := range set {
		if got == c {
			return true
		}
	}
	return false
}

func sortComponents(set []Component) []Component {
	out := make([]Component, 0, len(set))
	for _, c := range componentOrder {
		if containsComponent(set, c) {
			out = append(out, c)
		}
	}
	return out
}
