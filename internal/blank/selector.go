package blank

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrNoInsertionRule means the single blank page has no entry in the layout policy.
	ErrNoInsertionRule = errors.New("no insertion rule for blank page")

	// ErrAmbiguousBlankPages means several pages are blank and no explicit target was given.
	ErrAmbiguousBlankPages = errors.New("multiple blank pages and no explicit target")

	// ErrUnknownLayout means the requested layout has no registered policy.
	ErrUnknownLayout = errors.New("unknown document layout")

	// ErrPageOutOfRange means a target page lies outside the document.
	ErrPageOutOfRange = errors.New("target page out of range")
)

// Layout names a document template.
type Layout string

// LayoutStandard is the four-page policy form: pages 3 and 4 hold the signature fields,
// and whichever of them the scanner left blank is the back of the other.
const LayoutStandard Layout = "standard"

// Policy maps the single blank page of a layout to the page that receives the stamp.
type Policy struct {
	// Rules maps a blank page number to the target page number.
	Rules map[int]int

	// NoBlankLast sends the stamp to the last page when no page is blank.
	NoBlankLast bool
}

// LayoutPolicyStandard returns the built-in policy for LayoutStandard.
func LayoutPolicyStandard() Policy {
	return Policy{
		Rules:       map[int]int{3: 4, 4: 3},
		NoBlankLast: true,
	}
}

// Selector picks insertion pages from a blankness verdict.
type Selector struct {
	policies map[Layout]Policy
	log      zerolog.Logger
}

// NewSelector creates a Selector with the built-in layouts registered.
func NewSelector(log zerolog.Logger) *Selector {
	return &Selector{
		policies: map[Layout]Policy{LayoutStandard: LayoutPolicyStandard()},
		log:      log,
	}
}

// Register adds or replaces the policy for a layout.
func (s *Selector) Register(layout Layout, p Policy) {
	s.policies[layout] = p
}

// Select returns the 1-based target pages, one per placement group.
//
// A non-empty override is used as given after range checks. Otherwise the verdict decides:
// no blank page goes to the policy's fallback, a single blank page is looked up in the
// policy table, and several blank pages are an error. Select never guesses.
func (s *Selector) Select(layout Layout, v Verdict, pageCount int, override []int) ([]int, error) {
	if len(override) > 0 {
		for _, p := range override {
			if p < 1 || p > pageCount {
				return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, p, pageCount)
			}
		}
		s.log.Debug().Ints("pages", override).Msg("Using explicit insertion pages")
		return append([]int(nil), override...), nil
	}

	policy, ok := s.policies[layout]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}

	var target int
	switch v.Kind() {
	case None:
		if !policy.NoBlankLast {
			return nil, fmt.Errorf("%w: layout %q has no rule for documents without blank pages", ErrNoInsertionRule, layout)
		}
		target = pageCount
	case Single:
		blank, _ := v.Single()
		t, ok := policy.Rules[blank]
		if !ok {
			return nil, fmt.Errorf("%w: page %d in layout %q", ErrNoInsertionRule, blank, layout)
		}
		target = t
	default:
		return nil, fmt.Errorf("%w: pages %v", ErrAmbiguousBlankPages, v.Blank)
	}

	if target < 1 || target > pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, target, pageCount)
	}

	s.log.Info().
		Str("layout", string(layout)).
		Ints("blank_pages", v.Blank).
		Int("target_page", target).
		Msg("Selected insertion page")

	return []int{target}, nil
}
