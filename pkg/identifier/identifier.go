// Package identifier implements the compound position-number algebra used by
// bill-of-quantities documents: parsing and formatting of the compact
// LG/ULG/base-number/variant-letter form, successor generation, and
// component-wise change detection.
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Components holds the ordered parts of a position number. A later component
// is only meaningful when all earlier ones are present: LG alone or LG+ULG
// denote group-level intent, LG+ULG+BaseNr a full position, and FTNr a
// variant of that position.
type Components struct {
	// LG is the two-digit main group number.
	LG string
	// ULG is the two-digit sub-group number.
	ULG string
	// BaseNr is the two-digit base item number.
	BaseNr string
	// FTNr is the optional single uppercase variant letter.
	FTNr string
}

// Parse failure reasons. Wrapped errors carry segment detail; use errors.Is
// to test for the category.
var (
	ErrEmpty              = errors.New("identifier is empty")
	ErrNonNumericSegment  = errors.New("non-numeric segment")
	ErrNonTwoDigitSegment = errors.New("segment is not two digits")
	ErrInvalidSuffix      = errors.New("variant suffix must be a single uppercase letter")
	ErrTrailingCharacters = errors.New("trailing characters after variant letter")
)

// Separator joins the numeric segments in the human display form.
const Separator = "."

// Parse reads a compact identifier string from the left: two digits for the
// main group, then optionally two for the sub-group, two for the base item
// number, and a single uppercase variant letter. Partial forms are valid.
// No separators are accepted; the input is the dot-less compact form.
func Parse(raw string) (Components, error) {
	if raw == "" {
		return Components{}, ErrEmpty
	}

	var c Components
	rest := raw
	for i, target := range []*string{&c.LG, &c.ULG, &c.BaseNr} {
		if rest == "" {
			return c, nil
		}
		if len(rest) == 1 {
			if i > 0 && isUpperLetter(rest[0]) {
				// A lone letter here belongs to the suffix slot, which
				// requires the base number first.
				return Components{}, fmt.Errorf("variant letter %q without base item number: %w", rest, ErrNonTwoDigitSegment)
			}
			return Components{}, fmt.Errorf("segment %q: %w", rest, ErrNonTwoDigitSegment)
		}
		seg := rest[:2]
		if !isDigits(seg) {
			return Components{}, fmt.Errorf("segment %q: %w", seg, ErrNonNumericSegment)
		}
		*target = seg
		rest = rest[2:]
	}

	if rest == "" {
		return c, nil
	}
	if !isUpperLetter(rest[0]) {
		return Components{}, fmt.Errorf("suffix %q: %w", rest[:1], ErrInvalidSuffix)
	}
	c.FTNr = rest[:1]
	if len(rest) > 1 {
		return Components{}, fmt.Errorf("unexpected %q: %w", rest[1:], ErrTrailingCharacters)
	}
	return c, nil
}

// Validation reports the outcome of a Validate call. Errors lists
// human-readable reasons; an empty list means the identifier is well formed.
type Validation struct {
	Valid  bool
	Errors []string
}

// Validate wraps Parse with the semantic order invariant: no component may be
// present when an earlier one is absent, and the suffix must be exactly one
// uppercase letter.
func Validate(raw string) Validation {
	c, err := Parse(raw)
	if err != nil {
		return Validation{Errors: []string{err.Error()}}
	}
	var errs []string
	if c.LG == "" {
		errs = append(errs, "main group number is required")
	}
	if c.ULG == "" && (c.BaseNr != "" || c.FTNr != "") {
		errs = append(errs, "sub-group number is required before deeper components")
	}
	if c.BaseNr == "" && c.FTNr != "" {
		errs = append(errs, "variant letter requires a base item number")
	}
	if c.FTNr != "" && (len(c.FTNr) != 1 || !isUpperLetter(c.FTNr[0])) {
		errs = append(errs, "variant suffix must be a single letter A-Z")
	}
	return Validation{Valid: len(errs) == 0, Errors: errs}
}

// Format renders the display form: numeric segments joined by the separator,
// the variant letter appended unseparated. Formatting a parsed identifier and
// re-parsing the compact form of the result yields the same components.
func (c Components) Format() string {
	parts := make([]string, 0, 3)
	for _, seg := range []string{c.LG, c.ULG, c.BaseNr} {
		if seg == "" {
			break
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, Separator) + c.FTNr
}

// Compact renders the separator-free form accepted by Parse.
func (c Components) Compact() string {
	var b strings.Builder
	for _, seg := range []string{c.LG, c.ULG, c.BaseNr} {
		if seg == "" {
			break
		}
		b.WriteString(seg)
	}
	b.WriteString(c.FTNr)
	return b.String()
}

// Depth returns the number of components present, counting the variant
// letter. A bare LG has depth 1, a full variant identifier depth 4.
func (c Components) Depth() int {
	switch {
	case c.FTNr != "":
		return 4
	case c.BaseNr != "":
		return 3
	case c.ULG != "":
		return 2
	case c.LG != "":
		return 1
	default:
		return 0
	}
}

// IsGroupLevel reports whether the identifier denotes a group or sub-group
// rather than a line item.
func (c Components) IsGroupLevel() bool {
	return c.LG != "" && c.BaseNr == ""
}

// Equal reports component-wise equality.
func (c Components) Equal(other Components) bool {
	return c == other
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isUpperLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
