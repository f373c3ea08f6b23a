package identifier

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrRangeExhausted is returned when the deepest component of an identifier
// has no successor: a numeric segment already at 99 or a variant letter at Z.
// Exhaustion never carries into the parent component.
var ErrRangeExhausted = errors.New("identifier range exhausted")

// Next returns the identifier with the deepest present component incremented.
// Numeric segments advance 01, 02, ... 99; the variant letter advances A-Z.
// All shallower components are untouched.
func Next(c Components) (Components, error) {
	switch {
	case c.FTNr != "":
		if c.FTNr == "Z" {
			return Components{}, fmt.Errorf("variant letter %q: %w", c.FTNr, ErrRangeExhausted)
		}
		c.FTNr = string(c.FTNr[0] + 1)
		return c, nil
	case c.BaseNr != "":
		nr, err := incrementSegment(c.BaseNr)
		if err != nil {
			return Components{}, err
		}
		c.BaseNr = nr
		return c, nil
	case c.ULG != "":
		nr, err := incrementSegment(c.ULG)
		if err != nil {
			return Components{}, err
		}
		c.ULG = nr
		return c, nil
	case c.LG != "":
		nr, err := incrementSegment(c.LG)
		if err != nil {
			return Components{}, err
		}
		c.LG = nr
		return c, nil
	default:
		return Components{}, ErrEmpty
	}
}

// FirstChild returns the identifier one level deeper than c. Below a group
// or sub-group the new segment starts at 01; below a base item the first
// variant letter is A. A full variant identifier has no child level.
func FirstChild(c Components) (Components, error) {
	switch c.Depth() {
	case 1:
		c.ULG = "01"
		return c, nil
	case 2:
		c.BaseNr = "01"
		return c, nil
	case 3:
		c.FTNr = "A"
		return c, nil
	case 4:
		return Components{}, fmt.Errorf("variant identifiers have no child level: %w", ErrRangeExhausted)
	default:
		return Components{}, ErrEmpty
	}
}

// FollowUp returns the first variant of a base item identifier. It is the
// explicit form of FirstChild for full position numbers.
func FollowUp(c Components) (Components, error) {
	if c.BaseNr == "" {
		return Components{}, errors.New("follow-up position requires a base item number")
	}
	if c.FTNr != "" {
		return Next(c)
	}
	c.FTNr = "A"
	return c, nil
}

func incrementSegment(seg string) (string, error) {
	n, err := strconv.Atoi(seg)
	if err != nil {
		return "", fmt.Errorf("segment %q: %w", seg, ErrNonNumericSegment)
	}
	if n >= 99 {
		return "", fmt.Errorf("segment %q: %w", seg, ErrRangeExhausted)
	}
	return fmt.Sprintf("%02d", n+1), nil
}
