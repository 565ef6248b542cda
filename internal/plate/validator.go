// Package plate decides whether a raw OCR read of a candidate region is
// trustworthy enough to be logged as a license plate.
//
// The decision is a conjunction of three gates applied in a fixed order:
// region size, letter/digit composition and alphanumeric length. Every gate is
// exported so it can be exercised on its own.
package plate

import "unicode"

const (
	// DefaultMinArea is the smallest region area, in pixels, worth reading.
	DefaultMinArea = 500

	// DefaultMinAlnum is the minimum number of letters and digits a read must
	// contain once punctuation, spaces and symbols are stripped.
	DefaultMinAlnum = 6
)

// Region is an axis-aligned rectangle within a frame proposed by a region
// detector. It carries no identity across frames.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Verdict is the outcome of validating one read.
type Verdict int

// The zero Verdict is Undecided, which is never accepted.
const (
	Undecided Verdict = iota
	Accepted
	RejectedArea
	RejectedComposition
	RejectedLength
)

// Accepted reports whether every gate passed.
func (v Verdict) Accepted() bool {
	return v == Accepted
}

// String returns a string representation of the Verdict.
func (v Verdict) String() string {
	switch v {
	case Undecided:
		return "undecided"
	case Accepted:
		return "accepted"
	case RejectedArea:
		return "rejected_area"
	case RejectedComposition:
		return "rejected_composition"
	case RejectedLength:
		return "rejected_length"
	default:
		return "unknown"
	}
}

// Validator holds the process-wide thresholds. The zero value is not useful;
// use NewValidator or set both fields.
type Validator struct {
	MinArea  int
	MinAlnum int
}

// NewValidator returns a Validator with the given thresholds. Non-positive
// values fall back to the defaults.
func NewValidator(minArea, minAlnum int) Validator {
	if minArea <= 0 {
		minArea = DefaultMinArea
	}
	if minAlnum <= 0 {
		minAlnum = DefaultMinAlnum
	}
	return Validator{MinArea: minArea, MinAlnum: minAlnum}
}

// Validate applies the size, composition and length gates in that order and
// returns the first failing gate, or Accepted. It has no side effects.
func (v Validator) Validate(region Region, text string) Verdict {
	if !LargeEnough(region, v.MinArea) {
		return RejectedArea
	}
	if !HasLetterAndDigit(text) {
		return RejectedComposition
	}
	if AlnumCount(text) < v.MinAlnum {
		return RejectedLength
	}
	return Accepted
}

// LargeEnough is the size gate.
func LargeEnough(region Region, minArea int) bool {
	return region.Area() >= minArea
}

// HasLetterAndDigit is the composition gate: real plates in this deployment
// mix letters and digits.
func HasLetterAndDigit(text string) bool {
	var letter, digit bool
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}

// AlnumCount counts letters and numbers in text, ignoring everything else.
func AlnumCount(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			n++
		}
	}
	return n
}
