// Package measure provides exact dimension arithmetic and the parsing and
// formatting of dimension strings entered in cabinet forms.
//
// Dimensions are stored in tenths of a millimeter so that metric and imperial
// inputs round-trip without floating point drift.
package measure

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidDimension is returned by Parse for input that is not a
// recognizable dimension.
var ErrInvalidDimension = errors.New("invalid dimension")

// Dimension is a length in tenths of a millimeter.
type Dimension int64

// Conversion factors to tenths of a millimeter.
const (
	tenthsPerMillimeter = 10
	tenthsPerCentimeter = 100
	tenthsPerMeter      = 10000
	tenthsPerInch       = 254
	tenthsPerFoot       = 3048
)

// Unit identifies a display unit for formatting.
type Unit int

const (
	Millimeter Unit = iota
	Centimeter
	Meter
	Inch
	Foot
)

// String returns the unit suffix.
func (u Unit) String() string {
	switch u {
	case Millimeter:
		return "mm"
	case Centimeter:
		return "cm"
	case Meter:
		return "m"
	case Inch:
		return "in"
	case Foot:
		return "ft"
	default:
		return "unknown"
	}
}

// FromMillimeters converts a millimeter value to a Dimension, rounding to
// the nearest tenth of a millimeter.
func FromMillimeters(mm float64) Dimension {
	return Dimension(math.Round(mm * tenthsPerMillimeter))
}

// FromInches converts an inch value to a Dimension.
func FromInches(in float64) Dimension {
	return Dimension(math.Round(in * tenthsPerInch))
}

// Millimeters returns the dimension as a millimeter value.
func (d Dimension) Millimeters() float64 {
	return float64(d) / tenthsPerMillimeter
}

// Inches returns the dimension as an inch value.
func (d Dimension) Inches() float64 {
	return float64(d) / tenthsPerInch
}

// String formats the dimension in millimeters with a unit suffix.
func (d Dimension) String() string {
	return d.Format(Millimeter)
}

// Format renders the dimension in the given unit. Values are rounded to four
// decimal places and trailing zeros are trimmed.
func (d Dimension) Format(u Unit) string {
	var v float64
	switch u {
	case Centimeter:
		v = float64(d) / tenthsPerCentimeter
	case Meter:
		v = float64(d) / tenthsPerMeter
	case Inch:
		v = d.Inches()
	case Foot:
		v = float64(d) / tenthsPerFoot
	default:
		v = d.Millimeters()
		u = Millimeter
	}
	v = math.Round(v*10000) / 10000
	return strconv.FormatFloat(v, 'f', -1, 64) + u.String()
}

// suffixes maps input suffixes to tenths-of-a-millimeter factors. Longer
// suffixes must be checked before shorter ones ("mm" before "m").
var suffixes = []struct {
	text   string
	factor float64
}{
	{"mm", tenthsPerMillimeter},
	{"cm", tenthsPerCentimeter},
	{"ft", tenthsPerFoot},
	{"in", tenthsPerInch},
	{`"`, tenthsPerInch},
	{"'", tenthsPerFoot},
	{"m", tenthsPerMeter},
}

// Parse converts a dimension string to a Dimension. Recognized forms include
// "750", "750mm", "75cm", "0.75m", "30in", "30\"", "2ft", and "2'". A bare
// number is read as millimeters. Negative dimensions are rejected.
func Parse(s string) (Dimension, error) {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidDimension)
	}

	factor := float64(tenthsPerMillimeter)
	number := trimmed
	for _, suf := range suffixes {
		if strings.HasSuffix(trimmed, suf.text) {
			factor = suf.factor
			number = strings.TrimSpace(strings.TrimSuffix(trimmed, suf.text))
			break
		}
	}

	if number == "" {
		return 0, fmt.Errorf("%w: %q has no numeric value", ErrInvalidDimension, s)
	}

	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDimension, s)
	}

	return Dimension(math.Round(v * factor)), nil
}
