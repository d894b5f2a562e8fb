package xl

import (
	"fmt"
	"strings"
)

// NumberFormat selects how numeric cell content is displayed. The value is
// the numFmtId written to the styles part.
type NumberFormat uint8

// MaxDecimalPlaces is the largest number of places supported by the fixed,
// scientific and percent formats.
const MaxDecimalPlaces = 16

const (
	FormatGeneral NumberFormat = 0
	FormatText    NumberFormat = 49

	// custom formats; each family covers 0..MaxDecimalPlaces places
	FormatFixed      NumberFormat = 100
	FormatScientific NumberFormat = FormatFixed + MaxDecimalPlaces + 1
	FormatPercent    NumberFormat = FormatScientific + MaxDecimalPlaces + 1

	firstCustomFormat = FormatFixed
	lastCustomFormat  = FormatPercent + MaxDecimalPlaces
)

// Fixed returns the fixed point format with the given number of places,
// clamped to 0..MaxDecimalPlaces.
func Fixed(places int) NumberFormat { return FormatFixed + clampPlaces(places) }

// Scientific returns the scientific notation format with the given number
// of places, clamped to 0..MaxDecimalPlaces.
func Scientific(places int) NumberFormat { return FormatScientific + clampPlaces(places) }

// Percent returns the percentage format with the given number of places,
// clamped to 0..MaxDecimalPlaces. A value of 0.1 displays as 10%.
func Percent(places int) NumberFormat { return FormatPercent + clampPlaces(places) }

func clampPlaces(places int) NumberFormat {
	return NumberFormat(max(0, min(places, MaxDecimalPlaces)))
}

func (f NumberFormat) Valid() bool {
	return f == FormatGeneral || f == FormatText || (f >= firstCustomFormat && f <= lastCustomFormat)
}

func (f NumberFormat) custom() bool {
	return f >= firstCustomFormat && f <= lastCustomFormat
}

// code returns the format code of a custom format.
func (f NumberFormat) code() string {
	var family NumberFormat
	var suffix string
	switch {
	case f >= FormatPercent:
		family, suffix = FormatPercent, "%"
	case f >= FormatScientific:
		family, suffix = FormatScientific, "E+00"
	default:
		family = FormatFixed
	}
	places := int(f - family)
	if places == 0 {
		return "0" + suffix
	}
	return "0." + strings.Repeat("0", places) + suffix
}

type HorizontalAlign uint8

const (
	HAlignGeneral HorizontalAlign = iota
	HAlignLeft
	HAlignCenter
	HAlignRight
)

func (a HorizontalAlign) String() string {
	switch a {
	case HAlignGeneral:
		return "general"
	case HAlignLeft:
		return "left"
	case HAlignCenter:
		return "center"
	case HAlignRight:
		return "right"
	}
	return fmt.Sprintf("HorizontalAlign(%d)", uint8(a))
}

type VerticalAlign uint8

const (
	VAlignBottom VerticalAlign = iota
	VAlignCenter
	VAlignTop
)

func (a VerticalAlign) String() string {
	switch a {
	case VAlignBottom:
		return "bottom"
	case VAlignCenter:
		return "center"
	case VAlignTop:
		return "top"
	}
	return fmt.Sprintf("VerticalAlign(%d)", uint8(a))
}

// CellStyle describes the appearance of a cell. Styles are compared by
// value: equal descriptors share one entry in the styles part.
type CellStyle struct {
	Format     NumberFormat
	Horizontal HorizontalAlign
	Vertical   VerticalAlign
	Wrap       bool
	Bold       bool
}

var (
	// GenericStyle is the default for number and formula cells.
	GenericStyle = CellStyle{}

	// GenericStringStyle is the default for string cells.
	GenericStringStyle = CellStyle{Format: FormatText}
)

func (s CellStyle) validate() error {
	if !s.Format.Valid() {
		return fmt.Errorf("%w: number format %d", ErrInvalidFormat, s.Format)
	}
	if s.Horizontal > HAlignRight {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, s.Horizontal)
	}
	if s.Vertical > VAlignTop {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, s.Vertical)
	}
	return nil
}

// styleRegistry assigns each distinct style the index of its first
// occurrence. It only grows.
type styleRegistry struct {
	styles []CellStyle
	index  map[CellStyle]int
}

func (r *styleRegistry) intern(s CellStyle) int {
	if i, ok := r.index[s]; ok {
		return i
	}
	if r.index == nil {
		r.index = map[CellStyle]int{}
	}
	i := len(r.styles)
	r.styles = append(r.styles, s)
	r.index[s] = i
	return i
}
