package xl

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Payload limits, matching those of common spreadsheet applications.
const (
	MaxStringLength     = 32767 // runes
	MaxStringLineBreaks = 253
	MaxFormulaLength    = 8192 // runes
)

// CellType is the type of cell content.
type CellType int

const (
	CellTypeNumber CellType = iota
	CellTypeFormula
	CellTypeString
	CellTypeEmpty // covered by a merge region
)

func (t CellType) String() string {
	switch t {
	case CellTypeNumber:
		return "number"
	case CellTypeFormula:
		return "formula"
	case CellTypeString:
		return "string"
	case CellTypeEmpty:
		return "empty"
	}
	return fmt.Sprintf("CellType(%d)", int(t))
}

// Cell is a single immutable cell of a sheet.
type Cell struct {
	Ref        CellRef
	Type       CellType
	StyleIndex int
	Number     float64 // NaN unless Type is CellTypeNumber
	Text       string  // formula source or string content
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// normalizeNewlines turns CRLF and lone CR into LF, the only line break
// that survives the XML writer unchanged.
func normalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return newlines.Replace(s)
}

// checkXMLChars reports the first character that XML 1.0 cannot carry,
// neither literally nor as a character reference.
func checkXMLChars(s string) error {
	for i, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return fmt.Errorf("character %U at byte %d is not allowed in XML", r, i)
		}
	}
	return nil
}

// preparePayload validates the content of a new cell and returns its text
// in the form that is stored and written.
func preparePayload(typ CellType, num float64, text string) (string, error) {
	switch typ {
	case CellTypeNumber:
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return "", fmt.Errorf("%w: non-finite number %v", ErrOutOfRange, num)
		}
	case CellTypeFormula:
		if text == "" {
			return "", fmt.Errorf("%w: empty formula", ErrInvalidFormat)
		}
		if !utf8.ValidString(text) {
			return "", fmt.Errorf("%w: formula is not valid UTF-8", ErrInvalidFormat)
		}
		if err := checkXMLChars(text); err != nil {
			return "", fmt.Errorf("%w: formula: %w", ErrInvalidFormat, err)
		}
		text = normalizeNewlines(text)
		if utf8.RuneCountInString(text) > MaxFormulaLength {
			return "", fmt.Errorf("%w: formula longer than %d characters", ErrInvalidFormat, MaxFormulaLength)
		}
	case CellTypeString:
		if !utf8.ValidString(text) {
			return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidFormat)
		}
		if err := checkXMLChars(text); err != nil {
			return "", fmt.Errorf("%w: string: %w", ErrInvalidFormat, err)
		}
		text = normalizeNewlines(text)
		if utf8.RuneCountInString(text) > MaxStringLength {
			return "", fmt.Errorf("%w: string longer than %d characters", ErrInvalidFormat, MaxStringLength)
		}
		if strings.Count(text, "\n") > MaxStringLineBreaks {
			return "", fmt.Errorf("%w: string has more than %d line breaks", ErrInvalidFormat, MaxStringLineBreaks)
		}
	}
	return text, nil
}
