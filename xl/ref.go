package xl

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Sheet dimensions as defined by ECMA-376.
const (
	MaxRow = 1048576
	MaxCol = 16384
)

// CellRef addresses a cell by its 1-based row and column numbers.
type CellRef struct {
	Row int
	Col int
}

// RC is shorthand for CellRef{Row: row, Col: col}.
func RC(row, col int) CellRef {
	return CellRef{Row: row, Col: col}
}

// A1 is a cell address in mixed notation: alphabetic column followed by a
// decimal row, e.g. "AH11".
type A1 string

// Position is accepted wherever a cell is addressed: a CellRef or an A1.
type Position interface {
	resolve() (CellRef, error)
}

func (r CellRef) resolve() (CellRef, error) { return r, r.validate() }

func (a A1) resolve() (CellRef, error) { return ParseCellRef(string(a)) }

func (r CellRef) Valid() bool {
	return r.Row >= 1 && r.Row <= MaxRow && r.Col >= 1 && r.Col <= MaxCol
}

func (r CellRef) validate() error {
	if !r.Valid() {
		return fmt.Errorf("%w: invalid cell reference (row %d, column %d)", ErrInvalidFormat, r.Row, r.Col)
	}
	return nil
}

// Mixed returns the reference in A1 notation.
func (r CellRef) Mixed() (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}
	col, _ := ColumnNumberAsLetters(r.Col)
	return col + strconv.Itoa(r.Row), nil
}

func (r CellRef) String() string {
	if s, err := r.Mixed(); err == nil {
		return s
	}
	return fmt.Sprintf("R%dC%d", r.Row, r.Col)
}

// key packs the reference so that ordering keys orders cells by row, then
// by column.
func (r CellRef) key() uint64 {
	return uint64(r.Row)<<32 | uint64(r.Col)
}

func refFromKey(k uint64) CellRef {
	return CellRef{Row: int(k >> 32), Col: int(k & 0xFFFFFFFF)}
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// ColumnLettersToNumber converts an alphabetic column (A, B, ..., Z, AA, ...)
// to its 1-based number. Letters are case-insensitive.
func ColumnLettersToNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty column", ErrInvalidFormat)
	}
	for i := 0; i < len(s); i++ {
		if !isAlpha(s[i]) {
			return 0, fmt.Errorf("%w: non-alphabetic column %q", ErrInvalidFormat, s)
		}
	}
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*26 + int(upper(s[i])-'A'+1)
		if n > MaxCol {
			return 0, fmt.Errorf("%w: column %q exceeds %d", ErrOutOfRange, s, MaxCol)
		}
	}
	return n, nil
}

// ColumnNumberAsLetters is the inverse of ColumnLettersToNumber.
func ColumnNumberAsLetters(n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("%w: column number %d", ErrInvalidFormat, n)
	}
	if n > MaxCol {
		return "", fmt.Errorf("%w: column number %d exceeds %d", ErrOutOfRange, n, MaxCol)
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		rem := n % 26
		n--
		n /= 26
		i--
		if rem == 0 {
			buf[i] = 'Z'
		} else {
			buf[i] = byte('A' + rem - 1)
		}
	}
	return string(buf[i:]), nil
}

// CellCoordAsString returns the A1 notation of the cell at col, row.
func CellCoordAsString(col, row int) (string, error) {
	return RC(row, col).Mixed()
}

// ParseCellRef parses a reference in A1 notation. The column letters must
// be followed by the row digits and nothing else.
func ParseCellRef(s string) (CellRef, error) {
	split := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isAlpha(c):
			if split >= 0 {
				return CellRef{}, fmt.Errorf("%w: cell reference %q", ErrInvalidFormat, s)
			}
		case isDigit(c):
			if i == 0 {
				return CellRef{}, fmt.Errorf("%w: cell reference %q", ErrInvalidFormat, s)
			}
			if split < 0 {
				split = i
			}
		default:
			return CellRef{}, fmt.Errorf("%w: cell reference %q", ErrInvalidFormat, s)
		}
	}
	if split < 0 {
		return CellRef{}, fmt.Errorf("%w: cell reference %q", ErrInvalidFormat, s)
	}

	col, err := ColumnLettersToNumber(s[:split])
	if err != nil {
		return CellRef{}, err
	}
	row, err := strconv.Atoi(s[split:])
	if err != nil || row < 1 || row > MaxRow {
		return CellRef{}, fmt.Errorf("%w: row in cell reference %q", ErrInvalidFormat, s)
	}
	return CellRef{Row: row, Col: col}, nil
}

// SameSheetName reports whether two sheet names collide: they have the
// same number of characters and each pair of characters is equal under
// Unicode case folding. Folding is applied per character, so "ß" and "ss"
// are different names.
func SameSheetName(a, b string) bool {
	if a == b {
		return true
	}
	if utf8.RuneCountInString(a) != utf8.RuneCountInString(b) {
		return false
	}
	fold := cases.Fold()
	for a != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb && fold.String(a[:na]) != fold.String(b[:nb]) {
			return false
		}
		a, b = a[na:], b[nb:]
	}
	return true
}
