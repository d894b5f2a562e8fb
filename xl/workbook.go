package xl

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Workbook is an in-memory spreadsheet document. It is not safe for
// concurrent use; distinct workbooks may be used from different goroutines.
type Workbook struct {
	AppName string    // docProps/app.xml Application
	Creator string    // docProps/core.xml creator and lastModifiedBy
	ID      uuid.UUID // docProps/core.xml identifier
	Sheets  []*Sheet  // in tab order

	Log zerolog.Logger

	styles styleRegistry
}

func NewWorkbook() *Workbook {
	wb := &Workbook{
		AppName: "xlbook",
		ID:      uuid.New(),
		Log:     zerolog.Nop(),
	}
	// index 0 is the default cell format of the styles part
	wb.styles.intern(GenericStyle)
	return wb
}

// AddSheet appends a new empty sheet. Names are unique regardless of case.
// The returned sheet stays owned by the workbook; changes to it are
// reflected when the workbook is published.
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	if err := validateSheetName(name); err != nil {
		return nil, err
	}
	for _, sh := range wb.Sheets {
		if SameSheetName(sh.name, name) {
			return nil, fmt.Errorf("%w: sheet name '%s' is already used by '%s'", ErrDuplicateEntry, name, sh.name)
		}
	}

	sheet := newSheet(wb, name, len(wb.Sheets)+1)
	wb.Sheets = append(wb.Sheets, sheet)
	return sheet, nil
}

// Sheet finds a sheet by name, ignoring case.
func (wb *Workbook) Sheet(name string) *Sheet {
	for _, sh := range wb.Sheets {
		if SameSheetName(sh.name, name) {
			return sh
		}
	}
	return nil
}

// InternStyle returns the index of s in the styles part, adding s on first
// use.
func (wb *Workbook) InternStyle(s CellStyle) (int, error) {
	if err := s.validate(); err != nil {
		return 0, err
	}
	return wb.styles.intern(s), nil
}

// Styles returns the distinct styles in index order.
func (wb *Workbook) Styles() []CellStyle {
	return append([]CellStyle(nil), wb.styles.styles...)
}

func validateSheetName(s string) error {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return fmt.Errorf("%w: empty sheet name is not allowed", ErrInvalidArgument)
	} else if n > 31 {
		return fmt.Errorf("%w: the sheet name is too long", ErrInvalidArgument)
	}
	if strings.HasPrefix(s, "'") || strings.HasSuffix(s, "'") {
		return fmt.Errorf("%w: the first or last character of the sheet name can not be a single quote", ErrInvalidArgument)
	}
	if strings.ContainsAny(s, ":\\/?*[]") {
		return fmt.Errorf("%w: the sheet can not contain any of the characters :\\/?*[]", ErrInvalidArgument)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: the sheet name is not valid UTF-8", ErrInvalidArgument)
	}
	if strings.ContainsAny(s, "\t\n\r") {
		return fmt.Errorf("%w: the sheet name can not contain line breaks or tabs", ErrInvalidArgument)
	}
	if err := checkXMLChars(s); err != nil {
		return fmt.Errorf("%w: sheet name: %w", ErrInvalidArgument, err)
	}
	return nil
}

// Publish writes the workbook as an .xlsx file at path.
//
// Publishing consumes the sheets: each one is removed from wb.Sheets once
// written, so afterwards the workbook is empty. A failed publish leaves a
// partial file and a partially drained workbook; it must not be retried on
// the same Workbook.
func (wb *Workbook) Publish(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty output path", ErrInvalidArgument)
	}
	if len(wb.Sheets) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", ErrPreconditionFailed)
	}

	zs, err := CreateZipStorage(path)
	if err != nil {
		return err
	}
	zs.z.Log = wb.Log

	if err := wb.PublishTo(zs); err != nil {
		return errors.Join(err, zs.Abort())
	}
	if err := zs.Close(); err != nil {
		return err
	}
	wb.Log.Info().Str("path", path).Msg("workbook published")
	return nil
}

// PublishTo writes every part of the workbook to s, in a fixed order, with
// the same consuming semantics as Publish. Finalizing s is up to the caller.
func (wb *Workbook) PublishTo(s Storage) error {
	if s == nil {
		return fmt.Errorf("%w: nil storage", ErrInvalidArgument)
	}
	if len(wb.Sheets) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", ErrPreconditionFailed)
	}
	for field, v := range map[string]string{"application name": wb.AppName, "creator": wb.Creator} {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidArgument, field)
		}
		if err := checkXMLChars(v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, field, err)
		}
	}
	return newPartWriter(wb, s).write()
}
