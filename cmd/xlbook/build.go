package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/adnsv/xlbook/xl"
)

type bookDef struct {
	App     string     `yaml:"app"`
	Creator string     `yaml:"creator"`
	Sheets  []sheetDef `yaml:"sheets"`
}

type sheetDef struct {
	Name    string             `yaml:"name"`
	Columns map[string]float64 `yaml:"columns"` // letters to width
	Rows    map[int]float64    `yaml:"rows"`    // row number to height
	Cells   []cellDef          `yaml:"cells"`
	Merges  []mergeDef         `yaml:"merges"`
}

// valueDef holds exactly one of Number, Formula and String.
type valueDef struct {
	Number  *float64  `yaml:"number"`
	Formula *string   `yaml:"formula"`
	String  *string   `yaml:"string"`
	Style   *styleDef `yaml:"style"`
}

type cellDef struct {
	Ref   string   `yaml:"ref"`
	Value valueDef `yaml:",inline"`
}

type mergeDef struct {
	From  string   `yaml:"from"`
	To    string   `yaml:"to"`
	Value valueDef `yaml:",inline"`
}

type styleDef struct {
	Format     string `yaml:"format"` // general, text, fixed, scientific or percent
	Places     int    `yaml:"places"`
	Horizontal string `yaml:"horizontal"`
	Vertical   string `yaml:"vertical"`
	Wrap       bool   `yaml:"wrap"`
	Bold       bool   `yaml:"bold"`
}

func newBuildCmd() *cobra.Command {
	var input, output, dir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a workbook from a YAML definition",
		Example: `  xlbook build -f book.yaml -o book.xlsx
  xlbook build -f book.yaml --dir book.d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" && dir == "" {
				return fmt.Errorf("one of --output or --dir is required")
			}
			src, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			def, err := parseBook(src)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			wb, err := buildBook(def)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			wb.Log = logger

			if dir != "" {
				if err := wb.PublishTo(xl.NewDirStorage(dir)); err != nil {
					return err
				}
				logger.Info().Str("dir", dir).Msg("parts written")
				return nil
			}
			return wb.Publish(output)
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "", "workbook definition")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .xlsx file")
	cmd.Flags().StringVar(&dir, "dir", "", "write the parts as loose files into this directory instead")
	cmd.MarkFlagRequired("file")
	return cmd
}

func parseBook(src []byte) (*bookDef, error) {
	def := &bookDef{}
	if err := yaml.UnmarshalStrict(src, def); err != nil {
		return nil, fmt.Errorf("%w: %w", xl.ErrInvalidFormat, err)
	}
	return def, nil
}

func buildBook(def *bookDef) (*xl.Workbook, error) {
	wb := xl.NewWorkbook()
	if def.App != "" {
		wb.AppName = def.App
	}
	wb.Creator = def.Creator

	for _, sd := range def.Sheets {
		sh, err := wb.AddSheet(sd.Name)
		if err != nil {
			return nil, err
		}
		for col, w := range sd.Columns {
			if err := sh.SetColumnWidthLetters(col, w); err != nil {
				return nil, fmt.Errorf("sheet '%s' column %s: %w", sd.Name, col, err)
			}
		}
		for row, h := range sd.Rows {
			if err := sh.SetRowHeight(row, h); err != nil {
				return nil, fmt.Errorf("sheet '%s' row %d: %w", sd.Name, row, err)
			}
		}
		for _, cd := range sd.Cells {
			if err := addCell(sh, cd); err != nil {
				return nil, fmt.Errorf("sheet '%s' cell %s: %w", sd.Name, cd.Ref, err)
			}
		}
		for _, md := range sd.Merges {
			if err := addMerge(sh, md); err != nil {
				return nil, fmt.Errorf("sheet '%s' merge %s:%s: %w", sd.Name, md.From, md.To, err)
			}
		}
	}
	return wb, nil
}

func addCell(sh *xl.Sheet, cd cellDef) error {
	style, err := cd.Value.style()
	if err != nil {
		return err
	}
	pos := xl.A1(cd.Ref)
	switch v := cd.Value; {
	case v.Number != nil:
		return sh.AddNumber(pos, *v.Number, style...)
	case v.Formula != nil:
		return sh.AddFormula(pos, *v.Formula, style...)
	default:
		return sh.AddString(pos, *v.String, style...)
	}
}

func addMerge(sh *xl.Sheet, md mergeDef) error {
	style, err := md.Value.style()
	if err != nil {
		return err
	}
	from, to := xl.A1(md.From), xl.A1(md.To)
	switch v := md.Value; {
	case v.Number != nil:
		return sh.AddMergedNumber(from, to, *v.Number, style...)
	case v.Formula != nil:
		return sh.AddMergedFormula(from, to, *v.Formula, style...)
	default:
		return sh.AddMergedString(from, to, *v.String, style...)
	}
}

// style checks that exactly one value is set and returns the explicit
// style, if any.
func (v valueDef) style() ([]xl.CellStyle, error) {
	n := 0
	for _, set := range []bool{v.Number != nil, v.Formula != nil, v.String != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: exactly one of number, formula or string is required", xl.ErrInvalidArgument)
	}
	if v.Style == nil {
		return nil, nil
	}
	s, err := v.Style.cellStyle()
	if err != nil {
		return nil, err
	}
	return []xl.CellStyle{s}, nil
}

func (d *styleDef) cellStyle() (xl.CellStyle, error) {
	var s xl.CellStyle
	switch d.Format {
	case "", "general":
		s.Format = xl.FormatGeneral
	case "text":
		s.Format = xl.FormatText
	case "fixed":
		s.Format = xl.Fixed(d.Places)
	case "scientific":
		s.Format = xl.Scientific(d.Places)
	case "percent":
		s.Format = xl.Percent(d.Places)
	default:
		return s, fmt.Errorf("%w: unknown format '%s'", xl.ErrInvalidArgument, d.Format)
	}

	switch d.Horizontal {
	case "", "general":
		s.Horizontal = xl.HAlignGeneral
	case "left":
		s.Horizontal = xl.HAlignLeft
	case "center":
		s.Horizontal = xl.HAlignCenter
	case "right":
		s.Horizontal = xl.HAlignRight
	default:
		return s, fmt.Errorf("%w: unknown horizontal alignment '%s'", xl.ErrInvalidArgument, d.Horizontal)
	}

	switch d.Vertical {
	case "", "bottom":
		s.Vertical = xl.VAlignBottom
	case "center":
		s.Vertical = xl.VAlignCenter
	case "top":
		s.Vertical = xl.VAlignTop
	default:
		return s, fmt.Errorf("%w: unknown vertical alignment '%s'", xl.ErrInvalidArgument, d.Vertical)
	}

	s.Wrap = d.Wrap
	s.Bold = d.Bold
	return s, nil
}
