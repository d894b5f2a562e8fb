package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adnsv/xlbook/xl"
)

func newDemoCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write the demonstration workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := buildDemo()
			if err != nil {
				return err
			}
			wb.Log = logger
			return wb.Publish(output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "demo.xlsx", "output .xlsx file")
	return cmd
}

// buildDemo creates two sheets using all three cell types, both ways of
// addressing cells, a merge with wrapped text and a custom row height.
func buildDemo() (*xl.Workbook, error) {
	wb := xl.NewWorkbook()

	sheet1, err := wb.AddSheet("sheet1")
	if err != nil {
		return nil, err
	}
	topLeftWrap := xl.CellStyle{Format: xl.FormatText, Horizontal: xl.HAlignLeft, Vertical: xl.VAlignTop, Wrap: true}
	centerBold := xl.CellStyle{Format: xl.FormatText, Horizontal: xl.HAlignCenter, Bold: true}
	rightBold := xl.CellStyle{Format: xl.FormatText, Horizontal: xl.HAlignRight, Bold: true}

	explainer := "This workbook demonstrates some of the features of xlbook. " +
		"For example, this cell demonstrates wrapped text in a merged cell with top left alignment " +
		"and a custom row height."
	if err := sheet1.AddMergedString(xl.A1("A1"), xl.A1("F1"), explainer, topLeftWrap); err != nil {
		return nil, err
	}
	if err := sheet1.SetRowHeight(1, 68); err != nil {
		return nil, err
	}

	for i, col := range []string{"A", "B", "C"} {
		if err := sheet1.AddString(xl.A1(col+"2"), fmt.Sprintf("col %d", i+1), centerBold); err != nil {
			return nil, err
		}
	}
	for row := 3; row <= 5; row++ {
		a, b := float64(row-2), float64(row+1)
		if err := sheet1.AddNumber(xl.A1(fmt.Sprintf("A%d", row)), a); err != nil {
			return nil, err
		}
		if err := sheet1.AddNumber(xl.A1(fmt.Sprintf("B%d", row)), b); err != nil {
			return nil, err
		}
		if err := sheet1.AddFormula(xl.A1(fmt.Sprintf("C%d", row)), fmt.Sprintf("A%d+B%d", row, row)); err != nil {
			return nil, err
		}
	}

	sheet2, err := wb.AddSheet("sheet2")
	if err != nil {
		return nil, err
	}
	for col := 1; col <= 3; col++ {
		if err := sheet2.AddString(xl.RC(1, col), fmt.Sprintf("col %d", col), centerBold); err != nil {
			return nil, err
		}
	}
	for row := 2; row <= 101; row++ {
		if err := sheet2.AddNumber(xl.RC(row, 1), float64(row-1)); err != nil {
			return nil, err
		}
		if err := sheet2.AddNumber(xl.RC(row, 2), float64(row)); err != nil {
			return nil, err
		}
		formula := xl.RC(row, 1).String() + "+" + xl.RC(row, 2).String()
		if err := sheet2.AddFormula(xl.RC(row, 3), formula); err != nil {
			return nil, err
		}
	}
	if err := sheet2.AddMergedString(xl.RC(102, 1), xl.RC(102, 2), "total:", rightBold); err != nil {
		return nil, err
	}
	total := fmt.Sprintf("SUM(%s:%s)", xl.RC(2, 3), xl.RC(101, 3))
	if err := sheet2.AddFormula(xl.RC(102, 3), total); err != nil {
		return nil, err
	}
	return wb, nil
}
