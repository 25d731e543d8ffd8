package report

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pe-score/internal/raster"
)

var summaryHeader = []string{"band", "valid", "nodata", "min", "max", "mean"}

// WriteSummaryXLSX writes a workbook with one "Summary" row per band and,
// when tally is non-nil, a "NoData" sheet with its distribution.
func WriteSummaryXLSX(path string, bands []*raster.Band, tally *raster.Band) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addStringRow(sheet, summaryHeader)
	for _, b := range bands {
		s := BandStats(b)
		row := sheet.AddRow()
		row.AddCell().SetString(b.Name)
		row.AddCell().SetInt(s.Valid)
		row.AddCell().SetInt(s.NoData)
		addFloat(row, s.Min)
		addFloat(row, s.Max)
		addFloat(row, s.Mean)
	}

	if tally != nil {
		nd, err := f.AddSheet("NoData")
		if err != nil {
			return eris.Wrap(err, "report: add nodata sheet")
		}
		addStringRow(nd, []string{"nodata_inputs", "cells", "fraction"})
		for _, r := range TallyCounts(tally) {
			row := nd.AddRow()
			row.AddCell().SetInt(r.NoDataInputs)
			row.AddCell().SetInt(r.Cells)
			row.AddCell().SetFloat(r.Fraction)
		}
	}

	return eris.Wrap(f.Save(path), "report: save workbook")
}

func addStringRow(sheet *xlsx.Sheet, vals []string) {
	row := sheet.AddRow()
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

// addFloat leaves the cell empty for NaN.
func addFloat(row *xlsx.Row, v float64) {
	c := row.AddCell()
	if math.IsNaN(v) {
		return
	}
	c.SetFloat(v)
}
