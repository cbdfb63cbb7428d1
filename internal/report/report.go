// Package report renders batch lookup results as an XLSX workbook or a
// JSON document. One row per input address; failed lookups keep their
// row with the error message so a batch report always accounts for every
// address it was given.
package report

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/marketdata/internal/model"
)

// Result pairs an input address with its lookup outcome. Exactly one of
// Record and Err is set.
type Result struct {
	Address string
	Record  *model.MarketRecord
	Err     error
}

const sheetName = "Market Data"

var columns = []string{
	"Address",
	"Status",
	"Error",
	"Data Year",
	"Geography",
	"Level",
	"FIPS",
	"Latitude",
	"Longitude",
	"Total Population",
	"Median Age",
	"CAGR (%)",
	"YoY Growth (%)",
	"Absolute Change",
	"Density (per sq mi)",
	"Net Migration",
	"Births",
	"Deaths",
	"Median Household Income",
	"Median Home Value",
	"Median Gross Rent",
	"Unemployment (%)",
	"Poverty (%)",
	"Renter Occupied (%)",
	"Bachelor's or Higher (%)",
	"Walk Score",
	"Projected Population",
}

// WriteXLSX writes one workbook with a header row and one row per result.
func WriteXLSX(results []Result, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, res := range results {
		writeRow(sheet.AddRow(), res)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func writeRow(row *xlsx.Row, res Result) {
	row.AddCell().SetString(res.Address)

	if res.Err != nil {
		row.AddCell().SetString("error")
		row.AddCell().SetString(res.Err.Error())
		return
	}
	row.AddCell().SetString("ok")
	row.AddCell().SetString("")

	rec := res.Record
	row.AddCell().SetInt(rec.DataYear)
	row.AddCell().SetString(rec.GeographyName)
	row.AddCell().SetString(string(rec.GeographyLevel))
	row.AddCell().SetString(rec.FIPS)
	row.AddCell().SetFloat(rec.Coordinates.Lat)
	row.AddCell().SetFloat(rec.Coordinates.Lon)
	row.AddCell().SetInt(rec.TotalPopulation)
	addFloat(row, rec.MedianAge)
	addFloat(row, rec.Growth.CAGR)
	addFloat(row, rec.Growth.YoYGrowth)
	addInt(row, rec.Growth.AbsoluteChange)

	if rec.PopulationDensity != nil {
		addFloat(row, rec.PopulationDensity.PeopleSqMile)
	} else {
		row.AddCell()
	}
	if rec.Migration != nil {
		addInt(row, rec.Migration.NetMigration)
	} else {
		row.AddCell()
	}
	if rec.NaturalIncrease != nil {
		addInt(row, rec.NaturalIncrease.Births)
		addInt(row, rec.NaturalIncrease.Deaths)
	} else {
		row.AddCell()
		row.AddCell()
	}
	if rec.Demographics != nil {
		addFloat(row, rec.Demographics.MedianHouseholdIncome)
	} else {
		row.AddCell()
	}
	if rec.Housing != nil {
		addFloat(row, rec.Housing.MedianHomeValue)
		addFloat(row, rec.Housing.MedianGrossRent)
	} else {
		row.AddCell()
		row.AddCell()
	}
	if rec.EconomicContext != nil {
		addFloat(row, rec.EconomicContext.UnemploymentRate)
		addFloat(row, rec.EconomicContext.PovertyRate)
	} else {
		row.AddCell()
		row.AddCell()
	}
	if rec.Housing != nil {
		addFloat(row, rec.Housing.PercentRenterOccupied)
	} else {
		row.AddCell()
	}
	if rec.Demographics != nil {
		addFloat(row, rec.Demographics.PercentBachelorsOrHigher)
	} else {
		row.AddCell()
	}
	if rec.Walkability != nil {
		addInt(row, rec.Walkability.WalkScore)
	} else {
		row.AddCell()
	}
	addInt(row, projectedPopulation(rec))
}

// projectedPopulation returns the final projected point, or nil when no
// projection was produced.
func projectedPopulation(rec *model.MarketRecord) *int {
	proj := rec.PopulationTrends.Projection
	if len(proj) == 0 {
		return nil
	}
	return model.Int(proj[len(proj)-1].Population)
}

func addFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func addInt(row *xlsx.Row, v *int) {
	cell := row.AddCell()
	if v != nil {
		cell.SetInt(*v)
	}
}

type jsonResult struct {
	Address string              `json:"address"`
	Record  *model.MarketRecord `json:"record,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// WriteJSON writes the results as an indented JSON array.
func WriteJSON(results []Result, w io.Writer) error {
	out := make([]jsonResult, 0, len(results))
	for _, res := range results {
		jr := jsonResult{Address: res.Address, Record: res.Record}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}
