// Package report renders stored evaluations into spreadsheet deal sheets.
package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/hps-internal/dealdesk/internal/model"
)

const moneyFormat = "#,##0"

var dealSheetHeaders = []string{
	"ID", "Deal", "Address", "Recommendation", "Confidence %", "Spread $",
	"ZOPA $", "Entry $", "Comp Score", "Evidence Score", "Liquidity",
	"Exit", "Rationale", "Created",
}

// WriteWorkbook writes the evaluations to an xlsx deal sheet at path.
func WriteWorkbook(path string, evals []model.Evaluation) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Evaluations")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range dealSheetHeaders {
		header.AddCell().Value = h
	}

	for _, ev := range evals {
		addDealRow(sheet, ev)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addDealRow(sheet *xlsx.Sheet, ev model.Evaluation) {
	row := sheet.AddRow()
	row.AddCell().Value = ev.ID
	row.AddCell().Value = ev.DealName
	row.AddCell().Value = ev.Address
	row.AddCell().Value = string(ev.Recommendation)

	if ev.Result == nil {
		// Input captured but never evaluated; leave the metric columns blank.
		for range dealSheetHeaders[4 : len(dealSheetHeaders)-1] {
			row.AddCell()
		}
		row.AddCell().Value = ev.CreatedAt.Format("2006-01-02 15:04")
		return
	}

	r := ev.Result
	row.AddCell().SetFloatWithFormat(r.Verdict.ConfidencePct, "0")
	row.AddCell().SetFloatWithFormat(r.NetClearance.RecommendedNet(), moneyFormat)

	if r.PriceGeometry.Zopa != nil {
		row.AddCell().SetFloatWithFormat(*r.PriceGeometry.Zopa, moneyFormat)
	} else {
		row.AddCell()
	}
	row.AddCell().SetFloatWithFormat(r.PriceGeometry.EntryPoint, moneyFormat)
	row.AddCell().SetFloatWithFormat(r.CompQuality.QualityScore, "0.00")
	row.AddCell().SetFloatWithFormat(r.EvidenceHealth.HealthScore, "0.00")
	row.AddCell().SetFloatWithFormat(r.MarketVelocity.LiquidityScore, "0.00")
	row.AddCell().Value = string(r.NetClearance.RecommendedExit)
	row.AddCell().Value = r.Verdict.Rationale
	row.AddCell().Value = ev.CreatedAt.Format("2006-01-02 15:04")
}
