// Package report writes extraction results in the formats downstream
// consumers take: a JSON record and an optional XLSX sheet.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/schema"
)

// WriteJSON writes the result's output record as indented JSON.
func WriteJSON(path string, res *model.ExtractionResult) error {
	data, err := json.MarshalIndent(res.Output(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal output record")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// WriteXLSX writes the result as a workbook: one sheet with a row per
// schema field, one with the additional-information diagnostics.
func WriteXLSX(path string, registry *schema.Registry, res *model.ExtractionResult) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("extraction")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}
	header := sheet.AddRow()
	for _, h := range []string{"field", "value", "confidence", "status"} {
		header.AddCell().SetString(h)
	}
	for _, name := range registry.Names() {
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		if v, ok := res.Fields[name]; ok {
			row.AddCell().SetString(fmt.Sprintf("%v", v))
			if c, ok := res.FieldConfidence[name]; ok {
				row.AddCell().SetFloat(c)
			} else {
				row.AddCell().SetString("")
			}
			row.AddCell().SetString("extracted")
		} else {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
			row.AddCell().SetString("missing")
		}
	}

	summary := sheet.AddRow()
	summary.AddCell().SetString("aggregate_confidence")
	summary.AddCell().SetFloat(res.Confidence)
	summary.AddCell().SetString("")
	if res.Validated {
		summary.AddCell().SetString("validated")
	} else {
		summary.AddCell().SetString("unvalidated")
	}

	stamp := sheet.AddRow()
	stamp.AddCell().SetString("timestamp")
	stamp.AddCell().SetString(res.CreatedAt.UTC().Format(time.RFC3339))

	info, err := f.AddSheet("additional_information")
	if err != nil {
		return eris.Wrap(err, "report: add info sheet")
	}
	infoHeader := info.AddRow()
	for _, h := range []string{"field", "kind", "value", "reason", "suggestion"} {
		infoHeader.AddCell().SetString(h)
	}
	for _, note := range res.AdditionalInfo {
		row := info.AddRow()
		row.AddCell().SetString(note.Field)
		row.AddCell().SetString(note.Kind)
		row.AddCell().SetString(fmt.Sprintf("%v", note.Value))
		row.AddCell().SetString(note.Reason)
		row.AddCell().SetString(note.Suggestion)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
