// Package export renders the zone summary as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

const (
	// ZonesSheet lists one row per zone.
	ZonesSheet = "Zones"
	// InfoSheet holds export metadata.
	InfoSheet = "Info"

	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var zoneHeader = []any{
	"Zone", "Crop", "Status", "Latest score", "Latest type", "Decision status", "Archived at", "Created at",
}

// WriteZoneSummary writes an XLSX workbook of summaries to w.
func WriteZoneSummary(w io.Writer, summaries []models.ZoneSummary, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ZonesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, ZonesSheet, 1, zoneHeader); err != nil {
		return err
	}
	for i, s := range summaries {
		if err := setRow(f, ZonesSheet, i+2, zoneRow(s)); err != nil {
			return err
		}
	}
	if err := f.SetPanes(ZonesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet(InfoSheet); err != nil {
		return fmt.Errorf("create info sheet: %w", err)
	}
	if err := setRow(f, InfoSheet, 1, []any{"Generated at", generatedAt.UTC().Format(time.RFC3339)}); err != nil {
		return err
	}
	if err := setRow(f, InfoSheet, 2, []any{"Zones", len(summaries)}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func zoneRow(s models.ZoneSummary) []any {
	score, recType, decision := "", "", ""
	if latest := s.LatestRecommendation; latest != nil {
		score = strconv.Itoa(latest.DCIScore)
		recType = string(latest.RecommendationType)
		decision = string(latest.DecisionStatus)
	}
	archived := ""
	if s.ArchivedAt != nil {
		archived = s.ArchivedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		s.Name,
		s.CropType,
		string(s.ZoneStatus),
		score,
		recType,
		decision,
		archived,
		s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
