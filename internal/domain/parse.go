package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Standard-layout column headers.
const (
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
	ColDate      = "Date"
	ColSeverity  = "Severity"
	ColDirection = "Veh1 Dir"
)

var standardColumns = []string{ColLatitude, ColLongitude, ColDate, ColSeverity, ColDirection}

// Segment 5 columns are positional (0-based).
const (
	seg5DateCol      = 1 // B
	seg5DirectionCol = 2 // C
	seg5MilepostCol  = 3 // D
	seg5SeverityCol  = 7 // H
	seg5NotesCol     = 9 // J
)

// Segment 5 exports carry no coordinates; every record is pinned here.
const (
	PlaceholderLat = 40.3
	PlaceholderLon = -104.98
)

// dateLayouts are tried in order for text date cells. Numeric cells are
// treated as Excel serial dates instead.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/06",
	"01-02-06",
	"Jan 2, 2006",
	"January 2, 2006",
}

type parseOptions struct {
	date1904 bool
}

// ParseOption configures ParseRecords.
type ParseOption func(*parseOptions)

// WithDate1904 counts numeric date cells from 1904-01-01 instead of the
// default 1900 date system.
func WithDate1904(enabled bool) ParseOption {
	return func(o *parseOptions) {
		o.date1904 = enabled
	}
}

// ParseRecords converts a sheet in the given layout into canonical records.
// Rows that lack a required field are skipped and listed in the result's
// Dropped slice; only a structurally incompatible sheet returns an error.
func ParseRecords(sheet Sheet, format Format, opts ...ParseOption) (ParseResult, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch format {
	case FormatSegment5:
		return parseSegment5(sheet, o)
	default:
		return parseStandard(sheet, o)
	}
}

// ParseWorkbook parses a decoded workbook in the given layout, honoring its
// date system.
func ParseWorkbook(wb Workbook, format Format) (ParseResult, error) {
	return ParseRecords(wb.Sheet, format, WithDate1904(wb.Date1904))
}

func parseStandard(sheet Sheet, o parseOptions) (ParseResult, error) {
	res := ParseResult{Format: FormatStandard, Records: []CrashRecord{}}

	idx := headerIndex(sheet)
	var missing []string
	for _, col := range standardColumns {
		if _, ok := idx[normalizeHeader(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return ParseResult{}, &MalformedInputError{Format: FormatStandard, Missing: missing}
	}

	cell := func(row int, col string) string {
		return sheet.Cell(row, idx[normalizeHeader(col)])
	}

	for i := 1; i < len(sheet); i++ {
		rowNum := i + 1
		if isRowEmpty(sheet[i]) {
			continue
		}

		date, reason := requireDate(cell(i, ColDate), o.date1904)
		if reason != "" {
			res.Dropped = append(res.Dropped, DroppedRow{Row: rowNum, Reason: reason})
			continue
		}
		lat, reason := requireCoordinate(cell(i, ColLatitude), "latitude", 90)
		if reason != "" {
			res.Dropped = append(res.Dropped, DroppedRow{Row: rowNum, Reason: reason})
			continue
		}
		lon, reason := requireCoordinate(cell(i, ColLongitude), "longitude", 180)
		if reason != "" {
			res.Dropped = append(res.Dropped, DroppedRow{Row: rowNum, Reason: reason})
			continue
		}
		sevRaw := cell(i, ColSeverity)
		if sevRaw == "" {
			res.Dropped = append(res.Dropped, DroppedRow{Row: rowNum, Reason: "missing severity"})
			continue
		}

		res.Records = append(res.Records, newRecord(rowNum, date, lat, lon,
			cell(i, ColDirection), parseSeverityCode(sevRaw)))
	}

	return res, nil
}

func parseSegment5(sheet Sheet, o parseOptions) (ParseResult, error) {
	res := ParseResult{Format: FormatSegment5, Records: []CrashRecord{}}

	width := 0
	for i := 1; i < len(sheet); i++ {
		width = max(width, len(sheet[i]))
	}
	var missing []string
	if width <= seg5DateCol {
		missing = append(missing, "Date")
	}
	if width <= seg5DirectionCol {
		missing = append(missing, "Direction")
	}
	if len(missing) > 0 {
		return ParseResult{}, &MalformedInputError{Format: FormatSegment5, Missing: missing}
	}

	for i := 1; i < len(sheet); i++ {
		rowNum := i + 1
		if isRowEmpty(sheet[i]) {
			continue
		}
		dateRaw := sheet.Cell(i, seg5DateCol)
		if strings.EqualFold(dateRaw, ColDate) {
			continue // column header row
		}

		date, reason := requireDate(dateRaw, o.date1904)
		if reason != "" {
			res.Dropped = append(res.Dropped, DroppedRow{Row: rowNum, Reason: reason})
			continue
		}

		rec := newRecord(rowNum, date, PlaceholderLat, PlaceholderLon,
			sheet.Cell(i, seg5DirectionCol), parseSeverityPhrase(sheet.Cell(i, seg5SeverityCol)))
		rec.Placeholder = true
		rec.Milepost = sheet.Cell(i, seg5MilepostCol)
		rec.Notes = sheet.Cell(i, seg5NotesCol)
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func newRecord(row int, date time.Time, lat, lon float64, direction string, sev Severity) CrashRecord {
	dir := normalizeDirection(direction)
	return CrashRecord{
		ID:        generateID(date, lat, lon, sev, dir, row),
		Row:       row,
		Date:      date,
		Lat:       lat,
		Lon:       lon,
		Direction: dir,
		Severity:  sev,
	}
}

// headerIndex maps normalized header text in row 1 to its column. The first
// occurrence of a duplicated header wins.
func headerIndex(sheet Sheet) map[string]int {
	idx := make(map[string]int)
	if len(sheet) == 0 {
		return idx
	}
	for col, name := range sheet[0] {
		key := normalizeHeader(name)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = col
		}
	}
	return idx
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// normalizeDirection trims and upper-cases a direction token.
func normalizeDirection(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseSeverityCode maps a Standard-layout code. Unrecognized codes default to
// property damage.
func parseSeverityCode(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityFatality:
		return SeverityFatality
	case SeverityInjury:
		return SeverityInjury
	default:
		return SeverityPropertyDamage
	}
}

// parseSeverityPhrase maps a Segment 5 severity phrase, defaulting to
// property damage for anything unrecognized, including empty.
func parseSeverityPhrase(s string) Severity {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "fatality":
		return SeverityFatality
	case "injury":
		return SeverityInjury
	default:
		return SeverityPropertyDamage
	}
}

// requireDate parses a date cell, returning a drop reason on failure.
func requireDate(s string, date1904 bool) (time.Time, string) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, "missing date"
	}
	t, ok := parseDate(s, date1904)
	if !ok {
		return time.Time{}, "unparsable date"
	}
	return t, ""
}

// parseDate accepts Excel serial numbers, counted in the 1904 date system
// when date1904 is set, and the text layouts in dateLayouts. The result is
// truncated to a UTC calendar date.
func parseDate(s string, date1904 bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 || math.IsInf(serial, 0) || math.IsNaN(serial) {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return calendarDate(t), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDate(t), true
		}
	}
	return time.Time{}, false
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// requireCoordinate parses a latitude or longitude cell bounded by ±limit,
// returning a drop reason on failure.
func requireCoordinate(s, name string, limit float64) (float64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "missing " + name
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "invalid " + name
	}
	if v < -limit || v > limit {
		return 0, name + " out of range"
	}
	return v, ""
}

// generateID produces a deterministic ID from the record's key fields and its
// source row, so duplicate crashes on different rows stay distinct.
func generateID(date time.Time, lat, lon float64, sev Severity, direction string, row int) string {
	input := fmt.Sprintf("%s|%.6f|%.6f|%s|%s|%d", date.Format(time.DateOnly), lat, lon, sev, direction, row)
	hash := sha256.Sum256([]byte(input))
	return "crash-" + hex.EncodeToString(hash[:8])
}
