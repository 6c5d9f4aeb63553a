package domain

import (
	"strings"
	"time"
)

// Format identifies a known spreadsheet layout.
type Format string

const (
	FormatStandard Format = "standard"
	FormatSegment5 Format = "segment5"
)

// Severity is the closed set of crash severities.
type Severity string

// Severity values use the short codes found in Standard-layout files.
const (
	SeverityPropertyDamage Severity = "PDO"
	SeverityInjury         Severity = "INJ"
	SeverityFatality       Severity = "FAT"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityFatality, SeverityInjury, SeverityPropertyDamage}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityPropertyDamage, SeverityInjury, SeverityFatality:
		return true
	default:
		return false
	}
}

// Label returns the human-readable name shown in the result page legend.
func (s Severity) Label() string {
	switch s {
	case SeverityPropertyDamage:
		return "Property Damage"
	case SeverityInjury:
		return "Injury"
	case SeverityFatality:
		return "Fatality"
	default:
		return "Unknown"
	}
}

// DirectionBucket groups direction-of-travel tokens.
type DirectionBucket string

const (
	BucketNorth   DirectionBucket = "north"
	BucketSouth   DirectionBucket = "south"
	BucketUnknown DirectionBucket = "unknown"

	// BucketAll is a filter value only; no record is classified into it.
	BucketAll DirectionBucket = "all"
)

// Title returns the capitalized bucket name, e.g. "Northbound".
func (b DirectionBucket) Title() string {
	switch b {
	case BucketNorth:
		return "Northbound"
	case BucketSouth:
		return "Southbound"
	case BucketAll:
		return "All"
	default:
		return "Unknown"
	}
}

// ParseBucket converts a path or flag value into a filter bucket.
func ParseBucket(s string) (DirectionBucket, bool) {
	switch DirectionBucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketAll:
		return BucketAll, true
	case BucketNorth:
		return BucketNorth, true
	case BucketSouth:
		return BucketSouth, true
	default:
		return "", false
	}
}

// Sheet is the raw cell text of a single worksheet, row-major. Rows may have
// different lengths; trailing empty cells are not guaranteed to be present.
type Sheet [][]string

// Cell returns the trimmed value at (row, col), or "" when out of range.
func (s Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s) {
		return ""
	}
	r := s[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// Workbook is a decoded upload: its first sheet and whether numeric date
// cells count from 1904-01-01 rather than 1900.
type Workbook struct {
	Sheet    Sheet
	Date1904 bool
}

// CrashRecord is the canonical, format-independent crash representation.
type CrashRecord struct {
	ID          string    `json:"id"`
	Row         int       `json:"row"`
	Date        time.Time `json:"date"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Placeholder bool      `json:"placeholder,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	Severity    Severity  `json:"severity"`
	Milepost    string    `json:"milepost,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// ClassifiedRecord is a CrashRecord with display attributes derived from it.
type ClassifiedRecord struct {
	CrashRecord

	Weight int             `json:"weight"`
	Color  string          `json:"color"`
	Bucket DirectionBucket `json:"direction_bucket"`
}

// DroppedRow describes a source row that did not survive parsing.
type DroppedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseResult is the output of ParseRecords.
type ParseResult struct {
	Format  Format        `json:"format"`
	Records []CrashRecord `json:"records"`
	Dropped []DroppedRow  `json:"dropped,omitempty"`
}
