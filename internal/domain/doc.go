// Package domain models traffic-crash records exported from highway crash
// spreadsheets.
//
// # Data Source
//
// Crash histories arrive as a single-sheet spreadsheet uploaded by an analyst.
// Two layouts are known, and a file carries no explicit layout marker other
// than what is in its first cell.
//
// Standard layout:
//
//	Row 1 is a header naming the columns. The columns read are
//	"Latitude", "Longitude", "Date", "Severity" and "Veh1 Dir".
//	Severity is already a short code: PDO, INJ or FAT.
//
// Segment 5 layout:
//
//	Cell A1 contains the title "I-25 Segment 5 Accident History". That row
//	is metadata and is skipped. The remaining columns have no usable header
//	names and are read by position:
//
//	  B  date
//	  C  direction of travel
//	  D  milepost
//	  H  severity phrase ("Property Damage", "Injury", "Fatality")
//	  J  notes
//
//	The layout does not carry coordinates. Every record gets the fixed
//	placeholder (40.3, -104.98) and is flagged with Placeholder=true so
//	consumers can tell it apart from a geocoded point.
//
// # Normalization Rules
//
// Rows missing a date, latitude, longitude or severity are dropped. Dates
// that fail to parse count as missing. Dropping is silent with respect to the
// caller's control flow: the row is listed in [ParseResult.Dropped] and
// nothing is returned as an error. Structural problems (a required column
// absent from the whole sheet) are reported as [*MalformedInputError].
//
// Severity codes outside the closed set default to [SeverityPropertyDamage].
// Direction tokens are trimmed and upper-cased.
//
// # Classification
//
//	Severity  Weight  Color
//	PDO       1       green
//	INJ       2       orange
//	FAT       3       red
//
// Direction buckets use two disjoint membership sets, north checked first:
//
//	North: N NE NW NB
//	South: S SE SW SB
//
// Anything else, including an empty direction, is [BucketUnknown].
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of date|lat|lon|severity|
// direction|row, so re-processing the same upload yields the same IDs. See
// [generateID].
package domain
