package domain

import "strings"

// Segment5Signature is the title text in cell A1 of Segment 5 exports.
const Segment5Signature = "I-25 Segment 5 Accident History"

// DetectFormat picks the layout of a sheet by probing cell A1. Anything that
// does not carry a known signature, including an empty sheet, is Standard.
func DetectFormat(sheet Sheet) Format {
	if strings.Contains(sheet.Cell(0, 0), Segment5Signature) {
		return FormatSegment5
	}
	return FormatStandard
}
