package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standardHeader = []string{"Latitude", "Longitude", "Date", "Severity", "Veh1 Dir"}

func standardSheet(rows ...[]string) Sheet {
	return append(Sheet{standardHeader}, rows...)
}

func segment5Sheet(rows ...[]string) Sheet {
	return append(Sheet{{Segment5Signature + " (2019-2023)"}}, rows...)
}

// seg5Row builds a positional Segment 5 row: B=date, C=direction, D=milepost,
// H=severity, J=notes.
func seg5Row(date, dir, milepost, severity, notes string) []string {
	return []string{"1", date, dir, milepost, "", "", "", severity, "", notes}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		sheet Sheet
		want  Format
	}{
		{"segment 5 signature exact", Sheet{{Segment5Signature}}, FormatSegment5},
		{"segment 5 signature with suffix", Sheet{{"  " + Segment5Signature + " - Northern Colorado"}}, FormatSegment5},
		{"standard header", standardSheet(), FormatStandard},
		{"empty sheet", Sheet{}, FormatStandard},
		{"empty first row", Sheet{{}}, FormatStandard},
		{"signature outside A1", Sheet{{"", Segment5Signature}}, FormatStandard},
		{"unrelated title", Sheet{{"I-25 Segment 4 Accident History"}}, FormatStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.sheet))
		})
	}
}

func TestParseRecords_Standard(t *testing.T) {
	t.Run("valid rows map severity and direction", func(t *testing.T) {
		sheet := standardSheet(
			[]string{"40.1", "-105.0", "2023-01-01", "FAT", " n "},
			[]string{"40.2", "-105.1", "2023-02-01", "PDO", "sb"},
			[]string{"40.3", "-105.2", "2023-03-01", "INJ", "NE"},
		)

		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		require.Len(t, res.Records, 3)
		assert.Empty(t, res.Dropped)
		assert.Equal(t, FormatStandard, res.Format)

		first := res.Records[0]
		assert.Equal(t, 2, first.Row)
		assert.Equal(t, day(2023, time.January, 1), first.Date)
		assert.Equal(t, 40.1, first.Lat)
		assert.Equal(t, -105.0, first.Lon)
		assert.Equal(t, SeverityFatality, first.Severity)
		assert.Equal(t, "N", first.Direction)
		assert.False(t, first.Placeholder)
		assert.True(t, strings.HasPrefix(first.ID, "crash-"))

		assert.Equal(t, SeverityPropertyDamage, res.Records[1].Severity)
		assert.Equal(t, "SB", res.Records[1].Direction)
		assert.Equal(t, SeverityInjury, res.Records[2].Severity)
	})

	t.Run("columns found in any order and case", func(t *testing.T) {
		sheet := Sheet{
			{"Severity", "veh1  dir", "DATE", "Notes", "longitude", "latitude"},
			{"inj", "S", "2023-05-06", "rear end", "-104.9", "39.7"},
		}
		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		rec := res.Records[0]
		assert.Equal(t, SeverityInjury, rec.Severity)
		assert.Equal(t, 39.7, rec.Lat)
		assert.Equal(t, -104.9, rec.Lon)
		assert.Equal(t, "S", rec.Direction)
	})

	t.Run("excel serial dates", func(t *testing.T) {
		sheet := standardSheet([]string{"40.1", "-105.0", "44927", "PDO", "N"})
		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, day(2023, time.January, 1), res.Records[0].Date)
	})

	t.Run("unrecognized severity defaults to property damage", func(t *testing.T) {
		sheet := standardSheet([]string{"40.1", "-105.0", "2023-01-01", "SERIOUS", "N"})
		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, SeverityPropertyDamage, res.Records[0].Severity)
	})

	t.Run("rows missing required fields are dropped", func(t *testing.T) {
		sheet := standardSheet(
			[]string{"", "-105.0", "2023-01-01", "FAT", "N"},
			[]string{"40.1", "", "2023-01-01", "FAT", "N"},
			[]string{"40.1", "-105.0", "", "FAT", "N"},
			[]string{"40.1", "-105.0", "2023-01-01", "", "N"},
			[]string{"40.1", "-105.0", "bad-date", "FAT", "N"},
			[]string{"north", "-105.0", "2023-01-01", "FAT", "N"},
			[]string{"140.1", "-105.0", "2023-01-01", "FAT", "N"},
			[]string{"40.1", "-105.0", "2023-01-01", "FAT", ""},
		)

		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		require.Len(t, res.Records, 1, "only the row with an empty direction survives")
		assert.Equal(t, 9, res.Records[0].Row)
		assert.Empty(t, res.Records[0].Direction)

		want := []DroppedRow{
			{Row: 2, Reason: "missing latitude"},
			{Row: 3, Reason: "missing longitude"},
			{Row: 4, Reason: "missing date"},
			{Row: 5, Reason: "missing severity"},
			{Row: 6, Reason: "unparsable date"},
			{Row: 7, Reason: "invalid latitude"},
			{Row: 8, Reason: "latitude out of range"},
		}
		if diff := cmp.Diff(want, res.Dropped); diff != "" {
			t.Fatalf("dropped rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("blank rows are skipped silently", func(t *testing.T) {
		sheet := standardSheet(
			[]string{},
			[]string{" ", "", ""},
			[]string{"40.1", "-105.0", "2023-01-01", "FAT", "N"},
		)
		res, err := ParseRecords(sheet, FormatStandard)
		require.NoError(t, err)
		assert.Len(t, res.Records, 1)
		assert.Empty(t, res.Dropped)
	})

	t.Run("header only yields no records", func(t *testing.T) {
		res, err := ParseRecords(standardSheet(), FormatStandard)
		require.NoError(t, err)
		assert.Empty(t, res.Records)
		assert.NotNil(t, res.Records)
	})

	t.Run("missing columns is malformed", func(t *testing.T) {
		sheet := Sheet{{"Latitude", "Longitude", "When"}, {"40.1", "-105.0", "2023-01-01"}}
		_, err := ParseRecords(sheet, FormatStandard)
		require.Error(t, err)

		var malformed *MalformedInputError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, FormatStandard, malformed.Format)
		assert.Equal(t, []string{ColDate, ColSeverity, ColDirection}, malformed.Missing)
		assert.Contains(t, err.Error(), "Veh1 Dir")
	})

	t.Run("empty sheet is malformed", func(t *testing.T) {
		_, err := ParseRecords(Sheet{}, FormatStandard)
		var malformed *MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Len(t, malformed.Missing, len(standardColumns))
	})
}

func TestParseRecords_Segment5(t *testing.T) {
	t.Run("positional columns and placeholder coordinates", func(t *testing.T) {
		sheet := segment5Sheet(
			[]string{"#", "Date", "", "", "", "", "", "", "", ""},
			seg5Row("2022-07-04", "nb", "254.3", "Injury", "Rear end in work zone"),
			seg5Row("07/05/2022", " SB ", "255", "Fatality", ""),
			seg5Row("44748", "NB", "256.1", "Property Damage", "Sideswipe"),
		)

		res, err := ParseRecords(sheet, FormatSegment5)
		require.NoError(t, err)
		require.Len(t, res.Records, 3)
		assert.Empty(t, res.Dropped)
		assert.Equal(t, FormatSegment5, res.Format)

		first := res.Records[0]
		assert.Equal(t, 3, first.Row)
		assert.Equal(t, day(2022, time.July, 4), first.Date)
		assert.Equal(t, "NB", first.Direction)
		assert.Equal(t, "254.3", first.Milepost)
		assert.Equal(t, SeverityInjury, first.Severity)
		assert.Equal(t, "Rear end in work zone", first.Notes)
		assert.Equal(t, PlaceholderLat, first.Lat)
		assert.Equal(t, PlaceholderLon, first.Lon)
		assert.True(t, first.Placeholder)

		assert.Equal(t, day(2022, time.July, 5), res.Records[1].Date)
		assert.Equal(t, "SB", res.Records[1].Direction)
		assert.Equal(t, SeverityFatality, res.Records[1].Severity)

		assert.Equal(t, day(2022, time.July, 6), res.Records[2].Date)
		assert.Equal(t, SeverityPropertyDamage, res.Records[2].Severity)
	})

	t.Run("unknown or missing severity phrase defaults to property damage", func(t *testing.T) {
		sheet := segment5Sheet(
			seg5Row("2022-07-04", "NB", "1", "Serious Injury", ""),
			seg5Row("2022-07-04", "NB", "1", "", ""),
			[]string{"1", "2022-07-04", "NB"},
			seg5Row("2022-07-04", "NB", "1", "  injury ", ""),
		)
		res, err := ParseRecords(sheet, FormatSegment5)
		require.NoError(t, err)
		require.Len(t, res.Records, 4)
		assert.Equal(t, SeverityPropertyDamage, res.Records[0].Severity)
		assert.Equal(t, SeverityPropertyDamage, res.Records[1].Severity)
		assert.Equal(t, SeverityPropertyDamage, res.Records[2].Severity)
		assert.Equal(t, SeverityInjury, res.Records[3].Severity)
	})

	t.Run("bad dates are dropped", func(t *testing.T) {
		sheet := segment5Sheet(
			seg5Row("not a date", "NB", "1", "Injury", ""),
			seg5Row("", "NB", "1", "Injury", ""),
			seg5Row("2022-07-04", "NB", "1", "Injury", ""),
		)
		res, err := ParseRecords(sheet, FormatSegment5)
		require.NoError(t, err)
		assert.Len(t, res.Records, 1)
		assert.Equal(t, []DroppedRow{
			{Row: 2, Reason: "unparsable date"},
			{Row: 3, Reason: "missing date"},
		}, res.Dropped)
	})

	t.Run("sheet without positional columns is malformed", func(t *testing.T) {
		_, err := ParseRecords(segment5Sheet([]string{"1", "2022-07-04"}), FormatSegment5)
		var malformed *MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, FormatSegment5, malformed.Format)
		assert.Equal(t, []string{"Direction"}, malformed.Missing)

		_, err = ParseRecords(segment5Sheet(), FormatSegment5)
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, []string{"Date", "Direction"}, malformed.Missing)
	})
}

func TestParseRecords_Deterministic(t *testing.T) {
	sheet := standardSheet(
		[]string{"40.1", "-105.0", "2023-01-01", "FAT", "N"},
		[]string{"40.1", "-105.0", "2023-01-01", "FAT", "N"},
		[]string{"40.3", "-105.2", "bad-date", "INJ", "E"},
	)

	first, err := ParseRecords(sheet, FormatStandard)
	require.NoError(t, err)
	second, err := ParseRecords(sheet, FormatStandard)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-parse mismatch (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.Records[0].ID, first.Records[1].ID, "identical crashes on different rows keep distinct IDs")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2023-01-01", day(2023, time.January, 1), true},
		{"2023-01-01 13:45:00", day(2023, time.January, 1), true},
		{"2023-01-01T23:30:00-07:00", day(2023, time.January, 1), true},
		{"2023/03/15", day(2023, time.March, 15), true},
		{"3/15/2023", day(2023, time.March, 15), true},
		{"3/15/23", day(2023, time.March, 15), true},
		{"03-15-23", day(2023, time.March, 15), true},
		{"Mar 15, 2023", day(2023, time.March, 15), true},
		{"44927", day(2023, time.January, 1), true},
		{"44927.75", day(2023, time.January, 1), true},
		{"", time.Time{}, false},
		{"bad-date", time.Time{}, false},
		{"0", time.Time{}, false},
		{"-5", time.Time{}, false},
		{"NaN", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in, false)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_1904(t *testing.T) {
	got, ok := parseDate("43465", true)
	require.True(t, ok)
	assert.Equal(t, day(2023, time.January, 1), got)

	got, ok = parseDate("44927", true)
	require.True(t, ok)
	assert.Equal(t, day(2027, time.January, 2), got)

	got, ok = parseDate("2023-01-01", true)
	require.True(t, ok)
	assert.Equal(t, day(2023, time.January, 1), got, "text dates ignore the date system")
}

func TestParseWorkbook_Date1904(t *testing.T) {
	tests := []struct {
		name   string
		wb     Workbook
		format Format
	}{
		{
			name:   "standard",
			wb:     Workbook{Sheet: standardSheet([]string{"40.1", "-105.0", "43465", "FAT", "N"}), Date1904: true},
			format: FormatStandard,
		},
		{
			name:   "segment 5",
			wb:     Workbook{Sheet: segment5Sheet(seg5Row("43465", "NB", "254.3", "Injury", "")), Date1904: true},
			format: FormatSegment5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseWorkbook(tt.wb, tt.format)
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.Equal(t, day(2023, time.January, 1), res.Records[0].Date)

			legacy, err := ParseRecords(tt.wb.Sheet, tt.format)
			require.NoError(t, err)
			assert.Equal(t, day(2018, time.December, 31), legacy.Records[0].Date)
		})
	}
}

func TestParseRecords_SeveritiesAreKnown(t *testing.T) {
	sheets := map[Format]Sheet{
		FormatStandard: standardSheet(
			[]string{"40.1", "-105.0", "2023-01-01", "FAT", "N"},
			[]string{"40.2", "-105.1", "2023-01-02", "inj", "S"},
			[]string{"40.3", "-105.2", "2023-01-03", "unknown", "E"},
		),
		FormatSegment5: segment5Sheet(
			seg5Row("2022-07-04", "NB", "254.3", "Injury", ""),
			seg5Row("2022-07-05", "SB", "255", "", ""),
			seg5Row("2022-07-06", "NB", "256", "Rollover", ""),
		),
	}
	for format, sheet := range sheets {
		t.Run(string(format), func(t *testing.T) {
			res, err := ParseRecords(sheet, format)
			require.NoError(t, err)
			require.Len(t, res.Records, 3)
			for _, r := range res.Records {
				assert.True(t, r.Severity.Valid(), "row %d severity %q", r.Row, r.Severity)
			}
		})
	}
}

func TestSeverity_Label(t *testing.T) {
	for _, sev := range Severities {
		assert.True(t, sev.Valid())
		assert.NotEqual(t, "Unknown", sev.Label(), sev)
	}
	assert.False(t, Severity("XYZ").Valid())
	assert.Equal(t, "Unknown", Severity("XYZ").Label())
	assert.Equal(t, "Property Damage", SeverityPropertyDamage.Label())
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatality, parseSeverityCode("fat"))
	assert.Equal(t, SeverityInjury, parseSeverityCode(" INJ "))
	assert.Equal(t, SeverityPropertyDamage, parseSeverityCode("PDO"))
	assert.Equal(t, SeverityPropertyDamage, parseSeverityCode("???"))

	assert.Equal(t, SeverityPropertyDamage, parseSeverityPhrase("Property Damage"))
	assert.Equal(t, SeverityPropertyDamage, parseSeverityPhrase("property   damage"))
	assert.Equal(t, SeverityInjury, parseSeverityPhrase("Injury"))
	assert.Equal(t, SeverityFatality, parseSeverityPhrase("FATALITY"))
	assert.Equal(t, SeverityPropertyDamage, parseSeverityPhrase(""))
}
