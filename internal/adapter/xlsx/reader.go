package xlsx

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/crash-mapper/internal/domain"
	"github.com/xuri/excelize/v2"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Reader decodes uploaded spreadsheets into a domain.Workbook.
// It implements pipeline.WorkbookReader.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a spreadsheet reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadWorkbook returns the cells of the first worksheet of an XLSX workbook,
// or of a CSV file. Numeric cells, dates included, are returned unformatted so
// date serials survive regardless of the cell's display format; the workbook's
// date system is reported alongside them. CSV files always use the 1900 system.
func (r *Reader) ReadWorkbook(data []byte) (domain.Workbook, error) {
	switch {
	case len(data) == 0:
		return domain.Workbook{}, fmt.Errorf("%w: empty upload", domain.ErrUnreadableInput)
	case bytes.HasPrefix(data, zipMagic):
		return r.readWorkbook(data)
	case bytes.HasPrefix(data, oleMagic):
		return domain.Workbook{}, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx", domain.ErrUnreadableInput)
	case bytes.IndexByte(data, 0) >= 0:
		return domain.Workbook{}, fmt.Errorf("%w: binary content is neither xlsx nor csv", domain.ErrUnreadableInput)
	default:
		sheet, err := readCSV(data)
		if err != nil {
			return domain.Workbook{}, err
		}
		return domain.Workbook{Sheet: sheet}, nil
	}
}

func (r *Reader) readWorkbook(data []byte) (domain.Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.Workbook{}, fmt.Errorf("%w: open workbook: %v", domain.ErrUnreadableInput, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("close workbook failed", "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.Workbook{}, fmt.Errorf("%w: workbook has no sheets", domain.ErrUnreadableInput)
	}
	if len(sheets) > 1 {
		r.logger.Debug("workbook has multiple sheets, reading the first", "sheet", sheets[0], "sheets", len(sheets))
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Workbook{}, fmt.Errorf("%w: read sheet %q: %v", domain.ErrUnreadableInput, sheets[0], err)
	}

	wb := domain.Workbook{Sheet: domain.Sheet(rows)}
	props, err := f.GetWorkbookProps()
	switch {
	case err != nil:
		r.logger.Warn("read workbook properties failed, assuming 1900 date system", "error", err)
	case props.Date1904 != nil && *props.Date1904:
		r.logger.Debug("workbook uses the 1904 date system")
		wb.Date1904 = true
	}
	return wb, nil
}

func readCSV(data []byte) (domain.Sheet, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var sheet domain.Sheet
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv: %v", domain.ErrUnreadableInput, err)
		}
		sheet = append(sheet, row)
	}
	if len(sheet) == 0 {
		return nil, fmt.Errorf("%w: csv has no rows", domain.ErrUnreadableInput)
	}
	return sheet, nil
}
