package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyDataset is returned when a map is requested for zero records.
	ErrEmptyDataset = errors.New("no records to map")

	// ErrUnreadableInput is returned when upload bytes are not a spreadsheet.
	ErrUnreadableInput = errors.New("unreadable spreadsheet")
)

// MalformedInputError reports that a sheet lacks columns its layout requires.
type MalformedInputError struct {
	Format  Format
	Missing []string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s crash sheet: missing column(s) %s",
		e.Format, strings.Join(e.Missing, ", "))
}
