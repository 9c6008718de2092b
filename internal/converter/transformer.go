// =============================================================================
// NaPTAN Import - Value Transformations
// =============================================================================
//
// Field values arrive as spreadsheet text. Before substitution, values of
// attribute fields whose name contains "Date" are re-rendered in canonical
// ISO-8601 form:
//
//   "2020-01-01"                -> "2020-01-01T00:00:00"
//   "2020-01-01 10:30"          -> "2020-01-01T10:30:00"
//   "2020-01-01T10:30:00.5"     -> "2020-01-01T10:30:00.500000"
//   "2020-01-01T10:30:00+01:00" -> "2020-01-01T10:30:00+01:00"
//
// Anything that does not parse is an error; the value is never coerced.
//
// =============================================================================

package converter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// isoLayout is the canonical output form, without fraction or offset.
const isoLayout = "2006-01-02T15:04:05"

// dateLayout pairs an accepted input layout with whether it carries an offset.
type dateLayout struct {
	layout string
	zoned  bool
}

// dateLayouts are tried in order. Fractional seconds are accepted after the
// seconds field by time.Parse even though the layouts omit them.
var dateLayouts = []dateLayout{
	{"2006-01-02T15:04:05Z07:00", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05Z07:00", true},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02 15:04", false},
	{"2006-01-02T15", false},
	{"2006-01-02", false},
}

// NormalizeDateTime parses an ISO-8601 compatible date or date-time and
// renders it canonically.
//
// RETURNS:
//   - The canonical string.
//   - An error wrapping types.ErrDateParse when no layout matches.
func NormalizeDateTime(value string) (string, error) {
	v := strings.TrimSpace(value)

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, v)
		if err != nil {
			continue
		}

		out := t.Format(isoLayout)
		if micro := t.Nanosecond() / 1000; micro != 0 {
			out += fmt.Sprintf(".%06d", micro)
		}
		if l.zoned {
			out += t.Format("-07:00")
		}
		return out, nil
	}

	return "", fmt.Errorf("%w: %q is not an ISO-8601 date/time", types.ErrDateParse, value)
}

// fieldValue returns the text to substitute for field, normalising dates on
// attribute fields.
func fieldValue(field, value string) (string, error) {
	if types.IsAttributeField(field) && types.IsDateField(field) {
		v, err := NormalizeDateTime(value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field, err)
		}
		return v, nil
	}
	return value, nil
}
