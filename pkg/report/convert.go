package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Date formats tried in order until one parses
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02T15:04",
}

// Timestamp formats; the HTML datetime-local separator "T" and a plain
// space are both accepted, with and without seconds.
var timestampFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type parseFunc func(string) (any, error)

// parsers is the exhaustive dispatch table from parameter type to
// conversion. Every member of the closed ParamType set has an entry.
var parsers = map[types.ParamType]parseFunc{
	types.ParamString: func(v string) (any, error) { return v, nil },
	types.ParamInteger: func(v string) (any, error) {
		n, err := strconv.ParseInt(v, 10, 32)
		return int(n), err
	},
	types.ParamLong: func(v string) (any, error) {
		return strconv.ParseInt(v, 10, 64)
	},
	types.ParamShort: func(v string) (any, error) {
		n, err := strconv.ParseInt(v, 10, 16)
		return int16(n), err
	},
	types.ParamFloat: func(v string) (any, error) {
		f, err := strconv.ParseFloat(v, 32)
		return float32(f), err
	},
	types.ParamDouble: func(v string) (any, error) {
		return strconv.ParseFloat(v, 64)
	},
	types.ParamDecimal: func(v string) (any, error) {
		return decimal.NewFromString(v)
	},
	types.ParamBoolean: func(v string) (any, error) {
		return strconv.ParseBool(v)
	},
	types.ParamDate: func(v string) (any, error) {
		return parseTime(v, dateFormats)
	},
	types.ParamTimestamp: func(v string) (any, error) {
		return parseTime(v, timestampFormats)
	},
}

// Convert turns a raw string value into the declared parameter type
func Convert(value string, paramType types.ParamType) (any, error) {
	parse, ok := parsers[paramType]
	if !ok {
		// unknown tags were already normalized to string at extraction
		return value, nil
	}
	return parse(value)
}

func parseTime(value string, formats []string) (time.Time, error) {
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time value %q", value)
}
