package coerce

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const listSeparator = ", "

// numberToken matches the first numeric run in a monetary string.
var numberToken = regexp.MustCompile(`[-+]?\d[\d.,]*`)

// NormalizeCurrency converts a monetary value into a float64.
//
// Numbers pass through unchanged. Strings may carry currency symbols,
// codes, thousands separators and a decimal comma ("R$ 1.234,56").
// Unparsable input returns 0 and false; callers decide how to report it.
func NormalizeCurrency(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		return parseMoney(x)
	default:
		return 0, false
	}
}

func parseMoney(s string) (float64, bool) {
	token := numberToken.FindString(s)
	if token == "" {
		return 0, false
	}
	token = strings.TrimRight(token, ".,")

	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The separator that appears last is the decimal one.
		if lastComma > lastDot {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case lastComma >= 0:
		token = resolveSingleSeparator(token, ",")
	case lastDot >= 0:
		token = resolveSingleSeparator(token, ".")
	}

	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// resolveSingleSeparator handles tokens that use only one separator kind.
// Repeated separators, or a single one followed by exactly three digits,
// group thousands. Anything else is a decimal point.
func resolveSingleSeparator(token, sep string) string {
	if strings.Count(token, sep) > 1 {
		return strings.ReplaceAll(token, sep, "")
	}
	idx := strings.Index(token, sep)
	if len(token)-idx-1 == 3 {
		return strings.ReplaceAll(token, sep, "")
	}
	return strings.Replace(token, sep, ".", 1)
}

// normalizeList renders a list value as its canonical display string.
// It accepts a JSON array or a delimited string.
func normalizeList(v any) (string, bool) {
	switch x := v.(type) {
	case []any:
		items := make([]string, 0, len(x))
		for _, el := range x {
			var s string
			switch e := el.(type) {
			case string:
				s = e
			case json.Number:
				s = e.String()
			case nil:
				continue
			case map[string]any, []any:
				b, err := json.Marshal(e)
				if err != nil {
					return "", false
				}
				s = string(b)
			default:
				s = fmt.Sprint(e)
			}
			if s = cleanListItem(s); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, listSeparator), true
	case []string:
		items := make([]string, 0, len(x))
		for _, s := range x {
			if s = cleanListItem(s); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, listSeparator), true
	case string:
		return splitDelimited(x), true
	default:
		return "", false
	}
}

func splitDelimited(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = cleanListItem(f); f != "" {
			items = append(items, f)
		}
	}
	return strings.Join(items, listSeparator)
}

func cleanListItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•")
	return strings.TrimSpace(s)
}
