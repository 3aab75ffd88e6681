// Package transforms provides the named pure-function catalog shared by
// the workflow transform runner and the tool-builder transform step.
package transforms

import (
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Func applies a named transformation to a single value.
type Func func(value any) (any, error)

var catalog = map[string]Func{
	"uppercase":       uppercase,
	"lowercase":       lowercase,
	"trim":            trim,
	"capitalize":      capitalize,
	"format_currency": formatCurrency,
	"format_date":     formatDate,
	"format_number":   formatNumber,
	"extract_domain":  extractDomain,
}

// Apply runs the named transformation. Unknown names are an error so a
// typo in workflow config fails the step instead of passing data
// through silently.
func Apply(name string, value any) (any, error) {
	fn, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform function: %s", name)
	}

	return fn(value)
}

// Names returns the catalog's function names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func uppercase(value any) (any, error) {
	return strings.ToUpper(asString(value)), nil
}

func lowercase(value any) (any, error) {
	return strings.ToLower(asString(value)), nil
}

func trim(value any) (any, error) {
	return strings.TrimSpace(asString(value)), nil
}

func capitalize(value any) (any, error) {
	s := asString(value)
	if s == "" {
		return "", nil
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])

	return string(runes), nil
}

func formatCurrency(value any) (any, error) {
	num, err := asNumber(value)
	if err != nil {
		return nil, fmt.Errorf("format_currency: %w", err)
	}

	return "$" + groupThousands(fmt.Sprintf("%.2f", num)), nil
}

func formatNumber(value any) (any, error) {
	num, err := asNumber(value)
	if err != nil {
		return nil, fmt.Errorf("format_number: %w", err)
	}

	if num == float64(int64(num)) {
		return groupThousands(strconv.FormatInt(int64(num), 10)), nil
	}

	return groupThousands(strconv.FormatFloat(num, 'f', -1, 64)), nil
}

func formatDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format("Jan 2, 2006"), nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.Format("Jan 2, 2006"), nil
			}
		}

		return nil, fmt.Errorf("format_date: unrecognized date %q", v)
	case float64:
		return time.Unix(int64(v), 0).UTC().Format("Jan 2, 2006"), nil
	default:
		return nil, fmt.Errorf("format_date: unsupported type %T", value)
	}
}

func extractDomain(value any) (any, error) {
	s := strings.TrimSpace(asString(value))

	if addr, err := mail.ParseAddress(s); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			return addr.Address[at+1:], nil
		}
	}

	if parsed, err := url.Parse(s); err == nil && parsed.Hostname() != "" {
		return parsed.Hostname(), nil
	}

	return nil, fmt.Errorf("extract_domain: cannot extract domain from %q", s)
}

func asNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", v)
		}

		return num, nil
	default:
		return 0, fmt.Errorf("value of type %T is not a number", value)
	}
}

// groupThousands inserts comma separators into the integer part of a
// formatted decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""

	if dot := strings.Index(s, "."); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var b strings.Builder

	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}

	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}

		b.WriteString(intPart[i : i+3])
	}

	return sign + b.String() + fracPart
}
