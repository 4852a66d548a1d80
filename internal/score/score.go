// Package score parses and formats score-to-par tokens as they appear in a
// hand-edited sheet: "E", "even", "+3", "-3", Unicode minus variants, and
// the occasional stray annotation.
//
// Parsing never fails. Anything that does not resolve to a finite whole
// number is nil, which sorts last and renders blank.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	evenPattern   = regexp.MustCompile(`(?i)^e(ven)?$`)
	minusReplacer = strings.NewReplacer("−", "-", "—", "-", "–", "-")
)

// ParseToPar converts a raw score-to-par token to a signed integer.
//
// Rules, in order: empty -> nil; "e"/"even" (any case) -> 0; Unicode minus
// variants become '-'; direct numeric parse (leading '+' allowed); on
// failure, strip everything except digits, '+', '-', '.' and retry; a
// non-finite or non-integral result is nil.
func ParseToPar(token string) *int64 {
	s := strings.TrimSpace(token)
	if s == "" {
		return nil
	}
	if evenPattern.MatchString(s) {
		zero := int64(0)
		return &zero
	}
	return parseLenient(s)
}

// ParseToParValue is ParseToPar for loosely typed cells (JSON numbers,
// nil, strings).
func ParseToParValue(v any) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return ParseToPar(val)
	case float64:
		return fromFloat(val)
	case int:
		n := int64(val)
		return &n
	case int64:
		return &val
	default:
		return ParseToPar(fmt.Sprint(val))
	}
}

// ParseInteger is the lenient numeric parse without the "even" rule.
// Used for hole numbers and par values ("7", "Hole 7", "4").
func ParseInteger(token string) *int64 {
	s := strings.TrimSpace(token)
	if s == "" {
		return nil
	}
	return parseLenient(s)
}

func parseLenient(s string) *int64 {
	s = minusReplacer.Replace(s)
	if n, ok := parseFinite(s); ok {
		return fromFloat(n)
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' || r == '-' || r == '.' {
			return r
		}
		return -1
	}, s)
	if n, ok := parseFinite(cleaned); ok {
		return fromFloat(n)
	}
	return nil
}

// parseFinite accepts plain decimal notation only. strconv.ParseFloat also
// accepts "Inf", "NaN", hex floats and underscores; none of those are
// scores.
func parseFinite(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xXpP_iInN") {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func fromFloat(f float64) *int64 {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// FormatToPar renders a score-to-par for display: nil -> "", 0 -> "E",
// positive values carry a leading '+'.
func FormatToPar(n *int64) string {
	switch {
	case n == nil:
		return ""
	case *n == 0:
		return "E"
	case *n > 0:
		return "+" + strconv.FormatInt(*n, 10)
	default:
		return strconv.FormatInt(*n, 10)
	}
}

// NumericGross returns the gross score as an integer when the cell is a
// plain number. Gross is kept as text for display; this is only used for
// the monotonic check.
func NumericGross(gross string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(gross), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
