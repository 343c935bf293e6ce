package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Model replies are untrusted input. The helpers below implement the single
// degrade path used by every orchestrator operation: locate a JSON object in
// whatever the model returned, decode it into a loose map, and coerce fields
// with best effort. Callers supply the fallback when nothing usable parses.

var errNoJSONObject = errors.New("no JSON object in model output")

// decodeObject extracts the first JSON object from raw model output,
// tolerating markdown code fences and prose around the object.
func decodeObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errNoJSONObject
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return obj, nil
}

// asString coerces a field to a trimmed string; numbers are formatted,
// null and absent values become "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// asBool coerces a field to bool; string forms of true/false are accepted.
func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		return false
	}
}

// asInt coerces a field to a non-negative int. Strings may carry grouping
// spaces ("1 500 000").
func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0
		}
		return int(t + 0.5)
	case string:
		s := removeSpaces(t)
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// asStringList coerces a field to a list of non-empty strings.
func asStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// priceMultipliers maps Russian magnitude words to their factor. Order
// matters: longer tokens first so "тысяч" wins over "тыс".
var priceMultipliers = []struct {
	token  string
	factor float64
}{
	{"миллион", 1_000_000},
	{"млн", 1_000_000},
	{"тысяч", 1_000},
	{"тыс", 1_000},
}

// asPrice coerces a model price to whole rubles. Accepts plain numbers,
// grouped digits ("500 000"), and magnitude words ("500 тысяч", "1.5 млн",
// "миллион"). Returns 0 when nothing usable parses.
func asPrice(v any) int {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0
		}
		return int(t + 0.5)
	case string:
		return parsePriceString(t)
	default:
		return 0
	}
}

func parsePriceString(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	s = strings.NewReplacer("₽", "", "руб.", "", "рублей", "", "руб", "", ",", ".").Replace(s)

	factor := 1.0
	for _, m := range priceMultipliers {
		if strings.Contains(s, m.token) {
			factor = m.factor
			break
		}
	}

	num, ok := firstNumber(s)
	if !ok {
		// A bare magnitude word means one unit of it: "миллиона" is 1e6.
		if factor > 1 {
			return int(factor)
		}
		return 0
	}
	value := num * factor
	if value <= 0 {
		return 0
	}
	return int(value + 0.5)
}

// firstNumber extracts the first decimal number from s, joining digit groups
// separated by spaces ("500 000" reads as 500000).
func firstNumber(s string) (float64, bool) {
	var b strings.Builder
	started := false
	dotted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
			started = true
		case c == '.' && started && !dotted:
			b.WriteByte(c)
			dotted = true
		case c == ' ' && started && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9':
			// grouping space between digit runs
		default:
			if started {
				i = len(s) // stop at the first non-number run
			}
		}
	}
	if !started {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

// asLength normalizes a model length value to the fixed-precision decimal
// string used by storage ("6.50"). Returns "" for unusable input.
func asLength(v any) string {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', 2, 64)
	case string:
		s := strings.NewReplacer(",", ".", "м", "", "m", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(t)))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', 2, 64)
	default:
		return ""
	}
}

func removeSpaces(s string) string {
	return strings.NewReplacer(" ", "", " ", "").Replace(strings.TrimSpace(s))
}
