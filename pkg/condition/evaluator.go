package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Operator names understood by Evaluate.
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpContainsIgnoreCase = "contains_ignore_case"
	OpStartsWith         = "starts_with"
	OpIn                 = "in"
	OpRegex              = "regex"
	OpExists             = "exists"
	OpGreaterThan        = "gt"
	OpGreaterThanEqual   = "gte"
	OpLessThan           = "lt"
	OpLessThanEqual      = "lte"
)

// UnsupportedOperatorError is returned for an operator Evaluate does not know.
// Callers treat it as a non-match.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported condition operator '%s'", e.Operator)
}

type operatorFunc func(actual, expected any) (bool, error)

var operators = map[string]operatorFunc{
	OpEquals:             opEquals,
	OpNotEquals:          opNotEquals,
	OpContains:           opContains,
	OpContainsIgnoreCase: opContainsIgnoreCase,
	OpStartsWith:         opStartsWith,
	OpIn:                 opIn,
	OpRegex:              opRegex,
	OpExists:             opExists,
	OpGreaterThan:        numeric(func(c int) bool { return c > 0 }),
	OpGreaterThanEqual:   numeric(func(c int) bool { return c >= 0 }),
	OpLessThan:           numeric(func(c int) bool { return c < 0 }),
	OpLessThanEqual:      numeric(func(c int) bool { return c <= 0 }),
}

// Evaluate applies op to actual and expected.
// A false result with a nil error is a plain non-match. Operand errors
// (e.g. a non-numeric value for gt) are returned alongside false.
func Evaluate(op string, actual, expected any) (bool, error) {
	fn, ok := operators[op]
	if !ok {
		return false, &UnsupportedOperatorError{Operator: op}
	}
	return fn(actual, expected)
}

// Supported reports whether op is a known operator.
func Supported(op string) bool {
	_, ok := operators[op]
	return ok
}

// Operators returns the known operator names.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	return names
}

// String coerces a scalar to its string form. nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

func opEquals(actual, expected any) (bool, error) {
	return String(actual) == String(expected), nil
}

func opNotEquals(actual, expected any) (bool, error) {
	return String(actual) != String(expected), nil
}

func opContains(actual, expected any) (bool, error) {
	return strings.Contains(String(actual), String(expected)), nil
}

func opContainsIgnoreCase(actual, expected any) (bool, error) {
	return strings.Contains(strings.ToLower(String(actual)), strings.ToLower(String(expected))), nil
}

func opStartsWith(actual, expected any) (bool, error) {
	return strings.HasPrefix(String(actual), String(expected)), nil
}

// opIn accepts a list value or a comma separated string.
func opIn(actual, expected any) (bool, error) {
	needle := strings.TrimSpace(String(actual))
	var candidates []string
	switch t := expected.(type) {
	case []any:
		for _, item := range t {
			candidates = append(candidates, String(item))
		}
	case []string:
		candidates = t
	default:
		candidates = strings.Split(String(expected), ",")
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) == needle {
			return true, nil
		}
	}
	return false, nil
}

func opExists(actual, expected any) (bool, error) {
	present := actual != nil && String(actual) != ""
	if expected == nil || String(expected) == "" {
		return present, nil
	}
	want, err := strconv.ParseBool(String(expected))
	if err != nil {
		return false, fmt.Errorf("exists expects a boolean, got '%v'", expected)
	}
	return present == want, nil
}

var regexCache sync.Map

const maxPatternLength = 500

func opRegex(actual, expected any) (bool, error) {
	pattern := String(expected)
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(String(actual)), nil
	}
	if len(pattern) > maxPatternLength {
		return false, fmt.Errorf("regex pattern too long (max %d chars): %d chars", maxPatternLength, len(pattern))
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
	}
	regexCache.Store(pattern, re)
	return re.MatchString(String(actual)), nil
}

func numeric(accept func(cmp int) bool) operatorFunc {
	return func(actual, expected any) (bool, error) {
		a, err := toFloat(actual)
		if err != nil {
			return false, err
		}
		b, err := toFloat(expected)
		if err != nil {
			return false, err
		}
		switch {
		case a < b:
			return accept(-1), nil
		case a > b:
			return accept(1), nil
		}
		return accept(0), nil
	}
}

func toFloat(v any) (float64, error) {
	s := strings.TrimSpace(String(v))
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("value '%v' is not numeric", v)
	}
	return f, nil
}
