package sandbox

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/errors"
)

type Constraint struct {
	Key            string `json:"key"`
	ConstraintType string `json:"constraint_type"`
	Value          any    `json:"value"`
}

type matcherFunc func(field, value any) bool

var matchers = map[string]matcherFunc{
	"equals":            equals,
	"not equal":         not(equals),
	"is_empty":          func(field, _ any) bool { return isEmpty(field) },
	"is_not_empty":      func(field, _ any) bool { return !isEmpty(field) },
	"empty":             func(field, _ any) bool { return isEmpty(field) },
	"not empty":         func(field, _ any) bool { return !isEmpty(field) },
	"text contains":     textContains,
	"not text contains": not(textContains),
	"greater than":      func(field, value any) bool { c, ok := compare(field, value); return ok && c > 0 },
	"less than":         func(field, value any) bool { c, ok := compare(field, value); return ok && c < 0 },
	"in":                in,
	"not in":            not(in),
	"contains":          contains,
	"not contains":      not(contains),
}

func not(m matcherFunc) matcherFunc {
	return func(field, value any) bool {
		return !m(field, value)
	}
}

// ParseConstraints decodes the json encoded constraints query parameter
func ParseConstraints(param string) ([]Constraint, error) {
	if param == "" {
		return nil, nil
	}

	constraints := []Constraint{}

	d := json.NewDecoder(strings.NewReader(param))
	d.UseNumber()
	if err := d.Decode(&constraints); err != nil {
		return nil, errors.NewBadRequestError(fmt.Sprintf("invalid constraints: %s", err.Error()))
	}

	for _, c := range constraints {
		if _, ok := matchers[c.ConstraintType]; !ok {
			return nil, errors.NewBadRequestError(fmt.Sprintf("unsupported constraint type %q", c.ConstraintType))
		}
	}

	return constraints, nil
}

func (c Constraint) Matches(fields map[string]any) bool {
	m, ok := matchers[c.ConstraintType]
	if !ok {
		return false
	}

	return m(fields[c.Key], c.Value)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	switch value := v.(type) {
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}

	return false
}

func equals(field, value any) bool {
	if c, ok := compare(field, value); ok {
		return c == 0
	}

	return reflect.DeepEqual(field, value)
}

func textContains(field, value any) bool {
	f, ok1 := field.(string)
	v, ok2 := value.(string)
	return ok1 && ok2 && strings.Contains(strings.ToLower(f), strings.ToLower(v))
}

func in(field, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}

	for _, item := range list {
		if equals(field, item) {
			return true
		}
	}

	return false
}

func contains(field, value any) bool {
	if list, ok := field.([]any); ok {
		return in(value, list)
	}

	return textContains(field, value)
}

// compare orders two scalar values. Numbers are compared numerically,
// strings holding RFC 3339 timestamps chronologically and any other
// strings lexically. ok is false when the values can not be ordered.
func compare(a, b any) (result int, ok bool) {
	if x, okA := number(a); okA {
		if y, okB := number(b); okB {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	x, okA := a.(string)
	y, okB := b.(string)
	if !okA || !okB {
		if ba, isBool := a.(bool); isBool {
			if bb, isBool := b.(bool); isBool && ba == bb {
				return 0, true
			}
		}
		return 0, false
	}

	tx, errX := time.Parse(time.RFC3339Nano, x)
	ty, errY := time.Parse(time.RFC3339Nano, y)
	if errX == nil && errY == nil {
		return tx.Compare(ty), true
	}

	return strings.Compare(x, y), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}

	return 0, false
}
