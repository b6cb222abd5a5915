package objects

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
)

type ConstraintType string

const (
	Equals          ConstraintType = "equals"
	NotEqual        ConstraintType = "not equal"
	IsEmpty         ConstraintType = "is_empty"
	IsNotEmpty      ConstraintType = "is_not_empty"
	TextContains    ConstraintType = "text contains"
	NotTextContains ConstraintType = "not text contains"
	GreaterThan     ConstraintType = "greater than"
	LessThan        ConstraintType = "less than"
	In              ConstraintType = "in"
	NotIn           ConstraintType = "not in"
	Contains        ConstraintType = "contains"
	NotContains     ConstraintType = "not contains"
	Empty           ConstraintType = "empty"
	NotEmpty        ConstraintType = "not empty"
)

// Query parameter names understood by the data api
const (
	CursorParam      string = "cursor"
	LimitParam       string = "limit"
	ConstraintsParam string = "constraints"
	SortFieldParam   string = "sort_field"
	DescendingParam  string = "descending"
)

type Constraint struct {
	Key            string
	ConstraintType ConstraintType
	Value          any
}

func (c Constraint) wire() map[string]any {
	m := map[string]any{
		"key":             c.Key,
		"constraint_type": string(c.ConstraintType),
	}

	if c.Value != nil {
		m["value"] = c.Value
	}

	return m
}

// Params holds the query of a list or lookup request. The zero value is an
// unconstrained query.
type Params struct {
	constraints []Constraint
	sortField   string
	descending  bool
	start       int
	limit       int
	extra       map[string]any
}

type ParamsDecoratorFunc func(p *Params)

func NewParams(decorators ...ParamsDecoratorFunc) Params {
	return Params{}.With(decorators...)
}

// With returns a copy of p with decorators applied
func (p Params) With(decorators ...ParamsDecoratorFunc) Params {
	p.constraints = slices.Clone(p.constraints)
	p.extra = maps.Clone(p.extra)

	for _, decorator := range decorators {
		decorator(&p)
	}

	return p
}

func (p Params) Start() int {
	return p.start
}

// Limit returns the maximum number of results, or zero when unlimited
func (p Params) Limit() int {
	return p.limit
}

func (p Params) Constraints() []Constraint {
	return slices.Clone(p.constraints)
}

// Query renders the parameters in the vocabulary of the data api
func (p Params) Query() map[string]any {
	query := map[string]any{}

	for k, v := range p.extra {
		query[k] = v
	}

	if len(p.constraints) > 0 {
		constraints := make([]any, 0, len(p.constraints))
		for _, c := range p.constraints {
			constraints = append(constraints, c.wire())
		}
		query[ConstraintsParam] = constraints
	}

	if p.sortField != "" {
		query[SortFieldParam] = p.sortField
		query[DescendingParam] = p.descending
	}

	if p.start > 0 {
		query[CursorParam] = p.start
	}

	if p.limit > 0 {
		query[LimitParam] = p.limit
	}

	return query
}

func Where(key string, constraintType ConstraintType, value any) ParamsDecoratorFunc {
	return func(p *Params) {
		p.constraints = append(p.constraints, Constraint{Key: key, ConstraintType: constraintType, Value: value})
	}
}

func SortBy(field string, descending bool) ParamsDecoratorFunc {
	return func(p *Params) {
		p.sortField = field
		p.descending = descending
	}
}

func Limit(limit int) ParamsDecoratorFunc {
	return func(p *Params) {
		p.limit = max(limit, 0)
	}
}

// StartAt sets the zero based offset of the first result
func StartAt(offset int) ParamsDecoratorFunc {
	return func(p *Params) {
		p.start = max(offset, 0)
	}
}

// Param passes an arbitrary query parameter through to the data api. The
// cursor and limit parameters are owned by the cursor, so they are applied
// as StartAt and Limit, and ignored when their value is not an integer.
func Param(name string, value any) ParamsDecoratorFunc {
	return func(p *Params) {
		switch name {
		case CursorParam:
			if n, ok := integerOf(value); ok {
				StartAt(n)(p)
			}
			return
		case LimitParam:
			if n, ok := integerOf(value); ok {
				Limit(n)(p)
			}
			return
		}

		if p.extra == nil {
			p.extra = map[string]any{}
		}
		p.extra[name] = value
	}
}

func integerOf(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}

	return 0, false
}
