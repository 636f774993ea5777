package storage

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Op is a comparison operator in a filter condition.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains"
)

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Filter is a condition tree. A leaf has Field set; And and Or combine
// children. The zero Filter matches everything.
type Filter struct {
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	And []Filter `json:"and,omitempty"`
	Or  []Filter `json:"or,omitempty"`
}

// Cond builds a leaf condition.
func Cond(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Eq is shorthand for Cond(field, OpEq, value).
func Eq(field string, value any) Filter {
	return Cond(field, OpEq, value)
}

// And matches when every non-empty child matches.
func And(filters ...Filter) Filter {
	return Filter{And: nonEmpty(filters)}
}

// Or matches when any non-empty child matches.
func Or(filters ...Filter) Filter {
	return Filter{Or: nonEmpty(filters)}
}

func nonEmpty(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if !f.IsZero() {
			out = append(out, f)
		}
	}
	return out
}

// IsZero reports whether f has no conditions.
func (f Filter) IsZero() bool {
	return f.Field == "" && len(f.And) == 0 && len(f.Or) == 0
}

// Validate checks operators throughout the tree.
func (f Filter) Validate() error {
	if f.Field != "" && !f.Op.Valid() {
		return fmt.Errorf("invalid operator %q on field %q", f.Op, f.Field)
	}
	for _, c := range f.And {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, c := range f.Or {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns every field the tree references, in first-seen order.
func (f Filter) Fields() []string {
	var out []string
	f.walk(func(leaf Filter) {
		if !slices.Contains(out, leaf.Field) {
			out = append(out, leaf.Field)
		}
	})
	return out
}

func (f Filter) walk(fn func(Filter)) {
	if f.Field != "" {
		fn(f)
	}
	for _, c := range f.And {
		c.walk(fn)
	}
	for _, c := range f.Or {
		c.walk(fn)
	}
}

// Match evaluates the filter against r.
func (f Filter) Match(r Record) bool {
	if f.Field != "" && !matchCond(f, r) {
		return false
	}
	for _, c := range f.And {
		if !c.Match(r) {
			return false
		}
	}
	if len(f.Or) > 0 {
		return slices.ContainsFunc(f.Or, func(c Filter) bool { return c.Match(r) })
	}
	return true
}

func matchCond(f Filter, r Record) bool {
	v, present := r[f.Field]
	switch f.Op {
	case OpEq:
		return present && equal(v, f.Value)
	case OpNe:
		return !present || !equal(v, f.Value)
	case OpIn:
		return present && slices.ContainsFunc(toSlice(f.Value), func(x any) bool { return equal(v, x) })
	case OpContains:
		if !present {
			return false
		}
		if s, ok := v.(string); ok {
			needle, ok := f.Value.(string)
			return ok && strings.Contains(s, needle)
		}
		return slices.ContainsFunc(toSlice(v), func(x any) bool { return equal(x, f.Value) })
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false
		}
		c, ok := Compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two scalar values. Numbers compare numerically whatever
// their Go type, times chronologically (RFC 3339 strings are accepted), and
// strings lexically. ok is false for incomparable values.
func Compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb), true
		}
		return 0, false
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, true
			case !ba:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func toSlice(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Sort orders results by one field.
type Sort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Query selects records of one model.
type Query struct {
	Model  string
	Select []string
	Where  Filter
	Sort   []Sort
	Limit  int
	Offset int
}

// SortFields returns the fields referenced by Sort.
func (q Query) SortFields() []string {
	out := make([]string, 0, len(q.Sort))
	for _, s := range q.Sort {
		out = append(out, s.Field)
	}
	return out
}

// Apply filters, sorts, pages and projects records in memory. Adapters
// without native query support use it; it is also the reference semantics
// native translations must agree with.
func (q Query) Apply(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if q.Where.Match(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		for _, s := range q.Sort {
			c, _ := Compare(a[s.Field], b[s.Field])
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID(), b.ID())
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	projected := make([]Record, len(out))
	for i, r := range out {
		if len(q.Select) > 0 {
			projected[i] = r.Project(q.Select)
		} else {
			projected[i] = r.Clone()
		}
	}
	return projected
}
