package database

import (
	"cmp"
	"reflect"
	"slices"
	"time"
)

// Op is a filter operator. The values match the Firestore operator strings.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is a single field predicate.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts results by a field.
type Order struct {
	Field     string
	Direction Direction
}

// Query describes a refined read over one collection. Queries are values:
// every builder method returns a modified copy.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Max        int
}

// QueryFn refines a base query. A nil QueryFn leaves the query unchanged.
type QueryFn func(Query) Query

// NewQuery returns an unfiltered query over collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where adds a field predicate.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy adds a sort key.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Field: field, Direction: dir})
	return q
}

// Limit caps the number of results; zero means no limit.
func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

// Apply runs fn against q, tolerating a nil fn.
func (fn QueryFn) Apply(q Query) Query {
	if fn == nil {
		return q
	}
	return fn(q)
}

// Then composes two query functions: fn runs first, next is layered on top.
func (fn QueryFn) Then(next QueryFn) QueryFn {
	return func(q Query) Query {
		return next.Apply(fn.Apply(q))
	}
}

// Matches reports whether data satisfies every filter of q.
func (q Query) Matches(data Fields) bool {
	for _, f := range q.Filters {
		if !f.matches(data) {
			return false
		}
	}
	return true
}

// Run filters, sorts and limits snapshots in memory. Backends without a
// native query engine use it to evaluate queries client-side.
func (q Query) Run(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if q.Matches(s.Data) {
			out = append(out, s)
		}
	}

	slices.SortStableFunc(out, func(a, b Snapshot) int {
		for _, o := range q.Orders {
			c, _ := compareValues(a.Data[o.Field], b.Data[o.Field])
			if o.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if q.Max > 0 && len(out) > q.Max {
		out = out[:q.Max]
	}
	return out
}

func (f Filter) matches(data Fields) bool {
	v, present := data[f.Field]

	switch f.Op {
	case OpEqual:
		return present && equalValues(v, f.Value)
	case OpNotEqual:
		return present && !equalValues(v, f.Value)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		if !present {
			return false
		}
		c, ok := compareValues(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpLess:
			return c < 0
		case OpLessEqual:
			return c <= 0
		case OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case OpIn:
		return present && containsValue(f.Value, v)
	case OpArrayContains:
		return present && containsValue(v, f.Value)
	}
	return false
}

func containsValue(list, v any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two scalar values of compatible kinds. Numbers of any
// Go type compare numerically.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf), true
		}
		return 0, false
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
