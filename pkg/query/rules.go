package query

import (
	"fmt"
	"strings"
)

// Placeholders substituted in rule patterns.
const (
	PlaceholderProperty = "property"
	PlaceholderFilter   = "filter"
	PlaceholderOrder    = "order"
)

// Filter produces one parameter per filtered property. The key is the
// pattern with "property" (and "filter", for operator filters) replaced;
// the value is the comma-joined list of accepted values.
//
//	NewFilter().Pattern("filter[property]").Filter("campus_id", "31")
//	// filter[campus_id]=31
//	NewFilter().Pattern("property[filter]").FilterWith("age", "gte", "18")
//	// age[gte]=18
type Filter struct {
	pattern string
	entries Params
}

// NewFilter returns an empty filter using the bare "property" pattern.
func NewFilter() *Filter {
	return &Filter{pattern: PlaceholderProperty}
}

// Pattern sets the key pattern. It must contain "property".
func (f *Filter) Pattern(pattern string) *Filter {
	f.pattern = pattern
	return f
}

// Filter restricts property to the given values. Filtering the same
// property again replaces the earlier values.
func (f *Filter) Filter(property string, values ...string) *Filter {
	key := strings.ReplaceAll(f.pattern, PlaceholderProperty, property)
	f.entries = replace(f.entries, key, strings.Join(values, ","))
	return f
}

// FilterWith applies an operator filter (lte, gte, exists, ...) to property.
func (f *Filter) FilterWith(property, op string, values ...string) *Filter {
	// substitute the operator first so a property named "filter" survives
	key := strings.ReplaceAll(f.pattern, PlaceholderFilter, op)
	key = strings.ReplaceAll(key, PlaceholderProperty, property)
	f.entries = replace(f.entries, key, strings.Join(values, ","))
	return f
}

// Params implements Fragment.
func (f *Filter) Params() Params {
	if f == nil {
		return nil
	}
	return append(Params(nil), f.entries...)
}

// Order is a sort direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Sort produces a single parameter listing the sort keys in the order they
// were added. Each key is the pattern with "property" and "order" replaced.
// When the pattern has no "order" placeholder a descending key is prefixed
// with "-".
//
//	NewSort().Desc("created_at").Asc("login")            // sort=-created_at,login
//	NewSort().Pattern("property.order").Desc("login")    // sort=login.desc
type Sort struct {
	key     string
	pattern string
	fields  []string
}

// NewSort returns an empty sort rendered under the "sort" key.
func NewSort() *Sort {
	return &Sort{key: "sort", pattern: PlaceholderProperty}
}

// Key sets the parameter name.
func (s *Sort) Key(key string) *Sort {
	s.key = key
	return s
}

// Pattern sets the per-field pattern.
func (s *Sort) Pattern(pattern string) *Sort {
	s.pattern = pattern
	return s
}

// Asc sorts by property ascending.
func (s *Sort) Asc(property string) *Sort {
	return s.By(property, Ascending)
}

// Desc sorts by property descending.
func (s *Sort) Desc(property string) *Sort {
	return s.By(property, Descending)
}

// By sorts by property in the given order.
func (s *Sort) By(property string, order Order) *Sort {
	field := s.pattern
	if strings.Contains(field, PlaceholderOrder) {
		field = strings.ReplaceAll(field, PlaceholderOrder, order.String())
	} else if order == Descending {
		field = "-" + field
	}
	s.fields = append(s.fields, strings.ReplaceAll(field, PlaceholderProperty, property))
	return s
}

// Params implements Fragment.
func (s *Sort) Params() Params {
	if s == nil || len(s.fields) == 0 {
		return nil
	}
	return Params{{Key: s.key, Value: strings.Join(s.fields, ",")}}
}

// Range produces one "min,max" parameter per bounded property.
//
//	NewRange().Between("created_at", "2024-01-01", "2024-12-31")
//	// range[created_at]=2024-01-01,2024-12-31
type Range struct {
	pattern string
	entries Params
}

// NewRange returns an empty range using the "range[property]" pattern.
func NewRange() *Range {
	return &Range{pattern: "range[" + PlaceholderProperty + "]"}
}

// Pattern sets the key pattern. It must contain "property".
func (r *Range) Pattern(pattern string) *Range {
	r.pattern = pattern
	return r
}

// Between bounds property to [min, max]. Bounding the same property again
// replaces the earlier bounds.
func (r *Range) Between(property string, min, max any) *Range {
	key := strings.ReplaceAll(r.pattern, PlaceholderProperty, property)
	r.entries = replace(r.entries, key, fmt.Sprintf("%v,%v", min, max))
	return r
}

// Params implements Fragment.
func (r *Range) Params() Params {
	if r == nil {
		return nil
	}
	return append(Params(nil), r.entries...)
}

// replace sets key to value, keeping the position of an existing entry.
func replace(p Params, key, value string) Params {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return p.Add(key, value)
}
