package query

// Set is one policy per query dimension. A nil field means the dimension
// was not supplied; a non-nil field, even one that renders no parameters,
// is a deliberate choice.
type Set struct {
	Filter Fragment
	Sort   Fragment
	Range  Fragment
}

// Merge returns defaults with every dimension supplied by overrides
// replaced as a whole. Individual entries are never merged.
func Merge(defaults, overrides Set) Set {
	merged := defaults
	if !isNil(overrides.Filter) {
		merged.Filter = overrides.Filter
	}
	if !isNil(overrides.Sort) {
		merged.Sort = overrides.Sort
	}
	if !isNil(overrides.Range) {
		merged.Range = overrides.Range
	}
	return merged
}

// Compose builds the query for one page: filter, sort and range parameters
// of the effective policy followed by the pagination fragment. The result
// depends only on its inputs.
func Compose(defaults, overrides Set, page Params) Params {
	effective := Merge(defaults, overrides)

	var out Params
	for _, f := range []Fragment{effective.Filter, effective.Sort, effective.Range} {
		if isNil(f) {
			continue
		}
		out = append(out, f.Params()...)
	}
	return append(out, page...)
}

// isNil reports whether f is nil or a typed nil pointer of the rule types
// in this package.
func isNil(f Fragment) bool {
	switch v := f.(type) {
	case nil:
		return true
	case *Filter:
		return v == nil
	case *Sort:
		return v == nil
	case *Range:
		return v == nil
	}
	return false
}
