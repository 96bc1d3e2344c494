// Package query builds the query string of outbound requests.
//
// Parameters keep their insertion order. Filter, Sort and Range values turn
// caller intent into parameters through key patterns, and Compose merges a
// connector's default policy with per-request overrides and the pagination
// fragment in a fixed order.
package query

import (
	"net/url"
	"slices"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters. Duplicate keys are allowed.
type Params []Param

// Fragment is anything that contributes query parameters to a request.
type Fragment interface {
	Params() Params
}

// Add appends a parameter and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Get returns the value of the first parameter with the given key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Params implements Fragment.
func (p Params) Params() Params {
	return p
}

// Encode renders the parameters as a URL query string in their list order.
// Brackets, parentheses and commas are kept readable ("page[number]=1").
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}

	var b strings.Builder
	for i, param := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(param.Key))
		b.WriteByte('=')
		b.WriteString(escape(param.Value))
	}
	return b.String()
}

var bracketUnescaper = strings.NewReplacer("%5B", "[", "%5D", "]", "%2C", ",", "%28", "(", "%29", ")")

func escape(s string) string {
	return bracketUnescaper.Replace(url.QueryEscape(s))
}

// FromValues converts url.Values into Params, sorted by key for stable output.
func FromValues(v url.Values) Params {
	var params Params
	for _, key := range sortedKeys(v) {
		for _, value := range v[key] {
			params = params.Add(key, value)
		}
	}
	return params
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
