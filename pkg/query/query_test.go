package query

import (
	"net/url"
	"testing"
)

func TestParams_Encode(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		expected string
	}{
		{
			name:     "empty",
			params:   nil,
			expected: "",
		},
		{
			name:     "keeps insertion order",
			params:   Params{}.Add("z", "1").Add("a", "2"),
			expected: "z=1&a=2",
		},
		{
			name:     "brackets stay readable",
			params:   Params{}.Add("page[number]", "1").Add("page[size]", "100"),
			expected: "page[number]=1&page[size]=100",
		},
		{
			name:     "escapes values",
			params:   Params{}.Add("q", "a b&c"),
			expected: "q=a+b%26c",
		},
		{
			name:     "duplicate keys",
			params:   Params{}.Add("id", "1").Add("id", "2"),
			expected: "id=1&id=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Encode(); got != tt.expected {
				t.Errorf("Encode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFromValues(t *testing.T) {
	v := url.Values{"b": {"2"}, "a": {"1", "3"}}

	got := FromValues(v).Encode()
	if got != "a=1&a=3&b=2" {
		t.Errorf("FromValues().Encode() = %q, want %q", got, "a=1&a=3&b=2")
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   *Filter
		expected string
	}{
		{
			name:     "default pattern",
			filter:   NewFilter().Filter("status", "open", "closed"),
			expected: "status=open,closed",
		},
		{
			name:     "bracket pattern",
			filter:   NewFilter().Pattern("filter[property]").Filter("primary_campus_id", "31"),
			expected: "filter[primary_campus_id]=31",
		},
		{
			name:     "operator pattern",
			filter:   NewFilter().Pattern("property[filter]").FilterWith("age", "gte", "18").FilterWith("age", "lte", "65"),
			expected: "age[gte]=18&age[lte]=65",
		},
		{
			name:     "same property replaces values",
			filter:   NewFilter().Filter("status", "open").Filter("kind", "bug").Filter("status", "closed"),
			expected: "status=closed&kind=bug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Params().Encode(); got != tt.expected {
				t.Errorf("Params().Encode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		name     string
		sort     *Sort
		expected string
	}{
		{
			name:     "empty renders nothing",
			sort:     NewSort(),
			expected: "",
		},
		{
			name:     "prefix for descending",
			sort:     NewSort().Desc("created_at").Asc("login"),
			expected: "sort=-created_at,login",
		},
		{
			name:     "order placeholder",
			sort:     NewSort().Pattern("property.order").Desc("login").Asc("id"),
			expected: "sort=login.desc,id.asc",
		},
		{
			name:     "custom key",
			sort:     NewSort().Key("order_by").Pattern("order(property)").By("name", Ascending),
			expected: "order_by=asc(name)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sort.Params().Encode(); got != tt.expected {
				t.Errorf("Params().Encode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRange(t *testing.T) {
	r := NewRange().Between("created_at", "2024-01-01", "2024-12-31").Between("id", 1, 500)
	if got := r.Params().Encode(); got != "range[created_at]=2024-01-01,2024-12-31&range[id]=1,500" {
		t.Errorf("Params().Encode() = %q", got)
	}

	r.Between("id", 10, 20)
	if got, _ := r.Params().Get("range[id]"); got != "10,20" {
		t.Errorf("range[id] = %q, want %q", got, "10,20")
	}

	custom := NewRange().Pattern("property_between").Between("score", 0.5, 1)
	if got := custom.Params().Encode(); got != "score_between=0.5,1" {
		t.Errorf("Params().Encode() = %q", got)
	}
}

func TestCompose_Order(t *testing.T) {
	defaults := Set{
		Filter: NewFilter().Filter("status", "open"),
		Sort:   NewSort().Asc("id"),
		Range:  NewRange().Between("id", 1, 9),
	}
	page := Params{}.Add("page[number]", "2").Add("page[size]", "10")

	got := Compose(defaults, Set{}, page).Encode()
	want := "status=open&sort=id&range[id]=1,9&page[number]=2&page[size]=10"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
}

func TestCompose_OverrideReplacesWholeSet(t *testing.T) {
	defaults := Set{
		Filter: NewFilter().Filter("a", "1").Filter("b", "2"),
		Sort:   NewSort().Asc("id"),
	}
	page := Params{}.Add("page[number]", "1").Add("page[size]", "100")

	tests := []struct {
		name      string
		overrides Set
		expected  string
	}{
		{
			name:      "no overrides",
			overrides: Set{},
			expected:  "a=1&b=2&sort=id&page[number]=1&page[size]=100",
		},
		{
			name:      "filter override drops every default filter",
			overrides: Set{Filter: NewFilter().Filter("c", "3")},
			expected:  "c=3&sort=id&page[number]=1&page[size]=100",
		},
		{
			name:      "empty filter override clears filters",
			overrides: Set{Filter: NewFilter()},
			expected:  "sort=id&page[number]=1&page[size]=100",
		},
		{
			name:      "typed nil is not an override",
			overrides: Set{Filter: (*Filter)(nil)},
			expected:  "a=1&b=2&sort=id&page[number]=1&page[size]=100",
		},
		{
			name:      "sort override",
			overrides: Set{Sort: NewSort().Desc("name")},
			expected:  "a=1&b=2&sort=-name&page[number]=1&page[size]=100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compose(defaults, tt.overrides, page).Encode(); got != tt.expected {
				t.Errorf("Compose() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCompose_Deterministic(t *testing.T) {
	defaults := Set{Filter: NewFilter().Filter("x", "1", "2"), Range: NewRange().Between("t", 0, 1)}
	overrides := Set{Sort: NewSort().Asc("y").Desc("z")}
	page := Params{}.Add("page[number]", "3")

	first := Compose(defaults, overrides, page).Encode()
	for i := 0; i < 10; i++ {
		if got := Compose(defaults, overrides, page).Encode(); got != first {
			t.Fatalf("Compose() = %q on run %d, want %q", got, i, first)
		}
	}
}

func TestCompose_DoesNotMutateDefaults(t *testing.T) {
	filter := NewFilter().Filter("a", "1")
	defaults := Set{Filter: filter}

	out := Compose(defaults, Set{}, nil)
	out[0].Value = "changed"

	if got, _ := filter.Params().Get("a"); got != "1" {
		t.Errorf("default filter value = %q after Compose, want %q", got, "1")
	}
}
