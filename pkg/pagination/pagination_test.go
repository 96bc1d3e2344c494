package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/reqt/pkg/query"
)

// fakeServer serves a collection of total items and records requested pages.
type fakeServer struct {
	total     int
	requested []int
	malformed int // page number answered with an invalid body
	failAt    int // page number failing with an error
}

func (s *fakeServer) fetch(_ context.Context, fragment query.Params, c Cursor) (*Page, error) {
	s.requested = append(s.requested, c.Number)

	if n, _ := fragment.Get(ParamNumber); n != fmt.Sprint(c.Number) {
		return nil, fmt.Errorf("fragment page[number] = %s, cursor at %d", n, c.Number)
	}
	if c.Number == s.failAt {
		return nil, errors.New("connection reset")
	}
	if c.Number == s.malformed {
		return Decode([]byte(`"not a page"`), nil, &c)
	}

	var items []string
	for i := (c.Number - 1) * c.Size; i < c.Number*c.Size && i < s.total; i++ {
		items = append(items, fmt.Sprintf(`{"id":%d}`, i+1))
	}
	return Decode([]byte("["+strings.Join(items, ",")+"]"), nil, &c)
}

func collect(t *testing.T, p *Pager) ([]*Page, error) {
	t.Helper()

	var pages []*Page
	for page, err := range p.All(context.Background()) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func TestNewCursor(t *testing.T) {
	c := NewCursor(0)
	if c.Number != 1 || c.Size != DefaultPageSize {
		t.Errorf("NewCursor(0) = %+v, want number 1 size %d", c, DefaultPageSize)
	}
	if got := c.Params().Encode(); got != "page[number]=1&page[size]=100" {
		t.Errorf("Params().Encode() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{name: "one shot", rule: OneShot()},
		{name: "all", rule: All()},
		{name: "fixed 1", rule: Fixed(1)},
		{name: "fixed 0", rule: Fixed(0), wantErr: true},
		{name: "fixed negative", rule: Fixed(-3), wantErr: true},
		{name: "nil", rule: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Validate() error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestPager_Traversal(t *testing.T) {
	tests := []struct {
		name          string
		rule          Rule
		size          int
		total         int
		expectedPages []int
	}{
		{
			name:          "one shot with more data available",
			rule:          OneShot(),
			size:          10,
			total:         1000,
			expectedPages: []int{1},
		},
		{
			name:          "fixed stops early on short page",
			rule:          Fixed(5),
			size:          10,
			total:         24,
			expectedPages: []int{1, 2, 3},
		},
		{
			name:          "fixed stops at limit",
			rule:          Fixed(2),
			size:          10,
			total:         1000,
			expectedPages: []int{1, 2},
		},
		{
			name:          "all until empty page",
			rule:          All(),
			size:          10,
			total:         30,
			expectedPages: []int{1, 2, 3, 4},
		},
		{
			name:          "all until short page",
			rule:          All(),
			size:          10,
			total:         25,
			expectedPages: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &fakeServer{total: tt.total}
			pager, err := NewPager(tt.rule, tt.size, server.fetch)
			if err != nil {
				t.Fatalf("NewPager() error = %v", err)
			}

			pages, err := collect(t, pager)
			if err != nil {
				t.Fatalf("traversal error = %v", err)
			}

			if fmt.Sprint(server.requested) != fmt.Sprint(tt.expectedPages) {
				t.Errorf("requested pages = %v, want %v", server.requested, tt.expectedPages)
			}
			for i, page := range pages {
				if page.Number != i+1 {
					t.Errorf("page %d has Number %d", i, page.Number)
				}
			}

			if _, err := pager.Next(context.Background()); !errors.Is(err, ErrExhausted) {
				t.Errorf("Next() after traversal error = %v, want ErrExhausted", err)
			}
		})
	}
}

func TestPager_InvalidRule(t *testing.T) {
	server := &fakeServer{total: 10}
	if _, err := NewPager(Fixed(0), 10, server.fetch); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("NewPager(Fixed(0)) error = %v, want ErrInvalidRule", err)
	}
	if len(server.requested) != 0 {
		t.Errorf("requests sent for invalid rule: %v", server.requested)
	}
}

func TestPager_MalformedPageKeepsEarlierPages(t *testing.T) {
	server := &fakeServer{total: 100, malformed: 3}
	pager, err := NewPager(All(), 10, server.fetch)
	if err != nil {
		t.Fatalf("NewPager() error = %v", err)
	}

	pages, err := collect(t, pager)
	if !errors.Is(err, ErrPagination) {
		t.Fatalf("traversal error = %v, want ErrPagination", err)
	}
	if len(pages) != 2 {
		t.Errorf("pages before failure = %d, want 2", len(pages))
	}
	if _, err := pager.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after failure error = %v, want ErrExhausted", err)
	}
	if len(server.requested) != 3 {
		t.Errorf("requests = %v, want 3", server.requested)
	}
}

func TestPager_FetchError(t *testing.T) {
	server := &fakeServer{total: 100, failAt: 2}
	pager, _ := NewPager(All(), 10, server.fetch)

	pages, err := collect(t, pager)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("traversal error = %v, want fetch error", err)
	}
	if len(pages) != 1 {
		t.Errorf("pages before failure = %d, want 1", len(pages))
	}

	if _, err := pager.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after failure error = %v, want ErrExhausted", err)
	}
	if len(server.requested) != 2 {
		t.Errorf("requests = %v, want 2", server.requested)
	}
}

func TestPager_BreakStopsFetching(t *testing.T) {
	server := &fakeServer{total: 1000}
	pager, _ := NewPager(All(), 10, server.fetch)

	for page, err := range pager.All(context.Background()) {
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if page.Number == 2 {
			break
		}
	}

	if len(server.requested) != 2 {
		t.Errorf("requests = %v, want 2", server.requested)
	}
}

func TestPager_CancelledBeforeFetch(t *testing.T) {
	server := &fakeServer{total: 1000}
	pager, _ := NewPager(All(), 10, server.fetch)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := pager.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	cancel()

	if _, err := pager.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
	if len(server.requested) != 1 {
		t.Errorf("requests = %v, want 1", server.requested)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		header        http.Header
		cursor        Cursor
		expectedItems int
		expectedMore  bool
		expectedTotal int
		wantErr       bool
	}{
		{
			name:          "full array page",
			body:          `[1,2]`,
			cursor:        Cursor{Number: 1, Size: 2},
			expectedItems: 2,
			expectedMore:  true,
		},
		{
			name:          "short array page",
			body:          `[1]`,
			cursor:        Cursor{Number: 1, Size: 2},
			expectedItems: 1,
			expectedMore:  false,
		},
		{
			name:          "page larger than requested size",
			body:          `[1,2,3,4,5]`,
			cursor:        Cursor{Number: 1, Size: 2},
			expectedItems: 5,
			expectedMore:  true,
		},
		{
			name:          "empty array",
			body:          `[]`,
			cursor:        Cursor{Number: 3, Size: 2},
			expectedItems: 0,
			expectedMore:  false,
		},
		{
			name:          "empty body",
			body:          "",
			cursor:        Cursor{Number: 4, Size: 2},
			expectedItems: 0,
			expectedMore:  false,
		},
		{
			name:          "data envelope with total",
			body:          `{"data":[{"a":1},{"a":2}],"meta":{"total":4}}`,
			cursor:        Cursor{Number: 2, Size: 2},
			expectedItems: 2,
			expectedMore:  false,
			expectedTotal: 4,
		},
		{
			name:          "X-Total header",
			body:          `[1,2]`,
			header:        http.Header{"X-Total": {"10"}},
			cursor:        Cursor{Number: 1, Size: 2},
			expectedItems: 2,
			expectedMore:  true,
			expectedTotal: 10,
		},
		{
			name:          "X-Per-Page smaller than requested",
			body:          `[1,2]`,
			header:        http.Header{"X-Total": {"4"}, "X-Per-Page": {"2"}},
			cursor:        Cursor{Number: 2, Size: 2},
			expectedItems: 2,
			expectedMore:  false,
			expectedTotal: 4,
		},
		{
			name:          "X-Pages reached",
			body:          `[1,2]`,
			header:        http.Header{"X-Pages": {"3"}},
			cursor:        Cursor{Number: 3, Size: 2},
			expectedItems: 2,
			expectedMore:  false,
		},
		{
			name:    "object without data",
			body:    `{"items":[1]}`,
			cursor:  Cursor{Number: 1, Size: 2},
			wantErr: true,
		},
		{
			name:    "scalar body",
			body:    `42`,
			cursor:  Cursor{Number: 1, Size: 2},
			wantErr: true,
		},
		{
			name:    "broken json",
			body:    `[1,2`,
			cursor:  Cursor{Number: 1, Size: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Decode([]byte(tt.body), tt.header, &tt.cursor)
			if tt.wantErr {
				if !errors.Is(err, ErrPagination) {
					t.Errorf("Decode() error = %v, want ErrPagination", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if page.Returned != tt.expectedItems || len(page.Items) != tt.expectedItems {
				t.Errorf("Returned = %d, want %d", page.Returned, tt.expectedItems)
			}
			if page.HasMore != tt.expectedMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.expectedMore)
			}
			if page.Total != tt.expectedTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.expectedTotal)
			}
			if page.Number != tt.cursor.Number {
				t.Errorf("Number = %d, want %d", page.Number, tt.cursor.Number)
			}
		})
	}
}

func TestDecode_KeepsRawItems(t *testing.T) {
	page, err := Decode([]byte(`[{"id":1,"name":"a"}]`), nil, &Cursor{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(page.Items[0], &item); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if item.ID != 1 || item.Name != "a" {
		t.Errorf("item = %+v", item)
	}
}
