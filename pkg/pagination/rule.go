package pagination

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/reqt/pkg/query"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 100

// Query parameter names of the pagination fragment.
const (
	ParamNumber = "page[number]"
	ParamSize   = "page[size]"
)

// ErrInvalidRule is returned by Validate for a rule that cannot be executed.
var ErrInvalidRule = errors.New("invalid pagination rule")

// Cursor is the position of a traversal. Number starts at 1 and grows by one
// per completed page. A cursor belongs to a single Pager.
type Cursor struct {
	Number int
	Size   int
}

// NewCursor returns a cursor on the first page. A size <= 0 selects
// DefaultPageSize.
func NewCursor(size int) *Cursor {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Cursor{Number: 1, Size: size}
}

// Params returns the page[number] and page[size] parameters of the cursor.
func (c *Cursor) Params() query.Params {
	return query.Params{}.
		Add(ParamNumber, strconv.Itoa(c.Number)).
		Add(ParamSize, strconv.Itoa(c.Size))
}

// Rule decides how many pages a traversal fetches.
type Rule interface {
	// Fragment returns the query parameters for the page at c.
	Fragment(c *Cursor) query.Params
	// Done reports whether p, fetched at c, is the last page to fetch.
	Done(c *Cursor, p *Page) bool
	// Advance moves c to the next page.
	Advance(c *Cursor)
}

// Validator is implemented by rules that can be misconfigured.
type Validator interface {
	Validate() error
}

// Validate checks r before any request is sent.
func Validate(r Rule) error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if v, ok := r.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// pageRule holds the behaviour shared by the built-in rules.
type pageRule struct{}

func (pageRule) Fragment(c *Cursor) query.Params { return c.Params() }

func (pageRule) Advance(c *Cursor) { c.Number++ }

type oneShot struct{ pageRule }

// OneShot fetches exactly one page, whatever the server reports.
func OneShot() Rule { return oneShot{} }

func (oneShot) Done(*Cursor, *Page) bool { return true }

func (oneShot) String() string { return "one-shot" }

type fixed struct {
	pageRule
	limit int
}

// Fixed fetches pages until limit pages were fetched or a page reports no
// further pages, whichever comes first. limit must be >= 1.
func Fixed(limit int) Rule { return fixed{limit: limit} }

func (f fixed) Done(c *Cursor, p *Page) bool {
	return c.Number >= f.limit || !p.HasMore
}

func (f fixed) Validate() error {
	if f.limit < 1 {
		return fmt.Errorf("%w: fixed page limit must be >= 1 (got %d)", ErrInvalidRule, f.limit)
	}
	return nil
}

func (f fixed) String() string { return "fixed(" + strconv.Itoa(f.limit) + ")" }

type all struct{ pageRule }

// All fetches pages until a page reports no further pages.
func All() Rule { return all{} }

func (all) Done(_ *Cursor, p *Page) bool { return !p.HasMore }

func (all) String() string { return "all" }
