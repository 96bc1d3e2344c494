package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrPagination is returned when a response cannot be read as a page.
var ErrPagination = errors.New("malformed page")

// Response headers carrying collection totals.
const (
	HeaderTotal   = "X-Total"
	HeaderPerPage = "X-Per-Page"
	HeaderPages   = "X-Pages"
)

// Page is one decoded page of a collection.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Items are the raw JSON elements of the page, in server order.
	Items []json.RawMessage

	// Returned is len(Items).
	Returned int

	// HasMore reports whether the server has further pages.
	HasMore bool

	// Total is the number of items in the collection, if reported.
	Total    int
	HasTotal bool

	// Pages is the number of pages in the collection, if reported.
	Pages int
}

type envelope struct {
	Data *[]json.RawMessage `json:"data"`
	Meta *struct {
		Total *int `json:"total"`
	} `json:"meta"`
}

// Decode reads the page fetched at c.
//
// The body must be a JSON array or an object with a "data" array; an empty
// body is an empty page. Anything else fails with ErrPagination.
func Decode(body []byte, header http.Header, c *Cursor) (*Page, error) {
	page := &Page{Number: c.Number}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrPagination, c.Number, err)
		}
	case trimmed[0] == '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrPagination, c.Number, err)
		}
		if env.Data == nil {
			return nil, fmt.Errorf("%w: page %d: object without data array", ErrPagination, c.Number)
		}
		page.Items = *env.Data
		if env.Meta != nil && env.Meta.Total != nil {
			page.Total, page.HasTotal = *env.Meta.Total, true
		}
	default:
		return nil, fmt.Errorf("%w: page %d: body is neither an array nor an object", ErrPagination, c.Number)
	}

	if total, ok := headerInt(header, HeaderTotal); ok {
		page.Total, page.HasTotal = total, true
	}
	if pages, ok := headerInt(header, HeaderPages); ok {
		page.Pages = pages
	}

	page.Returned = len(page.Items)
	page.HasMore = hasMore(page, header, c)

	return page, nil
}

func hasMore(p *Page, header http.Header, c *Cursor) bool {
	if p.Returned == 0 || p.Returned < c.Size {
		return false
	}
	if p.Pages > 0 && c.Number >= p.Pages {
		return false
	}
	if p.HasTotal {
		perPage := c.Size
		if n, ok := headerInt(header, HeaderPerPage); ok && n > 0 {
			perPage = n
		}
		return c.Number*perPage < p.Total
	}
	return true
}

func headerInt(header http.Header, name string) (int, bool) {
	raw := header.Get(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
