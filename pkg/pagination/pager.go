package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/reqt/pkg/query"
)

// ErrExhausted is returned by Next once the traversal is over.
var ErrExhausted = errors.New("pagination exhausted")

// FetchFunc fetches the page at cursor using the query fragment of the rule.
// It is called at most once per page and never concurrently.
type FetchFunc func(ctx context.Context, fragment query.Params, cursor Cursor) (*Page, error)

// Pager is a forward-only traversal. It is not safe for concurrent use and
// cannot be restarted.
type Pager struct {
	rule   Rule
	cursor *Cursor
	fetch  FetchFunc
	done   bool
	logger zerolog.Logger
}

// PagerOption configures a Pager.
type PagerOption func(*Pager)

// WithLogger sets the pager logger.
func WithLogger(logger zerolog.Logger) PagerOption {
	return func(p *Pager) {
		p.logger = logger
	}
}

// NewPager validates rule and returns a pager positioned before page 1.
func NewPager(rule Rule, size int, fetch FetchFunc, opts ...PagerOption) (*Pager, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}
	if fetch == nil {
		return nil, errors.New("pagination: nil fetch function")
	}

	p := &Pager{
		rule:   rule,
		cursor: NewCursor(size),
		fetch:  fetch,
		logger: log.With().Str("component", "pager").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Cursor returns a copy of the current position.
func (p *Pager) Cursor() Cursor {
	return *p.cursor
}

// Next fetches the next page. It returns ErrExhausted once the rule has
// declared the traversal over, and stops the traversal on the first error.
// A cancelled ctx is reported before any request for the page is made.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		p.done = true
		return nil, fmt.Errorf("fetch page %d: %w", p.cursor.Number, err)
	}

	page, err := p.fetch(ctx, p.rule.Fragment(p.cursor), *p.cursor)
	if err != nil {
		p.done = true
		return nil, fmt.Errorf("fetch page %d: %w", p.cursor.Number, err)
	}
	page.Number = p.cursor.Number

	if p.rule.Done(p.cursor, page) {
		p.done = true
		p.logger.Debug().
			Int("page", page.Number).
			Int("returned", page.Returned).
			Msg("Pagination complete")
	} else {
		p.rule.Advance(p.cursor)
	}

	return page, nil
}

// All returns an iterator over the remaining pages. Breaking out of the loop
// stops the traversal without further requests. An error is yielded once and
// ends the sequence.
func (p *Pager) All(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		for {
			page, err := p.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}
