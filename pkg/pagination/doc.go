// Package pagination drives multi-page retrieval.
//
// A Pager walks the pages of a collection strictly in order: it asks its Rule
// for the query fragment of the current Cursor, fetches the page, and lets the
// Rule decide whether the traversal is over. Pages are fetched lazily, one at
// a time, only when the consumer asks for the next one.
//
// Example usage:
//
//	pager, err := pagination.NewPager(pagination.Fixed(5), 50, fetch)
//	if err != nil {
//		return err
//	}
//	for page, err := range pager.All(ctx) {
//		if err != nil {
//			return err
//		}
//		process(page.Items)
//	}
//
// Rules:
//   - OneShot: exactly one page
//   - Fixed(n): at most n pages, stopping early on a short page
//   - All: every page until a short or empty page
//
// Pages are decoded from either a bare JSON array or an object with a "data"
// array. Totals are taken from the X-Total (items), X-Per-Page and X-Pages
// (page count) headers, or from a "meta.total" field in the body.
package pagination
