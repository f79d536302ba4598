package crawl

import "github.com/stahnma/gh-rmdcrawl/internal/github"

// DefaultMaxPages bounds pagination until the API reports a page count.
const DefaultMaxPages = 1000

// Cursor is the pagination state of one cycle.
type Cursor struct {
	Page int
	// TotalPages is 0 until a response reports it, then fixed for the cycle.
	TotalPages int
	HasNext    bool
}

// NewCursor starts at page 1 with a further page assumed.
func NewCursor() *Cursor {
	return &Cursor{Page: 1, HasNext: true}
}

// Next reports whether Page should be fetched. Pages are fetched up to and
// including TotalPages, or maxPages while TotalPages is unknown.
func (c *Cursor) Next(maxPages int) bool {
	bound := maxPages
	if c.TotalPages > 0 {
		bound = c.TotalPages
	}
	return c.HasNext && c.Page <= bound
}

// Advance records the metadata of the page just fetched and moves to the next one.
func (c *Cursor) Advance(p github.Page) {
	if c.TotalPages == 0 && p.TotalPages > 0 {
		c.TotalPages = p.TotalPages
	}
	c.HasNext = p.HasNext
	c.Page++
}
