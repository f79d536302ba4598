package github

import "encoding/gob"

func init() {
	gob.Register(Page{})
}

// Item is one code-search hit.
type Item struct {
	// Repository is the "owner/name" identifier of the repository holding the file.
	Repository string
	FileName   string
	Path       string
}

// Page is one page of code-search results plus pagination metadata.
type Page struct {
	Items []Item
	// TotalPages is the number of pages the API reports, 0 when unknown.
	TotalPages int
	// TotalCount is the number of matching files the API reports.
	TotalCount int
	// HasNext reports whether the API advertises a further page.
	HasNext bool
}
